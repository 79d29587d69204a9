package query

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// predicate accumulates AND-ed conditions and their bound arguments.
type predicate struct {
	clauses []string
	args    []any
}

func (p *predicate) bind(v any) string {
	p.args = append(p.args, v)
	return "$" + strconv.Itoa(len(p.args))
}

func (p *predicate) sql() string {
	return strings.Join(p.clauses, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// scope starts every read predicate with the tenant column and appends the
// filter terms in the order given.
func (s Schema) scope(tenantID any, filters []Filter) (*predicate, error) {
	p := &predicate{}
	p.clauses = append(p.clauses, s.tenantColumn()+" = "+p.bind(tenantID))

	for _, f := range filters {
		fe, ok := s.Filters[f.Field]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, f.Field)
		}
		op := f.Op
		if op == "" {
			op = fe.DefaultOp()
		}
		if !fe.allows(op) {
			return nil, fmt.Errorf("%w: %q does not support %q", ErrInvalidFilter, f.Field, op)
		}

		var placeholder, cmp string
		switch op {
		case OpEq:
			if f.Value == nil {
				return nil, fmt.Errorf("%w: %q requires a value", ErrInvalidFilter, f.Field)
			}
			placeholder, cmp = p.bind(f.Value), "="
		case OpContains:
			str, ok := f.Value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q requires a string", ErrInvalidFilter, f.Field)
			}
			placeholder, cmp = p.bind("%"+likeEscaper.Replace(str)+"%"), "ILIKE"
		default:
			return nil, fmt.Errorf("%w: operator %q", ErrInvalidFilter, op)
		}

		terms := make([]string, len(fe.Columns))
		for i, col := range fe.Columns {
			terms[i] = col + " " + cmp + " " + placeholder
		}
		if len(terms) == 1 {
			p.clauses = append(p.clauses, terms[0])
		} else {
			p.clauses = append(p.clauses, "("+strings.Join(terms, " OR ")+")")
		}
	}
	return p, nil
}

func (s Schema) columns() string {
	return strings.Join(s.Columns, ", ")
}

// List returns the page statement and the count statement for the same
// tenant predicate and filter terms. The count carries no LIMIT/OFFSET.
func (s Schema) List(tenantID any, filters []Filter, page Page) (rows Statement, count Statement, err error) {
	if err := page.validate(); err != nil {
		return Statement{}, Statement{}, err
	}
	p, err := s.scope(tenantID, filters)
	if err != nil {
		return Statement{}, Statement{}, err
	}
	where := p.sql()

	count = Statement{
		SQL:  "SELECT COUNT(*) FROM " + s.Table + " WHERE " + where,
		Args: slices.Clone(p.args),
	}

	limit := p.bind(page.Size)
	offset := p.bind(page.Offset())
	rows = Statement{
		SQL: fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s DESC, %s DESC LIMIT %s OFFSET %s",
			s.columns(), s.Table, where, s.OrderBy, s.IDColumn, limit, offset),
		Args: p.args,
	}
	return rows, count, nil
}

// Count returns a tenant-scoped COUNT(*) statement.
func (s Schema) Count(tenantID any, filters []Filter) (Statement, error) {
	p, err := s.scope(tenantID, filters)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		SQL:  "SELECT COUNT(*) FROM " + s.Table + " WHERE " + p.sql(),
		Args: p.args,
	}, nil
}

// Get selects a single row guarded by tenant and id.
func (s Schema) Get(tenantID, id any) Statement {
	return Statement{
		SQL: fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 AND %s = $2",
			s.columns(), s.Table, s.tenantColumn(), s.IDColumn),
		Args: []any{tenantID, id},
	}
}

// Insert writes tenantID into the tenant column. Any tenant column present
// in values is discarded, never bound.
func (s Schema) Insert(tenantID any, values []Assignment) (Statement, error) {
	cols := []string{s.tenantColumn()}
	args := []any{tenantID}
	seen := make(map[string]bool, len(values))

	for _, a := range values {
		if a.Column == s.tenantColumn() {
			continue
		}
		if !slices.Contains(s.Insertable, a.Column) {
			return Statement{}, fmt.Errorf("%w: %q", ErrUnknownField, a.Column)
		}
		if seen[a.Column] {
			return Statement{}, fmt.Errorf("%w: %q", ErrDuplicateField, a.Column)
		}
		seen[a.Column] = true
		cols = append(cols, a.Column)
		args = append(args, a.Value)
	}

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	return Statement{
		SQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			s.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), s.columns()),
		Args: args,
	}, nil
}

// Update sets exactly the given columns on the row matching tenant and id
// and returns the updated row.
func (s Schema) Update(tenantID, id any, set []Assignment) (Statement, error) {
	if len(set) == 0 {
		return Statement{}, ErrEmptyUpdate
	}
	p := &predicate{}
	sets := make([]string, 0, len(set))
	seen := make(map[string]bool, len(set))

	for _, a := range set {
		if !slices.Contains(s.Updatable, a.Column) {
			return Statement{}, fmt.Errorf("%w: %q", ErrUnknownField, a.Column)
		}
		if seen[a.Column] {
			return Statement{}, fmt.Errorf("%w: %q", ErrDuplicateField, a.Column)
		}
		seen[a.Column] = true
		sets = append(sets, a.Column+" = "+p.bind(a.Value))
	}

	tenant := p.bind(tenantID)
	rowID := p.bind(id)
	return Statement{
		SQL: fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s AND %s = %s RETURNING %s",
			s.Table, strings.Join(sets, ", "), s.tenantColumn(), tenant, s.IDColumn, rowID, s.columns()),
		Args: p.args,
	}, nil
}

// Delete removes the row matching tenant and id.
func (s Schema) Delete(tenantID, id any) Statement {
	return Statement{
		SQL:  fmt.Sprintf("DELETE FROM %s WHERE %s = $1 AND %s = $2", s.Table, s.tenantColumn(), s.IDColumn),
		Args: []any{tenantID, id},
	}
}
