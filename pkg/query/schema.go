// Package query constructs parameterized SQL statements for tenant-scoped
// records. Every statement carries a tenant predicate, every value is bound
// as a positional parameter, and every identifier comes from a Schema that
// is fixed at compile time. Nothing here performs I/O.
package query

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// DefaultTenantColumn is used when a Schema leaves TenantColumn empty.
const DefaultTenantColumn = "tenant_id"

// MaxPageSize is the largest page a List statement may request.
const MaxPageSize = 100

// MaxPageNumber bounds Page.Number so Offset cannot overflow.
const MaxPageNumber = 1_000_000

var (
	ErrUnknownField   = errors.New("unknown field")
	ErrDuplicateField = errors.New("field assigned more than once")
	ErrInvalidFilter  = errors.New("invalid filter")
	ErrInvalidPage    = errors.New("invalid page")
	ErrEmptyUpdate    = errors.New("no fields to update")
	ErrInvalidSchema  = errors.New("invalid schema")
)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Operator is a comparison a filter term may apply.
type Operator string

const (
	// OpEq matches the value exactly.
	OpEq Operator = "eq"
	// OpContains is a case-insensitive substring match.
	OpContains Operator = "contains"
)

// Filterable declares a filter field: the columns it spans (ORed together)
// and the operators it accepts. The first operator is the default.
type Filterable struct {
	Columns []string
	Ops     []Operator
}

// DefaultOp returns the operator used when a caller does not name one.
func (f Filterable) DefaultOp() Operator {
	if len(f.Ops) == 0 {
		return OpEq
	}
	return f.Ops[0]
}

func (f Filterable) allows(op Operator) bool {
	return slices.Contains(f.Ops, op)
}

// Schema is the allow-list for one table. Only names listed here can ever
// appear in statement text.
type Schema struct {
	Table        string
	IDColumn     string
	TenantColumn string
	// Columns are returned by every statement that yields rows.
	Columns    []string
	Insertable []string
	Updatable  []string
	Filters    map[string]Filterable
	// OrderBy is sorted descending, ties broken by IDColumn.
	OrderBy string
}

func (s Schema) tenantColumn() string {
	if s.TenantColumn == "" {
		return DefaultTenantColumn
	}
	return s.TenantColumn
}

// Validate checks that every identifier is well formed and that the
// writable and filterable columns are a subset of Columns. The tenant and
// id columns can never be written through the allow-list.
func (s Schema) Validate() error {
	names := []string{s.Table, s.IDColumn, s.tenantColumn(), s.OrderBy}
	names = append(names, s.Columns...)
	for _, n := range names {
		if !identifier.MatchString(n) {
			return fmt.Errorf("%w: bad identifier %q in %s", ErrInvalidSchema, n, s.Table)
		}
	}
	for _, c := range []string{s.IDColumn, s.tenantColumn(), s.OrderBy} {
		if !slices.Contains(s.Columns, c) {
			return fmt.Errorf("%w: %s.%s not in columns", ErrInvalidSchema, s.Table, c)
		}
	}
	writable := append(slices.Clone(s.Insertable), s.Updatable...)
	for _, c := range writable {
		if c == s.IDColumn || c == s.tenantColumn() {
			return fmt.Errorf("%w: %s.%s must not be writable", ErrInvalidSchema, s.Table, c)
		}
		if !slices.Contains(s.Columns, c) {
			return fmt.Errorf("%w: %s.%s not in columns", ErrInvalidSchema, s.Table, c)
		}
	}
	for name, f := range s.Filters {
		if len(f.Columns) == 0 || len(f.Ops) == 0 {
			return fmt.Errorf("%w: filter %q on %s has no columns or operators", ErrInvalidSchema, name, s.Table)
		}
		for _, c := range f.Columns {
			if !slices.Contains(s.Columns, c) {
				return fmt.Errorf("%w: filter %q references %s.%s", ErrInvalidSchema, name, s.Table, c)
			}
		}
	}
	return nil
}

// Filter is one (field, operator, value) term. Field names a key of
// Schema.Filters, not a column.
type Filter struct {
	Field string
	Op    Operator
	Value any
}

// Page selects a window of rows. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

// Offset is the number of rows skipped before the page starts.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

func (p Page) validate() error {
	if p.Number < 1 {
		return fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidPage, p.Number)
	}
	if p.Size < 1 || p.Size > MaxPageSize {
		return fmt.Errorf("%w: limit must be between 1 and %d, got %d", ErrInvalidPage, MaxPageSize, p.Size)
	}
	if p.Number > MaxPageNumber {
		return fmt.Errorf("%w: page must be <= %d, got %d", ErrInvalidPage, MaxPageNumber, p.Number)
	}
	return nil
}

// Assignment sets one column to a value in an INSERT or UPDATE.
type Assignment struct {
	Column string
	Value  any
}

// Assignments converts a field map into assignments ordered by column name
// so the generated statement text is deterministic.
func Assignments(fields map[string]any) []Assignment {
	out := make([]Assignment, 0, len(fields))
	for k, v := range fields {
		out = append(out, Assignment{Column: k, Value: v})
	}
	slices.SortFunc(out, func(a, b Assignment) int {
		return strings.Compare(a.Column, b.Column)
	})
	return out
}

// Statement is SQL text with positional placeholders and its arguments.
type Statement struct {
	SQL  string
	Args []any
}
