// Package records implements tenant-scoped CRUD over the business record
// kinds. Every statement comes from pkg/query and is scoped to the
// caller's tenant.
package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/eoex/internal/observability"
	"github.com/kiranshivaraju/eoex/internal/store"
	"github.com/kiranshivaraju/eoex/pkg/models"
	"github.com/kiranshivaraju/eoex/pkg/query"
)

var (
	// ErrNoChanges is returned by Update for an empty payload. Nothing is
	// written.
	ErrNoChanges    = errors.New("no changes")
	ErrInvalidValue = errors.New("invalid value")
	ErrMissingField = errors.New("missing required field")
)

// ListParams selects a page of records. Filters maps filter names to
// values; empty values are ignored.
type ListParams struct {
	Filters map[string]string
	Page    int
	Limit   int
}

// ListResult is one page of records and the total matching the filters.
type ListResult struct {
	Items []models.Record
	Total int64
	Page  int
	Limit int
}

// Service executes tenant-scoped record statements.
type Service struct {
	db     store.Executor
	logger *slog.Logger
}

// NewService creates a records Service.
func NewService(db store.Executor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger}
}

func (s *Service) List(ctx context.Context, ac models.AuthContext, kind *Kind, params ListParams) (res *ListResult, err error) {
	defer func() { observe(kind, "list", err) }()

	names := make([]string, 0, len(params.Filters))
	for name, v := range params.Filters {
		if v != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	filters := make([]query.Filter, 0, len(names))
	for _, name := range names {
		filters = append(filters, query.Filter{Field: name, Value: params.Filters[name]})
	}

	rowsStmt, countStmt, err := kind.Schema.List(ac.TenantID, filters, query.Page{Number: params.Page, Size: params.Limit})
	if err != nil {
		return nil, err
	}

	rows, err := s.db.FetchMany(ctx, rowsStmt.SQL, rowsStmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind.Name, err)
	}
	total, err := s.count(ctx, countStmt)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", kind.Name, err)
	}

	items := make([]models.Record, len(rows))
	for i, r := range rows {
		items[i] = models.Record(r)
	}
	return &ListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

func (s *Service) Get(ctx context.Context, ac models.AuthContext, kind *Kind, id uuid.UUID) (rec models.Record, err error) {
	defer func() { observe(kind, "get", err) }()

	stmt := kind.Schema.Get(ac.TenantID, id)
	row, ok, err := s.db.FetchOne(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", kind.Name, err)
	}
	if !ok {
		return nil, store.ErrNotFound
	}
	return models.Record(row), nil
}

// Create inserts a record owned by the caller's tenant. A tenant id in
// input is ignored.
func (s *Service) Create(ctx context.Context, ac models.AuthContext, kind *Kind, input map[string]any) (rec models.Record, err error) {
	defer func() { observe(kind, "create", err) }()

	values, err := kind.coerceAll(input)
	if err != nil {
		return nil, err
	}
	for _, f := range kind.Fields {
		if _, ok := values[f.Name]; ok {
			continue
		}
		if f.Required {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, f.Name)
		}
		if f.Default != nil {
			values[f.Name] = f.Default
		}
	}
	if kind.Stamp != nil {
		kind.Stamp(ac, values)
	}

	stmt, err := kind.Schema.Insert(ac.TenantID, query.Assignments(values))
	if err != nil {
		return nil, err
	}
	row, _, err := s.db.FetchOne(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", kind.Name, err)
	}
	return models.Record(row), nil
}

// Update sets exactly the fields in input on the caller's record. An empty
// input returns ErrNoChanges without touching storage; a record that is
// missing or owned by another tenant returns store.ErrNotFound.
func (s *Service) Update(ctx context.Context, ac models.AuthContext, kind *Kind, id uuid.UUID, input map[string]any) (rec models.Record, err error) {
	defer func() { observe(kind, "update", err) }()

	if len(input) == 0 {
		return nil, ErrNoChanges
	}
	values, err := kind.coerceAll(input)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrNoChanges
	}

	stmt, err := kind.Schema.Update(ac.TenantID, id, query.Assignments(values))
	if err != nil {
		return nil, err
	}
	row, ok, err := s.db.FetchOne(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", kind.Name, err)
	}
	if !ok {
		return nil, store.ErrNotFound
	}
	return models.Record(row), nil
}

// Delete removes the caller's record, or returns store.ErrNotFound.
func (s *Service) Delete(ctx context.Context, ac models.AuthContext, kind *Kind, id uuid.UUID) (err error) {
	defer func() { observe(kind, "delete", err) }()

	stmt := kind.Schema.Delete(ac.TenantID, id)
	n, err := s.db.Execute(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind.Name, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Overview counts the caller's records of every kind.
func (s *Service) Overview(ctx context.Context, ac models.AuthContext) (map[string]int64, error) {
	out := make(map[string]int64, len(All))
	for _, kind := range All {
		stmt, err := kind.Schema.Count(ac.TenantID, nil)
		if err != nil {
			return nil, err
		}
		n, err := s.count(ctx, stmt)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", kind.Name, err)
		}
		out[kind.Name] = n
	}
	return out, nil
}

func (s *Service) count(ctx context.Context, stmt query.Statement) (int64, error) {
	v, ok, err := s.db.FetchScalar(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
	return n, nil
}

// coerceAll validates caller input against the kind's writable fields.
// The tenant column is dropped rather than rejected.
func (k *Kind) coerceAll(input map[string]any) (map[string]any, error) {
	tenantCol := k.Schema.TenantColumn
	if tenantCol == "" {
		tenantCol = query.DefaultTenantColumn
	}

	out := make(map[string]any, len(input))
	for name, v := range input {
		if name == tenantCol {
			continue
		}
		f, ok := k.field(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", query.ErrUnknownField, name)
		}
		cv, err := coerce(f, v)
		if err != nil {
			return nil, err
		}
		out[name] = cv
	}
	return out, nil
}

func observe(kind *Kind, op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrNoChanges):
		outcome = "no_changes"
	case IsValidation(err):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	observability.RecordOperationsTotal.WithLabelValues(kind.Name, op, outcome).Inc()
}

// IsValidation reports whether err was caused by caller input.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidValue, ErrMissingField, store.ErrInvalidReference,
		query.ErrUnknownField, query.ErrDuplicateField, query.ErrInvalidFilter, query.ErrInvalidPage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
