package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Row is a single result row keyed by column name. UUID columns are
// returned as uuid.UUID, numeric columns as float64 and integer columns
// as int64.
type Row map[string]any

// Executor runs parameterized statements. Values are always bound as
// positional parameters, never concatenated into the statement text.
type Executor interface {
	Execute(ctx context.Context, sql string, args ...any) (int64, error)
	FetchOne(ctx context.Context, sql string, args ...any) (Row, bool, error)
	FetchMany(ctx context.Context, sql string, args ...any) ([]Row, error)
	FetchScalar(ctx context.Context, sql string, args ...any) (any, bool, error)
}

// DB is an Executor that can also report connectivity.
type DB interface {
	Executor
	Ping(ctx context.Context) error
}

// PoolExecutor implements DB on top of a bounded pgx pool. Every call
// acquires its own connection; waiting for one is bounded by the acquire
// timeout, after which the call fails with ErrResourceExhausted.
type PoolExecutor struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

// NewPoolExecutor creates a PoolExecutor. A zero acquireTimeout waits for
// a connection as long as ctx allows.
func NewPoolExecutor(pool *pgxpool.Pool, acquireTimeout time.Duration) *PoolExecutor {
	return &PoolExecutor{pool: pool, acquireTimeout: acquireTimeout}
}

func (e *PoolExecutor) Ping(ctx context.Context) error {
	conn, err := e.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return conn.Ping(ctx)
}

func (e *PoolExecutor) Execute(ctx context.Context, sql string, args ...any) (int64, error) {
	conn, err := e.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, translateError("execute", err)
	}
	return tag.RowsAffected(), nil
}

func (e *PoolExecutor) FetchOne(ctx context.Context, sql string, args ...any) (Row, bool, error) {
	conn, err := e.acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, false, translateError("fetch one", err)
	}
	m, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, translateError("fetch one", err)
	}
	return normalizeRow(m), true, nil
}

func (e *PoolExecutor) FetchMany(ctx context.Context, sql string, args ...any) ([]Row, error) {
	conn, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, translateError("fetch many", err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, translateError("fetch many", err)
	}

	out := make([]Row, 0, len(maps))
	for _, m := range maps {
		out = append(out, normalizeRow(m))
	}
	return out, nil
}

func (e *PoolExecutor) FetchScalar(ctx context.Context, sql string, args ...any) (any, bool, error) {
	conn, err := e.acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	defer conn.Release()

	var v any
	err = conn.QueryRow(ctx, sql, args...).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, translateError("fetch scalar", err)
	}
	return normalizeValue(v), true, nil
}

func (e *PoolExecutor) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	acquireCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.acquireTimeout > 0 {
		acquireCtx, cancel = context.WithTimeout(ctx, e.acquireTimeout)
	}
	defer cancel()

	conn, err := e.pool.Acquire(acquireCtx)
	if err != nil {
		// Only our own ceiling counts as exhaustion; a cancelled caller is not.
		if ctx.Err() == nil && errors.Is(acquireCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("acquire connection after %s: %w", e.acquireTimeout, ErrResourceExhausted)
		}
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return conn, nil
}

// translateError maps unique and foreign-key violations onto
// ErrDuplicateKey and ErrInvalidReference, keeping the constraint name in
// the message.
func translateError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w (%s)", op, ErrDuplicateKey, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%s: %w (%s)", op, ErrInvalidReference, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func normalizeRow(m map[string]any) Row {
	row := make(Row, len(m))
	for k, v := range m {
		row[k] = normalizeValue(v)
	}
	return row
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case [16]byte:
		return uuid.UUID(t)
	case pgtype.Numeric:
		if !t.Valid {
			return nil
		}
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	default:
		return v
	}
}
