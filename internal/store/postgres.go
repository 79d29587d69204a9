package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/eoex/pkg/models"
)

const userColumns = `user_id, tenant_id, username, email, password_hash, first_name, last_name, role, is_active, created_at`

// PostgresStore implements the Store interface over an Executor.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// --- Tenants ---

func (s *PostgresStore) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	row, ok, err := s.db.FetchOne(ctx,
		`SELECT tenant_id, tenant_name, tenant_domain, created_at FROM tenants WHERE tenant_domain = $1`, domain)
	if err != nil {
		return nil, fmt.Errorf("get tenant by domain: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return tenantFromRow(row), nil
}

func (s *PostgresStore) CreateTenant(ctx context.Context, name, domain string) (*models.Tenant, error) {
	row, _, err := s.db.FetchOne(ctx,
		`INSERT INTO tenants (tenant_name, tenant_domain) VALUES ($1, $2)
		 RETURNING tenant_id, tenant_name, tenant_domain, created_at`, name, domain)
	if err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return tenantFromRow(row), nil
}

func (s *PostgresStore) DeleteEmptyTenant(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := s.db.Execute(ctx,
		`DELETE FROM tenants
		 WHERE tenant_id = $1 AND NOT EXISTS (SELECT 1 FROM users WHERE tenant_id = $1)`, id)
	if err != nil {
		return false, fmt.Errorf("delete empty tenant: %w", err)
	}
	return n > 0, nil
}

// --- Users ---

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row, ok, err := s.db.FetchOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return userFromRow(row), nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row, ok, err := s.db.FetchOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return userFromRow(row), nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	row, _, err := s.db.FetchOne(ctx,
		`INSERT INTO users (tenant_id, username, email, password_hash, first_name, last_name, role, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		 RETURNING `+userColumns,
		u.TenantID, u.Username, u.Email, u.PasswordHash, nullable(u.FirstName), nullable(u.LastName), u.Role)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return userFromRow(row), nil
}

func (s *PostgresStore) ResetUser(ctx context.Context, u *models.User) error {
	n, err := s.db.Execute(ctx,
		`UPDATE users
		 SET email = $1, username = $2, password_hash = $3, first_name = $4, last_name = $5, role = $6, is_active = TRUE
		 WHERE user_id = $7`,
		u.Email, u.Username, u.PasswordHash, nullable(u.FirstName), nullable(u.LastName), u.Role, u.ID)
	if err != nil {
		return fmt.Errorf("reset user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func tenantFromRow(row Row) *models.Tenant {
	return &models.Tenant{
		ID:        rowUUID(row, "tenant_id"),
		Name:      rowString(row, "tenant_name"),
		Domain:    rowString(row, "tenant_domain"),
		CreatedAt: rowTime(row, "created_at"),
	}
}

func userFromRow(row Row) *models.User {
	active, _ := row["is_active"].(bool)
	return &models.User{
		ID:           rowUUID(row, "user_id"),
		TenantID:     rowUUID(row, "tenant_id"),
		Username:     rowString(row, "username"),
		Email:        rowString(row, "email"),
		PasswordHash: rowString(row, "password_hash"),
		FirstName:    rowString(row, "first_name"),
		LastName:     rowString(row, "last_name"),
		Role:         rowString(row, "role"),
		IsActive:     active,
		CreatedAt:    rowTime(row, "created_at"),
	}
}

func rowUUID(row Row, col string) uuid.UUID {
	id, _ := row[col].(uuid.UUID)
	return id
}

func rowString(row Row, col string) string {
	s, _ := row[col].(string)
	return s
}

func rowTime(row Row, col string) time.Time {
	t, _ := row[col].(time.Time)
	return t
}

// nullable stores empty optional text as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
