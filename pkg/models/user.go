package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account owned by a single tenant for its whole lifetime.
// Email is unique across all tenants. Users are deactivated, never deleted.
type User struct {
	ID           uuid.UUID `db:"user_id"       json:"user_id"`
	TenantID     uuid.UUID `db:"tenant_id"     json:"tenant_id"`
	Username     string    `db:"username"      json:"username"`
	Email        string    `db:"email"         json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FirstName    string    `db:"first_name"    json:"first_name"`
	LastName     string    `db:"last_name"     json:"last_name"`
	Role         string    `db:"role"          json:"role"`
	IsActive     bool      `db:"is_active"     json:"is_active"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
}

const (
	RoleAdmin    = "admin"
	RoleUser     = "user"
	RoleOperator = "operator"
)
