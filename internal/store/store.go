package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/eoex/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrInvalidReference is returned when a written value names a row that
// does not exist within the caller's tenant.
var ErrInvalidReference = errors.New("referenced resource not found")

// ErrResourceExhausted is returned when no pooled connection became
// available within the configured acquire timeout.
var ErrResourceExhausted = errors.New("database connection pool exhausted")

// Store is the tenant and user data access interface.
type Store interface {
	Ping(ctx context.Context) error

	GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error)
	CreateTenant(ctx context.Context, name, domain string) (*models.Tenant, error)
	// DeleteEmptyTenant removes a tenant that has no users. It reports
	// whether a row was deleted.
	DeleteEmptyTenant(ctx context.Context, id uuid.UUID) (bool, error)

	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	// ResetUser overwrites identity, credentials, names and role of an
	// existing user and reactivates it.
	ResetUser(ctx context.Context, u *models.User) error
}
