// Package provision resolves or creates tenants, seeds the operator
// roster at startup and handles self-service registration.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/eoex/internal/auth"
	"github.com/kiranshivaraju/eoex/internal/observability"
	"github.com/kiranshivaraju/eoex/internal/security"
	"github.com/kiranshivaraju/eoex/internal/store"
	"github.com/kiranshivaraju/eoex/pkg/models"
)

// ErrEmailTaken is returned when registering an email that already
// belongs to a user in any tenant.
var ErrEmailTaken = errors.New("email already registered")

const (
	OperatorTenantName   = "EOEX"
	OperatorTenantDomain = "eoex.local"
)

// RosterEntry is one operator account kept in shape by Bootstrap.
type RosterEntry struct {
	Email string
	// LegacyEmail, if set, is an earlier address of the same account. It
	// is renamed to Email instead of inserting a second account.
	LegacyEmail string
	FirstName   string
	LastName    string
	Role        string
}

// DefaultRoster is the fixed set of operator accounts.
var DefaultRoster = []RosterEntry{
	{Email: "admin@eoex.com", LegacyEmail: "admin@eoex.local", FirstName: "EOEX", LastName: "Admin", Role: models.RoleAdmin},
	{Email: "support@eoex.com", FirstName: "EOEX", LastName: "Support", Role: models.RoleOperator},
}

// Store is the subset of store.Store used for provisioning.
type Store interface {
	GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error)
	CreateTenant(ctx context.Context, name, domain string) (*models.Tenant, error)
	DeleteEmptyTenant(ctx context.Context, id uuid.UUID) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	ResetUser(ctx context.Context, u *models.User) error
}

// Service provisions tenants and accounts.
type Service struct {
	store  Store
	hash   func(string) (string, error)
	logger *slog.Logger
}

// NewService creates a provisioning Service.
func NewService(s Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, hash: security.HashPassword, logger: logger}
}

// ResolveOrCreateTenant returns the id of the tenant owning domain,
// creating it with name if there is none.
func (s *Service) ResolveOrCreateTenant(ctx context.Context, name, domain string) (uuid.UUID, error) {
	id, _, err := s.resolveOrCreate(ctx, name, domain)
	return id, err
}

// resolveOrCreate is a plain check-then-act. A concurrent creator of the
// same domain makes our insert violate tenant_domain uniqueness; the
// lookup is then repeated once and the winner's id returned.
func (s *Service) resolveOrCreate(ctx context.Context, name, domain string) (uuid.UUID, bool, error) {
	t, err := s.store.GetTenantByDomain(ctx, domain)
	if err == nil {
		return t.ID, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return uuid.Nil, false, fmt.Errorf("lookup tenant: %w", err)
	}

	t, err = s.store.CreateTenant(ctx, name, domain)
	if err == nil {
		return t.ID, true, nil
	}
	if !errors.Is(err, store.ErrDuplicateKey) {
		return uuid.Nil, false, fmt.Errorf("create tenant: %w", err)
	}

	s.logger.Info("tenant created concurrently, retrying lookup", "domain", domain)
	t, err = s.store.GetTenantByDomain(ctx, domain)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("lookup tenant after conflict: %w", err)
	}
	return t.ID, false, nil
}

// Bootstrap makes the operator tenant and roster exist with the given
// password. Existing roster accounts are reset and reactivated, so
// running it repeatedly converges on the same state.
func (s *Service) Bootstrap(ctx context.Context, roster []RosterEntry, password string) error {
	tenantID, created, err := s.resolveOrCreate(ctx, OperatorTenantName, OperatorTenantDomain)
	if err != nil {
		return fmt.Errorf("bootstrap operator tenant: %w", err)
	}
	if created {
		observability.TenantsProvisionedTotal.WithLabelValues("bootstrap").Inc()
		s.logger.Info("operator tenant created", "tenant_id", tenantID, "domain", OperatorTenantDomain)
	}

	for _, entry := range roster {
		if err := s.seed(ctx, tenantID, entry, password); err != nil {
			return fmt.Errorf("bootstrap %s: %w", entry.Email, err)
		}
	}
	return nil
}

func (s *Service) seed(ctx context.Context, tenantID uuid.UUID, entry RosterEntry, password string) error {
	email := auth.NormalizeEmail(entry.Email)
	hash, err := s.hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	want := &models.User{
		TenantID:     tenantID,
		Username:     username(email),
		Email:        email,
		PasswordHash: hash,
		FirstName:    entry.FirstName,
		LastName:     entry.LastName,
		Role:         entry.Role,
	}

	existing, err := s.store.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if existing == nil && entry.LegacyEmail != "" {
		existing, err = s.store.GetUserByEmail(ctx, auth.NormalizeEmail(entry.LegacyEmail))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if existing != nil {
			s.logger.Info("renaming legacy operator account", "from", existing.Email, "to", email)
		}
	}

	if existing != nil {
		want.ID = existing.ID
		return s.store.ResetUser(ctx, want)
	}

	u, err := s.store.CreateUser(ctx, want)
	if err != nil {
		return err
	}
	s.logger.Info("operator account created", "user_id", u.ID, "email", u.Email, "role", u.Role)
	return nil
}

// Registration is the input to Register.
type Registration struct {
	TenantName   string
	TenantDomain string
	Email        string
	Password     string
	FirstName    string
	LastName     string
}

// Register resolves or creates the tenant for reg.TenantDomain and creates
// its admin user. A taken email fails with ErrEmailTaken before any tenant
// is created.
func (s *Service) Register(ctx context.Context, reg Registration) (*models.User, uuid.UUID, error) {
	email := auth.NormalizeEmail(reg.Email)

	_, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, uuid.Nil, ErrEmailTaken
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, uuid.Nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := s.hash(reg.Password)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("hash password: %w", err)
	}

	tenantID, created, err := s.resolveOrCreate(ctx, reg.TenantName, strings.TrimSpace(reg.TenantDomain))
	if err != nil {
		return nil, uuid.Nil, err
	}
	if created {
		observability.TenantsProvisionedTotal.WithLabelValues("register").Inc()
	}

	u, err := s.store.CreateUser(ctx, &models.User{
		TenantID:     tenantID,
		Username:     username(email),
		Email:        email,
		PasswordHash: hash,
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		Role:         models.RoleAdmin,
	})
	if err != nil && created {
		s.discardTenant(ctx, tenantID)
	}
	if errors.Is(err, store.ErrDuplicateKey) {
		return nil, uuid.Nil, ErrEmailTaken
	}
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("tenant user registered", "user_id", u.ID, "tenant_id", tenantID, "tenant_created", created)
	return u, tenantID, nil
}

// discardTenant removes a tenant created by a registration whose admin
// could not be created. A tenant that has gained users meanwhile is kept.
func (s *Service) discardTenant(ctx context.Context, id uuid.UUID) {
	deleted, err := s.store.DeleteEmptyTenant(ctx, id)
	if err != nil {
		s.logger.Warn("discard tenant after failed registration", "tenant_id", id, "error", err)
		return
	}
	s.logger.Info("tenant discarded after failed registration", "tenant_id", id, "deleted", deleted)
}

func username(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
