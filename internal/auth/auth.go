// Package auth issues bearer tokens for valid credentials and resolves
// bearer tokens into a per-request AuthContext.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/eoex/internal/observability"
	"github.com/kiranshivaraju/eoex/internal/security"
	"github.com/kiranshivaraju/eoex/internal/store"
	"github.com/kiranshivaraju/eoex/pkg/models"
)

var (
	ErrUnauthenticated      = errors.New("authentication required")
	ErrInvalidToken         = security.ErrInvalidToken
	ErrUserNotFound         = errors.New("user not found or inactive")
	ErrAuthenticationFailed = errors.New("invalid email or password")
)

// UserStore is the subset of store.Store the service reads users from.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenIssuer signs and validates bearer tokens.
type TokenIssuer interface {
	Issue(subject, tenantID, role string) (string, time.Time, error)
	Validate(token string) (*security.Claims, error)
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      models.AuthContext
}

// Service implements login and per-request token resolution.
type Service struct {
	users  UserStore
	tokens TokenIssuer
	logger *slog.Logger
}

// NewService creates an auth Service.
func NewService(users UserStore, tokens TokenIssuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, tokens: tokens, logger: logger}
}

// dummyHash is verified against when the email is unknown so that both
// failure paths spend the same hashing time.
var dummyHash = sync.OnceValue(func() string {
	h, err := security.HashPassword("eoex-timing-equalizer")
	if err != nil {
		return ""
	}
	return h
})

// NormalizeEmail trims and lower-cases an address for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login verifies credentials and issues a token. Unknown email, wrong
// password and inactive account all return ErrAuthenticationFailed.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)

	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		security.VerifyPassword(password, dummyHash())
		return nil, s.loginFailed("unknown email")
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if !security.VerifyPassword(password, u.PasswordHash) {
		return nil, s.loginFailed("password mismatch")
	}
	if !u.IsActive {
		return nil, s.loginFailed("inactive user")
	}

	token, expiresAt, err := s.tokens.Issue(u.ID.String(), u.TenantID.String(), u.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	observability.AuthOutcomesTotal.WithLabelValues("login", "ok").Inc()
	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User: models.AuthContext{
			UserID:   u.ID,
			TenantID: u.TenantID,
			Email:    u.Email,
			Role:     u.Role,
		},
	}, nil
}

func (s *Service) loginFailed(reason string) error {
	s.logger.Debug("login rejected", "reason", reason)
	observability.AuthOutcomesTotal.WithLabelValues("login", "failed").Inc()
	return ErrAuthenticationFailed
}

// Resolve turns a raw bearer token into an AuthContext. The user row is
// reloaded on every call; tenant and role come from the row, and the
// token's tenant claim must agree with it.
func (s *Service) Resolve(ctx context.Context, bearer string) (*models.AuthContext, error) {
	if bearer == "" {
		return nil, s.resolveFailed(ErrUnauthenticated, "missing token")
	}

	claims, err := s.tokens.Validate(bearer)
	if err != nil {
		return nil, s.resolveFailed(ErrInvalidToken, "token validation failed")
	}
	if claims.Subject == "" || claims.TenantID == "" {
		return nil, s.resolveFailed(ErrInvalidToken, "missing subject or tenant claim")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, s.resolveFailed(ErrInvalidToken, "malformed subject")
	}
	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return nil, s.resolveFailed(ErrInvalidToken, "malformed tenant claim")
	}

	u, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, s.resolveFailed(ErrUserNotFound, "user missing")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive {
		return nil, s.resolveFailed(ErrUserNotFound, "user inactive")
	}
	if u.TenantID != tenantID {
		return nil, s.resolveFailed(ErrInvalidToken, "tenant claim mismatch")
	}

	return &models.AuthContext{
		UserID:   u.ID,
		TenantID: u.TenantID,
		Email:    u.Email,
		Role:     u.Role,
	}, nil
}

func (s *Service) resolveFailed(err error, reason string) error {
	s.logger.Debug("token rejected", "reason", reason)
	observability.AuthOutcomesTotal.WithLabelValues("resolve", "rejected").Inc()
	return err
}
