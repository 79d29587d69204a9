package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/eoex/internal/api/response"
	"github.com/kiranshivaraju/eoex/internal/auth"
	"github.com/kiranshivaraju/eoex/internal/store"
	"github.com/kiranshivaraju/eoex/pkg/models"
)

// Resolver turns a bearer token into an AuthContext.
type Resolver interface {
	Resolve(ctx context.Context, bearer string) (*models.AuthContext, error)
}

// Auth is the guard every protected route passes through.
type Auth struct {
	resolver Resolver
}

// NewAuth creates a new Auth middleware.
func NewAuth(r Resolver) *Auth {
	return &Auth{resolver: r}
}

// Authenticate resolves the bearer token and stores the AuthContext in the
// request context. The response never says why a token was rejected
// beyond the error code.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, err := a.resolver.Resolve(r.Context(), extractBearerToken(r))
		if err != nil {
			writeAuthError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(SetAuthContext(r.Context(), *ac)))
	})
}

func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing bearer token", nil)
	case errors.Is(err, auth.ErrInvalidToken):
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token", nil)
	case errors.Is(err, auth.ErrUserNotFound):
		response.Error(w, http.StatusUnauthorized, "USER_NOT_FOUND", "User not found or inactive", nil)
	case errors.Is(err, store.ErrResourceExhausted):
		w.Header().Del("WWW-Authenticate")
		response.Error(w, http.StatusServiceUnavailable, "RESOURCE_EXHAUSTED", "Service is busy, retry later", nil)
	default:
		w.Header().Del("WWW-Authenticate")
		slog.Error("resolve auth context", "error", err, "path", r.URL.Path)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to authenticate request", nil)
	}
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
