package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/eoex/internal/api/middleware"
	"github.com/kiranshivaraju/eoex/internal/api/response"
	"github.com/kiranshivaraju/eoex/internal/auth"
	"github.com/kiranshivaraju/eoex/internal/provision"
	"github.com/kiranshivaraju/eoex/pkg/models"
)

const minPasswordLength = 8

// Authenticator verifies credentials and issues tokens.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
}

// Registrar creates a tenant admin account.
type Registrar interface {
	Register(ctx context.Context, reg provision.Registration) (*models.User, uuid.UUID, error)
}

type loginResponse struct {
	AccessToken string             `json:"access_token"`
	TokenType   string             `json:"token_type"`
	ExpiresAt   string             `json:"expires_at"`
	User        models.AuthContext `json:"user"`
}

// NewLoginHandler returns an http.HandlerFunc for POST /api/v1/auth/login.
func NewLoginHandler(svc Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if strings.TrimSpace(req.Email) == "" || req.Password == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "email and password are required", nil)
			return
		}

		res, err := svc.Login(r.Context(), req.Email, req.Password)
		if errors.Is(err, auth.ErrAuthenticationFailed) {
			response.Error(w, http.StatusUnauthorized, "AUTHENTICATION_FAILED",
				"Invalid email or password", nil)
			return
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		response.JSON(w, loginResponse{
			AccessToken: res.Token,
			TokenType:   "bearer",
			ExpiresAt:   res.ExpiresAt.UTC().Format(time.RFC3339),
			User:        res.User,
		})
	}
}

// NewRegisterHandler returns an http.HandlerFunc for POST /api/v1/auth/register.
func NewRegisterHandler(svc Registrar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TenantName   string `json:"tenant_name"`
			TenantDomain string `json:"tenant_domain"`
			Email        string `json:"email"`
			Password     string `json:"password"`
			FirstName    string `json:"first_name"`
			LastName     string `json:"last_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		details := map[string]string{}
		if strings.TrimSpace(req.TenantName) == "" {
			details["tenant_name"] = "tenant_name is required"
		}
		if strings.TrimSpace(req.TenantDomain) == "" {
			details["tenant_domain"] = "tenant_domain is required"
		}
		if !strings.Contains(req.Email, "@") {
			details["email"] = "email must be a valid address"
		}
		if len(req.Password) < minPasswordLength {
			details["password"] = "password must be at least 8 characters"
		}
		if len(details) > 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid registration", details)
			return
		}

		u, tenantID, err := svc.Register(r.Context(), provision.Registration{
			TenantName:   strings.TrimSpace(req.TenantName),
			TenantDomain: req.TenantDomain,
			Email:        req.Email,
			Password:     req.Password,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
		})
		if errors.Is(err, provision.ErrEmailTaken) {
			response.Error(w, http.StatusConflict, "EMAIL_TAKEN", "Email already registered", nil)
			return
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		response.Created(w, map[string]any{
			"user":      u,
			"tenant_id": tenantID,
		})
	}
}

// NewMeHandler returns an http.HandlerFunc for GET /api/v1/auth/me.
func NewMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := mw.GetAuthContext(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing auth context", nil)
			return
		}
		response.JSON(w, ac)
	}
}
