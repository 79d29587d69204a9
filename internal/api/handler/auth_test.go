package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/eoex/internal/auth"
	"github.com/kiranshivaraju/eoex/internal/provision"
	"github.com/kiranshivaraju/eoex/internal/store"
	"github.com/kiranshivaraju/eoex/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock Authenticator ---

type mockAuthenticator struct {
	fn func(email, password string) (*auth.LoginResult, error)
}

func (m *mockAuthenticator) Login(_ context.Context, email, password string) (*auth.LoginResult, error) {
	return m.fn(email, password)
}

// --- mock Registrar ---

type mockRegistrar struct {
	got provision.Registration
	err error
}

func (m *mockRegistrar) Register(_ context.Context, reg provision.Registration) (*models.User, uuid.UUID, error) {
	m.got = reg
	if m.err != nil {
		return nil, uuid.Nil, m.err
	}
	return &models.User{
		ID:           uuid.New(),
		TenantID:     testAuth.TenantID,
		Email:        reg.Email,
		PasswordHash: "secret-hash",
		Role:         models.RoleAdmin,
		IsActive:     true,
	}, testAuth.TenantID, nil
}

// ========================================
// Login
// ========================================

func TestLogin_Success(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	h := NewLoginHandler(&mockAuthenticator{fn: func(email, password string) (*auth.LoginResult, error) {
		assert.Equal(t, "owner@acme.test", email)
		assert.Equal(t, "pw-123456", password)
		return &auth.LoginResult{Token: "tok", ExpiresAt: exp, User: testAuth}, nil
	}})

	rec := httptest.NewRecorder()
	h(rec, jsonReq(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "owner@acme.test", "password": "pw-123456",
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := parseData(t, rec)
	assert.Equal(t, "tok", data["access_token"])
	assert.Equal(t, "bearer", data["token_type"])
	assert.Equal(t, "2030-01-02T03:04:05Z", data["expires_at"])
	user := data["user"].(map[string]any)
	assert.Equal(t, testAuth.TenantID.String(), user["tenant_id"])
}

func TestLogin_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		body   any
		err    error
		status int
		code   string
	}{
		{"bad json", "{", nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"missing password", map[string]string{"email": "a@b.c"}, nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"bad credentials", map[string]string{"email": "a@b.c", "password": "x"}, auth.ErrAuthenticationFailed, http.StatusUnauthorized, "AUTHENTICATION_FAILED"},
		{"pool exhausted", map[string]string{"email": "a@b.c", "password": "x"}, store.ErrResourceExhausted, http.StatusServiceUnavailable, "RESOURCE_EXHAUSTED"},
		{"store failure", map[string]string{"email": "a@b.c", "password": "x"}, errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewLoginHandler(&mockAuthenticator{fn: func(string, string) (*auth.LoginResult, error) {
				return nil, tc.err
			}})
			rec := httptest.NewRecorder()
			h(rec, jsonReq(t, http.MethodPost, "/api/v1/auth/login", tc.body))

			status, code := parseErr(t, rec)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, code)
		})
	}
}

// ========================================
// Register
// ========================================

func TestRegister_Created(t *testing.T) {
	reg := &mockRegistrar{}
	rec := httptest.NewRecorder()
	NewRegisterHandler(reg)(rec, jsonReq(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"tenant_name":   " Acme ",
		"tenant_domain": "acme.test",
		"email":         "owner@acme.test",
		"password":      "longenough",
		"first_name":    "Ada",
	}))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Acme", reg.got.TenantName)
	assert.Equal(t, "Ada", reg.got.FirstName)

	data := parseData(t, rec)
	assert.Equal(t, testAuth.TenantID.String(), data["tenant_id"])
	user := data["user"].(map[string]any)
	assert.Equal(t, "owner@acme.test", user["email"])
	_, leaked := user["password_hash"]
	assert.False(t, leaked)
}

func TestRegister_Validation(t *testing.T) {
	reg := &mockRegistrar{}
	rec := httptest.NewRecorder()
	NewRegisterHandler(reg)(rec, jsonReq(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "not-an-email",
		"password": "short",
	}))

	status, code := parseErr(t, rec)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_REQUEST", code)
	assert.Empty(t, reg.got.Email, "service must not be called")
}

func TestRegister_EmailTaken(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRegisterHandler(&mockRegistrar{err: provision.ErrEmailTaken})(rec, jsonReq(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"tenant_name": "Acme", "tenant_domain": "acme.test",
		"email": "owner@acme.test", "password": "longenough",
	}))

	status, code := parseErr(t, rec)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "EMAIL_TAKEN", code)
}

// ========================================
// Me
// ========================================

func TestMe(t *testing.T) {
	rec := httptest.NewRecorder()
	NewMeHandler()(rec, withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	data := parseData(t, rec)
	assert.Equal(t, testAuth.UserID.String(), data["user_id"])
	assert.Equal(t, testAuth.Email, data["email"])
	assert.Equal(t, models.RoleAdmin, data["role"])
}

func TestMe_NoContext(t *testing.T) {
	rec := httptest.NewRecorder()
	NewMeHandler()(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))

	status, code := parseErr(t, rec)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", code)
}
