package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/eoex/internal/api"
	mw "github.com/kiranshivaraju/eoex/internal/api/middleware"
	"github.com/kiranshivaraju/eoex/internal/auth"
	"github.com/kiranshivaraju/eoex/internal/cache"
	"github.com/kiranshivaraju/eoex/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stub resolver that rejects every token ---

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, bearer string) (*models.AuthContext, error) {
	if bearer == "" {
		return nil, auth.ErrUnauthenticated
	}
	return nil, auth.ErrInvalidToken
}

// --- stub cache ---

type stubCache struct{}

func (c *stubCache) Ping(_ context.Context) error { return nil }
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

var _ cache.Cache = (*stubCache)(nil)

// --- router tests ---

func newTestRouter() http.Handler {
	return api.NewRouter(api.Dependencies{
		Auth:        mw.NewAuth(stubResolver{}),
		RateLimit:   mw.NewRateLimit(&stubCache{}, 60),
		CORSOrigins: []string{"http://localhost:3000"},
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},
	})
}

func TestRouter_HealthEndpoints_Public(t *testing.T) {
	router := newTestRouter()

	for _, path := range []string{"/api/health", "/api/v1/health"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_MetricsEndpoint_Public(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRouter_PublicAuthEndpoints_NoToken(t *testing.T) {
	router := newTestRouter()

	for _, path := range []string{"/api/v1/auth/login", "/api/v1/auth/register"} {
		req := httptest.NewRequest("POST", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		// Unwired handlers answer 501; the auth guard is never consulted.
		assert.Equal(t, http.StatusNotImplemented, w.Code, path)
		assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter()

	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/auth/me"},
		{"GET", "/api/v1/metrics/overview"},
		{"GET", "/api/v1/crm/contacts"},
		{"POST", "/api/v1/erp/products"},
		{"GET", "/api/v1/erp/orders/7f1f6c2e-9d7b-4a47-9d1c-0f2b2d1d9a10"},
		{"PATCH", "/api/v1/studio/campaigns/7f1f6c2e-9d7b-4a47-9d1c-0f2b2d1d9a10"},
		{"DELETE", "/api/v1/support/tickets/7f1f6c2e-9d7b-4a47-9d1c-0f2b2d1d9a10"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "UNAUTHENTICATED", errObj["code"])
		})
	}
}

func TestRouter_InvalidToken(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/crm/contacts", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_TOKEN", body["error"].(map[string]any)["code"])
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("OPTIONS", "/api/v1/crm/contacts", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
