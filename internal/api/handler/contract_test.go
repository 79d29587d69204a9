package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/eoex/internal/api"
	"github.com/kiranshivaraju/eoex/internal/api/handler"
	mw "github.com/kiranshivaraju/eoex/internal/api/middleware"
	"github.com/kiranshivaraju/eoex/internal/auth"
	"github.com/kiranshivaraju/eoex/internal/records"
	"github.com/kiranshivaraju/eoex/internal/security"
	"github.com/kiranshivaraju/eoex/internal/store"
	"github.com/kiranshivaraju/eoex/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── test fixtures ───────────────────────────────────────────────────────────

var (
	acmeTenant   = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	globexTenant = uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
	testPassword = "correct-horse"
)

// ─── mock user store ─────────────────────────────────────────────────────────

type mockUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMockUsers(t *testing.T) *mockUsers {
	t.Helper()
	hash, err := security.HashPassword(testPassword)
	require.NoError(t, err)

	m := &mockUsers{users: map[uuid.UUID]*models.User{}}
	for _, u := range []*models.User{
		{ID: uuid.New(), TenantID: acmeTenant, Email: "ann@acme.test", Role: models.RoleAdmin},
		{ID: uuid.New(), TenantID: globexTenant, Email: "bob@globex.test", Role: models.RoleUser},
	} {
		u.PasswordHash = hash
		u.IsActive = true
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockUsers) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockUsers) deactivate(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u.IsActive = false
		}
	}
}

// ─── mock record service (tenant-keyed) ──────────────────────────────────────

type memRecords struct {
	mu   sync.Mutex
	rows map[uuid.UUID]struct {
		tenant uuid.UUID
		rec    models.Record
	}
}

func newMemRecords() *memRecords {
	return &memRecords{rows: map[uuid.UUID]struct {
		tenant uuid.UUID
		rec    models.Record
	}{}}
}

func (m *memRecords) owned(ac models.AuthContext, id uuid.UUID) (models.Record, bool) {
	row, ok := m.rows[id]
	if !ok || row.tenant != ac.TenantID {
		return nil, false
	}
	return row.rec, true
}

func (m *memRecords) List(_ context.Context, ac models.AuthContext, _ *records.Kind, p records.ListParams) (*records.ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []models.Record
	for _, row := range m.rows {
		if row.tenant == ac.TenantID {
			items = append(items, row.rec)
		}
	}
	return &records.ListResult{Items: items, Total: int64(len(items)), Page: p.Page, Limit: p.Limit}, nil
}

func (m *memRecords) Get(_ context.Context, ac models.AuthContext, _ *records.Kind, id uuid.UUID) (models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.owned(ac, id); ok {
		return rec, nil
	}
	return nil, store.ErrNotFound
}

func (m *memRecords) Create(_ context.Context, ac models.AuthContext, _ *records.Kind, input map[string]any) (models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	rec := models.Record{"contact_id": id.String(), "tenant_id": ac.TenantID.String()}
	for k, v := range input {
		if k != "tenant_id" {
			rec[k] = v
		}
	}
	m.rows[id] = struct {
		tenant uuid.UUID
		rec    models.Record
	}{ac.TenantID, rec}
	return rec, nil
}

func (m *memRecords) Update(_ context.Context, ac models.AuthContext, _ *records.Kind, id uuid.UUID, input map[string]any) (models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(input) == 0 {
		return nil, records.ErrNoChanges
	}
	rec, ok := m.owned(ac, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	for k, v := range input {
		rec[k] = v
	}
	return rec, nil
}

func (m *memRecords) Delete(_ context.Context, ac models.AuthContext, _ *records.Kind, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.owned(ac, id); !ok {
		return store.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memRecords) Overview(_ context.Context, ac models.AuthContext) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, row := range m.rows {
		if row.tenant == ac.TenantID {
			n++
		}
	}
	return map[string]int64{"contacts": n}, nil
}

// ─── mock cache ──────────────────────────────────────────────────────────────

type mockCache struct {
	mu       sync.Mutex
	counters map[string]int64
}

func (c *mockCache) Ping(_ context.Context) error { return nil }
func (c *mockCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}

// ─── test harness ────────────────────────────────────────────────────────────

type testServer struct {
	server *httptest.Server
	users  *mockUsers
}

func newTestServer(t *testing.T, perMin int) *testServer {
	t.Helper()

	users := newMockUsers(t)
	tokens, err := security.NewTokenService(security.TokenConfig{
		Secret: "contract-test-secret-key-0123456789",
		TTL:    time.Hour,
		Issuer: "eoex",
	})
	require.NoError(t, err)
	authSvc := auth.NewService(users, tokens, nil)
	recs := newMemRecords()

	router := api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(authSvc),
		RateLimit: mw.NewRateLimit(&mockCache{counters: map[string]int64{}}, perMin),

		LoginHandler:    handler.NewLoginHandler(authSvc),
		MeHandler:       handler.NewMeHandler(),
		OverviewHandler: handler.NewOverviewHandler(recs),
		Records:         recs,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{server: srv, users: users}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func (ts *testServer) login(t *testing.T, email string) string {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": testPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	return body["data"].(map[string]any)["access_token"].(string)
}

func errCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

// ─── contract tests ──────────────────────────────────────────────────────────

func TestContract_LoginThenMe(t *testing.T) {
	ts := newTestServer(t, 100)
	token := ts.login(t, "  Ann@ACME.test ")

	resp, body := ts.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, acmeTenant.String(), data["tenant_id"])
	assert.Equal(t, models.RoleAdmin, data["role"])
}

func TestContract_LoginWrongPassword(t *testing.T) {
	ts := newTestServer(t, 100)

	for _, email := range []string{"ann@acme.test", "nobody@acme.test"} {
		resp, body := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"email": email, "password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "AUTHENTICATION_FAILED", errCode(body))
	}
}

func TestContract_TenantIsolation(t *testing.T) {
	ts := newTestServer(t, 100)
	ann := ts.login(t, "ann@acme.test")
	bob := ts.login(t, "bob@globex.test")

	resp, body := ts.do(t, http.MethodPost, "/api/v1/crm/contacts", ann, map[string]any{
		"first_name": "Zed", "last_name": "Ink", "tenant_id": globexTenant.String(),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := body["data"].(map[string]any)
	assert.Equal(t, acmeTenant.String(), created["tenant_id"])
	path := "/api/v1/crm/contacts/" + created["contact_id"].(string)

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		resp, body := ts.do(t, method, path, bob, map[string]any{"status": "stolen"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, method)
		assert.Equal(t, "RESOURCE_NOT_FOUND", errCode(body), method)
	}

	resp, body = ts.do(t, http.MethodGet, "/api/v1/crm/contacts", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["data"])
	assert.Equal(t, float64(0), body["meta"].(map[string]any)["total"])

	resp, _ = ts.do(t, http.MethodDelete, path, ann, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestContract_DeactivatedUserRejected(t *testing.T) {
	ts := newTestServer(t, 100)
	token := ts.login(t, "bob@globex.test")

	ts.users.deactivate("bob@globex.test")

	resp, body := ts.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "USER_NOT_FOUND", errCode(body))
}

func TestContract_TamperedToken(t *testing.T) {
	ts := newTestServer(t, 100)
	token := ts.login(t, "ann@acme.test")

	resp, body := ts.do(t, http.MethodGet, "/api/v1/auth/me", token+"x", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_TOKEN", errCode(body))
}

func TestContract_RateLimitPerUser(t *testing.T) {
	ts := newTestServer(t, 3)
	token := ts.login(t, "ann@acme.test")

	for i := 0; i < 3; i++ {
		resp, _ := ts.do(t, http.MethodGet, "/api/v1/metrics/overview", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "request %d", i+1)
	}

	resp, body := ts.do(t, http.MethodGet, "/api/v1/metrics/overview", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errCode(body))
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestContract_UnwiredRegisterIsNotImplemented(t *testing.T) {
	ts := newTestServer(t, 100)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{})
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	assert.Equal(t, "NOT_IMPLEMENTED", errCode(body))
}
