package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sandcastle-auth/sandcastle/internal/accounts/domain"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/service"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/store/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *Router
	clock  *service.FixedClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	clock := &service.FixedClock{Time: time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)}
	admin := &service.AdminService{
		Store:           st,
		Clock:           clock,
		Role:            domain.RoleAdmin,
		DefaultName:     "admin",
		DefaultPassword: "admin-default-pw",
	}
	require.NoError(t, admin.Ensure(context.Background()))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter("test", st, logger)
	router.LifecycleService = &service.LifecycleService{
		Store:             st,
		Clock:             clock,
		Admin:             admin,
		LogoutWindow:      60 * time.Second,
		DeleteWindow:      120 * time.Second,
		AutoDelete:        true,
		CheckRemoteLogout: true,
	}
	router.AccountService = &service.AccountService{Store: st, Clock: clock}
	router.ApplyRoutes()

	return &testServer{router: router, clock: clock}
}

func (ts *testServer) do(t *testing.T, method, path, marker string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "192.0.2.10:50000"
	if marker != "" {
		req.Header.Set("Authorization", "Bearer "+marker)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) register(t *testing.T, name, password string) int64 {
	t.Helper()

	body := strings.NewReader(`{"name":"` + name + `","password":"` + password + `"}`)
	rec := ts.do(t, http.MethodPost, "/v1/accounts", "", body, "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ID
}

func (ts *testServer) login(t *testing.T, name, password string) string {
	t.Helper()

	form := url.Values{"name": {name}, "password": {password}}
	rec := ts.do(t, http.MethodPost, "/v1/login", "",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Session string `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Session)
	return resp.Session
}

func (ts *testServer) status(t *testing.T, id int64, marker string) (service.Status, *httptest.ResponseRecorder) {
	t.Helper()

	rec := ts.do(t, http.MethodGet, "/api/accounts/"+strconv.FormatInt(id, 10)+"/status", marker, nil, "")
	var status service.Status
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	}
	return status, rec
}

func TestStatusPollingDrivesLifecycle(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	id := ts.register(t, "alice", "s3cret")
	marker := ts.login(t, "alice", "s3cret")

	status, rec := ts.status(t, id, marker)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, service.StateLocalLogoutPending, status.State)
	require.EqualValues(t, 60, status.SecondsRemaining)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	ts.clock.Advance(61 * time.Second)
	status, _ = ts.status(t, id, marker)
	require.Equal(t, service.StateDeletePending, status.State)
	require.EqualValues(t, 119, status.SecondsRemaining)

	ts.clock.Advance(120 * time.Second)
	status, _ = ts.status(t, id, marker)
	require.Equal(t, service.StateDeleted, status.State)

	// Polling a deleted account keeps reporting DELETED.
	status, rec = ts.status(t, id, marker)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, service.StateDeleted, status.State)
}

func TestStatusReportsRemoteLogout(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	id := ts.register(t, "alice", "s3cret")
	oldMarker := ts.login(t, "alice", "s3cret")
	newMarker := ts.login(t, "alice", "s3cret")

	// The superseded session sees the remote logout; the new one does not.
	status, _ := ts.status(t, id, oldMarker)
	require.Equal(t, service.StateRemoteLogoutPending, status.State)

	status, _ = ts.status(t, id, newMarker)
	require.Equal(t, service.StateLocalLogoutPending, status.State)
}

func TestStatusBadAccountID(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/accounts/notanumber/status", "", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminStatusHidesAccountID(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/public/admin/status", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotContains(t, resp, "id")
	require.Equal(t, string(service.StateDeletePending), resp["state"])
}

func TestLogoutClearsSession(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	id := ts.register(t, "alice", "s3cret")
	marker := ts.login(t, "alice", "s3cret")

	rec := ts.do(t, http.MethodPost, "/v1/logout", marker, nil, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	status, _ := ts.status(t, id, marker)
	require.Equal(t, service.StateDeletePending, status.State)

	// The cleared marker no longer authenticates.
	rec = ts.do(t, http.MethodPost, "/v1/logout", marker, nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	ts.register(t, "alice", "s3cret")

	form := url.Values{"name": {"alice"}, "password": {"wrong"}}
	rec := ts.do(t, http.MethodPost, "/v1/login", "",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccountListRequiresAdmin(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	ts.register(t, "alice", "s3cret")
	userMarker := ts.login(t, "alice", "s3cret")

	rec := ts.do(t, http.MethodGet, "/v1/accounts", "", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/accounts", userMarker, nil, "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	adminMarker := ts.login(t, "admin", "admin-default-pw")
	rec = ts.do(t, http.MethodGet, "/v1/accounts", adminMarker, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Accounts []struct {
			Name string `json:"name"`
		} `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Accounts, 2)
	require.Equal(t, "admin", resp.Accounts[0].Name, "admin sorts first")
}

func TestAccountUpdateOwnership(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	aliceID := ts.register(t, "alice", "s3cret")
	bobID := ts.register(t, "bobby", "s3cret")
	aliceMarker := ts.login(t, "alice", "s3cret")

	path := "/v1/accounts/" + strconv.FormatInt(bobID, 10)
	rec := ts.do(t, http.MethodPatch, path, aliceMarker,
		strings.NewReader(`{"password":"pwned"}`), "application/json")
	require.Equal(t, http.StatusForbidden, rec.Code)

	path = "/v1/accounts/" + strconv.FormatInt(aliceID, 10)
	rec = ts.do(t, http.MethodPatch, path, aliceMarker,
		strings.NewReader(`{"roles":["ROLE_ADMIN"]}`), "application/json")
	require.Equal(t, http.StatusForbidden, rec.Code, "self-promotion is not a thing")

	rec = ts.do(t, http.MethodPatch, path, aliceMarker,
		strings.NewReader(`{"password":"newpass"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ts.login(t, "alice", "newpass")
}

func TestAccountDeleteRequiresAdmin(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	aliceID := ts.register(t, "alice", "s3cret")
	aliceMarker := ts.login(t, "alice", "s3cret")
	adminMarker := ts.login(t, "admin", "admin-default-pw")

	path := "/v1/accounts/" + strconv.FormatInt(aliceID, 10)
	rec := ts.do(t, http.MethodDelete, path, aliceMarker, nil, "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodDelete, path, adminMarker, nil, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	status, _ := ts.status(t, aliceID, "")
	require.Equal(t, service.StateDeleted, status.State)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/livez", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/readyz", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string `json:"status"`
		Checks struct {
			Database string `json:"database"`
			Accounts int64  `json:"accounts"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, "ok", resp.Checks.Database)
	require.EqualValues(t, 1, resp.Checks.Accounts, "the ensured admin account")
}
