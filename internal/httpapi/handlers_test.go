package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexanderramin/tempo/internal/contract"
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/service"
	"github.com/alexanderramin/tempo/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	store  service.SessionStoreService
	clock  *testutil.Clock
	server *Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	clock := testutil.NewClock(testutil.FixedNow)
	store := service.NewSessionStoreWithClock(testutil.NewTestUoW(testutil.NewTestDB(t)), clock.Now)
	return &testServer{store: store, clock: clock, server: NewServer(store, nil)}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateAndGetOwner(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/owners", contract.CreateOwnerRequest{ID: "t1", Kind: "task", Name: "Report"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[contract.OwnerDTO](t, w)
	assert.Equal(t, "Report", created.Name)

	w = ts.do(t, http.MethodPost, "/api/owners", contract.CreateOwnerRequest{ID: "s1", Kind: "subtask", ParentID: "t1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/owners/task/t1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[contract.OwnerDTO](t, w)
	assert.Equal(t, []string{"s1"}, got.SubtaskIDs)
	assert.NotNil(t, got.Sessions)
}

func TestCreateOwner_Validation(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/owners", map[string]string{"kind": "task"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/owners", contract.CreateOwnerRequest{ID: "x", Kind: "project"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.CodeInvalidRequest, decode[contract.ErrorResponse](t, w).Code)

	w = ts.do(t, http.MethodPost, "/api/owners", contract.CreateOwnerRequest{ID: "s1", Kind: "subtask", ParentID: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListOwners(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, ts.store.CreateOwner(ctx, testutil.NewTestTask("t1")))
	require.NoError(t, ts.store.CreateOwner(ctx, testutil.NewTestEmployee("e1")))

	w := ts.do(t, http.MethodGet, "/api/owners?kind=employee", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[contract.OwnerList](t, w)
	require.Len(t, list.Owners, 1)
	assert.Equal(t, "e1", list.Owners[0].ID)

	w = ts.do(t, http.MethodGet, "/api/owners", nil)
	assert.Len(t, decode[contract.OwnerList](t, w).Owners, 2)

	w = ts.do(t, http.MethodGet, "/api/owners?kind=nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartPauseLifecycle(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.CreateOwner(context.Background(), testutil.NewTestEmployee("e1")))

	w := ts.do(t, http.MethodPost, "/api/owners/employee/e1/start", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	started := decode[contract.SessionDTO](t, w)
	assert.Nil(t, started.EndedAt)

	w = ts.do(t, http.MethodPost, "/api/owners/employee/e1/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, started.ID, decode[contract.SessionDTO](t, w).ID, "start is idempotent")

	ts.clock.Advance(90 * time.Minute)
	w = ts.do(t, http.MethodPost, "/api/owners/employee/e1/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, decode[contract.SessionDTO](t, w).EndedAt)

	w = ts.do(t, http.MethodPost, "/api/owners/employee/e1/pause", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.CodeNoOpenSession, decode[contract.ErrorResponse](t, w).Code)

	w = ts.do(t, http.MethodGet, "/api/owners/employee/e1", nil)
	assert.InDelta(t, 1.5, decode[contract.OwnerDTO](t, w).ElapsedHours, 1e-9)
}

func TestStart_UnknownOwner(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/owners/task/ghost/start", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.CodeOwnerNotFound, decode[contract.ErrorResponse](t, w).Code)

	w = ts.do(t, http.MethodPost, "/api/owners/widget/x/start", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompleteTask(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.CreateOwner(context.Background(), testutil.NewTestTask("t1")))
	req := contract.CompleteTaskRequest{CompletedAt: testutil.FixedNow, HoursWorked: 2.5}

	w := ts.do(t, http.MethodPost, "/api/tasks/t1/complete", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[contract.OwnerDTO](t, w)
	assert.True(t, got.IsCompleted)
	assert.InDelta(t, 2.5, got.HoursWorked, 1e-9)

	w = ts.do(t, http.MethodPost, "/api/tasks/t1/complete", req)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, "/api/owners/task/t1/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.CodeOwnerCompleted, decode[contract.ErrorResponse](t, w).Code)

	w = ts.do(t, http.MethodPost, "/api/tasks/t1/complete", contract.CompleteTaskRequest{CompletedAt: testutil.FixedNow, HoursWorked: -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteOwner(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.CreateOwner(context.Background(), testutil.NewTestEmployee("e1")))

	w := ts.do(t, http.MethodDelete, "/api/owners/employee/e1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(t, http.MethodGet, "/api/owners/employee/e1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBeaconPause(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, ts.store.CreateOwner(ctx, testutil.NewTestTask("t1")))
	ref := domain.OwnerRef{Kind: domain.OwnerTask, ID: "t1"}
	_, err := ts.store.StartSession(ctx, ref)
	require.NoError(t, err)
	ts.clock.Advance(time.Hour)

	payload, err := contract.EncodeBeaconPause(contract.BeaconPause{Kind: "task", OwnerID: "t1", IssuedAt: ts.clock.Now()})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, contract.BeaconPausePath, bytes.NewReader(payload))
	req.Header.Set("Content-Type", contract.CBORContentType)
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	owner, err := ts.store.GetOwner(ctx, ref)
	require.NoError(t, err)
	assert.False(t, owner.HasOpenSession())
	assert.InDelta(t, 1.0, owner.ElapsedHours(), 1e-9)
}

func TestBeaconPause_GarbageStillNoContent(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, contract.BeaconPausePath, bytes.NewReader([]byte("not cbor")))
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
