package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cbodonnell/cardroom/pkg/api/handlers"
	"github.com/cbodonnell/cardroom/pkg/reconcile"
	"github.com/cbodonnell/cardroom/pkg/reliability"
	"github.com/cbodonnell/cardroom/pkg/rooms"
	"github.com/cbodonnell/cardroom/pkg/scheduler"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) IsRunning() bool { return m.Called().Bool(0) }

func (m *mockScheduler) GetStatus() scheduler.Status {
	return m.Called().Get(0).(scheduler.Status)
}

func (m *mockScheduler) GetDetailedStats() scheduler.DetailedStats {
	return m.Called().Get(0).(scheduler.DetailedStats)
}

func (m *mockScheduler) ResetStats() { m.Called() }

func (m *mockScheduler) ForceReconciliation(ctx context.Context, gameID string) (*reconcile.Result, error) {
	args := m.Called(ctx, gameID)
	result, _ := args.Get(0).(*reconcile.Result)
	return result, args.Error(1)
}

func (m *mockScheduler) UpdateConfig(update scheduler.ConfigUpdate) (scheduler.Config, error) {
	args := m.Called(update)
	return args.Get(0).(scheduler.Config), args.Error(1)
}

type mockReliability struct {
	mock.Mock
}

func (m *mockReliability) Stats() reliability.Stats {
	return m.Called().Get(0).(reliability.Stats)
}

func (m *mockReliability) Pending(gameID string) []reliability.Event {
	return m.Called(gameID).Get(0).([]reliability.Event)
}

func (m *mockReliability) ForceEventDelivery(gameID string, eventType string, payload interface{}) bool {
	return m.Called(gameID, eventType, payload).Bool(0)
}

func newTestRouter(t *testing.T, token string) (http.Handler, *mockScheduler, *mockReliability) {
	s := &mockScheduler{}
	rel := &mockReliability{}
	t.Cleanup(func() {
		s.AssertExpectations(t)
		rel.AssertExpectations(t)
	})
	return NewRouter(NewAPIServerOptions{AdminToken: token, Scheduler: s, Reliability: rel}), s, rel
}

func do(router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_reads(t *testing.T) {
	router, s, rel := newTestRouter(t, "secret")

	s.On("IsRunning").Return(true).Once()
	rec := do(router, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	s.On("IsRunning").Return(false).Once()
	rec = do(router, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.On("GetStatus").Return(scheduler.Status{IsRunning: true, ActiveRooms: 2}).Once()
	rec = do(router, http.MethodGet, "/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status scheduler.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.IsRunning)
	assert.Equal(t, 2, status.ActiveRooms)

	s.On("GetDetailedStats").Return(scheduler.DetailedStats{Attempts: 7}).Once()
	rec = do(router, http.MethodGet, "/stats", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"attempts":7`)

	rel.On("Stats").Return(reliability.Stats{PendingEvents: 3}).Once()
	rec = do(router, http.MethodGet, "/reliability", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pendingEvents":3`)

	rec = do(router, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodDelete, "/status", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_adminRoutesNeedToken(t *testing.T) {
	router, s, _ := newTestRouter(t, "secret")

	assert.Equal(t, http.StatusUnauthorized, do(router, http.MethodPost, "/stats/reset", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(router, http.MethodPost, "/stats/reset", "", "wrong").Code)

	s.On("ResetStats").Once()
	assert.Equal(t, http.StatusNoContent, do(router, http.MethodPost, "/stats/reset", "", "secret").Code)
}

func TestRouter_reconcileRoom(t *testing.T) {
	router, s, _ := newTestRouter(t, "")

	state := rooms.NewRoomState("r1")
	state.Version = 4
	s.On("ForceReconciliation", mock.Anything, "r1").Return(&reconcile.Result{
		GameID:  "r1",
		State:   state,
		Changed: true,
		Inconsistencies: []reconcile.Inconsistency{
			{Type: reconcile.PlayerMissing, GameID: "r1", PlayerID: "d", Severity: reconcile.SeverityHigh},
		},
	}, nil).Once()
	s.On("ForceReconciliation", mock.Anything, "busy").Return(nil, nil).Once()

	rec := do(router, http.MethodPost, "/rooms/r1/reconcile", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	// inconsistency types only marshal, so decode the scalar fields
	var resp struct {
		Skipped bool  `json:"skipped"`
		Changed bool  `json:"changed"`
		Version int64 `json:"version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Skipped)
	assert.True(t, resp.Changed)
	assert.Equal(t, int64(4), resp.Version)
	assert.Contains(t, rec.Body.String(), `"type":"player_missing"`)

	rec = do(router, http.MethodPost, "/rooms/busy/reconcile", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Skipped)
}

func TestRouter_redeliver(t *testing.T) {
	router, _, rel := newTestRouter(t, "")

	rec := do(router, http.MethodPost, "/rooms/r1/redeliver", `{"payload":{}}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rel.On("ForceEventDelivery", "r1", "teams-formed", mock.Anything).Return(true).Once()
	rel.On("Pending", "r1").Return([]reliability.Event{{EventID: "e1", GameID: "r1", EventType: "teams-formed"}}).Once()
	rec = do(router, http.MethodPost, "/rooms/r1/redeliver", `{"eventType":"teams-formed","payload":{"gameId":"r1"}}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp handlers.RedeliverResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Delivered)
	require.Len(t, resp.Pending, 1)
	assert.Equal(t, "e1", resp.Pending[0].EventID)
}

type emitted struct {
	gameID string
	event  string
}

type recordingEmitter struct {
	sent []emitted
}

func (e *recordingEmitter) Emit(gameID string, event string, payload interface{}) {
	e.sent = append(e.sent, emitted{gameID: gameID, event: event})
}

func TestRouter_redeliverPendingOnly(t *testing.T) {
	emitter := &recordingEmitter{}
	rel := reliability.NewService(reliability.NewServiceOptions{
		Emitter:             emitter,
		Clock:               clockwork.NewFakeClock(),
		ConfirmationTimeout: time.Minute,
		MaxAttempts:         3,
	})
	t.Cleanup(rel.Stop)
	router := NewRouter(NewAPIServerOptions{Scheduler: &mockScheduler{}, Reliability: rel})

	require.True(t, rel.EmitReliable("r1", "ready-changed", map[string]string{"gameId": "r1", "playerId": "a"}))
	require.Len(t, emitter.sent, 1)

	for _, body := range []string{`{"eventType":"ready-changed"}`, `{"eventType":"ready-changed","payload":null}`} {
		rec := do(router, http.MethodPost, "/rooms/r1/redeliver", body, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp handlers.RedeliverResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Delivered)
		assert.Len(t, resp.Pending, 1)
	}

	assert.Equal(t, []emitted{
		{gameID: "r1", event: "ready-changed"},
		{gameID: "r1", event: "ready-changed"},
		{gameID: "r1", event: "ready-changed"},
	}, emitter.sent)
	assert.Len(t, rel.Pending("r1"), 1)
}

func TestRouter_updateConfig(t *testing.T) {
	router, s, _ := newTestRouter(t, "")

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPatch, "/config", "{", "").Code)

	limit := 4
	cfg := scheduler.DefaultConfig()
	cfg.MaxConcurrentRooms = limit
	s.On("UpdateConfig", scheduler.ConfigUpdate{MaxConcurrentRooms: &limit}).Return(cfg, nil).Once()
	rec := do(router, http.MethodPatch, "/config", `{"maxConcurrentRooms":4}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	every := 5 * time.Minute
	cfg.CleanupInterval = every
	s.On("UpdateConfig", scheduler.ConfigUpdate{CleanupInterval: &every}).Return(cfg, nil).Once()
	rec = do(router, http.MethodPatch, "/config", `{"cleanupInterval":"5m"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
