package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aatumaykin/doorman/internal/logger"
	"github.com/aatumaykin/doorman/internal/store"
	"github.com/aatumaykin/doorman/internal/tracker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader serves canned store contents.
type fakeReader struct {
	members    []store.TrackedMember
	expulsions []store.ExpulsionRecord
}

func (f *fakeReader) ListMembers() ([]store.TrackedMember, error) {
	return f.members, nil
}

func (f *fakeReader) RecentExpulsions(limit int) ([]store.ExpulsionRecord, error) {
	if limit > len(f.expulsions) {
		limit = len(f.expulsions)
	}
	return f.expulsions[:limit], nil
}

type fakeSweeper struct {
	ran    bool
	result bool
}

func (f *fakeSweeper) RunOnce(_ context.Context) bool {
	f.ran = true
	return f.result
}

type fakeTransport struct {
	mode string
	err  error
}

func (f *fakeTransport) Reconfigure(mode string) error {
	if f.err != nil {
		return f.err
	}
	f.mode = mode
	return nil
}

func (f *fakeTransport) TransportMode() string { return f.mode }

func newTestServer(t *testing.T, reader StoreReader, sweeper SweepRunner, transport TransportSwitcher) (*Server, *tracker.State) {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)

	state := tracker.NewState()
	srv := New(Config{Addr: ":0", TimeLimitSeconds: 120}, state, reader, sweeper, transport, prometheus.NewRegistry(), log)
	return srv, state
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestStatusEndpoint(t *testing.T) {
	srv, state := newTestServer(t, &fakeReader{}, nil, nil)
	state.SetRunning(true)
	state.SetMembersCount(5)
	state.IncrementExpelled()
	state.IncrementExpelled()

	rec := doRequest(srv, http.MethodGet, "/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["bot_running"])
	assert.Equal(t, float64(5), body["members_count"])
	assert.Equal(t, float64(2), body["total_expelled"])
	assert.Equal(t, float64(120), body["time_limit"])
	assert.Equal(t, false, body["notifications_armed"])
	assert.Nil(t, body["last_check"])
}

func TestStatusEndpointAfterSweep(t *testing.T) {
	srv, state := newTestServer(t, &fakeReader{}, nil, nil)
	now := time.Now().UTC()
	state.RecordSweep(now, now.Add(2*time.Minute), 3)

	rec := doRequest(srv, http.MethodGet, "/status", "")

	body := decodeJSON(t, rec)
	assert.NotNil(t, body["last_check"])
	assert.NotNil(t, body["next_check"])
	assert.Equal(t, float64(1), body["sweep_count"])
}

func TestStatsEndpointGroupsByRoom(t *testing.T) {
	reader := &fakeReader{members: []store.TrackedMember{
		{UserID: 1, RoomID: -100},
		{UserID: 2, RoomID: -100},
		{UserID: 3, RoomID: -200},
	}}
	srv, _ := newTestServer(t, reader, nil, nil)

	rec := doRequest(srv, http.MethodGet, "/stats", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, float64(3), body["total_members"])

	groups := body["groups"].([]any)
	require.Len(t, groups, 2)
	first := groups[0].(map[string]any)
	assert.Equal(t, float64(-200), first["chat_id"])
	assert.Equal(t, float64(1), first["members"])
	second := groups[1].(map[string]any)
	assert.Equal(t, float64(-100), second["chat_id"])
	assert.Equal(t, float64(2), second["members"])
}

func TestStatsEndpointEmpty(t *testing.T) {
	srv, _ := newTestServer(t, &fakeReader{}, nil, nil)

	rec := doRequest(srv, http.MethodGet, "/stats", "")

	body := decodeJSON(t, rec)
	assert.Equal(t, float64(0), body["total_members"])
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeReader{}, nil, nil)

	rec := doRequest(srv, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestHomePageRenders(t *testing.T) {
	reader := &fakeReader{
		members: []store.TrackedMember{{UserID: 1, RoomID: -100}},
		expulsions: []store.ExpulsionRecord{
			{UserID: 2, RoomID: -100, Handle: "gone", ExpelledAt: time.Now(), DwellSeconds: 130},
		},
	}
	srv, state := newTestServer(t, reader, nil, nil)
	state.SetRunning(true)

	rec := doRequest(srv, http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, rec.Code)
	html := rec.Body.String()
	assert.Contains(t, html, "Doorman")
	assert.Contains(t, html, "Running")
	assert.Contains(t, html, "@gone")
	assert.Contains(t, html, "120 seconds")
}

func TestSweepTrigger(t *testing.T) {
	sweeper := &fakeSweeper{result: true}
	srv, _ := newTestServer(t, &fakeReader{}, sweeper, nil)

	rec := doRequest(srv, http.MethodPost, "/sweep", "")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, sweeper.ran)
}

func TestSweepTriggerConflict(t *testing.T) {
	sweeper := &fakeSweeper{result: false}
	srv, _ := newTestServer(t, &fakeReader{}, sweeper, nil)

	rec := doRequest(srv, http.MethodPost, "/sweep", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSweepTriggerWithoutSweeper(t *testing.T) {
	srv, _ := newTestServer(t, &fakeReader{}, nil, nil)

	rec := doRequest(srv, http.MethodPost, "/sweep", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTransportSwitch(t *testing.T) {
	transport := &fakeTransport{mode: "polling"}
	srv, _ := newTestServer(t, &fakeReader{}, nil, transport)

	rec := doRequest(srv, http.MethodPost, "/transport", `{"mode":"webhook"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "webhook", transport.mode)
	body := decodeJSON(t, rec)
	assert.Equal(t, "webhook", body["mode"])
}

func TestTransportSwitchBadBody(t *testing.T) {
	transport := &fakeTransport{mode: "polling"}
	srv, _ := newTestServer(t, &fakeReader{}, nil, transport)

	rec := doRequest(srv, http.MethodPost, "/transport", `{broken`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeReader{}, nil, nil)

	rec := doRequest(srv, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSweepEndpointRejectsGet(t *testing.T) {
	srv, _ := newTestServer(t, &fakeReader{}, &fakeSweeper{result: true}, nil)

	rec := doRequest(srv, http.MethodGet, "/sweep", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
