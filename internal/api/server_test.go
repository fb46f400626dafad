package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncroom/internal/merge"
	"syncroom/internal/protocol"
	"syncroom/internal/room"
	"syncroom/internal/session"
	"syncroom/internal/store"
)

type quietPeer struct{ closed bool }

func (p *quietPeer) Send(bool, []byte) error { return nil }
func (p *quietPeer) Close(int, string) error { p.closed = true; return nil }

func newTestAPI(t *testing.T, kv store.KV) (*httptest.Server, *room.Supervisor) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sv := room.NewSupervisor(merge.NewLogEngine(), kv, room.Config{
		FlushInterval: time.Hour,
		EventBuffer:   64,
	}, log)
	srv := httptest.NewServer(NewServer(sv, kv, log))
	t.Cleanup(srv.Close)
	return srv, sv
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealthOK(t *testing.T) {
	srv, _ := newTestAPI(t, store.NewMemory())
	status, body := getJSON(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

type sickKV struct{ store.KV }

func (sickKV) HealthCheck(context.Context) error { return errors.New("database locked") }

func TestHealthDegradedWhenStorageDown(t *testing.T) {
	srv, _ := newTestAPI(t, sickKV{store.NewMemory()})
	status, body := getJSON(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "degraded", body["status"])
}

func TestRoomEndpointsRequireResidentRoom(t *testing.T) {
	srv, _ := newTestAPI(t, store.NewMemory())
	for _, path := range []string{"/api/rooms/ghost/health", "/api/rooms/ghost/state"} {
		status, body := getJSON(t, srv.URL+path)
		assert.Equal(t, http.StatusNotFound, status, path)
		assert.Contains(t, body["error"], "ghost")
	}
}

func TestRoomStateReflectsSessions(t *testing.T) {
	srv, sv := newTestAPI(t, store.NewMemory())
	rm := sv.Room("doc-1")
	require.NoError(t, rm.Connect(context.Background(), &quietPeer{}, session.Identity{UserID: "u1", Name: "Ada"}, protocol.JSON))

	status, body := getJSON(t, srv.URL+"/api/rooms/doc-1/state")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "doc-1", body["room"])
	assert.Equal(t, float64(1), body["sessions"])
	users := body["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "u1", users[0].(map[string]any)["userId"])

	status, body = getJSON(t, srv.URL+"/api/rooms/doc-1/health")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestResetLiveRoomDisconnectsSessions(t *testing.T) {
	srv, sv := newTestAPI(t, store.NewMemory())
	rm := sv.Room("doc-1")
	peer := &quietPeer{}
	require.NoError(t, rm.Connect(context.Background(), peer, session.Identity{UserID: "u1"}, protocol.JSON))

	resp, err := http.Post(srv.URL+"/api/rooms/doc-1/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	info, err := rm.Info(context.Background())
	require.NoError(t, err)
	assert.Zero(t, info.Sessions)
	assert.True(t, peer.closed)
}

func TestResetColdRoomDeletesSnapshot(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, kv.Put(ctx, store.DocKey("cold"), []byte("stale")))

	srv, _ := newTestAPI(t, kv)
	resp, err := http.Post(srv.URL+"/api/rooms/cold/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	value, err := kv.Get(ctx, store.DocKey("cold"))
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestMetricsExposed(t *testing.T) {
	srv, _ := newTestAPI(t, store.NewMemory())
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "syncroom_"))
}
