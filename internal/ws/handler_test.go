package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncroom/internal/config"
	"syncroom/internal/merge"
	"syncroom/internal/room"
	"syncroom/internal/store"
)

func testConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval: 50 * time.Millisecond,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: time.Second,
		SendBuffer:   32,
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *room.Supervisor) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sv := room.NewSupervisor(merge.NewLogEngine(), store.NewMemory(), room.Config{
		FlushInterval: time.Hour,
		EventBuffer:   64,
	}, log)
	srv := httptest.NewServer(NewHandler(sv, testConfig(), log))
	t.Cleanup(srv.Close)
	return srv, sv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

// readJSONOfType skips frames until one of the wanted type arrives.
func readJSONOfType(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m := readJSON(t, conn)
		if m["type"] == typ {
			return m
		}
	}
	t.Fatalf("no %q frame received", typ)
	return nil
}

func TestConnectReceivesInit(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, "room=doc-1&user_id=u1&name=Ada")

	init := readJSON(t, conn)
	assert.Equal(t, "init", init["type"])
	assert.Equal(t, "u1", init["userId"])
	assert.NotEmpty(t, init["color"])
}

func TestDefaultsAppliedWhenParamsAbsent(t *testing.T) {
	srv, sv := newTestServer(t)
	conn := dial(t, srv, "")

	init := readJSON(t, conn)
	assert.Equal(t, "init", init["type"])
	// A user id was generated for the anonymous connection.
	assert.NotEmpty(t, init["userId"])

	_, ok := sv.Lookup("default")
	assert.True(t, ok, "absent room parameter lands in the default room")
}

func TestUnknownProtoRejectedBeforeUpgrade(t *testing.T) {
	srv, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?proto=msgpack"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSyncRelayedBetweenSockets(t *testing.T) {
	srv, _ := newTestServer(t)
	a := dial(t, srv, "room=doc-1&user_id=a&name=Ada")
	readJSON(t, a) // init

	b := dial(t, srv, "room=doc-1&user_id=b&name=Bob")
	readJSON(t, b) // init

	payload := `{"type":"sync","update":[1,2,3]}`
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(payload)))

	got := readJSONOfType(t, b, "sync")
	update := got["update"].([]any)
	require.Len(t, update, 3)
	assert.Equal(t, float64(1), update[0])
}

func TestBinaryProtoSpeaksBinaryFrames(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, "room=doc-1&user_id=u1&proto=binary")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, messageType)
	assert.NotEmpty(t, data, "binary init carries at least the discriminant")
}

func TestDisconnectLeavesRoom(t *testing.T) {
	srv, sv := newTestServer(t)
	conn := dial(t, srv, "room=doc-1&user_id=u1")
	readJSON(t, conn)

	rm, ok := sv.Lookup("doc-1")
	require.True(t, ok)
	conn.Close()

	require.Eventually(t, func() bool {
		info, err := rm.Info(context.Background())
		return err == nil && info.Sessions == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSendAfterCloseFails(t *testing.T) {
	// Wrap a raw server-side socket directly to exercise the adapter.
	upgradeDone := make(chan *Connection, 1)
	raw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		upgradeDone <- NewConnection(socket, 4, time.Second)
	}))
	t.Cleanup(raw.Close)

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(raw.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { peer.Close() })
	conn := <-upgradeDone

	require.NoError(t, conn.Send(false, []byte(`{"type":"users","users":[]}`)))
	require.NoError(t, conn.Close(websocket.CloseNormalClosure, "bye"))
	assert.ErrorIs(t, conn.Send(false, []byte("late")), ErrConnectionClosed)
	assert.NoError(t, conn.Close(websocket.CloseNormalClosure, "again"), "close is idempotent")
}
