package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/vovakirdan/arena/internal/core"
	"github.com/vovakirdan/arena/internal/matchmaking"
	"github.com/vovakirdan/arena/internal/multiplayer"
)

func startWS(t *testing.T) (*WebSocketServer, *httptest.Server, *fakeDispatcher) {
	t.Helper()
	d := newFakeDispatcher()
	s := NewWebSocketServer("127.0.0.1:0", d, log.New(io.Discard))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts, d
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + query
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestWebSocketRejectsBadRequests(t *testing.T) {
	_, ts, _ := startWS(t)

	tests := []struct {
		name  string
		query string
	}{
		{"missing user", ""},
		{"unknown codec", "user=alice&codec=xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + tt.query
			_, resp, err := websocket.DefaultDialer.Dial(url, nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestWebSocketJSONRoundTrip(t *testing.T) {
	_, ts, d := startWS(t)
	ws := dial(t, ts, "user=alice")

	connected := expect[matchmaking.ConnectedMsg](t, d)
	assert.Equal(t, multiplayer.UserID("alice"), connected.User)
	assert.True(t, strings.HasPrefix(string(connected.Conn.ID()), "ws-"))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"event":"player-ready"}`)))
	in := expect[matchmaking.InboundMsg](t, d)
	assert.Equal(t, connected.Conn.ID(), in.ConnID)
	assert.Equal(t, multiplayer.ReadyInput{}, in.Event)

	connected.Conn.Send(multiplayer.ScoreEvent{Left: 1, Right: 3})
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	msgType, frame, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.JSONEq(t, `{"event":"score","data":{"left":1,"right":3}}`, string(frame))

	require.NoError(t, ws.Close())
	disconnected := expect[matchmaking.DisconnectedMsg](t, d)
	assert.Equal(t, connected.Conn.ID(), disconnected.ConnID)
}

func TestWebSocketBadFrameGetsError(t *testing.T) {
	_, ts, d := startWS(t)
	ws := dial(t, ts, "user=alice")
	expect[matchmaking.ConnectedMsg](t, d)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"event":"fly"}`)))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(frame), `"event":"error"`)

	select {
	case msg := <-d.msgs:
		t.Fatalf("unexpected dispatch %T", msg)
	default:
	}
}

func TestWebSocketMsgpack(t *testing.T) {
	_, ts, d := startWS(t)
	ws := dial(t, ts, "user=bob&codec=msgpack")
	connected := expect[matchmaking.ConnectedMsg](t, d)

	frame, err := msgpack.Marshal(map[string]any{
		"event": "player-move",
		"data":  map[string]any{"position": map[string]any{"x": 0.0, "y": 0.0, "z": 4.5}},
	})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, frame))

	in := expect[matchmaking.InboundMsg](t, d)
	assert.Equal(t, multiplayer.MoveInput{Position: core.Vec3(0, 0, 4.5)}, in.Event)

	connected.Conn.Send(multiplayer.StartGameEvent{})
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	msgType, out, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)

	var env map[string]any
	require.NoError(t, msgpack.Unmarshal(out, &env))
	assert.Equal(t, "start-game", env["event"])
}

func TestWebSocketHealth(t *testing.T) {
	s, ts, d := startWS(t)
	dial(t, ts, "user=alice")
	expect[matchmaking.ConnectedMsg](t, d)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","connections":1}`, string(body))
	assert.Equal(t, 1, s.Active())
}

func TestWebSocketShutdownClosesSockets(t *testing.T) {
	s, ts, d := startWS(t)
	ws := dial(t, ts, "user=alice")
	connected := expect[matchmaking.ConnectedMsg](t, d)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	disconnected := expect[matchmaking.DisconnectedMsg](t, d)
	assert.Equal(t, connected.Conn.ID(), disconnected.ConnID)
	assert.Equal(t, 0, s.Active())

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err)
}
