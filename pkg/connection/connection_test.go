package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/collabwire/collabwire.go/pkg/clock"
	"github.com/collabwire/collabwire.go/pkg/codec"
	"github.com/collabwire/collabwire.go/pkg/types"
)

func TestBackoffDelay(t *testing.T) {
	base := 500 * time.Millisecond
	max := 30 * time.Second

	require.Equal(t, 500*time.Millisecond, BackoffDelay(base, max, 0))
	require.Equal(t, time.Second, BackoffDelay(base, max, 1))
	require.Equal(t, 2*time.Second, BackoffDelay(base, max, 2))

	// After 3 consecutive failures the 4th attempt waits at least base*2^3.
	require.Equal(t, 4*time.Second, BackoffDelay(base, max, 3))

	// And the cap bounds the growth.
	require.Equal(t, max, BackoffDelay(base, max, 10))
	require.Equal(t, max, BackoffDelay(base, max, 63))
}

// testServer is a minimal collaboration channel endpoint: it records every
// envelope it reads and can push envelopes to the most recent client.
type testServer struct {
	*httptest.Server

	mu       sync.Mutex
	received []types.Message
	conns    []*gorilla.Conn
	dropNext bool // close the next accepted conn right after upgrade
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{}
	upgrader := gorilla.Upgrader{Subprotocols: []string{"cbor"}}

	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		ts.mu.Lock()
		drop := ts.dropNext
		ts.dropNext = false
		ts.conns = append(ts.conns, conn)
		ts.mu.Unlock()

		if drop {
			conn.Close()
			return
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg types.Message
			if err := (codec.Cbor{}).Unmarshal(data, &msg); err != nil {
				continue
			}
			ts.mu.Lock()
			ts.received = append(ts.received, msg)
			ts.mu.Unlock()
		}
	}))
	t.Cleanup(ts.Close)

	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func (ts *testServer) push(t *testing.T, msg types.Message) {
	t.Helper()
	data, err := (codec.Cbor{}).Marshal(&msg)
	require.NoError(t, err)

	ts.mu.Lock()
	conn := ts.conns[len(ts.conns)-1]
	ts.mu.Unlock()
	require.NoError(t, conn.WriteMessage(gorilla.BinaryMessage, data))
}

func (ts *testServer) receivedOfType(mt types.MessageType) []types.Message {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	var out []types.Message
	for _, m := range ts.received {
		if m.Type == mt {
			out = append(out, m)
		}
	}
	return out
}

func TestConnectSendReceive(t *testing.T) {
	ts := newTestServer(t)

	cfg := NewConfig(ts.wsURL())
	cfg.HeartbeatInterval = 0 // keep the stream quiet for this test

	var (
		mu       sync.Mutex
		got      []types.Message
		opened   int
		reopened int
	)
	ws := NewWebSocketConnection(cfg, Handlers{
		OnOpen: func(reconnected bool) {
			mu.Lock()
			defer mu.Unlock()
			opened++
			if reconnected {
				reopened++
			}
		},
		OnMessage: func(msg types.Message) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, msg)
		},
	})

	require.NoError(t, ws.Connect(context.Background(), "sess-1", "user-1"))
	require.True(t, ws.IsConnected())
	defer ws.Close(context.Background())

	// Outbound.
	require.NoError(t, ws.Send(&types.Message{
		Type:   types.MessageCursorUpdate,
		Cursor: &types.CursorPosition{UserID: "user-1", File: "main.go", Line: 3},
	}))
	require.Eventually(t, func() bool {
		return len(ts.receivedOfType(types.MessageCursorUpdate)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Inbound.
	ts.push(t, types.Message{Type: types.MessageUserJoined, User: &types.User{ID: "user-2"}})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0].Type == types.MessageUserJoined
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	require.Equal(t, 1, opened)
	require.Equal(t, 0, reopened)
	mu.Unlock()
}

func TestConnectRejectedHandshake(t *testing.T) {
	// A plain HTTP endpoint that refuses the upgrade and writes a body.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session not found", http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := NewConfig("ws" + strings.TrimPrefix(srv.URL, "http"))
	ws := NewWebSocketConnection(cfg, Handlers{})

	err := ws.Connect(context.Background(), "sess-1", "user-1")
	require.ErrorIs(t, err, gorilla.ErrBadHandshake)
	require.False(t, ws.IsConnected())
}

func TestSendWhileDisconnectedIsNoop(t *testing.T) {
	cfg := NewConfig("ws://localhost:0")
	ws := NewWebSocketConnection(cfg, Handlers{})

	err := ws.Send(&types.Message{Type: types.MessageCursorUpdate})
	require.NoError(t, err)
}

func TestHeartbeatOnInterval(t *testing.T) {
	ts := newTestServer(t)

	clk := clock.NewMock()
	cfg := NewConfig(ts.wsURL())
	cfg.Clock = clk
	cfg.HeartbeatInterval = 15 * time.Second

	ws := NewWebSocketConnection(cfg, Handlers{})
	require.NoError(t, ws.Connect(context.Background(), "sess-1", "user-1"))
	defer ws.Close(context.Background())

	// Give the heartbeat loop time to arm its timer, then fire it.
	require.Eventually(t, func() bool {
		clk.Advance(15 * time.Second)
		return len(ts.receivedOfType(types.MessageHeartbeat)) >= 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestReconnectAfterServerDrop(t *testing.T) {
	ts := newTestServer(t)

	cfg := NewConfig(ts.wsURL())
	cfg.HeartbeatInterval = 0
	cfg.ReconnectBaseDelay = time.Millisecond
	cfg.ReconnectMaxDelay = 10 * time.Millisecond
	cfg.MaxReconnects = 5

	var (
		mu         sync.Mutex
		reopened   bool
		errorsSeen int
	)
	ws := NewWebSocketConnection(cfg, Handlers{
		OnOpen: func(reconnected bool) {
			if reconnected {
				mu.Lock()
				reopened = true
				mu.Unlock()
			}
		},
		OnError: func(error) {
			mu.Lock()
			errorsSeen++
			mu.Unlock()
		},
	})

	ts.mu.Lock()
	ts.dropNext = true // kill the first accepted channel right away
	ts.mu.Unlock()

	require.NoError(t, ws.Connect(context.Background(), "sess-1", "user-1"))
	defer ws.Close(context.Background())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reopened && errorsSeen >= 1
	}, 5*time.Second, 10*time.Millisecond)
	require.True(t, ws.IsConnected())
}

func TestReconnectExhaustionIsTerminal(t *testing.T) {
	ts := newTestServer(t)

	cfg := NewConfig(ts.wsURL())
	cfg.HeartbeatInterval = 0
	cfg.ReconnectBaseDelay = time.Millisecond
	cfg.ReconnectMaxDelay = 4 * time.Millisecond
	cfg.MaxReconnects = 3

	var (
		mu        sync.Mutex
		attempts  []int
		exhausted int
		lastCount int
	)
	ws := NewWebSocketConnection(cfg, Handlers{
		OnReconnecting: func(attempt int, delay time.Duration) {
			mu.Lock()
			attempts = append(attempts, attempt)
			mu.Unlock()
		},
		OnReconnectFailed: func(count int, lastErr error) {
			mu.Lock()
			exhausted++
			lastCount = count
			mu.Unlock()
		},
	})

	require.NoError(t, ws.Connect(context.Background(), "sess-1", "user-1"))

	// Take the whole server down so every reconnect dial fails.
	ts.CloseClientConnections()
	ts.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return exhausted == 1
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	require.Equal(t, []int{1, 2, 3}, attempts)
	require.Equal(t, 3, lastCount)
	mu.Unlock()
	require.False(t, ws.IsConnected())
}

func TestCloseCancelsReconnect(t *testing.T) {
	ts := newTestServer(t)

	cfg := NewConfig(ts.wsURL())
	cfg.HeartbeatInterval = 0
	cfg.ReconnectBaseDelay = time.Hour // would block forever without Close
	cfg.MaxReconnects = 5

	var (
		mu        sync.Mutex
		exhausted bool
	)
	ws := NewWebSocketConnection(cfg, Handlers{
		OnReconnectFailed: func(int, error) {
			mu.Lock()
			exhausted = true
			mu.Unlock()
		},
	})

	require.NoError(t, ws.Connect(context.Background(), "sess-1", "user-1"))

	ts.CloseClientConnections()
	ts.Close()

	// Let the read loop notice the drop and enter the backoff wait.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, ws.Close(context.Background()))

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	require.False(t, exhausted)
	mu.Unlock()
	require.False(t, ws.IsConnected())

	// A closed connection cannot be reused.
	err := ws.Connect(context.Background(), "sess-1", "user-1")
	require.Error(t, err)
}
