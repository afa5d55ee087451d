package connection

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	gorilla "github.com/gorilla/websocket"

	"github.com/collabwire/collabwire.go/pkg/constants"
	"github.com/collabwire/collabwire.go/pkg/types"
)

// WebSocketConnection is the gorilla-backed Connection. One instance serves
// one session channel; after Close it cannot be reused.
type WebSocketConnection struct {
	cfg      Config
	handlers Handlers

	connLock sync.Mutex // serializes writes to the underlying conn

	mu        sync.Mutex
	conn      *gorilla.Conn
	connected bool
	closed    bool
	closeChan chan struct{}
	sessionID string
	userID    string
}

var _ Connection = (*WebSocketConnection)(nil)

func NewWebSocketConnection(cfg *Config, handlers Handlers) *WebSocketConnection {
	return &WebSocketConnection{
		cfg:       *cfg,
		handlers:  handlers,
		closeChan: make(chan struct{}),
	}
}

// Connect dials the channel scoped by sessionId and userId. An initial
// dial failure is returned to the caller; automatic reconnection only
// guards an already established channel.
func (ws *WebSocketConnection) Connect(ctx context.Context, sessionID, userID string) error {
	if err := ws.cfg.validate(); err != nil {
		return err
	}

	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return constants.ErrSessionClosed
	}
	if ws.connected {
		ws.mu.Unlock()
		return constants.ErrAlreadyConnected
	}
	ws.sessionID = sessionID
	ws.userID = userID
	ws.mu.Unlock()

	conn, err := ws.dial(ctx)
	if err != nil {
		return err
	}

	ws.startConn(conn, false)
	return nil
}

func (ws *WebSocketConnection) dial(ctx context.Context) (*gorilla.Conn, error) {
	ws.mu.Lock()
	channelURL := fmt.Sprintf("%s/sessions/%s/ws?userId=%s",
		ws.cfg.BaseURL, url.PathEscape(ws.sessionID), url.QueryEscape(ws.userID))
	ws.mu.Unlock()

	dialer := ws.cfg.Dialer
	if dialer == nil {
		dialer = DefaultDialer
	}

	// On a failed handshake the response is non-nil and its body carries
	// the server's rejection; it must be closed either way.
	conn, res, err := dialer.DialContext(ctx, channelURL, nil)
	if res != nil {
		res.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// startConn installs conn as the live channel and starts its read and
// heartbeat loops. done is closed when this particular conn dies, which
// stops the heartbeat without touching a successor connection.
func (ws *WebSocketConnection) startConn(conn *gorilla.Conn, reconnected bool) {
	done := make(chan struct{})

	ws.mu.Lock()
	ws.conn = conn
	ws.connected = true
	ws.mu.Unlock()

	go ws.readLoop(conn, done)
	go ws.heartbeatLoop(done)

	if h := ws.handlers.OnOpen; h != nil {
		h(reconnected)
	}
}

// Send writes one envelope to the channel. While disconnected it is a
// no-op: callers resubmit through the change buffer, not this layer.
func (ws *WebSocketConnection) Send(msg *types.Message) error {
	ws.mu.Lock()
	conn := ws.conn
	connected := ws.connected
	ws.mu.Unlock()

	if !connected || conn == nil {
		ws.cfg.Logger.Debug("send skipped, channel not connected", "type", string(msg.Type))
		return nil
	}

	data, err := ws.cfg.Marshaler.Marshal(msg)
	if err != nil {
		return err
	}

	ws.connLock.Lock()
	defer ws.connLock.Unlock()
	return conn.WriteMessage(gorilla.BinaryMessage, data)
}

func (ws *WebSocketConnection) IsConnected() bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.connected && !ws.closed
}

func (ws *WebSocketConnection) readLoop(conn *gorilla.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ws.isClosed() {
				return
			}
			ws.markDisconnected(conn)
			if h := ws.handlers.OnError; h != nil {
				h(err)
			}
			go ws.reconnectLoop()
			return
		}

		var msg types.Message
		if err := ws.cfg.Unmarshaler.Unmarshal(data, &msg); err != nil {
			// Malformed frame: logged and dropped, the session continues.
			ws.cfg.Logger.Warn("dropping undecodable message", "error", err)
			continue
		}
		if msg.Type == types.MessageHeartbeatAck {
			continue
		}
		if h := ws.handlers.OnMessage; h != nil {
			h(msg)
		}
	}
}

// heartbeatLoop writes a fixed-interval ping while the current conn is up.
// There is no local dead-peer timeout; liveness cleanup is the server's.
func (ws *WebSocketConnection) heartbeatLoop(done <-chan struct{}) {
	if ws.cfg.HeartbeatInterval <= 0 {
		return
	}
	for {
		select {
		case <-ws.closeChan:
			return
		case <-done:
			return
		case <-ws.cfg.Clock.After(ws.cfg.HeartbeatInterval):
			msg := &types.Message{Type: types.MessageHeartbeat, Timestamp: ws.cfg.Clock.Now()}
			if err := ws.Send(msg); err != nil {
				ws.cfg.Logger.Warn("heartbeat write failed", "error", err)
			}
		}
	}
}

// reconnectLoop runs after an established channel drops. Each attempt
// waits base*2^attempt (capped) and the whole loop is cancellable by
// Close. Exhausting the budget is terminal.
func (ws *WebSocketConnection) reconnectLoop() {
	var lastErr error

	for attempt := 0; attempt < ws.cfg.MaxReconnects; attempt++ {
		delay := BackoffDelay(ws.cfg.ReconnectBaseDelay, ws.cfg.ReconnectMaxDelay, attempt)
		if h := ws.handlers.OnReconnecting; h != nil {
			h(attempt+1, delay)
		}

		select {
		case <-ws.closeChan:
			return
		case <-ws.cfg.Clock.After(delay):
		}

		conn, err := ws.dial(context.Background())
		if err != nil {
			lastErr = err
			ws.cfg.Logger.Warn("reconnect attempt failed",
				"attempt", attempt+1, "max", ws.cfg.MaxReconnects, "error", err)
			continue
		}

		if ws.isClosed() {
			conn.Close()
			return
		}

		ws.cfg.Logger.Info("channel reconnected", "attempt", attempt+1)
		ws.startConn(conn, true)
		return
	}

	if h := ws.handlers.OnReconnectFailed; h != nil {
		h(ws.cfg.MaxReconnects, lastErr)
	}
}

// Close sends a close frame, tears the channel down and cancels the
// heartbeat and any reconnect wait. The context bounds the close
// handshake; the local teardown happens regardless.
func (ws *WebSocketConnection) Close(ctx context.Context) error {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return nil
	}
	ws.closed = true
	ws.connected = false
	conn := ws.conn
	ws.conn = nil
	close(ws.closeChan)
	ws.mu.Unlock()

	var closeErr error
	if conn != nil {
		writeErr := make(chan error, 1)
		go func() {
			ws.connLock.Lock()
			defer ws.connLock.Unlock()
			writeErr <- conn.WriteMessage(gorilla.CloseMessage,
				gorilla.FormatCloseMessage(constants.CloseMessageCode, ""))
		}()

		select {
		case err := <-writeErr:
			if err != nil {
				ws.cfg.Logger.Debug("close frame write failed", "error", err)
			}
		case <-ctx.Done():
		}

		closeErr = conn.Close()
	}

	if h := ws.handlers.OnClose; h != nil {
		h()
	}
	return closeErr
}

func (ws *WebSocketConnection) isClosed() bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.closed
}

// markDisconnected clears the live conn, but only if it is still the one
// that died; a reconnect may already have installed a successor.
func (ws *WebSocketConnection) markDisconnected(conn *gorilla.Conn) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.conn == conn {
		ws.conn = nil
		ws.connected = false
	}
}
