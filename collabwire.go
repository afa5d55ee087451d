package collabwire

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/collabwire/collabwire.go/httpclient"
	"github.com/collabwire/collabwire.go/pkg/buffer"
	"github.com/collabwire/collabwire.go/pkg/clock"
	"github.com/collabwire/collabwire.go/pkg/codec"
	"github.com/collabwire/collabwire.go/pkg/connection"
	"github.com/collabwire/collabwire.go/pkg/constants"
	"github.com/collabwire/collabwire.go/pkg/events"
	"github.com/collabwire/collabwire.go/pkg/logger"
	"github.com/collabwire/collabwire.go/pkg/ot"
	"github.com/collabwire/collabwire.go/pkg/presence"
	"github.com/collabwire/collabwire.go/pkg/types"
)

// Config configures a Coordinator. Zero fields are defaulted by NewConfig
// and NewCoordinator.
type Config struct {
	// ServerURL is the session-management endpoint root, e.g.
	// "http://localhost:8787".
	ServerURL string
	// ChannelURL is the persistent channel root, e.g. "ws://localhost:8787".
	// Derived from ServerURL when empty.
	ChannelURL string

	Logger      logger.Logger
	Clock       clock.Clock
	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler
	HTTPClient  *http.Client

	DebounceWindow     time.Duration
	HeartbeatInterval  time.Duration
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
	MaxReconnects      int

	// NewConnection overrides the transport constructor. Tests inject an
	// in-memory fake here.
	NewConnection func(cfg *connection.Config, handlers connection.Handlers) connection.Connection
}

// NewConfig returns a Config for serverURL with package defaults.
func NewConfig(serverURL string) *Config {
	return &Config{
		ServerURL:          serverURL,
		Logger:             logger.New(slog.NewTextHandler(os.Stdout, nil)),
		Clock:              clock.NewSystem(),
		Marshaler:          codec.Cbor{},
		Unmarshaler:        codec.Cbor{},
		DebounceWindow:     constants.DefaultDebounceWindow,
		HeartbeatInterval:  constants.DefaultHeartbeatInterval,
		ReconnectBaseDelay: constants.DefaultReconnectBaseDelay,
		ReconnectMaxDelay:  constants.DefaultReconnectMaxDelay,
		MaxReconnects:      constants.DefaultMaxReconnects,
	}
}

func (c *Config) channelURL() string {
	if c.ChannelURL != "" {
		return c.ChannelURL
	}
	u := c.ServerURL
	if strings.HasPrefix(u, constants.HTTPSecureScheme+"://") {
		return constants.WebsocketSecureScheme + strings.TrimPrefix(u, constants.HTTPSecureScheme)
	}
	if strings.HasPrefix(u, constants.HTTPScheme+"://") {
		return constants.WebsocketScheme + strings.TrimPrefix(u, constants.HTTPScheme)
	}
	return u
}

// Coordinator is the session façade: it wires the transport, the change
// buffer, the transform engine and presence tracking together and emits
// the engine's events. One Coordinator serves one logical session; the
// embedding application constructs and owns the instance.
type Coordinator struct {
	cfg     Config
	log     logger.Logger
	clk     clock.Clock
	api     *httpclient.Client
	emitter *events.Emitter

	// mu serializes every mutation of session, pending, presence and the
	// batcher: the engine's single message-handling path.
	mu       sync.Mutex
	state    SessionState
	session  *types.Session
	user     types.User
	conn     connection.Connection
	batcher  *buffer.Batcher
	pending  *pendingChanges
	presence *presence.Tracker
}

// NewCoordinator constructs a Coordinator from cfg. The instance is inert
// until CreateSession or JoinSession.
func NewCoordinator(cfg *Config) *Coordinator {
	if cfg == nil {
		cfg = NewConfig("")
	}
	resolved := *cfg
	if resolved.Logger == nil {
		resolved.Logger = logger.New(slog.NewTextHandler(os.Stdout, nil))
	}
	if resolved.Clock == nil {
		resolved.Clock = clock.NewSystem()
	}
	if resolved.Marshaler == nil {
		resolved.Marshaler = codec.Cbor{}
	}
	if resolved.Unmarshaler == nil {
		resolved.Unmarshaler = codec.Cbor{}
	}
	if resolved.DebounceWindow <= 0 {
		resolved.DebounceWindow = constants.DefaultDebounceWindow
	}

	api := httpclient.New(resolved.ServerURL)
	if resolved.HTTPClient != nil {
		api.HTTPClient = resolved.HTTPClient
	}

	return &Coordinator{
		cfg:      resolved,
		log:      resolved.Logger,
		clk:      resolved.Clock,
		api:      api,
		emitter:  events.NewEmitter(),
		state:    StateDisconnected,
		pending:  newPendingChanges(),
		presence: presence.NewTracker(),
	}
}

// Subscribe registers a handler for one event type and returns the handle
// that removes it.
func (c *Coordinator) Subscribe(t events.Type, h events.Handler) events.UnsubscribeFunc {
	return c.emitter.Subscribe(t, h)
}

// State returns the current lifecycle state.
func (c *Coordinator) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the active session record, or nil.
func (c *Coordinator) Session() *types.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	s.Users = append([]types.User(nil), c.session.Users...)
	return &s
}

// Presence returns the remote cursor map keyed by userId.
func (c *Coordinator) Presence() map[string]types.CursorPosition {
	return c.presence.GetAll()
}

// PendingCount reports how many local changes still await acknowledgment.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.len()
}

// CreateSession registers a new session for projectID owned by user, then
// opens the persistent channel. A failure rejects with *ConnectionError.
func (c *Coordinator) CreateSession(ctx context.Context, projectID string, user types.User, settings types.SessionSettings) (*types.Session, error) {
	if err := c.beginConnecting(); err != nil {
		return nil, err
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	session, err := c.api.CreateSession(ctx, projectID, user, settings)
	if err != nil {
		c.setState(StateDisconnected)
		return nil, &ConnectionError{Op: "create-session", Err: err}
	}

	if err := c.openChannel(ctx, session, user); err != nil {
		return nil, err
	}
	return session, nil
}

// JoinSession adds user to an existing session, then opens the persistent
// channel. A failure rejects with *ConnectionError.
func (c *Coordinator) JoinSession(ctx context.Context, sessionID string, user types.User) (*types.Session, error) {
	if err := c.beginConnecting(); err != nil {
		return nil, err
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	session, err := c.api.JoinSession(ctx, sessionID, user)
	if err != nil {
		c.setState(StateDisconnected)
		return nil, &ConnectionError{Op: "join-session", Err: err}
	}

	if err := c.openChannel(ctx, session, user); err != nil {
		return nil, err
	}
	return session, nil
}

func (c *Coordinator) beginConnecting() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := c.state.TransitionTo(StateConnecting)
	if err != nil {
		return fmt.Errorf("%w: %v", constants.ErrAlreadyConnected, err)
	}
	c.state = next
	return nil
}

func (c *Coordinator) openChannel(ctx context.Context, session *types.Session, user types.User) error {
	connCfg := connection.NewConfig(c.cfg.channelURL())
	connCfg.Marshaler = c.cfg.Marshaler
	connCfg.Unmarshaler = c.cfg.Unmarshaler
	connCfg.Logger = c.log
	connCfg.Clock = c.clk
	if c.cfg.HeartbeatInterval > 0 {
		connCfg.HeartbeatInterval = c.cfg.HeartbeatInterval
	}
	if c.cfg.ReconnectBaseDelay > 0 {
		connCfg.ReconnectBaseDelay = c.cfg.ReconnectBaseDelay
	}
	if c.cfg.ReconnectMaxDelay > 0 {
		connCfg.ReconnectMaxDelay = c.cfg.ReconnectMaxDelay
	}
	if c.cfg.MaxReconnects > 0 {
		connCfg.MaxReconnects = c.cfg.MaxReconnects
	}

	handlers := connection.Handlers{
		OnOpen:            c.handleOpen,
		OnMessage:         c.handleMessage,
		OnError:           c.handleTransportError,
		OnReconnecting:    c.handleReconnecting,
		OnReconnectFailed: c.handleReconnectFailed,
	}

	newConn := c.cfg.NewConnection
	if newConn == nil {
		newConn = func(cfg *connection.Config, h connection.Handlers) connection.Connection {
			return connection.NewWebSocketConnection(cfg, h)
		}
	}
	conn := newConn(connCfg, handlers)

	c.mu.Lock()
	c.session = session
	c.user = user
	c.conn = conn
	c.pending.clear()
	c.presence.Reset()
	c.batcher = buffer.NewBatcher(c.clk, c.cfg.DebounceWindow, c.flushBatch)
	c.mu.Unlock()

	if err := conn.Connect(ctx, session.ID, user.ID); err != nil {
		c.teardown(context.Background(), false)
		return &ConnectionError{Op: "open-channel", Err: err}
	}
	return nil
}

// UpdateCursor publishes the local user's cursor. Fire-and-forget: while
// disconnected the transport drops it.
func (c *Coordinator) UpdateCursor(file string, line, column int, selection *types.SelectionRange) {
	c.mu.Lock()
	conn := c.conn
	pos := types.CursorPosition{
		UserID:    c.user.ID,
		File:      file,
		Line:      line,
		Column:    column,
		Selection: selection,
		Timestamp: c.clk.Now(),
	}
	sessionID := ""
	if c.session != nil {
		sessionID = c.session.ID
	}
	c.mu.Unlock()

	if conn == nil {
		return
	}
	msg := &types.Message{
		Type:      types.MessageCursorUpdate,
		SessionID: sessionID,
		UserID:    pos.UserID,
		Cursor:    &pos,
		Timestamp: pos.Timestamp,
	}
	if err := conn.Send(msg); err != nil {
		c.log.Warn("cursor update send failed", "error", err)
	}
}

// SendCodeChange stamps the partial change (changeId, userId, timestamp,
// normalized range) and queues it on the change buffer. The returned id
// identifies the change in conflict and acknowledgment flows.
func (c *Coordinator) SendCodeChange(change types.CodeChange) (string, error) {
	c.mu.Lock()
	batcher := c.batcher
	if c.state == StateDisconnected || batcher == nil {
		c.mu.Unlock()
		return "", constants.ErrSessionClosed
	}
	change.ID = ulid.Make().String()
	change.UserID = c.user.ID
	change.Timestamp = c.clk.Now()
	if change.EndLine < change.StartLine {
		change.EndLine = change.StartLine
		change.EndColumn = change.StartColumn
	}
	c.mu.Unlock()

	batcher.Push(change)
	return change.ID, nil
}

// Flush forces the change buffer out immediately instead of waiting for
// the debounce window.
func (c *Coordinator) Flush() {
	c.mu.Lock()
	batcher := c.batcher
	c.mu.Unlock()
	if batcher != nil {
		batcher.Flush()
	}
}

// flushBatch moves one ordered batch into PendingChanges and transmits it.
// Pending insertion happens strictly before transmission.
func (c *Coordinator) flushBatch(batch []types.CodeChange) {
	c.mu.Lock()
	for _, change := range batch {
		if err := c.pending.add(change); err != nil {
			c.log.Error("pending insert failed", "changeId", change.ID, "error", err)
		}
	}
	conn := c.conn
	sessionID := ""
	if c.session != nil {
		sessionID = c.session.ID
	}
	userID := c.user.ID
	c.mu.Unlock()

	if conn == nil {
		return
	}
	c.transmitBatch(conn, sessionID, userID, batch)
}

// transmitBatch writes one ordered batch to the channel.
func (c *Coordinator) transmitBatch(conn connection.Connection, sessionID, userID string, batch []types.CodeChange) {
	msg := &types.Message{
		Type:      types.MessageCodeChangesBatch,
		SessionID: sessionID,
		UserID:    userID,
		Changes:   batch,
		Timestamp: c.clk.Now(),
	}
	if err := conn.Send(msg); err != nil {
		c.log.Warn("batch send failed", "changes", len(batch), "error", err)
	}
}

// ResolveConflict answers a conflict event. accept-remote invalidates the
// pending local change; merge rewrites its text; accept-local keeps it.
// The resolution is relayed to the other participants.
func (c *Coordinator) ResolveConflict(changeID string, resolution types.ResolutionKind, mergedText string) error {
	c.mu.Lock()
	change, ok := c.pending.get(changeID)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", constants.ErrUnknownChange, changeID)
	}

	switch resolution {
	case types.ResolutionAcceptRemote:
		if err := c.pending.invalidate(changeID); err != nil {
			c.mu.Unlock()
			return err
		}
	case types.ResolutionMerge:
		change.Text = mergedText
		c.pending.changes[changeID] = change
	case types.ResolutionAcceptLocal:
		// Keep the pending change as-is; the relay drops the remote one.
	default:
		c.mu.Unlock()
		return fmt.Errorf("unknown resolution %q", resolution)
	}

	conn := c.conn
	sessionID := ""
	if c.session != nil {
		sessionID = c.session.ID
	}
	userID := c.user.ID
	c.mu.Unlock()

	if conn == nil {
		return constants.ErrNotConnected
	}
	msg := &types.Message{
		Type:      types.MessageResolveConflict,
		SessionID: sessionID,
		UserID:    userID,
		Resolution: &types.ConflictResolution{
			ChangeID:   changeID,
			Resolution: resolution,
			MergedText: mergedText,
		},
		Timestamp: c.clk.Now(),
	}
	return conn.Send(msg)
}

// StartVoice opens the session's voice channel on the control plane and
// announces it on the persistent channel. Media transport is external.
func (c *Coordinator) StartVoice(ctx context.Context) (*types.VoiceState, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, constants.ErrNotConnected
	}
	sessionID := c.session.ID
	userID := c.user.ID
	conn := c.conn
	c.mu.Unlock()

	state, err := c.api.StartVoice(ctx, sessionID)
	if err != nil {
		return nil, &ConnectionError{Op: "start-voice", Err: err}
	}

	if conn != nil {
		msg := &types.Message{
			Type:      types.MessageVoiceState,
			SessionID: sessionID,
			UserID:    userID,
			Voice:     state,
			Timestamp: c.clk.Now(),
		}
		if err := conn.Send(msg); err != nil {
			c.log.Warn("voice state send failed", "error", err)
		}
	}
	return state, nil
}

// Disconnect atomically closes the channel, cancels the heartbeat and
// debounce timers, cancels any in-flight reconnect and clears in-memory
// state. Terminal for this coordinator's session.
func (c *Coordinator) Disconnect(ctx context.Context) error {
	return c.teardown(ctx, true)
}

func (c *Coordinator) teardown(ctx context.Context, emit bool) error {
	c.mu.Lock()
	if c.state == StateDisconnected && c.conn == nil {
		c.mu.Unlock()
		return nil
	}
	c.state = StateDisconnected
	conn := c.conn
	c.conn = nil
	batcher := c.batcher
	c.batcher = nil
	var sessionID, userID string
	if c.session != nil {
		sessionID = c.session.ID
	}
	userID = c.user.ID
	c.session = nil
	c.pending.clear()
	c.presence.Reset()
	c.mu.Unlock()

	if batcher != nil {
		batcher.Close()
	}
	var closeErr error
	if conn != nil {
		closeErr = conn.Close(ctx)
	}
	if sessionID != "" {
		if err := c.api.LeaveSession(ctx, sessionID, userID); err != nil {
			c.log.Debug("leave session notify failed", "error", err)
		}
	}
	if emit {
		c.emitter.Emit(EventDisconnected, nil)
	}
	return closeErr
}

// --- transport handlers ---

func (c *Coordinator) handleOpen(reconnected bool) {
	c.setState(StateConnected)
	c.mu.Lock()
	session := c.session
	conn := c.conn
	sessionID := ""
	if session != nil {
		sessionID = session.ID
	}
	userID := c.user.ID
	var unacked []types.CodeChange
	if reconnected {
		unacked = c.pending.list()
	}
	c.mu.Unlock()

	if reconnected {
		c.log.Info("session channel reconnected", "pendingChanges", len(unacked))
		// Anything flushed while the channel was down was dropped by the
		// transport's disconnected no-op send. Resend the unacked set in
		// submission order; it stays pending until the server acks it.
		if len(unacked) > 0 && conn != nil {
			c.transmitBatch(conn, sessionID, userID, unacked)
		}
	}
	c.emitter.Emit(EventConnected, session)
}

func (c *Coordinator) handleTransportError(err error) {
	c.log.Warn("transport error", "error", err)
	c.emitter.Emit(EventError, &ConnectionError{Op: "channel", Err: err})
}

func (c *Coordinator) handleReconnecting(attempt int, delay time.Duration) {
	if attempt == 1 {
		c.setState(StateReconnecting)
	}
	c.log.Info("reconnecting", "attempt", attempt, "delay", delay)
}

func (c *Coordinator) handleReconnectFailed(attempts int, lastErr error) {
	err := &ReconnectExhaustedError{Attempts: attempts, LastErr: lastErr}
	c.log.Error("reconnect attempts exhausted", "attempts", attempts, "error", lastErr)
	c.emitter.Emit(EventReconnectFailed, err)
	_ = c.teardown(context.Background(), true)
}

// handleMessage is the single message-handling path: every remote mutation
// of pending, presence and session membership funnels through here.
func (c *Coordinator) handleMessage(msg types.Message) {
	switch msg.Type {
	case types.MessageCursorUpdate:
		c.handleCursorUpdate(msg)
	case types.MessageCodeChange:
		if msg.Change == nil {
			c.dropMalformed(msg, "missing change payload")
			return
		}
		c.handleRemoteChange(*msg.Change)
	case types.MessageCodeChangesBatch:
		for _, change := range msg.Changes {
			c.handleRemoteChange(change)
		}
	case types.MessageUserJoined:
		c.handleUserJoined(msg)
	case types.MessageUserLeft:
		c.handleUserLeft(msg)
	case types.MessageChangeAck:
		c.handleChangeAck(msg)
	case types.MessageConflict:
		if msg.Conflict == nil {
			c.dropMalformed(msg, "missing conflict payload")
			return
		}
		c.emitter.Emit(EventConflict, &ConflictError{
			Change:    msg.Conflict.Change,
			Conflicts: msg.Conflict.Conflicts,
		})
	case types.MessageResolveConflict:
		if msg.Resolution == nil {
			c.dropMalformed(msg, "missing resolution payload")
			return
		}
		c.emitter.Emit(EventConflictResolved, *msg.Resolution)
	case types.MessageVoiceState:
		if msg.Voice == nil {
			c.dropMalformed(msg, "missing voice payload")
			return
		}
		c.emitter.Emit(EventVoiceState, *msg.Voice)
	case types.MessageHeartbeat:
		c.answerHeartbeat()
	default:
		perr := &ProtocolError{MessageType: string(msg.Type)}
		c.log.Warn("dropping unknown message", "type", string(msg.Type), "error", perr)
	}
}

func (c *Coordinator) handleCursorUpdate(msg types.Message) {
	if msg.Cursor == nil {
		c.dropMalformed(msg, "missing cursor payload")
		return
	}
	c.mu.Lock()
	own := msg.Cursor.UserID == c.user.ID
	c.mu.Unlock()
	if own {
		return
	}
	c.presence.SetCursor(*msg.Cursor)
	c.emitter.Emit(EventCursorMoved, *msg.Cursor)
}

// handleRemoteChange transforms an incoming change against the pending
// local set, or raises a conflict when no clean transform exists.
func (c *Coordinator) handleRemoteChange(change types.CodeChange) {
	c.mu.Lock()
	if change.UserID == c.user.ID {
		// Our own change echoed back; the ack path owns it.
		c.mu.Unlock()
		return
	}
	pendingList := c.pending.list()
	c.mu.Unlock()

	conflicts := detectConflicts(change, pendingList)
	if len(conflicts) > 0 {
		c.emitter.Emit(EventConflict, &ConflictError{Change: change, Conflicts: conflicts})
		return
	}

	transformed := ot.Transform(change, pendingList)
	c.emitter.Emit(EventCodeChanged, transformed)
}

// detectConflicts finds pending changes the incoming one cannot be cleanly
// transformed against: overlapping ranges where either side is a replace.
// Insert and delete overlaps all have transform rules; replace does not.
func detectConflicts(change types.CodeChange, pending []types.CodeChange) []types.CodeChange {
	var out []types.CodeChange
	for _, p := range pending {
		if !ot.LinesOverlap(change, p) {
			continue
		}
		if change.Operation == types.OpReplace || p.Operation == types.OpReplace {
			out = append(out, p)
		}
	}
	return out
}

func (c *Coordinator) handleUserJoined(msg types.Message) {
	if msg.User == nil {
		c.dropMalformed(msg, "missing user payload")
		return
	}
	user := *msg.User
	c.mu.Lock()
	if c.session != nil {
		found := false
		for _, u := range c.session.Users {
			if u.ID == user.ID {
				found = true
				break
			}
		}
		if !found {
			c.session.Users = append(c.session.Users, user)
		}
	}
	c.mu.Unlock()
	c.emitter.Emit(EventUserJoined, user)
}

func (c *Coordinator) handleUserLeft(msg types.Message) {
	userID := msg.UserID
	if userID == "" {
		c.dropMalformed(msg, "missing user id")
		return
	}
	c.mu.Lock()
	if c.session != nil {
		users := c.session.Users[:0]
		for _, u := range c.session.Users {
			if u.ID != userID {
				users = append(users, u)
			}
		}
		c.session.Users = users
	}
	c.mu.Unlock()
	c.presence.Remove(userID)
	c.emitter.Emit(EventUserLeft, userID)
}

func (c *Coordinator) handleChangeAck(msg types.Message) {
	c.mu.Lock()
	for _, id := range msg.ChangeIDs {
		c.pending.ack(id)
	}
	c.mu.Unlock()
}

// answerHeartbeat replies to a server-initiated ping. Client pings are the
// transport's job; acks to those never reach this layer.
func (c *Coordinator) answerHeartbeat() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.Send(&types.Message{Type: types.MessageHeartbeatAck, Timestamp: c.clk.Now()}); err != nil {
		c.log.Debug("heartbeat ack send failed", "error", err)
	}
}

func (c *Coordinator) dropMalformed(msg types.Message, reason string) {
	perr := &ProtocolError{MessageType: string(msg.Type)}
	c.log.Warn("dropping malformed message", "type", string(msg.Type), "reason", reason, "error", perr)
}

func (c *Coordinator) setState(target SessionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := c.state.TransitionTo(target)
	if err != nil {
		c.log.Debug("state transition skipped", "error", err)
		return
	}
	c.state = next
}
