package constants

import "time"

const (
	// DefaultHeartbeatInterval is how often a heartbeat ping is written
	// while the channel is connected. There is no local dead-peer timeout;
	// the server owns liveness cleanup.
	DefaultHeartbeatInterval = 15 * time.Second

	// DefaultDebounceWindow coalesces rapid local edits into one batch.
	DefaultDebounceWindow = 50 * time.Millisecond

	// Reconnect backoff: baseDelay * 2^attempt, capped, bounded attempts.
	DefaultReconnectBaseDelay = 500 * time.Millisecond
	DefaultReconnectMaxDelay  = 30 * time.Second
	DefaultMaxReconnects      = 5

	// CloseMessageCode identifies the message id for a close request.
	CloseMessageCode = 1000
)

var (
	WebsocketScheme       = "ws"
	WebsocketSecureScheme = "wss"
	HTTPScheme            = "http"
	HTTPSecureScheme      = "https"
)
