// Package connection owns the one bidirectional channel between the engine
// and the collaboration server: dialing, the read loop, heartbeat pings,
// and reconnection with exponential backoff.
package connection

import (
	"context"
	"log/slog"
	"os"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/collabwire/collabwire.go/pkg/clock"
	"github.com/collabwire/collabwire.go/pkg/codec"
	"github.com/collabwire/collabwire.go/pkg/constants"
	"github.com/collabwire/collabwire.go/pkg/logger"
	"github.com/collabwire/collabwire.go/pkg/types"
)

// Connection is the transport contract the coordinator drives. A fake
// implementation stands in for the network in tests.
type Connection interface {
	Connect(ctx context.Context, sessionID, userID string) error
	Send(msg *types.Message) error
	Close(ctx context.Context) error
	IsConnected() bool
}

// Handlers are the transport callbacks. All of them are optional; a nil
// handler is skipped. Handlers are invoked from the connection's own
// goroutines.
type Handlers struct {
	// OnOpen fires after every successful dial. reconnected distinguishes
	// a recovered channel from the initial one.
	OnOpen func(reconnected bool)
	// OnMessage receives every decoded envelope except heartbeat-ack,
	// which the transport swallows.
	OnMessage func(msg types.Message)
	// OnError reports a non-fatal mid-session transport error.
	OnError func(err error)
	// OnReconnecting fires before each backoff wait.
	OnReconnecting func(attempt int, delay time.Duration)
	// OnReconnectFailed fires once when the attempt budget is exhausted.
	// The channel is dead afterwards.
	OnReconnectFailed func(attempts int, lastErr error)
	// OnClose fires when the channel is explicitly closed.
	OnClose func()
}

// Config carries everything a WebSocketConnection needs. Zero fields are
// filled with defaults by NewConfig.
type Config struct {
	// BaseURL is the collaboration server root, e.g. "ws://localhost:8787".
	BaseURL string

	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler
	Logger      logger.Logger
	Clock       clock.Clock

	// Dialer defaults to DefaultDialer.
	Dialer *gorilla.Dialer

	HeartbeatInterval  time.Duration
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
	MaxReconnects      int
}

// DefaultDialer is the gorilla dialer used unless Config.Dialer is set.
// Compression is enabled and the subprotocol names the wire codec.
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
	Subprotocols:      []string{"cbor"},
}

// NewConfig returns a Config for baseURL with the package defaults:
// CBOR codec, slog text logger to stdout, system clock.
func NewConfig(baseURL string) *Config {
	return &Config{
		BaseURL:            baseURL,
		Marshaler:          codec.Cbor{},
		Unmarshaler:        codec.Cbor{},
		Logger:             logger.New(slog.NewTextHandler(os.Stdout, nil)),
		Clock:              clock.NewSystem(),
		Dialer:             DefaultDialer,
		HeartbeatInterval:  constants.DefaultHeartbeatInterval,
		ReconnectBaseDelay: constants.DefaultReconnectBaseDelay,
		ReconnectMaxDelay:  constants.DefaultReconnectMaxDelay,
		MaxReconnects:      constants.DefaultMaxReconnects,
	}
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return constants.ErrNoBaseURL
	}
	if c.Marshaler == nil {
		return constants.ErrNoMarshaler
	}
	if c.Unmarshaler == nil {
		return constants.ErrNoUnmarshaler
	}
	return nil
}

// BackoffDelay computes the wait before reconnect attempt (zero-based):
// base * 2^attempt, capped at max.
func BackoffDelay(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
