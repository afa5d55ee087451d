package collabwire

import (
	"fmt"

	"github.com/collabwire/collabwire.go/pkg/types"
)

// ConnectionError wraps a transport failure: it rejects CreateSession and
// JoinSession, or surfaces as a non-fatal error mid-session. Recoverable
// via reconnect.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError marks an unknown or malformed message. It is logged and
// dropped; the session continues.
type ProtocolError struct {
	MessageType string
	Err         error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error on %q message: %v", e.MessageType, e.Err)
	}
	return fmt.Sprintf("protocol error: unknown message type %q", e.MessageType)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ConflictError reports a remote change that could not be cleanly
// transformed against pending local changes. Surfaced through the conflict
// event; the caller answers with ResolveConflict.
type ConflictError struct {
	Change    types.CodeChange
	Conflicts []types.CodeChange
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("change %s conflicts with %d pending local change(s)",
		e.Change.ID, len(e.Conflicts))
}

// ReconnectExhaustedError is terminal: the reconnect attempt budget was
// spent without recovering the channel. The caller must recreate the
// session.
type ReconnectExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ReconnectExhaustedError) Error() string {
	return fmt.Sprintf("reconnect failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ReconnectExhaustedError) Unwrap() error { return e.LastErr }
