package collabwire

import "github.com/collabwire/collabwire.go/pkg/events"

// Events emitted by the Coordinator. Payload types are listed per event;
// handlers run synchronously on the message-handling path.
const (
	// EventConnected carries *types.Session. Fires on the initial channel
	// open and again after a successful reconnect.
	EventConnected events.Type = "connected"
	// EventDisconnected carries nothing. Terminal for this coordinator.
	EventDisconnected events.Type = "disconnected"
	// EventCursorMoved carries types.CursorPosition of a remote user.
	EventCursorMoved events.Type = "cursor-moved"
	// EventCodeChanged carries the transformed types.CodeChange to apply
	// to the local document buffer.
	EventCodeChanged events.Type = "code-changed"
	// EventUserJoined carries types.User.
	EventUserJoined events.Type = "user-joined"
	// EventUserLeft carries the departed userId string.
	EventUserLeft events.Type = "user-left"
	// EventConflict carries *ConflictError; answer with ResolveConflict.
	EventConflict events.Type = "conflict"
	// EventConflictResolved carries types.ConflictResolution from a remote
	// participant.
	EventConflictResolved events.Type = "conflict-resolved"
	// EventReconnectFailed carries *ReconnectExhaustedError. Terminal.
	EventReconnectFailed events.Type = "reconnect-failed"
	// EventError carries a non-fatal mid-session error; the transport is
	// already reconnecting when it fires.
	EventError events.Type = "error"
	// EventVoiceState carries types.VoiceState, the control-plane stub for
	// the session voice channel.
	EventVoiceState events.Type = "voice-state"
)
