package types

import "time"

// MessageType discriminates the wire envelope.
type MessageType string

const (
	MessageCursorUpdate     MessageType = "cursor-update"
	MessageCodeChange       MessageType = "code-change"
	MessageCodeChangesBatch MessageType = "code-changes-batch"
	MessageUserJoined       MessageType = "user-joined"
	MessageUserLeft         MessageType = "user-left"
	MessageConflict         MessageType = "conflict"
	MessageResolveConflict  MessageType = "resolve-conflict"
	MessageChangeAck        MessageType = "change-ack"
	MessageVoiceState       MessageType = "voice-state"
	MessageHeartbeat        MessageType = "heartbeat"
	MessageHeartbeatAck     MessageType = "heartbeat-ack"
)

// Message is the envelope carried on the persistent channel. Exactly one
// payload field is set, matching Type. The zero fields are omitted on the
// wire.
type Message struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	UserID    string      `json:"userId,omitempty"`
	Timestamp time.Time   `json:"timestamp,omitempty"`

	Cursor     *CursorPosition     `json:"cursor,omitempty"`
	Change     *CodeChange         `json:"change,omitempty"`
	Changes    []CodeChange        `json:"changes,omitempty"`
	User       *User               `json:"user,omitempty"`
	Conflict   *Conflict           `json:"conflict,omitempty"`
	Resolution *ConflictResolution `json:"resolution,omitempty"`
	ChangeIDs  []string            `json:"changeIds,omitempty"`
	Voice      *VoiceState         `json:"voice,omitempty"`
}
