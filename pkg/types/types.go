package types

import "time"

// User identifies a session participant. The record is supplied by the
// embedding application and is immutable for the lifetime of the session.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// SelectionRange is an optional selection attached to a cursor position.
type SelectionRange struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// CursorPosition is the ephemeral location of one user's cursor.
// It is keyed by UserID and overwritten on every update.
type CursorPosition struct {
	UserID    string          `json:"userId"`
	File      string          `json:"file"`
	Line      int             `json:"line"`
	Column    int             `json:"column"`
	Selection *SelectionRange `json:"selection,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ChangeOperation is the kind of edit a CodeChange describes.
type ChangeOperation string

const (
	OpInsert  ChangeOperation = "insert"
	OpDelete  ChangeOperation = "delete"
	OpReplace ChangeOperation = "replace"
)

// CodeChange is a single edit to a file. ID is globally unique for the
// session lifetime (ULID, user-scoped). EndLine/EndColumn default to the
// start coordinates for point edits.
type CodeChange struct {
	ID           string          `json:"changeId"`
	UserID       string          `json:"userId"`
	File         string          `json:"file"`
	Operation    ChangeOperation `json:"operation"`
	StartLine    int             `json:"startLine"`
	StartColumn  int             `json:"startColumn"`
	EndLine      int             `json:"endLine"`
	EndColumn    int             `json:"endColumn"`
	Text         string          `json:"text"`
	OriginalText string          `json:"originalText,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// SessionSettings are the owner-chosen knobs for a session.
type SessionSettings struct {
	AllowAnonymous bool     `json:"allowAnonymous"`
	MaxUsers       int      `json:"maxUsers"`
	ReadOnlyFiles  []string `json:"readOnlyFiles,omitempty"`
}

// Session is the record returned by the session-management endpoint.
// Its user set is mutated by join/leave; everything else is fixed at
// creation.
type Session struct {
	ID        string          `json:"sessionId"`
	ProjectID string          `json:"projectId"`
	OwnerID   string          `json:"ownerId"`
	Users     []User          `json:"users"`
	CreatedAt time.Time       `json:"createdAt"`
	Settings  SessionSettings `json:"settings"`
}

// VoiceState is the control-plane descriptor for a session voice channel.
// Media transport is out of scope; this only names the channel.
type VoiceState struct {
	ChannelID    string   `json:"channelId"`
	SessionID    string   `json:"sessionId"`
	Active       bool     `json:"active"`
	Participants []string `json:"participants,omitempty"`
}

// ResolutionKind is the caller's answer to a conflict.
type ResolutionKind string

const (
	ResolutionAcceptLocal  ResolutionKind = "accept-local"
	ResolutionAcceptRemote ResolutionKind = "accept-remote"
	ResolutionMerge        ResolutionKind = "merge"
)

// ConflictResolution is the resolve-conflict payload.
type ConflictResolution struct {
	ChangeID   string         `json:"changeId"`
	Resolution ResolutionKind `json:"resolution"`
	MergedText string         `json:"mergedText,omitempty"`
}

// Conflict pairs a change with the concurrent changes it could not be
// cleanly transformed against.
type Conflict struct {
	Change    CodeChange   `json:"change"`
	Conflicts []CodeChange `json:"conflicts"`
}
