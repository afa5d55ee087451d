// Package presence tracks the live cursor and selection of every session
// participant. State is ephemeral: it holds at most one entry per user,
// most-recent wins, and is rebuilt fresh for each session.
package presence

import (
	"sync"

	"github.com/collabwire/collabwire.go/pkg/types"
)

type Tracker struct {
	mu      sync.RWMutex
	cursors map[string]types.CursorPosition
}

func NewTracker() *Tracker {
	return &Tracker{cursors: make(map[string]types.CursorPosition)}
}

// SetCursor overwrites the stored position for pos.UserID.
func (t *Tracker) SetCursor(pos types.CursorPosition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursors[pos.UserID] = pos
}

// Get returns the stored position for userID, if any.
func (t *Tracker) Get(userID string) (types.CursorPosition, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pos, ok := t.cursors[userID]
	return pos, ok
}

// GetAll returns a copy of the cursor map keyed by userID.
func (t *Tracker) GetAll() map[string]types.CursorPosition {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]types.CursorPosition, len(t.cursors))
	for id, pos := range t.cursors {
		out[id] = pos
	}
	return out
}

// Remove drops the entry for userID, typically on user-left.
func (t *Tracker) Remove(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.cursors, userID)
}

// Reset clears all entries for a fresh session.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursors = make(map[string]types.CursorPosition)
}
