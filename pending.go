package collabwire

import (
	"fmt"

	"github.com/collabwire/collabwire.go/pkg/constants"
	"github.com/collabwire/collabwire.go/pkg/types"
)

// pendingChanges holds local changes awaiting acknowledgment, keyed by
// changeId and ordered by submission. A change enters before transmission
// and leaves only on explicit acknowledgment or explicit invalidation.
// Not goroutine-safe; the coordinator serializes access.
type pendingChanges struct {
	order   []string
	changes map[string]types.CodeChange
}

func newPendingChanges() *pendingChanges {
	return &pendingChanges{changes: make(map[string]types.CodeChange)}
}

func (p *pendingChanges) add(change types.CodeChange) error {
	if _, ok := p.changes[change.ID]; ok {
		return fmt.Errorf("%w: %s", constants.ErrDuplicateChangeID, change.ID)
	}
	p.changes[change.ID] = change
	p.order = append(p.order, change.ID)
	return nil
}

// ack removes an acknowledged change. Unknown ids are ignored: an ack may
// race a resolution that already invalidated the change.
func (p *pendingChanges) ack(changeID string) {
	p.remove(changeID)
}

// invalidate removes a change the caller abandoned (accept-remote).
func (p *pendingChanges) invalidate(changeID string) error {
	if _, ok := p.changes[changeID]; !ok {
		return fmt.Errorf("%w: %s", constants.ErrUnknownChange, changeID)
	}
	p.remove(changeID)
	return nil
}

func (p *pendingChanges) remove(changeID string) {
	if _, ok := p.changes[changeID]; !ok {
		return
	}
	delete(p.changes, changeID)
	for i, id := range p.order {
		if id == changeID {
			p.order = append(p.order[:i:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *pendingChanges) get(changeID string) (types.CodeChange, bool) {
	c, ok := p.changes[changeID]
	return c, ok
}

// list returns the pending changes in submission order.
func (p *pendingChanges) list() []types.CodeChange {
	out := make([]types.CodeChange, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.changes[id])
	}
	return out
}

func (p *pendingChanges) len() int { return len(p.order) }

func (p *pendingChanges) clear() {
	p.order = nil
	p.changes = make(map[string]types.CodeChange)
}
