// Package buffer aggregates local edits and coalesces rapid pushes into
// one outbound batch behind a short debounce window.
package buffer

import (
	"sync"
	"time"

	"github.com/collabwire/collabwire.go/pkg/clock"
	"github.com/collabwire/collabwire.go/pkg/types"
)

// FlushFunc receives each flushed batch. The slice is ordered exactly as
// the changes were pushed; it is owned by the callee.
type FlushFunc func(batch []types.CodeChange)

// Batcher is the change buffer. Push appends in order; a debounce window
// coalesces rapid pushes into one batch; Flush forces an immediate send.
type Batcher struct {
	mu     sync.Mutex
	clk    clock.Clock
	window time.Duration
	flush  FlushFunc

	queue  []types.CodeChange
	timer  clock.Timer
	closed bool
}

func NewBatcher(clk clock.Clock, window time.Duration, flush FlushFunc) *Batcher {
	return &Batcher{clk: clk, window: window, flush: flush}
}

// Push appends change to the queue and (re)arms the debounce timer.
func (b *Batcher) Push(change types.CodeChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.queue = append(b.queue, change)
	if b.timer == nil {
		b.timer = b.clk.AfterFunc(b.window, b.Flush)
	}
}

// Flush sends the queued batch immediately, preserving push order.
// It never reorders and is a no-op on an empty queue.
func (b *Batcher) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	batch := b.queue
	b.queue = nil
	b.mu.Unlock()

	if len(batch) > 0 {
		b.flush(batch)
	}
}

// Len reports the number of queued, not yet flushed changes.
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Close cancels the debounce timer and drops any queued changes.
func (b *Batcher) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.queue = nil
	b.closed = true
}
