// Package events is a small synchronous publish/subscribe emitter.
// Handlers run on the emitting goroutine, which for the engine is the
// single message-handling path, so subscribers never race each other.
package events

import "sync"

// Type names an emitted event.
type Type string

// Handler receives the event payload.
type Handler func(payload any)

// UnsubscribeFunc removes a subscription. Safe to call more than once.
type UnsubscribeFunc func()

// Emitter dispatches events to registered handlers in subscription order.
type Emitter struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Type][]subscription
}

type subscription struct {
	id      int
	handler Handler
}

func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[Type][]subscription)}
}

// Subscribe registers h for events of type t and returns the handle that
// removes it.
func (e *Emitter) Subscribe(t Type, h Handler) UnsubscribeFunc {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subs[t] = append(e.subs[t], subscription{id: id, handler: h})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			subs := e.subs[t]
			for i, s := range subs {
				if s.id == id {
					e.subs[t] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Emit calls every handler subscribed to t with payload.
func (e *Emitter) Emit(t Type, payload any) {
	e.mu.RLock()
	subs := make([]subscription, len(e.subs[t]))
	copy(subs, e.subs[t])
	e.mu.RUnlock()

	for _, s := range subs {
		s.handler(payload)
	}
}

// Reset drops every subscription.
func (e *Emitter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = make(map[Type][]subscription)
}
