// File: internal/server/mailbox.go
package server

import "context"

// mailbox passes safety check answers from the connection's read loop to the
// turn goroutine blocked on the gate. One mailbox exists per turn and is
// discarded at turn end, so a stale answer can never leak into a later turn.
// Capacity 1: an answer arriving with no gate pending is dropped.
type mailbox struct {
	ch chan bool
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan bool, 1)}
}

// put delivers an answer without blocking. Returns false if the slot was
// already full and the answer was dropped.
func (m *mailbox) put(v bool) bool {
	select {
	case m.ch <- v:
		return true
	default:
		return false
	}
}

// get blocks until an answer arrives or the turn context ends. A cancelled
// context reads as a declined check.
func (m *mailbox) get(ctx context.Context) bool {
	select {
	case v := <-m.ch:
		return v
	case <-ctx.Done():
		return false
	}
}
