package session

import (
	"fmt"
	"sync"
)

// DefaultOutboxSize is the number of undelivered messages a player may have
// queued before further sends are dropped.
const DefaultOutboxSize = 256

// Outbox is a bounded, non-blocking queue of outbound messages for one
// connection. The broker pushes into it; the frontend's writer goroutine
// drains Messages and puts each one on the wire.
type Outbox struct {
	owner    string
	messages chan string
	mu       sync.Mutex
	closed   bool
}

// NewOutbox creates an Outbox for the connection identified by owner.
//
// Precondition: owner must be non-empty.
// Postcondition: Returns an open Outbox. A non-positive size falls back to DefaultOutboxSize.
func NewOutbox(owner string, size int) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	return &Outbox{
		owner:    owner,
		messages: make(chan string, size),
	}
}

// Send enqueues msg without blocking.
//
// Postcondition: msg is queued, or an error is returned if the outbox is closed or full.
func (o *Outbox) Send(msg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox %s is closed", o.owner)
	}
	select {
	case o.messages <- msg:
		return nil
	default:
		return fmt.Errorf("outbox %s buffer full", o.owner)
	}
}

// Messages returns the channel the frontend writer drains.
// It is closed by Close.
func (o *Outbox) Messages() <-chan string {
	return o.messages
}

// Close marks the outbox closed and closes the message channel.
//
// Postcondition: Further Send calls return an error. Safe to call repeatedly.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.messages)
	}
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
