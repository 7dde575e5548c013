// MeetSync - Meeting Scheduling with Real-Time Updates
// Copyright 2026 Akidima
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Akidima/meetsync

package client

import (
	"context"
	"sync"
)

// MemoryTransport is the in-memory Transport implementation. Each
// successful Dial produces a paired session; the server end is delivered
// on Accepted so a test (or local harness) can script the peer. Dial
// failures are injected with QueueDialError.
type MemoryTransport struct {
	mu       sync.Mutex
	dialErrs []error

	// Accepted delivers the server end of each dialed session.
	Accepted chan *MemorySession
}

// NewMemoryTransport creates an in-memory transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		Accepted: make(chan *MemorySession, 16),
	}
}

// QueueDialError makes upcoming Dial calls fail with the given errors,
// in order, before dials succeed again.
func (t *MemoryTransport) QueueDialError(errs ...error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dialErrs = append(t.dialErrs, errs...)
}

// Dial returns the client end of a new session pair, or the next queued
// dial error.
func (t *MemoryTransport) Dial(ctx context.Context) (Session, error) {
	t.mu.Lock()
	if len(t.dialErrs) > 0 {
		err := t.dialErrs[0]
		t.dialErrs = t.dialErrs[1:]
		t.mu.Unlock()
		return nil, err
	}
	t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clientEnd, serverEnd := newMemoryPair()
	select {
	case t.Accepted <- serverEnd:
	default:
		// No one listening for the peer end; the session still works.
	}
	return clientEnd, nil
}

// MemorySession is one end of an in-memory session pair.
type MemorySession struct {
	recv chan []byte
	peer *MemorySession

	// done is shared between both ends; closing either end fails both.
	done     chan struct{}
	doneOnce *sync.Once
}

// newMemoryPair creates two connected session ends.
func newMemoryPair() (*MemorySession, *MemorySession) {
	done := make(chan struct{})
	once := &sync.Once{}
	a := &MemorySession{recv: make(chan []byte, 64), done: done, doneOnce: once}
	b := &MemorySession{recv: make(chan []byte, 64), done: done, doneOnce: once}
	a.peer = b
	b.peer = a
	return a, b
}

// Read blocks until the peer writes or the session closes.
func (s *MemorySession) Read() ([]byte, error) {
	select {
	case data := <-s.recv:
		return data, nil
	case <-s.done:
		// Drain any message that raced with close.
		select {
		case data := <-s.recv:
			return data, nil
		default:
			return nil, ErrSessionClosed
		}
	}
}

// Write delivers one message to the peer.
func (s *MemorySession) Write(data []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.peer.recv <- data:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// Close fails both ends of the pair.
func (s *MemorySession) Close() error {
	s.doneOnce.Do(func() { close(s.done) })
	return nil
}
