// MeetSync - Meeting Scheduling with Real-Time Updates
// Copyright 2026 Akidima
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Akidima/meetsync

package realtime

import (
	"sort"
	"sync"
)

// Registry tracks active connections. It is safe for concurrent use:
// registration and removal race with broadcast iteration, so ForEach
// iterates a snapshot rather than the live map.
//
// Connection IDs are UUIDs assigned at accept time and are never reused
// for a different live connection.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Conn),
	}
}

// Register adds a connection and returns its id.
func (r *Registry) Register(c *Conn) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.id] = c
	return c.id
}

// Unregister removes the connection with the given id and returns it,
// or nil if it was already removed.
func (r *Registry) Unregister(id string) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return nil
	}
	delete(r.conns, id)
	return c
}

// Get returns the connection with the given id.
func (r *Registry) Get(id string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// ForEach calls fn for every registered connection. The iteration runs
// over a snapshot taken under the read lock, so fn may register or
// unregister connections without deadlocking.
//
// DETERMINISM: the snapshot is sorted by accept sequence so broadcast
// order is reproducible across runs.
func (r *Registry) ForEach(fn func(*Conn)) {
	r.mu.RLock()
	snapshot := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		snapshot = append(snapshot, c)
	}
	r.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].seq < snapshot[j].seq
	})

	for _, c := range snapshot {
		fn(c)
	}
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Drain removes and returns every registered connection, in accept
// order. Used at shutdown so the hub can close each one.
func (r *Registry) Drain() []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	drained := make([]*Conn, 0, len(r.conns))
	for id, c := range r.conns {
		drained = append(drained, c)
		delete(r.conns, id)
	}

	sort.Slice(drained, func(i, j int) bool {
		return drained[i].seq < drained[j].seq
	})
	return drained
}
