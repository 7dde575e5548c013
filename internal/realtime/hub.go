// MeetSync - Meeting Scheduling with Real-Time Updates
// Copyright 2026 Akidima
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Akidima/meetsync

package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Akidima/meetsync/internal/config"
	"github.com/Akidima/meetsync/internal/events"
	"github.com/Akidima/meetsync/internal/logging"
	"github.com/Akidima/meetsync/internal/metrics"
)

// Hub fans published events out to every registered connection.
//
// Event producers (CRUD handlers, calendar sync, the voice pipeline) call
// Publish; the hub constructs and serializes the envelope once, then
// attempts a non-blocking send to each connection in the registry. A
// connection that fails the send is evicted and closed without affecting
// delivery to the rest.
type Hub struct {
	registry  *Registry
	cfg       config.RealtimeConfig
	broadcast chan events.Envelope

	// Register and Unregister carry connection lifecycle events from the
	// HTTP upgrade handler and the connection pumps into the run loop.
	Register   chan *Conn
	Unregister chan *Conn

	accepting atomic.Bool

	// done is closed when the run loop exits. Connection pumps select
	// against it so their teardown never blocks on an unattended
	// Unregister channel.
	done     chan struct{}
	doneOnce sync.Once
}

// NewHub creates a hub for the given realtime settings. Call
// RunWithContext to start processing.
func NewHub(cfg config.RealtimeConfig) *Hub {
	return &Hub{
		registry:   NewRegistry(),
		cfg:        cfg,
		broadcast:  make(chan events.Envelope, 256),
		Register:   make(chan *Conn),
		Unregister: make(chan *Conn),
		done:       make(chan struct{}),
	}
}

// RunWithContext processes lifecycle events and broadcasts until the
// context is canceled, then drains the registry and closes every
// connection. Designed to run as a suture service.
//
// DETERMINISM: selection is prioritized - shutdown first, then lifecycle
// events, then broadcasts - so connection state is always settled before
// a message fans out. Go's select picks randomly among ready channels;
// the staged non-blocking checks remove that nondeterminism.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.accepting.Store(true)
	defer h.accepting.Store(false)
	defer h.doneOnce.Do(func() { close(h.done) })

	for {
		// Priority 1: shutdown.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: lifecycle events.
		select {
		case c := <-h.Register:
			h.registerConn(c)
			continue
		case c := <-h.Unregister:
			h.unregisterConn(c)
			continue
		default:
		}

		// Priority 3: block until anything arrives.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case c := <-h.Register:
			h.registerConn(c)
		case c := <-h.Unregister:
			h.unregisterConn(c)
		case env := <-h.broadcast:
			h.broadcastToConns(env)
		}
	}
}

// Publish constructs an envelope of the given type and queues it for
// fan-out. Returns an error only when the payload cannot be serialized;
// per-connection delivery failures never surface to the producer. When
// the broadcast buffer is full the envelope is dropped and counted,
// prioritizing producer liveness over delivery completeness.
func (h *Hub) Publish(msgType string, payload any) error {
	env, err := events.New(msgType, payload)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- env:
		metrics.BroadcastsTotal.WithLabelValues(msgType).Inc()
	default:
		metrics.BroadcastsDropped.Inc()
		logging.Warn().Str("type", msgType).Msg("broadcast buffer full, dropping envelope")
	}
	return nil
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	return h.registry.Count()
}

// Accepting reports whether the hub's run loop is active.
func (h *Hub) Accepting() bool {
	return h.accepting.Load()
}

// Done returns a channel closed once the run loop has exited.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) registerConn(c *Conn) {
	h.registry.Register(c)
	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Set(float64(h.registry.Count()))
	logging.Info().
		Str("conn_id", c.ID()).
		Int("total_connections", h.registry.Count()).
		Msg("realtime connection registered")
}

func (h *Hub) unregisterConn(c *Conn) {
	if removed := h.registry.Unregister(c.ID()); removed != nil {
		removed.Close()
		metrics.ConnectionsActive.Set(float64(h.registry.Count()))
		logging.Info().
			Str("conn_id", c.ID()).
			Int("total_connections", h.registry.Count()).
			Msg("realtime connection unregistered")
	}
}

// broadcastToConns serializes the envelope once and attempts a
// non-blocking send to every registered connection. Failed connections
// are collected and evicted after the iteration; eviction of connection
// i never aborts delivery to connections i+1..n.
func (h *Hub) broadcastToConns(env events.Envelope) {
	data, err := env.Encode()
	if err != nil {
		logging.Error().Err(err).Str("type", env.Type).Msg("failed to encode broadcast envelope")
		return
	}

	var failed []*Conn
	h.registry.ForEach(func(c *Conn) {
		if !c.TrySend(data) {
			failed = append(failed, c)
		}
	})

	for _, c := range failed {
		h.evict(c, env.Type)
	}
}

// evict removes a connection that failed a send and closes it.
func (h *Hub) evict(c *Conn, msgType string) {
	if removed := h.registry.Unregister(c.ID()); removed != nil {
		removed.Close()
		metrics.ConnectionsEvicted.Inc()
		metrics.ConnectionsActive.Set(float64(h.registry.Count()))
		logging.Warn().
			Str("conn_id", c.ID()).
			Str("type", msgType).
			Msg("evicting connection after failed send")
	}
}

// shutdown drains the registry and closes every connection.
func (h *Hub) shutdown(ctx context.Context) {
	drained := h.registry.Drain()
	for _, c := range drained {
		c.Close()
	}
	metrics.ConnectionsActive.Set(0)

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "realtime-hub").
		Str("reason", reason).
		Int("connections_closed", len(drained)).
		Msg("realtime hub stopped")
}
