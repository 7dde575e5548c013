// MeetSync - Meeting Scheduling with Real-Time Updates
// Copyright 2026 Akidima
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Akidima/meetsync

// Package metrics defines Prometheus collectors for the realtime subsystem.
// Collectors are registered on the default registry via promauto and
// exposed through the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive tracks currently registered realtime connections.
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meetsync_realtime_connections_active",
			Help: "Number of currently registered realtime connections",
		},
	)

	// ConnectionsTotal counts accepted connections over process lifetime.
	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meetsync_realtime_connections_total",
			Help: "Total realtime connections accepted",
		},
	)

	// BroadcastsTotal counts published envelopes by message type.
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetsync_realtime_broadcasts_total",
			Help: "Total envelopes published through the hub by type",
		},
		[]string{"type"},
	)

	// BroadcastsDropped counts publishes dropped because the hub's
	// broadcast buffer was full.
	BroadcastsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meetsync_realtime_broadcasts_dropped_total",
			Help: "Publishes dropped due to a full hub broadcast buffer",
		},
	)

	// ConnectionsEvicted counts connections removed after a failed or
	// non-blocking send could not complete.
	ConnectionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meetsync_realtime_connections_evicted_total",
			Help: "Connections evicted after a failed broadcast send",
		},
	)

	// InboundMessages counts messages read from clients by type.
	InboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetsync_realtime_inbound_messages_total",
			Help: "Messages received from realtime clients by type",
		},
		[]string{"type"},
	)

	// InboundRateLimited counts inbound messages dropped by the
	// per-connection rate limiter.
	InboundRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meetsync_realtime_inbound_rate_limited_total",
			Help: "Inbound messages dropped by per-connection rate limiting",
		},
	)

	// InboundMalformed counts inbound messages dropped because they could
	// not be decoded into an envelope.
	InboundMalformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meetsync_realtime_inbound_malformed_total",
			Help: "Inbound messages dropped as malformed",
		},
	)

	// HeartbeatTimeouts counts connections declared dead by heartbeat
	// liveness checking rather than transport closure.
	HeartbeatTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meetsync_realtime_heartbeat_timeouts_total",
			Help: "Connections closed after missing heartbeat responses",
		},
	)

	// ReconnectAttempts counts client reconnect attempts.
	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meetsync_client_reconnect_attempts_total",
			Help: "Client connection manager reconnect attempts",
		},
	)

	// HandlerPanics counts recovered panics in registered message handlers.
	HandlerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meetsync_client_handler_panics_total",
			Help: "Panics recovered from registered message handlers",
		},
	)
)
