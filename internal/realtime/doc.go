// MeetSync - Meeting Scheduling with Real-Time Updates
// Copyright 2026 Akidima
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Akidima/meetsync

// Package realtime implements the server side of the realtime update
// channel: the connection registry, the per-connection read/write pumps,
// and the broadcast hub that fans events out to every registered
// connection.
//
// The hub owns connection lifecycle. HTTP handlers hand freshly upgraded
// WebSocket connections to the hub through its Register channel; the hub
// removes connections when their pumps exit or when a broadcast send
// cannot complete. A slow or failed connection is evicted without
// disturbing delivery to the others - publish never blocks on a single
// struggling client and never reports per-connection errors to the
// caller.
//
// Delivery semantics are at-most-once with no replay: a client that is
// disconnected while events are published simply misses them and is
// expected to refetch state through the REST API after reconnecting.
package realtime
