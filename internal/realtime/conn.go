// MeetSync - Meeting Scheduling with Real-Time Updates
// Copyright 2026 Akidima
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Akidima/meetsync

package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Akidima/meetsync/internal/config"
	"github.com/Akidima/meetsync/internal/events"
	"github.com/Akidima/meetsync/internal/logging"
	"github.com/Akidima/meetsync/internal/metrics"
)

// ConnState is the lifecycle state of a server-held connection.
type ConnState int32

const (
	ConnOpen ConnState = iota
	ConnClosing
	ConnClosed
)

// String returns the state name for logs.
func (s ConnState) String() string {
	switch s {
	case ConnOpen:
		return "open"
	case ConnClosing:
		return "closing"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// connSeq orders connections by accept time for deterministic broadcast
// iteration.
var connSeq atomic.Uint64

// Conn is the hub's handle on one accepted WebSocket connection. It owns
// the read and write pumps; the hub talks to it only through the send
// channel and Close.
type Conn struct {
	id  string
	seq uint64

	hub  *Hub
	sock *websocket.Conn
	cfg  config.RealtimeConfig

	// send carries pre-serialized envelopes to the write pump. The hub
	// enqueues non-blocking: a full channel marks the connection failed.
	// Never closed; teardown is signaled through done.
	send chan []byte

	// done is closed by Close and signals teardown to the pumps and to
	// TrySend.
	done chan struct{}

	// limiter bounds inbound message rate; excess messages are dropped
	// without closing the connection.
	limiter *rate.Limiter

	// lastSeen is the unix-nano timestamp of the last message or pong
	// received from the peer.
	lastSeen atomic.Int64

	state     atomic.Int32
	closeOnce sync.Once
}

// NewConn wraps an accepted WebSocket connection. The connection is not
// pumping yet; register it with the hub and call Start.
func NewConn(hub *Hub, sock *websocket.Conn, cfg config.RealtimeConfig) *Conn {
	c := &Conn{
		id:      uuid.NewString(),
		seq:     connSeq.Add(1),
		hub:     hub,
		sock:    sock,
		cfg:     cfg,
		send:    make(chan []byte, cfg.SendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(cfg.InboundRate), cfg.InboundBurst),
	}
	c.lastSeen.Store(time.Now().UnixNano())
	return c
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string {
	return c.id
}

// State returns the connection's lifecycle state.
func (c *Conn) State() ConnState {
	return ConnState(c.state.Load())
}

// LastSeen returns the time of the last message or pong from the peer.
func (c *Conn) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// TrySend enqueues a pre-serialized envelope without blocking. It returns
// false when the outbound buffer is full or the connection is no longer
// open; the caller treats that as a failed connection.
func (c *Conn) TrySend(data []byte) bool {
	if c.State() != ConnOpen {
		return false
	}
	select {
	case <-c.done:
		return false
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Start launches the read and write pumps.
func (c *Conn) Start() {
	go c.writePump()
	go c.readPump()
}

// Close tears the connection down once: marks it closing, sends a close
// frame best-effort, and closes the socket. Safe for concurrent calls.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(ConnClosing))
		close(c.done)
		if c.sock != nil {
			_ = c.sock.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			_ = c.sock.Close()
		}
		c.state.Store(int32(ConnClosed))
	})
}

// touch records peer liveness.
func (c *Conn) touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

// detach hands the connection back to the hub for unregistration. It
// gives up once the hub's run loop has exited, so pump teardown never
// parks on an unattended Unregister channel during shutdown.
func (c *Conn) detach() {
	select {
	case c.hub.Unregister <- c:
	case <-c.hub.Done():
	}
}

// readPump reads inbound messages until the connection dies, then hands
// the connection back to the hub for unregistration.
//
// Liveness: the read deadline is pushed forward on every pong control
// frame and every message, so a half-open peer times out after the
// configured heartbeat window even if the transport never reports
// closure.
func (c *Conn) readPump() {
	defer func() {
		c.detach()
		c.Close()
	}()

	pongWait := c.cfg.HeartbeatTimeout()

	c.sock.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.sock.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Str("conn_id", c.id).Msg("failed to set read deadline")
		return
	}
	c.sock.SetPongHandler(func(string) error {
		c.touch()
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).Str("conn_id", c.id).Msg("websocket read error")
			}
			return
		}

		c.touch()
		if err := c.sock.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return
		}

		if !c.limiter.Allow() {
			metrics.InboundRateLimited.Inc()
			continue
		}

		c.handleInbound(data)
	}
}

// handleInbound decodes one inbound message. Malformed messages are
// logged and dropped; the connection stays open. Ping envelopes are
// answered with pong; anything else from clients is ignored, since the
// channel is server-to-client except for heartbeats.
func (c *Conn) handleInbound(data []byte) {
	env, err := events.Decode(data)
	if err != nil {
		metrics.InboundMalformed.Inc()
		logging.Warn().Err(err).Str("conn_id", c.id).Msg("dropping malformed message")
		return
	}

	metrics.InboundMessages.WithLabelValues(env.Type).Inc()

	if env.Type == events.TypePing {
		pong, err := events.Pong().Encode()
		if err != nil {
			return
		}
		// Best effort; a full buffer means the write pump is wedged and
		// the read deadline will reap the connection.
		c.TrySend(pong)
	}
}

// writePump writes queued envelopes and periodic control pings. It exits
// when the connection closes (hub eviction or shutdown) or a write
// fails. Close itself sends the close frame.
func (c *Conn) writePump() {
	pingPeriod := (c.cfg.HeartbeatTimeout() * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case data := <-c.send:
			if err := c.sock.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				logging.Error().Err(err).Str("conn_id", c.id).Msg("failed to set write deadline")
				return
			}

			if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Warn().Err(err).Str("conn_id", c.id).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			if err := c.sock.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				return
			}
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
