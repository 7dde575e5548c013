// MeetSync - Meeting Scheduling with Real-Time Updates
// Copyright 2026 Akidima
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Akidima/meetsync

package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Akidima/meetsync/internal/backoff"
	"github.com/Akidima/meetsync/internal/events"
	"github.com/Akidima/meetsync/internal/logging"
	"github.com/Akidima/meetsync/internal/metrics"
)

// State is the connection manager's lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

// String returns the state name for logs and diagnostics.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrClosed is returned after the manager has been torn down.
	ErrClosed = errors.New("connection manager closed")

	// ErrFailed is returned by Connect while the manager sits in the
	// terminal failed state; call Reset first.
	ErrFailed = errors.New("connection manager is in the failed state, reset required")

	// ErrNotFailed is returned by Reset outside the failed state.
	ErrNotFailed = errors.New("connection manager is not in the failed state")

	// ErrHeartbeatTimeout marks a connection declared dead because no
	// pong arrived within the liveness window.
	ErrHeartbeatTimeout = errors.New("heartbeat timeout")
)

// Options configures a connection manager.
type Options struct {
	// Transport dials sessions. Required.
	Transport Transport

	// Backoff is the reconnect delay policy. Zero value gets defaults.
	Backoff backoff.Policy

	// HeartbeatInterval is the ping cadence while connected.
	// Default: 30s.
	HeartbeatInterval time.Duration

	// HeartbeatMissed is how many silent intervals mark the connection
	// dead. Default: 2.
	HeartbeatMissed int

	// OnStateChange, if set, is invoked (on its own goroutine) after
	// every state transition. The error argument carries the trigger
	// for disconnected/reconnecting/failed transitions.
	OnStateChange func(State, error)
}

// Manager owns one logical connection to the realtime channel: a state
// machine over disconnected/connecting/connected/reconnecting/failed
// with backoff-scheduled reconnects, heartbeat liveness checking, and
// dispatch of inbound envelopes through its Router.
//
// A Manager holds at most one active session and at most one pending
// reconnect timer at any time. Send is best-effort: it fails fast
// whenever the state is not connected, with no buffering and no retry.
type Manager struct {
	transport Transport
	policy    backoff.Policy
	router    *Router

	hbInterval time.Duration
	hbMissed   int
	onState    func(State, error)

	mu         sync.Mutex
	state      State
	sess       Session
	done       chan struct{}
	gen        int
	attempts   int
	lastErr    error
	retryTimer *time.Timer
	lastPong   time.Time
	dialCtx    context.Context
	closed     bool

	wg sync.WaitGroup
}

// NewManager creates a manager. It does not connect; call Connect.
func NewManager(opts Options) (*Manager, error) {
	if opts.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if opts.Backoff == (backoff.Policy{}) {
		opts.Backoff = backoff.DefaultPolicy()
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.HeartbeatMissed <= 0 {
		opts.HeartbeatMissed = 2
	}

	return &Manager{
		transport:  opts.Transport,
		policy:     opts.Backoff,
		router:     NewRouter(),
		hbInterval: opts.HeartbeatInterval,
		hbMissed:   opts.HeartbeatMissed,
		onState:    opts.OnStateChange,
		state:      StateDisconnected,
	}, nil
}

// Router returns the manager's message router for handler registration.
func (m *Manager) Router() *Router {
	return m.router
}

// OnMessage registers a handler for the given message type.
func (m *Manager) OnMessage(msgType string, h Handler) {
	m.router.Register(msgType, h)
}

// ConnState returns the current state.
func (m *Manager) ConnState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the manager is currently connected.
func (m *Manager) IsConnected() bool {
	return m.ConnState() == StateConnected
}

// LastError returns the error that triggered the most recent
// disconnect, or nil.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Connect dials the transport and starts the session loops. A dial
// failure schedules a backoff-delayed retry and is also returned so the
// caller can log it. The context is retained for retry dials; canceling
// it makes subsequent dials fail and drives the machine toward failed.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	switch m.state {
	case StateConnected, StateConnecting:
		m.mu.Unlock()
		return nil
	case StateFailed:
		m.mu.Unlock()
		return ErrFailed
	}
	m.dialCtx = ctx
	m.setStateLocked(StateConnecting, nil)
	m.mu.Unlock()

	return m.dial(ctx)
}

// dial performs one connection attempt and installs the session.
func (m *Manager) dial(ctx context.Context) error {
	sess, err := m.transport.Dial(ctx)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if sess != nil {
			_ = sess.Close()
		}
		return ErrClosed
	}

	if err != nil {
		m.lastErr = err
		m.setStateLocked(StateDisconnected, err)
		m.scheduleReconnectLocked(err)
		m.mu.Unlock()
		return err
	}

	m.sess = sess
	m.gen++
	gen := m.gen
	m.done = make(chan struct{})
	done := m.done
	m.attempts = 0
	m.lastErr = nil
	m.lastPong = time.Now()
	m.setStateLocked(StateConnected, nil)

	m.wg.Add(2)
	go m.readLoop(sess, gen)
	go m.heartbeatLoop(sess, done, gen)
	m.mu.Unlock()

	logging.Info().Msg("realtime connection established")
	return nil
}

// Send serializes and transmits one message. Returns false whenever the
// state is not connected or the write fails; messages are never
// buffered for later.
func (m *Manager) Send(msgType string, payload any) bool {
	m.mu.Lock()
	if m.state != StateConnected || m.sess == nil {
		m.mu.Unlock()
		return false
	}
	sess, gen := m.sess, m.gen
	m.mu.Unlock()

	env, err := events.New(msgType, payload)
	if err != nil {
		logging.Warn().Err(err).Str("type", msgType).Msg("dropping unsendable message")
		return false
	}
	data, err := env.Encode()
	if err != nil {
		return false
	}

	if err := sess.Write(data); err != nil {
		m.handleDisconnect(gen, err)
		return false
	}
	return true
}

// Reset returns the manager from the terminal failed state to
// disconnected so Connect may be called again.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.state != StateFailed {
		return ErrNotFailed
	}
	m.attempts = 0
	m.lastErr = nil
	m.setStateLocked(StateDisconnected, nil)
	return nil
}

// Close tears the manager down: the pending reconnect timer is
// canceled, the heartbeat stops, and the session is closed, regardless
// of the current state. The manager cannot be reused afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.teardownSessionLocked()
	m.mu.Unlock()

	m.wg.Wait()
	logging.Info().Msg("realtime connection manager closed")
	return nil
}

// setStateLocked transitions the state and fires the callback.
func (m *Manager) setStateLocked(next State, err error) {
	if m.state == next {
		return
	}
	prev := m.state
	m.state = next
	logging.Debug().
		Str("from", prev.String()).
		Str("to", next.String()).
		Msg("connection state transition")

	if m.onState != nil {
		cb := m.onState
		go cb(next, err)
	}
}

// scheduleReconnectLocked either schedules the next connect attempt or,
// with the retry budget spent, parks the machine in failed. At most one
// timer is ever pending: scheduling replaces any existing timer.
func (m *Manager) scheduleReconnectLocked(cause error) {
	if m.policy.Exhausted(m.attempts) {
		m.setStateLocked(StateFailed, cause)
		logging.Error().
			Err(cause).
			Int("attempts", m.attempts).
			Msg("realtime connection failed permanently, reset required")
		return
	}

	delay := m.policy.Delay(m.attempts)
	m.attempts++
	m.setStateLocked(StateReconnecting, cause)
	metrics.ReconnectAttempts.Inc()
	logging.Warn().
		Err(cause).
		Dur("delay", delay).
		Int("attempt", m.attempts).
		Msg("scheduling realtime reconnect")

	if m.retryTimer != nil {
		m.retryTimer.Stop()
	}
	ctx := m.dialCtx
	m.retryTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if m.closed || m.state != StateReconnecting {
			m.mu.Unlock()
			return
		}
		m.setStateLocked(StateConnecting, nil)
		m.mu.Unlock()
		_ = m.dial(ctx)
	})
}

// handleDisconnect reacts to a dead session: transition to disconnected
// and schedule a reconnect. Stale notifications from a superseded
// session generation are ignored.
func (m *Manager) handleDisconnect(gen int, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || gen != m.gen || m.state != StateConnected {
		return
	}

	m.teardownSessionLocked()
	m.lastErr = cause
	m.setStateLocked(StateDisconnected, cause)
	m.scheduleReconnectLocked(cause)
}

// teardownSessionLocked stops the heartbeat and closes the session.
func (m *Manager) teardownSessionLocked() {
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	if m.sess != nil {
		_ = m.sess.Close()
		m.sess = nil
	}
}

// readLoop consumes inbound messages until the session dies. Heartbeat
// frames are filtered here and never reach the router; malformed
// messages are logged and dropped without closing the connection.
func (m *Manager) readLoop(sess Session, gen int) {
	defer m.wg.Done()

	for {
		data, err := sess.Read()
		if err != nil {
			m.handleDisconnect(gen, err)
			return
		}

		env, err := events.Decode(data)
		if err != nil {
			logging.Warn().Err(err).Msg("dropping malformed inbound message")
			continue
		}

		switch env.Type {
		case events.TypePong:
			m.notePong()
		case events.TypePing:
			if pong, err := events.Pong().Encode(); err == nil {
				_ = sess.Write(pong)
			}
		default:
			m.router.Dispatch(env)
		}
	}
}

// notePong records heartbeat liveness.
func (m *Manager) notePong() {
	m.mu.Lock()
	m.lastPong = time.Now()
	m.mu.Unlock()
}

// heartbeatLoop pings on a fixed cadence and declares the connection
// dead when no pong has arrived within interval*missed, even though the
// transport itself never reported closure. This catches half-open
// connections.
func (m *Manager) heartbeatLoop(sess Session, done chan struct{}, gen int) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.hbInterval)
	defer ticker.Stop()

	timeout := m.hbInterval * time.Duration(m.hbMissed)

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.closed || gen != m.gen || m.state != StateConnected {
				m.mu.Unlock()
				return
			}
			silent := time.Since(m.lastPong)
			m.mu.Unlock()

			if silent > timeout {
				metrics.HeartbeatTimeouts.Inc()
				logging.Warn().
					Dur("silent", silent).
					Dur("timeout", timeout).
					Msg("no pong within liveness window, forcing disconnect")
				m.handleDisconnect(gen, ErrHeartbeatTimeout)
				return
			}

			ping, err := events.Ping().Encode()
			if err != nil {
				continue
			}
			if err := sess.Write(ping); err != nil {
				m.handleDisconnect(gen, err)
				return
			}
		}
	}
}
