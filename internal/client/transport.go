// MeetSync - Meeting Scheduling with Real-Time Updates
// Copyright 2026 Akidima
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Akidima/meetsync

// Package client implements the client side of the realtime update
// channel: the connection manager state machine with backoff-driven
// reconnection, heartbeat liveness checking, and type-based message
// dispatch.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSessionClosed is returned by session reads and writes after the
// session has been closed.
var ErrSessionClosed = errors.New("session closed")

// Transport dials duplex message sessions. Two implementations exist:
// the WebSocket transport used in production and an in-memory pair used
// by tests. The connection manager takes a Transport by injection and
// never inspects which one it got.
type Transport interface {
	Dial(ctx context.Context) (Session, error)
}

// Session is one established duplex message stream.
type Session interface {
	// Read blocks until the next message or an error.
	Read() ([]byte, error)

	// Write sends one message. Safe for concurrent use.
	Write(data []byte) error

	// Close terminates the session; pending reads and writes fail.
	Close() error
}

// WSTransport dials the server's WebSocket endpoint.
type WSTransport struct {
	url              string
	handshakeTimeout time.Duration
}

// NewWSTransport builds a transport for the server at baseURL. The
// http/https scheme is converted to ws/wss, mirroring the origin's
// encryption scheme, and the realtime path is appended.
func NewWSTransport(baseURL string) (*WSTransport, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	scheme := "ws"
	switch parsed.Scheme {
	case "http", "ws":
	case "https", "wss":
		scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	return &WSTransport{
		url:              fmt.Sprintf("%s://%s/ws", scheme, parsed.Host),
		handshakeTimeout: 10 * time.Second,
	}, nil
}

// URL returns the resolved WebSocket URL.
func (t *WSTransport) URL() string {
	return t.url
}

// Dial establishes a WebSocket connection.
func (t *WSTransport) Dial(ctx context.Context) (Session, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout:  t.handshakeTimeout,
		EnableCompression: true,
	}

	conn, resp, err := dialer.DialContext(ctx, t.url, nil)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	return &wsSession{conn: conn}, nil
}

// wsSession adapts a gorilla connection to the Session interface.
type wsSession struct {
	conn *websocket.Conn

	// writeMu serializes writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

func (s *wsSession) Read() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *wsSession) Write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSession) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	s.writeMu.Unlock()
	return s.conn.Close()
}
