// MeetSync - Meeting Scheduling with Real-Time Updates
// Copyright 2026 Akidima
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Akidima/meetsync

// Package events defines the wire envelope exchanged over the realtime
// channel and the namespaced message types produced by the rest of the
// application (CRUD handlers, calendar sync, voice pipeline).
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Message types carried over the realtime channel.
//
// Types are namespaced as "<entity>:<action>". The ping/pong pair is
// reserved for heartbeat liveness checking and never reaches application
// handlers.
const (
	TypeMeetingCreate = "meeting:create"
	TypeMeetingUpdate = "meeting:update"
	TypeMeetingDelete = "meeting:delete"

	TypeTaskUpdate  = "task:update"
	TypeNotesUpdate = "notes:update"

	TypeCalendarSync   = "calendar:sync"
	TypeCalendarUpdate = "calendar:update"
	TypeCalendarDelete = "calendar:delete"

	TypeVoiceCommand        = "voice:command"
	TypeRegistrationAttempt = "registration:attempt"
	TypeSystemStatus        = "system:status"

	TypePing = "ping"
	TypePong = "pong"
)

// ErrMissingType indicates an inbound message without a type field.
var ErrMissingType = errors.New("envelope is missing type")

// Envelope is the message unit exchanged over the connection.
// Immutable once constructed; the payload is kept as raw JSON so the
// envelope can be decoded and re-encoded without knowing payload schemas.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// New constructs an envelope of the given type, serializing payload once
// and stamping the current time. A nil payload produces an envelope with
// no payload field (the ping/pong case).
func New(msgType string, payload any) (Envelope, error) {
	if msgType == "" {
		return Envelope{}, ErrMissingType
	}

	env := Envelope{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
	}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal payload: %w", err)
		}
		env.Payload = raw
	}

	return env, nil
}

// Decode parses raw bytes into an envelope. Malformed JSON or a missing
// type field is an error; callers log and drop such messages without
// closing the connection.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}
	return env, nil
}

// Encode serializes the envelope for transmission.
func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// IsHeartbeat reports whether the type is one of the reserved
// ping/pong heartbeat types.
func IsHeartbeat(msgType string) bool {
	return msgType == TypePing || msgType == TypePong
}

// Ping returns a ping envelope stamped with the current time.
func Ping() Envelope {
	return Envelope{Type: TypePing, Timestamp: time.Now().UTC()}
}

// Pong returns a pong envelope stamped with the current time.
func Pong() Envelope {
	return Envelope{Type: TypePong, Timestamp: time.Now().UTC()}
}
