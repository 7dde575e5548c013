// MeetSync - Meeting Scheduling with Real-Time Updates
// Copyright 2026 Akidima
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Akidima/meetsync

// Package api provides the HTTP surface of the realtime service: the
// WebSocket upgrade endpoint, realtime status and broadcast triggers,
// and health probes.
package api

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/Akidima/meetsync/internal/config"
	"github.com/Akidima/meetsync/internal/events"
	"github.com/Akidima/meetsync/internal/logging"
	"github.com/Akidima/meetsync/internal/realtime"
)

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	hub       *realtime.Hub
	cfg       *config.Config
	startTime time.Time
	validate  *validator.Validate
}

// NewHandler creates a handler bound to the given hub and configuration.
func NewHandler(hub *realtime.Hub, cfg *config.Config) *Handler {
	return &Handler{
		hub:       hub,
		cfg:       cfg,
		startTime: time.Now(),
		validate:  validator.New(),
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins. Browser
// WebSockets always include Origin; a missing header is rejected so the
// allowlist cannot be bypassed.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	if h.cfg == nil {
		return true
	}

	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", origin).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the request and hands the connection to the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil || !h.hub.Accepting() {
		logging.Warn().Msg("WebSocket connection rejected: hub not running")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Realtime service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	conn := realtime.NewConn(h.hub, sock, h.cfg.Realtime)
	h.hub.Register <- conn
	conn.Start()
}

// RealtimeStatus reports the hub's current state.
func (h *Handler) RealtimeStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &APIResponse{
		Status: "success",
		Data: map[string]any{
			"accepting":      h.hub != nil && h.hub.Accepting(),
			"connections":    h.hubCount(),
			"uptime_seconds": time.Since(h.startTime).Seconds(),
		},
		Metadata: Metadata{Timestamp: time.Now()},
	})
}

func (h *Handler) hubCount() int {
	if h.hub == nil {
		return 0
	}
	return h.hub.Count()
}

// BroadcastRequest is the body of a broadcast trigger.
type BroadcastRequest struct {
	Type    string          `json:"type" validate:"required,min=1,max=64"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RealtimeBroadcast publishes one event to every connected client. This
// is how backend producers (CRUD handlers, calendar sync, the voice
// pipeline) reach the hub over HTTP.
func (h *Handler) RealtimeBroadcast(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil || !h.hub.Accepting() {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Realtime service unavailable", nil)
		return
	}

	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "type is required", nil)
		return
	}

	var payload any
	if len(req.Payload) > 0 {
		payload = req.Payload
	}
	if err := h.hub.Publish(req.Type, payload); err != nil {
		respondError(w, http.StatusInternalServerError, "PUBLISH_FAILED", "Failed to publish event", err)
		return
	}

	respondJSON(w, http.StatusAccepted, &APIResponse{
		Status: "success",
		Data: map[string]any{
			"type":        req.Type,
			"connections": h.hub.Count(),
		},
		Metadata: Metadata{Timestamp: time.Now()},
	})
}

// HealthLive handles liveness probe requests. Returns 200 OK if the
// process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &APIResponse{
		Status: "success",
		Data: map[string]any{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: Metadata{Timestamp: time.Now()},
	})
}

// HealthReady handles readiness probe requests. Returns 200 only when
// the hub is accepting connections.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil || !h.hub.Accepting() {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "Realtime hub is not accepting connections", nil)
		return
	}

	respondJSON(w, http.StatusOK, &APIResponse{
		Status: "success",
		Data: map[string]any{
			"ready":       true,
			"connections": h.hub.Count(),
		},
		Metadata: Metadata{Timestamp: time.Now()},
	})
}

// knownEventTypes lists the domain event types producers may broadcast.
// Kept for the status endpoint; unknown types are still accepted since
// clients drop what they do not handle.
var knownEventTypes = []string{
	events.TypeMeetingCreate,
	events.TypeMeetingUpdate,
	events.TypeMeetingDelete,
	events.TypeTaskUpdate,
	events.TypeNotesUpdate,
	events.TypeVoiceCommand,
	events.TypeCalendarSync,
	events.TypeCalendarUpdate,
	events.TypeCalendarDelete,
	events.TypeRegistrationAttempt,
	events.TypeSystemStatus,
}

// EventTypes lists the event types this service broadcasts.
func (h *Handler) EventTypes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &APIResponse{
		Status:   "success",
		Data:     map[string]any{"types": knownEventTypes},
		Metadata: Metadata{Timestamp: time.Now()},
	})
}
