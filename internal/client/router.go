// MeetSync - Meeting Scheduling with Real-Time Updates
// Copyright 2026 Akidima
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Akidima/meetsync

package client

import (
	"sync"

	"github.com/Akidima/meetsync/internal/events"
	"github.com/Akidima/meetsync/internal/logging"
	"github.com/Akidima/meetsync/internal/metrics"
)

// Handler consumes one decoded envelope.
type Handler func(events.Envelope)

// Router dispatches decoded envelopes to handlers registered per message
// type. Handlers for one type run in registration order; a panicking
// handler is recovered and logged so the remaining handlers and future
// dispatches keep running. Unknown types are logged and dropped.
type Router struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		handlers: make(map[string][]Handler),
	}
}

// Register appends a handler for the given message type.
func (r *Router) Register(msgType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[msgType] = append(r.handlers[msgType], h)
}

// Dispatch routes one envelope to the handlers for its type.
func (r *Router) Dispatch(env events.Envelope) {
	r.mu.RLock()
	handlers := r.handlers[env.Type]
	r.mu.RUnlock()

	if len(handlers) == 0 {
		logging.Debug().Str("type", env.Type).Msg("no handlers for message type, dropping")
		return
	}

	for _, h := range handlers {
		r.invoke(env, h)
	}
}

// invoke runs one handler, isolating panics.
func (r *Router) invoke(env events.Envelope, h Handler) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.HandlerPanics.Inc()
			logging.Error().
				Str("type", env.Type).
				Interface("panic", rec).
				Msg("message handler panicked")
		}
	}()
	h(env)
}

// CacheInvalidator invalidates a locally cached domain entity.
type CacheInvalidator interface {
	Invalidate(key string)
}

// Notifier surfaces a user-facing notification.
type Notifier interface {
	Notify(message string)
}

// invalidationRule maps one message type to the cache key it touches and
// an optional user-facing description.
type invalidationRule struct {
	key   string
	toast string
}

// invalidationRules is the stock dispatch table: each domain message
// type invalidates the matching cached entity, some with a toast.
var invalidationRules = map[string]invalidationRule{
	events.TypeMeetingCreate:       {key: "meetings", toast: "A meeting was created"},
	events.TypeMeetingUpdate:       {key: "meetings", toast: "A meeting was updated"},
	events.TypeMeetingDelete:       {key: "meetings", toast: "A meeting was deleted"},
	events.TypeTaskUpdate:          {key: "tasks", toast: "Tasks were updated"},
	events.TypeNotesUpdate:         {key: "notes", toast: ""},
	events.TypeVoiceCommand:        {key: "voice", toast: ""},
	events.TypeCalendarSync:        {key: "calendar", toast: "Calendar synced"},
	events.TypeCalendarUpdate:      {key: "calendar", toast: ""},
	events.TypeCalendarDelete:      {key: "calendar", toast: ""},
	events.TypeRegistrationAttempt: {key: "registrations", toast: ""},
	events.TypeSystemStatus:        {key: "status", toast: ""},
}

// RegisterInvalidationHandlers wires the stock dispatch table into the
// router: every known domain type invalidates its cache key, and types
// with a description also raise a notification. The notifier may be nil.
func RegisterInvalidationHandlers(r *Router, cache CacheInvalidator, notifier Notifier) {
	for msgType, rule := range invalidationRules {
		rule := rule
		r.Register(msgType, func(events.Envelope) {
			cache.Invalidate(rule.key)
		})
		if rule.toast != "" && notifier != nil {
			toast := rule.toast
			r.Register(msgType, func(events.Envelope) {
				notifier.Notify(toast)
			})
		}
	}
}
