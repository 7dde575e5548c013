// MeetSync - Meeting Scheduling with Real-Time Updates
// Copyright 2026 Akidima
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Akidima/meetsync

package client

import (
	"io"
	"testing"

	"github.com/Akidima/meetsync/internal/events"
	"github.com/Akidima/meetsync/internal/logging"
)

//nolint:gochecknoinits // init ensures quiet logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

func mustEnvelope(t *testing.T, msgType string, payload any) events.Envelope {
	t.Helper()
	env, err := events.New(msgType, payload)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	return env
}

func TestRouterDispatchRegistrationOrder(t *testing.T) {
	r := NewRouter()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		r.Register(events.TypeMeetingUpdate, func(events.Envelope) {
			order = append(order, i)
		})
	}

	r.Dispatch(mustEnvelope(t, events.TypeMeetingUpdate, nil))

	if len(order) != 5 {
		t.Fatalf("ran %d handlers, want 5", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Errorf("handler %d ran at position %d; registration order violated", got, i)
		}
	}
}

func TestRouterDispatchOnlyMatchingType(t *testing.T) {
	r := NewRouter()
	calls := map[string]int{}
	r.Register(events.TypeMeetingUpdate, func(events.Envelope) { calls["meeting"]++ })
	r.Register(events.TypeTaskUpdate, func(events.Envelope) { calls["task"]++ })

	r.Dispatch(mustEnvelope(t, events.TypeMeetingUpdate, nil))

	if calls["meeting"] != 1 {
		t.Errorf("meeting handler ran %d times, want 1", calls["meeting"])
	}
	if calls["task"] != 0 {
		t.Errorf("task handler ran %d times, want 0", calls["task"])
	}
}

func TestRouterUnknownTypeIsDropped(t *testing.T) {
	r := NewRouter()
	r.Register(events.TypeMeetingUpdate, func(events.Envelope) {
		t.Error("handler must not run for unknown type")
	})

	// Must not panic and must invoke nothing.
	r.Dispatch(mustEnvelope(t, "mystery:event", nil))
}

func TestRouterHandlerPanicIsolated(t *testing.T) {
	r := NewRouter()
	var after int
	r.Register(events.TypeTaskUpdate, func(events.Envelope) { panic("boom") })
	r.Register(events.TypeTaskUpdate, func(events.Envelope) { after++ })

	env := mustEnvelope(t, events.TypeTaskUpdate, nil)
	r.Dispatch(env)
	if after != 1 {
		t.Errorf("handler after panicking one ran %d times, want 1", after)
	}

	// Future dispatches keep working.
	r.Dispatch(env)
	if after != 2 {
		t.Errorf("dispatch after panic ran follow-up handler %d times total, want 2", after)
	}
}

type fakeCache struct {
	keys []string
}

func (f *fakeCache) Invalidate(key string) { f.keys = append(f.keys, key) }

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(msg string) { f.messages = append(f.messages, msg) }

func TestRegisterInvalidationHandlers(t *testing.T) {
	r := NewRouter()
	cache := &fakeCache{}
	notifier := &fakeNotifier{}
	RegisterInvalidationHandlers(r, cache, notifier)

	tests := []struct {
		msgType   string
		wantKey   string
		wantToast bool
	}{
		{events.TypeMeetingCreate, "meetings", true},
		{events.TypeMeetingDelete, "meetings", true},
		{events.TypeTaskUpdate, "tasks", true},
		{events.TypeNotesUpdate, "notes", false},
		{events.TypeCalendarSync, "calendar", true},
		{events.TypeCalendarDelete, "calendar", false},
		{events.TypeRegistrationAttempt, "registrations", false},
		{events.TypeSystemStatus, "status", false},
		{events.TypeVoiceCommand, "voice", false},
	}

	for _, tt := range tests {
		t.Run(tt.msgType, func(t *testing.T) {
			cache.keys = nil
			notifier.messages = nil

			r.Dispatch(mustEnvelope(t, tt.msgType, nil))

			if len(cache.keys) != 1 || cache.keys[0] != tt.wantKey {
				t.Errorf("invalidated %v, want [%q]", cache.keys, tt.wantKey)
			}
			if tt.wantToast && len(notifier.messages) != 1 {
				t.Errorf("got %d notifications, want 1", len(notifier.messages))
			}
			if !tt.wantToast && len(notifier.messages) != 0 {
				t.Errorf("got unexpected notifications %v", notifier.messages)
			}
		})
	}
}

func TestRegisterInvalidationHandlersNilNotifier(t *testing.T) {
	r := NewRouter()
	cache := &fakeCache{}
	RegisterInvalidationHandlers(r, cache, nil)

	// Must not panic with a nil notifier.
	r.Dispatch(mustEnvelope(t, events.TypeMeetingCreate, nil))
	if len(cache.keys) != 1 {
		t.Errorf("invalidated %v, want one key", cache.keys)
	}
}
