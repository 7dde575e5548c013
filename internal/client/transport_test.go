// MeetSync - Meeting Scheduling with Real-Time Updates
// Copyright 2026 Akidima
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Akidima/meetsync

package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewWSTransportURLMapping(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws", false},
		{"https://meetsync.example", "wss://meetsync.example/ws", false},
		{"ws://localhost:8080", "ws://localhost:8080/ws", false},
		{"wss://meetsync.example:9443", "wss://meetsync.example:9443/ws", false},
		{"ftp://meetsync.example", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			tr, err := NewWSTransport(tt.base)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewWSTransport(%q) succeeded, want error", tt.base)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewWSTransport(%q): %v", tt.base, err)
			}
			if tr.URL() != tt.want {
				t.Errorf("URL() = %q, want %q", tr.URL(), tt.want)
			}
		})
	}
}

func TestMemorySessionRoundTrip(t *testing.T) {
	tr := NewMemoryTransport()
	sess, err := tr.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	peer := <-tr.Accepted

	if err := sess.Write([]byte("hello")); err != nil {
		t.Fatalf("client write: %v", err)
	}
	got, err := peer.Read()
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("peer read %q, want hello", got)
	}

	if err := peer.Write([]byte("world")); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	got, err = sess.Read()
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	if string(got) != "world" {
		t.Errorf("client read %q, want world", got)
	}
}

func TestMemorySessionCloseFailsBothEnds(t *testing.T) {
	tr := NewMemoryTransport()
	sess, err := tr.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	peer := <-tr.Accepted

	if err := peer.Close(); err != nil {
		t.Fatalf("peer close: %v", err)
	}

	if err := sess.Write([]byte("x")); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("write after peer close = %v, want ErrSessionClosed", err)
	}
	if _, err := sess.Read(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("read after peer close = %v, want ErrSessionClosed", err)
	}
	// Double close is a no-op.
	if err := sess.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestMemoryTransportQueuedDialErrors(t *testing.T) {
	tr := NewMemoryTransport()
	first := errors.New("refused one")
	second := errors.New("refused two")
	tr.QueueDialError(first, second)

	if _, err := tr.Dial(context.Background()); !errors.Is(err, first) {
		t.Errorf("first dial = %v, want %v", err, first)
	}
	if _, err := tr.Dial(context.Background()); !errors.Is(err, second) {
		t.Errorf("second dial = %v, want %v", err, second)
	}
	if _, err := tr.Dial(context.Background()); err != nil {
		t.Errorf("third dial = %v, want success", err)
	}
}

func TestMemoryTransportHonorsContext(t *testing.T) {
	tr := NewMemoryTransport()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tr.Dial(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("dial with canceled context = %v, want context.Canceled", err)
	}
}

func TestMemorySessionReadUnblocksOnClose(t *testing.T) {
	tr := NewMemoryTransport()
	sess, err := tr.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := sess.Read()
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	_ = sess.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrSessionClosed) {
			t.Errorf("read after close = %v, want ErrSessionClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("read did not unblock after close")
	}
}
