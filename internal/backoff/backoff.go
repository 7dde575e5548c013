// MeetSync - Meeting Scheduling with Real-Time Updates
// Copyright 2026 Akidima
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Akidima/meetsync

// Package backoff computes reconnect delays: geometric growth from an
// initial delay, clamped at a maximum, with a configurable jitter band to
// avoid synchronized retry storms across clients.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Policy holds retry delay parameters. Policies are immutable at runtime;
// they are built from configuration once and shared.
type Policy struct {
	// Initial is the delay before the first retry (attempt 0).
	Initial time.Duration

	// Max clamps the computed delay.
	Max time.Duration

	// Multiplier is the geometric growth factor per attempt (> 1).
	Multiplier float64

	// Jitter is the fractional randomization band, in [0, 1).
	// A jitter of 0.1 spreads each delay across ±10%.
	Jitter float64

	// MaxRetries bounds the number of reconnect attempts before the
	// connection manager gives up and enters its terminal state.
	MaxRetries int
}

// DefaultPolicy returns the stock reconnect policy: 1s initial, 1.5x
// growth, 30s cap, 10% jitter, 5 attempts.
func DefaultPolicy() Policy {
	return Policy{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 1.5,
		Jitter:     0.1,
		MaxRetries: 5,
	}
}

// Delay returns the delay before retry number attempt (0-based).
// The result always lies within the jitter band of the clamped geometric
// value: [base*(1-Jitter), min(Max, base*(1+Jitter))].
func (p Policy) Delay(attempt int) time.Duration {
	return p.delay(attempt, rand.Float64())
}

// delay computes the jittered delay from a uniform sample in [0, 1).
// Split out so tests can exercise the jitter band deterministically.
func (p Policy) delay(attempt int, sample float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	base := p.base(attempt)

	// Spread across [base*(1-j), base*(1+j)], then re-clamp: the upper
	// edge of the band must never exceed Max.
	jittered := base * (1 + p.Jitter*(2*sample-1))
	if jittered > float64(p.Max) {
		jittered = float64(p.Max)
	}
	if jittered < 0 {
		jittered = 0
	}

	return time.Duration(jittered)
}

// base returns the unjittered geometric delay for attempt, clamped at Max.
func (p Policy) base(attempt int) float64 {
	base := float64(p.Initial) * math.Pow(p.Multiplier, float64(attempt))
	if math.IsInf(base, 1) || base > float64(p.Max) {
		return float64(p.Max)
	}
	return base
}

// Exhausted reports whether the retry budget is spent after the given
// number of attempts.
func (p Policy) Exhausted(attempts int) bool {
	return attempts >= p.MaxRetries
}
