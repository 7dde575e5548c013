// MeetSync - Meeting Scheduling with Real-Time Updates
// Copyright 2026 Akidima
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Akidima/meetsync

// Package config provides layered configuration for the MeetSync realtime
// service: built-in defaults, an optional YAML file, and environment
// variable overrides, loaded through Koanf v2 and validated with
// go-playground/validator.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the realtime service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Realtime  RealtimeConfig  `koanf:"realtime"`
	Reconnect ReconnectConfig `koanf:"reconnect"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=1s"`
}

// RealtimeConfig holds server-side realtime channel settings.
type RealtimeConfig struct {
	// HeartbeatInterval is how often a connected peer sends a ping.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval" validate:"min=1s"`

	// HeartbeatMissed is the number of missed intervals after which a
	// silent peer is considered dead.
	HeartbeatMissed int `koanf:"heartbeat_missed" validate:"min=1"`

	// WriteWait bounds a single outbound write.
	WriteWait time.Duration `koanf:"write_wait" validate:"min=1s"`

	// MaxMessageSize caps inbound message size in bytes.
	MaxMessageSize int64 `koanf:"max_message_size" validate:"min=512"`

	// SendBuffer is the per-connection outbound queue length. A client
	// whose queue fills is evicted rather than allowed to stall the hub.
	SendBuffer int `koanf:"send_buffer" validate:"min=1"`

	// InboundRate and InboundBurst bound messages accepted per
	// connection per second; excess messages are dropped.
	InboundRate  float64 `koanf:"inbound_rate" validate:"gt=0"`
	InboundBurst int     `koanf:"inbound_burst" validate:"min=1"`
}

// HeartbeatTimeout is the silence window after which a peer is declared
// dead: interval times the missed threshold.
func (c RealtimeConfig) HeartbeatTimeout() time.Duration {
	return c.HeartbeatInterval * time.Duration(c.HeartbeatMissed)
}

// ReconnectConfig holds the client reconnect backoff parameters.
// These are fixed at startup; they are never mutated at runtime.
type ReconnectConfig struct {
	InitialDelay time.Duration `koanf:"initial_delay" validate:"min=1ms"`
	MaxDelay     time.Duration `koanf:"max_delay" validate:"min=1ms"`
	Multiplier   float64       `koanf:"multiplier" validate:"gt=1"`
	Jitter       float64       `koanf:"jitter" validate:"gte=0,lt=1"`
	MaxRetries   int           `koanf:"max_retries" validate:"min=1"`
}

// SecurityConfig holds the security settings relevant to the realtime
// surface. Authentication itself is handled upstream of this service.
type SecurityConfig struct {
	// CORSOrigins lists origins accepted for HTTP and WebSocket upgrade
	// requests. "*" accepts any origin.
	CORSOrigins []string `koanf:"cors_origins" validate:"min=1"`

	// RateLimitReqs and RateLimitWindow bound API requests per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"min=1s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks struct tags plus cross-field constraints that tags
// cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if c.Reconnect.MaxDelay < c.Reconnect.InitialDelay {
		return fmt.Errorf("reconnect.max_delay %v is below reconnect.initial_delay %v",
			c.Reconnect.MaxDelay, c.Reconnect.InitialDelay)
	}

	// The heartbeat timeout must leave room for at least one full
	// interval of slack, or every connection flaps.
	if c.Realtime.HeartbeatMissed < 2 {
		return fmt.Errorf("realtime.heartbeat_missed must be at least 2, got %d",
			c.Realtime.HeartbeatMissed)
	}

	return nil
}
