// MeetSync - Meeting Scheduling with Real-Time Updates
// Copyright 2026 Akidima
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Akidima/meetsync

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"jitter at 1", func(c *Config) { c.Reconnect.Jitter = 1.0 }},
		{"negative jitter", func(c *Config) { c.Reconnect.Jitter = -0.1 }},
		{"multiplier at 1", func(c *Config) { c.Reconnect.Multiplier = 1.0 }},
		{"max retries zero", func(c *Config) { c.Reconnect.MaxRetries = 0 }},
		{"max delay below initial", func(c *Config) {
			c.Reconnect.InitialDelay = time.Minute
			c.Reconnect.MaxDelay = time.Second
		}},
		{"heartbeat missed below 2", func(c *Config) { c.Realtime.HeartbeatMissed = 1 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"no cors origins", func(c *Config) { c.Security.CORSOrigins = nil }},
		{"zero inbound rate", func(c *Config) { c.Realtime.InboundRate = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestHeartbeatTimeout(t *testing.T) {
	rc := RealtimeConfig{HeartbeatInterval: 30 * time.Second, HeartbeatMissed: 2}
	if got := rc.HeartbeatTimeout(); got != time.Minute {
		t.Errorf("HeartbeatTimeout() = %v, want 1m", got)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"MEETSYNC_SERVER_PORT", "server.port"},
		{"MEETSYNC_SERVER_SHUTDOWN_TIMEOUT", "server.shutdown_timeout"},
		{"MEETSYNC_REALTIME_HEARTBEAT_INTERVAL", "realtime.heartbeat_interval"},
		{"MEETSYNC_RECONNECT_MAX_RETRIES", "reconnect.max_retries"},
		{"MEETSYNC_SECURITY_CORS_ORIGINS", "security.cors_origins"},
		{"MEETSYNC_LOGGING_LEVEL", "logging.level"},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.input); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
realtime:
  heartbeat_interval: 10s
reconnect:
  max_retries: 7
logging:
  level: debug
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Realtime.HeartbeatInterval != 10*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 10s", cfg.Realtime.HeartbeatInterval)
	}
	if cfg.Reconnect.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7", cfg.Reconnect.MaxRetries)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Unset values keep defaults.
	if cfg.Realtime.SendBuffer != 256 {
		t.Errorf("SendBuffer = %d, want default 256", cfg.Realtime.SendBuffer)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("MEETSYNC_SERVER_PORT", "9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("env override lost: Server.Port = %d, want 9999", cfg.Server.Port)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("reconnect:\n  jitter: 2.5\n"), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	if _, err := Load(); err == nil {
		t.Error("expected validation error for jitter 2.5")
	}
}
