// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

// Package config loads and validates the rinkrelay configuration.
//
// Configuration is layered via Koanf v2: built-in defaults, then an
// optional YAML file, then environment variables. Every protocol tunable
// (heartbeat cadence, sync retry budget, tick interval, quality weights,
// hysteresis margin) lives here rather than being hardcoded in the
// packages that consume it.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the rinkrelay server.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Arena       ArenaConfig       `koanf:"arena"`
	Session     SessionConfig     `koanf:"session"`
	Sync        SyncConfig        `koanf:"sync"`
	Quality     QualityConfig     `koanf:"quality"`
	Switching   SwitchingConfig   `koanf:"switching"`
	DecisionLog DecisionLogConfig `koanf:"decision_log"`
	NATS        NATSConfig        `koanf:"nats"`
	Security    SecurityConfig    `koanf:"security"`
	Situation   SituationConfig   `koanf:"situation"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// ArenaConfig holds arena layout settings.
type ArenaConfig struct {
	// LayoutsDir is scanned for *.yaml arena layout files at startup.
	// The built-in "standard" layout is always registered.
	LayoutsDir string `koanf:"layouts_dir"`

	// DefaultID is the arena used when a session request names none.
	DefaultID string `koanf:"default_id"`
}

// SessionConfig holds session lifecycle and liveness settings.
type SessionConfig struct {
	// MinCameras and MaxCameras bound the valid camera count.
	MinCameras int `koanf:"min_cameras"`
	MaxCameras int `koanf:"max_cameras"`

	// TickInterval is the switching decision cadence.
	TickInterval time.Duration `koanf:"tick_interval"`

	// HeartbeatInterval is the expected camera liveness cadence.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`

	// HeartbeatMisses is how many consecutive missed heartbeats demote a
	// camera to degraded.
	HeartbeatMisses int `koanf:"heartbeat_misses"`

	// DisconnectGrace is how long a camera may stay silent before it is
	// marked disconnected and its slot reserved for reconnection only.
	DisconnectGrace time.Duration `koanf:"disconnect_grace"`

	// HistoryWindow is the rolling quality-report window per camera.
	HistoryWindow int `koanf:"history_window"`
}

// SyncConfig holds clock synchronization settings.
type SyncConfig struct {
	// Countdown is the shared delay before recording starts, long enough
	// for every camera to receive the start signal.
	Countdown time.Duration `koanf:"countdown"`

	// MaxRetries bounds sync re-requests before degraded-accuracy mode.
	MaxRetries int `koanf:"max_retries"`

	// OffsetTarget is the maximum acceptable offset error.
	OffsetTarget time.Duration `koanf:"offset_target"`

	// OffsetWindow is the rolling-average window for offset smoothing.
	OffsetWindow int `koanf:"offset_window"`
}

// QualityConfig holds quality assessment settings. The four dimension
// weights must sum to 1.
type QualityConfig struct {
	TechnicalWeight  float64 `koanf:"technical_weight"`
	PositionalWeight float64 `koanf:"positional_weight"`
	StabilityWeight  float64 `koanf:"stability_weight"`
	ContentWeight    float64 `koanf:"content_weight"`

	// IdealSubjectsMin/Max define the subject-count range that earns full
	// content-relevance credit.
	IdealSubjectsMin int `koanf:"ideal_subjects_min"`
	IdealSubjectsMax int `koanf:"ideal_subjects_max"`

	// DecayPerTick is the multiplicative penalty applied to a carried-over
	// report when chunk metadata is missing or malformed.
	DecayPerTick float64 `koanf:"decay_per_tick"`
}

// SwitchingConfig holds switching engine settings.
type SwitchingConfig struct {
	// HysteresisMargin is the minimum score advantage a challenger needs
	// to displace the incumbent primary.
	HysteresisMargin float64 `koanf:"hysteresis_margin"`

	// MaxSecondaries caps the ranked secondary list.
	MaxSecondaries int `koanf:"max_secondaries"`

	// EMAAlpha is the smoothing factor for the temporal weight component.
	EMAAlpha float64 `koanf:"ema_alpha"`
}

// DecisionLogConfig holds durable decision log settings.
type DecisionLogConfig struct {
	Path       string        `koanf:"path"`
	SyncWrites bool          `koanf:"sync_writes"`
	GCInterval time.Duration `koanf:"gc_interval"`
	GCRatio    float64       `koanf:"gc_ratio"`
}

// NATSConfig holds decision stream settings.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	URL            string `koanf:"url"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`
	TopicPrefix    string `koanf:"topic_prefix"`
}

// SecurityConfig holds device authentication settings.
type SecurityConfig struct {
	// DeviceTokenSecret is the HMAC secret for device JWTs. Empty
	// disables auth (development only).
	DeviceTokenSecret string `koanf:"device_token_secret"`

	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// SituationConfig holds the external game-situation classifier settings.
type SituationConfig struct {
	// URL of the classifier service. Empty falls back to the static
	// "normal, center ice" estimate.
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`

	// BreakerMaxFailures trips the circuit breaker after this many
	// consecutive failures.
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerCooldown    time.Duration `koanf:"breaker_cooldown"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// DefaultConfig returns a copy of the built-in defaults, mainly for
// tests that need a valid config without loading files.
func DefaultConfig() Config {
	return *defaultConfig()
}

// defaultConfig returns the built-in defaults. These match the protocol
// constants in the coordination design: 5s heartbeats, two misses to
// degrade, 30s disconnect grace, 3s start countdown, 200ms tick.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    3478,
			Timeout: 30 * time.Second,
		},
		Arena: ArenaConfig{
			LayoutsDir: "/data/arenas",
			DefaultID:  "standard",
		},
		Session: SessionConfig{
			MinCameras:        2,
			MaxCameras:        6,
			TickInterval:      200 * time.Millisecond,
			HeartbeatInterval: 5 * time.Second,
			HeartbeatMisses:   2,
			DisconnectGrace:   30 * time.Second,
			HistoryWindow:     30,
		},
		Sync: SyncConfig{
			Countdown:    3 * time.Second,
			MaxRetries:   3,
			OffsetTarget: 100 * time.Millisecond,
			OffsetWindow: 8,
		},
		Quality: QualityConfig{
			TechnicalWeight:  0.4,
			PositionalWeight: 0.3,
			StabilityWeight:  0.2,
			ContentWeight:    0.1,
			IdealSubjectsMin: 4,
			IdealSubjectsMax: 12,
			DecayPerTick:     0.9,
		},
		Switching: SwitchingConfig{
			HysteresisMargin: 0.1,
			MaxSecondaries:   2,
			EMAAlpha:         0.3,
		},
		DecisionLog: DecisionLogConfig{
			Path:       "/data/decisions",
			SyncWrites: true,
			GCInterval: 10 * time.Minute,
			GCRatio:    0.5,
		},
		NATS: NATSConfig{
			Enabled:        true,
			EmbeddedServer: true,
			URL:            "nats://127.0.0.1:4222",
			StoreDir:       "/data/nats/jetstream",
			MaxMemory:      1 << 30,  // 1GB
			MaxStore:       10 << 30, // 10GB
			TopicPrefix:    "rinkrelay",
		},
		Security: SecurityConfig{
			DeviceTokenSecret: "",
			RateLimitReqs:     600,
			RateLimitWindow:   time.Minute,
			CORSOrigins:       []string{"*"},
		},
		Situation: SituationConfig{
			URL:                "",
			Timeout:            150 * time.Millisecond,
			BreakerMaxFailures: 5,
			BreakerCooldown:    10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks cross-field constraints that koanf cannot express.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Session.MinCameras < 2 {
		return fmt.Errorf("session.min_cameras must be at least 2, got %d", c.Session.MinCameras)
	}
	if c.Session.MaxCameras < c.Session.MinCameras {
		return fmt.Errorf("session.max_cameras %d below min_cameras %d",
			c.Session.MaxCameras, c.Session.MinCameras)
	}
	if c.Session.TickInterval <= 0 {
		return fmt.Errorf("session.tick_interval must be positive")
	}
	if c.Session.HeartbeatInterval <= 0 {
		return fmt.Errorf("session.heartbeat_interval must be positive")
	}
	if c.Session.DisconnectGrace < c.Session.HeartbeatInterval {
		return fmt.Errorf("session.disconnect_grace %v shorter than heartbeat interval %v",
			c.Session.DisconnectGrace, c.Session.HeartbeatInterval)
	}
	if c.Session.HistoryWindow <= 0 {
		return fmt.Errorf("session.history_window must be positive")
	}
	if c.Sync.MaxRetries < 1 {
		return fmt.Errorf("sync.max_retries must be at least 1")
	}

	sum := c.Quality.TechnicalWeight + c.Quality.PositionalWeight +
		c.Quality.StabilityWeight + c.Quality.ContentWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("quality dimension weights must sum to 1, got %.3f", sum)
	}

	if c.Switching.HysteresisMargin < 0 || c.Switching.HysteresisMargin >= 1 {
		return fmt.Errorf("switching.hysteresis_margin %.2f out of [0,1)", c.Switching.HysteresisMargin)
	}
	if c.Switching.EMAAlpha <= 0 || c.Switching.EMAAlpha > 1 {
		return fmt.Errorf("switching.ema_alpha %.2f out of (0,1]", c.Switching.EMAAlpha)
	}
	if c.Switching.MaxSecondaries < 0 {
		return fmt.Errorf("switching.max_secondaries must not be negative")
	}

	if c.DecisionLog.Path == "" {
		return fmt.Errorf("decision_log.path must be set")
	}
	return nil
}
