// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists config file locations in priority order. The
// first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/rinkrelay/config.yaml",
	"/etc/rinkrelay/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "RINKRELAY_CONFIG"

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are the config paths parsed as comma-separated slices
// when supplied through environment variables.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated env strings to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables are dropped so stray environment does not leak into
// the configuration.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - HEARTBEAT_INTERVAL -> session.heartbeat_interval
//   - NATS_URL -> nats.url
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// Arena
		"arena_layouts_dir": "arena.layouts_dir",
		"arena_default":     "arena.default_id",

		// Session
		"session_min_cameras": "session.min_cameras",
		"session_max_cameras": "session.max_cameras",
		"tick_interval":       "session.tick_interval",
		"heartbeat_interval":  "session.heartbeat_interval",
		"heartbeat_misses":    "session.heartbeat_misses",
		"disconnect_grace":    "session.disconnect_grace",
		"history_window":      "session.history_window",

		// Sync
		"sync_countdown":     "sync.countdown",
		"sync_max_retries":   "sync.max_retries",
		"sync_offset_target": "sync.offset_target",
		"sync_offset_window": "sync.offset_window",

		// Quality
		"quality_technical_weight":  "quality.technical_weight",
		"quality_positional_weight": "quality.positional_weight",
		"quality_stability_weight":  "quality.stability_weight",
		"quality_content_weight":    "quality.content_weight",
		"quality_ideal_min":         "quality.ideal_subjects_min",
		"quality_ideal_max":         "quality.ideal_subjects_max",
		"quality_decay_per_tick":    "quality.decay_per_tick",

		// Switching
		"hysteresis_margin": "switching.hysteresis_margin",
		"max_secondaries":   "switching.max_secondaries",
		"ema_alpha":         "switching.ema_alpha",

		// Decision log
		"decision_log_path":        "decision_log.path",
		"decision_log_sync":        "decision_log.sync_writes",
		"decision_log_gc_interval": "decision_log.gc_interval",
		"decision_log_gc_ratio":    "decision_log.gc_ratio",

		// NATS
		"nats_enabled":      "nats.enabled",
		"nats_embedded":     "nats.embedded_server",
		"nats_url":          "nats.url",
		"nats_store_dir":    "nats.store_dir",
		"nats_max_memory":   "nats.max_memory",
		"nats_max_store":    "nats.max_store",
		"nats_topic_prefix": "nats.topic_prefix",

		// Security
		"device_token_secret": "security.device_token_secret",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"cors_origins":        "security.cors_origins",

		// Situation classifier
		"situation_url":              "situation.url",
		"situation_timeout":          "situation.timeout",
		"situation_breaker_failures": "situation.breaker_max_failures",
		"situation_breaker_cooldown": "situation.breaker_cooldown",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
