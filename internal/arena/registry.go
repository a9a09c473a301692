// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package arena

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/rinklab/rinkrelay/internal/logging"
	"github.com/rinklab/rinkrelay/internal/models"
)

// Registry is an immutable set of arena configurations keyed by id.
// Built once at startup; safe for concurrent reads without locking.
type Registry struct {
	arenas map[string]*models.ArenaConfiguration
}

// NewRegistry creates a registry holding only the built-in layouts.
func NewRegistry() *Registry {
	r := &Registry{arenas: make(map[string]*models.ArenaConfiguration)}
	std := standardLayout()
	r.arenas[std.ID] = std
	return r
}

// LoadDir registers every *.yaml / *.yml layout found in dir. A missing
// directory is not an error: deployments without custom layouts run on
// the built-ins.
func LoadDir(dir string) (*Registry, error) {
	r := NewRegistry()
	if dir == "" {
		return r, nil
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		logging.Debug().Str("dir", dir).Msg("arena layouts directory absent, using built-ins")
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read layouts dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		arenaCfg, err := LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load arena layout %s: %w", path, err)
		}
		r.arenas[arenaCfg.ID] = arenaCfg
		logging.Info().
			Str("arena_id", arenaCfg.ID).
			Int("positions", len(arenaCfg.Positions)).
			Str("file", entry.Name()).
			Msg("arena layout registered")
	}
	return r, nil
}

// LoadFile parses and validates a single YAML layout file.
func LoadFile(path string) (*models.ArenaConfiguration, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	cfg := &models.ArenaConfiguration{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal layout: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate is shared across LoadFile calls; validator instances cache
// struct metadata and are safe for concurrent use.
var validate = validator.New()

// Validate checks a layout against structural rules: required fields,
// value ranges, and uniqueness of position names and priorities.
func Validate(cfg *models.ArenaConfiguration) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidArena, err)
	}

	names := make(map[string]struct{}, len(cfg.Positions))
	for _, p := range cfg.Positions {
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("%w: duplicate position name %q", models.ErrInvalidArena, p.Name)
		}
		names[p.Name] = struct{}{}

		if p.Coordinates.X < 0 || p.Coordinates.X > cfg.Dimensions.Length ||
			p.Coordinates.Y < 0 || p.Coordinates.Y > cfg.Dimensions.Width {
			return fmt.Errorf("%w: position %q outside arena bounds", models.ErrInvalidArena, p.Name)
		}
	}
	return nil
}

// Get returns the arena with the given id.
func (r *Registry) Get(id string) (*models.ArenaConfiguration, error) {
	cfg, ok := r.arenas[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrArenaNotFound, id)
	}
	return cfg, nil
}

// IDs returns the registered arena ids, unordered.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.arenas))
	for id := range r.arenas {
		ids = append(ids, id)
	}
	return ids
}
