// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package models

// Coordinates locates a camera position inside the arena, in meters from
// the south-west corner at ice level.
type Coordinates struct {
	X float64 `json:"x" koanf:"x"`
	Y float64 `json:"y" koanf:"y"`
	Z float64 `json:"z" koanf:"z"`
}

// PositionSpec describes one named camera placement within an arena layout.
//
// BasePriority orders slots for assignment: 1 is the most important slot and
// is filled first. BaseWeight is the position component of the processing
// weight and is constant for the lifetime of a session.
type PositionSpec struct {
	Name         string      `json:"name" koanf:"name" validate:"required"`
	Coordinates  Coordinates `json:"coordinates" koanf:"coordinates"`
	AngleDegrees float64     `json:"angle_degrees" koanf:"angle_degrees" validate:"gte=0,lt=360"`
	BasePriority int         `json:"base_priority" koanf:"base_priority" validate:"gte=1"`
	BaseWeight   float64     `json:"base_weight" koanf:"base_weight" validate:"gt=0,lte=1"`

	// WideCoverage marks positions that see most of the playing surface
	// (e.g. elevated center ice). Situation modifiers boost these during
	// high-action play and penalize specialized positions.
	WideCoverage bool `json:"wide_coverage" koanf:"wide_coverage"`
}

// ArenaDimensions is the playing surface size in meters.
type ArenaDimensions struct {
	Length float64 `json:"length" koanf:"length" validate:"gt=0"`
	Width  float64 `json:"width" koanf:"width" validate:"gt=0"`
}

// ArenaConfiguration is the immutable description of a venue: its playing
// surface and the ordered list of camera positions. Loaded once per session
// and never mutated afterwards, so it is safe for concurrent reads.
type ArenaConfiguration struct {
	ID         string          `json:"id" koanf:"id" validate:"required"`
	Name       string          `json:"name" koanf:"name"`
	Dimensions ArenaDimensions `json:"dimensions" koanf:"dimensions"`
	Positions  []PositionSpec  `json:"positions" koanf:"positions" validate:"min=2,dive"`
}

// Center returns the midpoint of the playing surface at ice level.
func (a *ArenaConfiguration) Center() Coordinates {
	return Coordinates{X: a.Dimensions.Length / 2, Y: a.Dimensions.Width / 2}
}

// Position returns the PositionSpec with the given name, or false if the layout
// does not declare it.
func (a *ArenaConfiguration) Position(name string) (PositionSpec, bool) {
	for _, p := range a.Positions {
		if p.Name == name {
			return p, true
		}
	}
	return PositionSpec{}, false
}
