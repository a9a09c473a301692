// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package arena

import "github.com/rinklab/rinkrelay/internal/models"

// StandardLayoutID is the built-in hockey arena layout.
const StandardLayoutID = "standard"

// standardLayout returns the built-in layout for a regulation hockey rink.
//
// Canonical priority ordering is center-ice-priority: the elevated center
// position is slot 1, the two corner diagonals follow, then the goal
// lines, then the bench side. Source documents disagreed between
// center-ice-first and goal-line-first orderings; center-ice-first is the
// documented choice because it keeps the widest-coverage camera in play
// from the two-camera case up.
func standardLayout() *models.ArenaConfiguration {
	return &models.ArenaConfiguration{
		ID:   StandardLayoutID,
		Name: "Standard Hockey Rink",
		Dimensions: models.ArenaDimensions{
			Length: 60.0,
			Width:  26.0,
		},
		Positions: []models.PositionSpec{
			{
				Name:         "centerIceElevated",
				Coordinates:  models.Coordinates{X: 30.0, Y: 0.0, Z: 8.0},
				AngleDegrees: 90,
				BasePriority: 1,
				BaseWeight:   1.0,
				WideCoverage: true,
			},
			{
				Name:         "cornerDiagonal1",
				Coordinates:  models.Coordinates{X: 4.0, Y: 2.0, Z: 5.0},
				AngleDegrees: 45,
				BasePriority: 2,
				BaseWeight:   0.85,
				WideCoverage: true,
			},
			{
				Name:         "cornerDiagonal2",
				Coordinates:  models.Coordinates{X: 56.0, Y: 24.0, Z: 5.0},
				AngleDegrees: 225,
				BasePriority: 3,
				BaseWeight:   0.85,
				WideCoverage: true,
			},
			{
				Name:         "goalLineNorth",
				Coordinates:  models.Coordinates{X: 0.0, Y: 13.0, Z: 3.0},
				AngleDegrees: 0,
				BasePriority: 4,
				BaseWeight:   0.7,
			},
			{
				Name:         "goalLineSouth",
				Coordinates:  models.Coordinates{X: 60.0, Y: 13.0, Z: 3.0},
				AngleDegrees: 180,
				BasePriority: 5,
				BaseWeight:   0.7,
			},
			{
				Name:         "benchSideLow",
				Coordinates:  models.Coordinates{X: 30.0, Y: 26.0, Z: 1.5},
				AngleDegrees: 270,
				BasePriority: 6,
				BaseWeight:   0.6,
			},
		},
	}
}
