// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package arena

import (
	"fmt"
	"sort"

	"github.com/rinklab/rinkrelay/internal/models"
)

// Assigner maps joining cameras onto one session's position slots.
//
// Slots fill in basePriority order (1 first); ties break by lexically
// smallest position name so assignment is deterministic. Assign is
// idempotent per camera: a camera that already holds a slot gets the same
// slot back. Not safe for concurrent use; the session coordinator is the
// sole caller.
type Assigner struct {
	arena *models.ArenaConfiguration

	// ordered is the priority-sorted slot list, fixed at construction.
	ordered []models.PositionSpec

	// byCamera holds current assignments; byName marks occupied slots.
	byCamera map[string]models.PositionSpec
	byName   map[string]string // position name -> camera id

	maxCameras int
}

// NewAssigner creates an assigner for the given arena. maxCameras caps
// how many slots this session may occupy.
func NewAssigner(arenaCfg *models.ArenaConfiguration, maxCameras int) *Assigner {
	ordered := make([]models.PositionSpec, len(arenaCfg.Positions))
	copy(ordered, arenaCfg.Positions)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].BasePriority != ordered[j].BasePriority {
			return ordered[i].BasePriority < ordered[j].BasePriority
		}
		return ordered[i].Name < ordered[j].Name
	})

	if maxCameras > len(ordered) {
		maxCameras = len(ordered)
	}

	return &Assigner{
		arena:      arenaCfg,
		ordered:    ordered,
		byCamera:   make(map[string]models.PositionSpec),
		byName:     make(map[string]string),
		maxCameras: maxCameras,
	}
}

// AssignPositions maps the joining cameras to the top-N slots in priority
// order, first-come first. Fails with ErrInvalidCameraCount outside
// [minCameras, maxCameras]. Used for batch assignment at session start;
// individual late joins go through Assign.
func AssignPositions(arenaCfg *models.ArenaConfiguration, cameraIDs []string, minCameras, maxCameras int) (map[string]models.PositionSpec, error) {
	n := len(cameraIDs)
	if n < minCameras || n > maxCameras {
		return nil, fmt.Errorf("%w: got %d", models.ErrInvalidCameraCount, n)
	}

	a := NewAssigner(arenaCfg, maxCameras)
	out := make(map[string]models.PositionSpec, n)
	for _, id := range cameraIDs {
		pos, err := a.Assign(id)
		if err != nil {
			return nil, err
		}
		out[id] = pos
	}
	return out, nil
}

// Assign gives cameraID the highest-priority free slot, or returns its
// existing slot if it already holds one.
func (a *Assigner) Assign(cameraID string) (models.PositionSpec, error) {
	if pos, ok := a.byCamera[cameraID]; ok {
		return pos, nil
	}

	if len(a.byCamera) >= a.maxCameras {
		return models.PositionSpec{}, models.ErrSessionFull
	}

	for _, pos := range a.ordered {
		if _, taken := a.byName[pos.Name]; taken {
			continue
		}
		a.byCamera[cameraID] = pos
		a.byName[pos.Name] = cameraID
		return pos, nil
	}
	return models.PositionSpec{}, models.ErrPositionUnavailable
}

// Reattach restores a camera's previous slot after reconnection. The slot
// stays reserved for the original device while disconnected, so only the
// same camera id may reclaim it.
func (a *Assigner) Reattach(cameraID string) (models.PositionSpec, error) {
	pos, ok := a.byCamera[cameraID]
	if !ok {
		return models.PositionSpec{}, models.ErrCameraNotFound
	}
	return pos, nil
}

// Assigned returns the number of occupied slots.
func (a *Assigner) Assigned() int {
	return len(a.byCamera)
}

// Position returns the slot held by cameraID.
func (a *Assigner) Position(cameraID string) (models.PositionSpec, bool) {
	pos, ok := a.byCamera[cameraID]
	return pos, ok
}
