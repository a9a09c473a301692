// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package clock

import (
	"time"

	"github.com/rinklab/rinkrelay/internal/config"
	"github.com/rinklab/rinkrelay/internal/models"
)

// LivenessEvent is a camera state transition produced by heartbeat
// evaluation.
type LivenessEvent struct {
	CameraID string
	From     models.CameraState
	To       models.CameraState
	Misses   int
}

// HeartbeatTracker watches camera liveness for one session.
//
// Two consecutive missed heartbeats demote a camera to degraded; silence
// past the grace period marks it disconnected. A camera that resumes
// heartbeats while degraded recovers to streaming without losing its
// position slot. Owned by the session coordinator; not safe for
// concurrent use.
type HeartbeatTracker struct {
	clock Clock
	cfg   config.SessionConfig

	lastBeat map[string]time.Time
	states   map[string]models.CameraState
}

// NewHeartbeatTracker creates a tracker using the given clock.
func NewHeartbeatTracker(clk Clock, cfg config.SessionConfig) *HeartbeatTracker {
	return &HeartbeatTracker{
		clock:    clk,
		cfg:      cfg,
		lastBeat: make(map[string]time.Time),
		states:   make(map[string]models.CameraState),
	}
}

// Track begins watching a camera in the given state.
func (h *HeartbeatTracker) Track(cameraID string, state models.CameraState) {
	h.states[cameraID] = state
	h.lastBeat[cameraID] = h.clock.Now()
}

// SetState overrides a camera's tracked state (e.g. synced -> streaming
// at recording start).
func (h *HeartbeatTracker) SetState(cameraID string, state models.CameraState) {
	if _, ok := h.states[cameraID]; ok {
		h.states[cameraID] = state
	}
}

// State returns the tracked state for a camera.
func (h *HeartbeatTracker) State(cameraID string) (models.CameraState, bool) {
	s, ok := h.states[cameraID]
	return s, ok
}

// Beat records a heartbeat. A degraded camera recovers to streaming; a
// disconnected camera stays disconnected here; reconnection goes through
// the join path so the slot identity check applies.
func (h *HeartbeatTracker) Beat(cameraID string) (LivenessEvent, bool) {
	state, ok := h.states[cameraID]
	if !ok {
		return LivenessEvent{}, false
	}
	h.lastBeat[cameraID] = h.clock.Now()

	if state == models.CameraDegraded {
		h.states[cameraID] = models.CameraStreaming
		return LivenessEvent{
			CameraID: cameraID,
			From:     models.CameraDegraded,
			To:       models.CameraStreaming,
		}, true
	}
	return LivenessEvent{}, false
}

// Evaluate checks every tracked camera against the heartbeat budget and
// returns the transitions that occurred. Called once per coordinator
// tick.
func (h *HeartbeatTracker) Evaluate() []LivenessEvent {
	now := h.clock.Now()
	var events []LivenessEvent

	for id, state := range h.states {
		if state == models.CameraDisconnected || state == models.CameraJoining {
			continue
		}

		silence := now.Sub(h.lastBeat[id])
		misses := int(silence / h.cfg.HeartbeatInterval)

		switch {
		case silence >= h.cfg.DisconnectGrace:
			h.states[id] = models.CameraDisconnected
			events = append(events, LivenessEvent{
				CameraID: id,
				From:     state,
				To:       models.CameraDisconnected,
				Misses:   misses,
			})
		case misses >= h.cfg.HeartbeatMisses && state != models.CameraDegraded:
			h.states[id] = models.CameraDegraded
			events = append(events, LivenessEvent{
				CameraID: id,
				From:     state,
				To:       models.CameraDegraded,
				Misses:   misses,
			})
		}
	}
	return events
}

// Reconnect restores a disconnected camera to streaming after the join
// path verified its identity.
func (h *HeartbeatTracker) Reconnect(cameraID string) {
	h.states[cameraID] = models.CameraStreaming
	h.lastBeat[cameraID] = h.clock.Now()
}

// Forget stops tracking a camera.
func (h *HeartbeatTracker) Forget(cameraID string) {
	delete(h.states, cameraID)
	delete(h.lastBeat, cameraID)
}
