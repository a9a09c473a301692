// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package clock

import (
	"time"

	"github.com/rinklab/rinkrelay/internal/config"
)

// SyncResult is the coordinator's answer to one camera sync request.
type SyncResult struct {
	// MasterTimestamp is the master-clock time the offset was computed
	// against.
	MasterTimestamp time.Time `json:"master_timestamp"`

	// OffsetMs is the smoothed master-minus-local offset estimate.
	OffsetMs float64 `json:"offset_ms"`

	// CountdownMs is how long until the shared recording start instant.
	// Zero once recording has begun.
	CountdownMs int64 `json:"countdown_ms"`

	// Validated reports whether the offset estimate met the accuracy
	// target. Unvalidated cameras should re-request sync.
	Validated bool `json:"validated"`

	// Degraded is set once the retry budget is exhausted: the camera
	// records anyway with its clock flagged uncertain.
	Degraded bool `json:"degraded"`
}

// cameraSync is one camera's offset estimation state.
type cameraSync struct {
	samples  []float64 // rolling master-minus-local samples, ms
	next     int
	filled   bool
	attempts int
	degraded bool
}

// average returns the rolling mean of collected samples.
func (c *cameraSync) average() float64 {
	n := len(c.samples)
	if !c.filled {
		n = c.next
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += c.samples[i]
	}
	return sum / float64(n)
}

// Synchronizer maintains the master clock base for one session and the
// per-camera offset estimates. Not safe for concurrent use; owned by the
// session coordinator.
type Synchronizer struct {
	clock Clock
	cfg   config.SyncConfig

	// startAt is the shared master instant recording begins. Set when the
	// countdown is armed; every camera gets a countdown to this same
	// instant regardless of individual request latency.
	startAt time.Time

	cameras map[string]*cameraSync
}

// NewSynchronizer creates a synchronizer using the given clock.
func NewSynchronizer(clk Clock, cfg config.SyncConfig) *Synchronizer {
	return &Synchronizer{
		clock:   clk,
		cfg:     cfg,
		cameras: make(map[string]*cameraSync),
	}
}

// ArmCountdown fixes the shared recording start instant at now+countdown.
// Idempotent: once armed, the instant does not move.
func (s *Synchronizer) ArmCountdown() time.Time {
	if s.startAt.IsZero() {
		s.startAt = s.clock.Now().Add(s.cfg.Countdown)
	}
	return s.startAt
}

// StartAt returns the shared recording start instant, zero if not armed.
func (s *Synchronizer) StartAt() time.Time { return s.startAt }

// RequestSync records one offset sample for the camera and returns the
// smoothed estimate plus the shared countdown.
//
// Validation compares the new sample against the rolling average: a
// sample within the offset target of the average (or the first sample)
// validates. After MaxRetries failed validations the camera is marked
// degraded and keeps recording with its clock flagged uncertain rather
// than stalling the session.
func (s *Synchronizer) RequestSync(cameraID string, localTimestamp time.Time) SyncResult {
	master := s.clock.Now()
	sampleMs := float64(master.Sub(localTimestamp)) / float64(time.Millisecond)

	cs, ok := s.cameras[cameraID]
	if !ok {
		cs = &cameraSync{samples: make([]float64, s.offsetWindow())}
		s.cameras[cameraID] = cs
	}

	prevAvg := cs.average()
	first := cs.next == 0 && !cs.filled

	cs.samples[cs.next] = sampleMs
	cs.next++
	if cs.next == len(cs.samples) {
		cs.next = 0
		cs.filled = true
	}

	targetMs := float64(s.cfg.OffsetTarget) / float64(time.Millisecond)
	validated := first || abs(sampleMs-prevAvg) < targetMs
	if validated {
		cs.attempts = 0
	} else {
		cs.attempts++
		if cs.attempts >= s.cfg.MaxRetries {
			cs.degraded = true
		}
	}

	return SyncResult{
		MasterTimestamp: master,
		OffsetMs:        cs.average(),
		CountdownMs:     s.countdownMs(master),
		Validated:       validated || cs.degraded,
		Degraded:        cs.degraded,
	}
}

// Offset returns the camera's current smoothed offset in milliseconds.
func (s *Synchronizer) Offset(cameraID string) (float64, bool) {
	cs, ok := s.cameras[cameraID]
	if !ok {
		return 0, false
	}
	return cs.average(), true
}

// Degraded reports whether the camera fell back to degraded-accuracy
// sync.
func (s *Synchronizer) Degraded(cameraID string) bool {
	cs, ok := s.cameras[cameraID]
	return ok && cs.degraded
}

// Synced reports whether every listed camera currently holds a validated
// or degraded offset estimate.
func (s *Synchronizer) Synced(cameraIDs []string) bool {
	for _, id := range cameraIDs {
		cs, ok := s.cameras[id]
		if !ok {
			return false
		}
		if cs.attempts > 0 && !cs.degraded {
			return false
		}
	}
	return len(cameraIDs) > 0
}

// Forget drops a camera's sync state. Used when a disconnected camera's
// identity is released at session end.
func (s *Synchronizer) Forget(cameraID string) {
	delete(s.cameras, cameraID)
}

func (s *Synchronizer) countdownMs(now time.Time) int64 {
	if s.startAt.IsZero() {
		return s.cfg.Countdown.Milliseconds()
	}
	remaining := s.startAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining.Milliseconds()
}

func (s *Synchronizer) offsetWindow() int {
	if s.cfg.OffsetWindow > 0 {
		return s.cfg.OffsetWindow
	}
	return 8
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
