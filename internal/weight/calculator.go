// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

// Package weight derives per-camera processing weights.
//
// Each tick a camera's weight is the product of four components:
// position (constant per slot), quality (nonlinear tier mapping),
// situation (modifier table from the external classifier), and temporal
// (EMA smoothing against oscillation), clamped to [Floor, 1]. Given
// identical inputs the computation is bit-for-bit reproducible; there is
// no hidden randomness, which keeps edit decisions auditable.
package weight

import (
	"github.com/rinklab/rinkrelay/internal/config"
	"github.com/rinklab/rinkrelay/internal/models"
)

// Floor is the minimum final weight. Every connected camera keeps
// minimal eligibility; weights never reach zero.
const Floor = 0.05

// QualityWeight maps a quality tier to its weight component. The mapping
// is deliberately aggressive at the bottom: poor cameras must not
// accumulate screen time.
func QualityWeight(tier models.QualityTier) float64 {
	switch tier {
	case models.TierExcellent:
		return 1.0
	case models.TierGood:
		return 0.8
	case models.TierAcceptable:
		return 0.5
	case models.TierPoor:
		return 0.2
	default:
		return Floor
	}
}

// SituationModifier returns the weight modifier for a position under the
// current game situation. Wide-coverage positions get a small boost
// during high action; specialized positions a small penalty. Stoppages
// invert the bias mildly, favoring close-in angles for replays.
func SituationModifier(pos models.PositionSpec, situation models.GameSituation) float64 {
	switch situation {
	case models.SituationHighAction:
		if pos.WideCoverage {
			return 1.15
		}
		return 0.9
	case models.SituationStoppage:
		if pos.WideCoverage {
			return 0.95
		}
		return 1.05
	default:
		return 1.0
	}
}

// UsageTierFor classifies a final weight for downstream allocation.
func UsageTierFor(final float64) models.UsageTier {
	switch {
	case final >= 0.75:
		return models.UsagePrimary
	case final >= 0.40:
		return models.UsageActive
	case final >= 0.15:
		return models.UsageStandby
	default:
		return models.UsageMinimal
	}
}

// Bounds on the temporal component so smoothing can damp or cushion a
// swing without dominating the product.
const (
	temporalMin = 0.5
	temporalMax = 1.5
)

// Calculator computes processing weights and holds the per-camera EMA
// state the temporal component smooths against. Owned by the session
// coordinator; not safe for concurrent use.
type Calculator struct {
	alpha float64
	ema   map[string]float64
}

// NewCalculator creates a calculator with the configured EMA factor.
func NewCalculator(cfg config.SwitchingConfig) *Calculator {
	alpha := cfg.EMAAlpha
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}
	return &Calculator{alpha: alpha, ema: make(map[string]float64)}
}

// Compute derives the camera's weight for this tick.
//
// The temporal component is the ratio of the smoothed quality weight to
// the instantaneous one: a one-tick spike is damped (ratio < 1) and a
// one-tick dip cushioned (ratio > 1), so the final weight tracks the
// trend rather than the noise.
func (c *Calculator) Compute(pos models.PositionSpec, report models.QualityReport, situation models.GameSituation, tick uint64) models.ProcessingWeight {
	position := pos.BaseWeight
	quality := QualityWeight(report.Tier)
	situational := SituationModifier(pos, situation)

	prev, seen := c.ema[report.CameraID]
	var smoothed float64
	if !seen {
		smoothed = quality
	} else {
		smoothed = c.alpha*quality + (1-c.alpha)*prev
	}
	c.ema[report.CameraID] = smoothed

	temporal := clamp(smoothed/quality, temporalMin, temporalMax)

	final := clamp(position*quality*situational*temporal, Floor, 1.0)

	return models.ProcessingWeight{
		CameraID:  report.CameraID,
		Tick:      tick,
		Position:  position,
		Quality:   quality,
		Situation: situational,
		Temporal:  temporal,
		Final:     final,
		Usage:     UsageTierFor(final),
	}
}

// Forget drops a camera's smoothing state.
func (c *Calculator) Forget(cameraID string) {
	delete(c.ema, cameraID)
}

func clamp(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
