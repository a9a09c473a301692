// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package quality

import (
	"math"

	"github.com/rinklab/rinkrelay/internal/models"
)

// DimensionScorer scores one quality dimension from chunk metadata.
// Implementations must be deterministic and return values in [0,1].
type DimensionScorer interface {
	Score(pos models.PositionSpec, meta *models.ChunkMetadata) float64
}

// TechnicalScorer scores image fidelity: resolution tier, frame-rate
// tier, exposure statistics, and sharpness, combined by fixed weights.
type TechnicalScorer struct{}

// Internal mix for the technical dimension.
const (
	technicalResolutionWeight = 0.3
	technicalFrameRateWeight  = 0.2
	technicalExposureWeight   = 0.2
	technicalSharpnessWeight  = 0.3
)

// Score implements DimensionScorer.
func (TechnicalScorer) Score(_ models.PositionSpec, meta *models.ChunkMetadata) float64 {
	resolution := resolutionTier(meta.Width, meta.Height)
	frameRate := frameRateTier(meta.FrameRate)
	exposure := exposureScore(meta.BrightnessMean, meta.BrightnessStddev)
	sharpness := clamp01(meta.Sharpness)

	return technicalResolutionWeight*resolution +
		technicalFrameRateWeight*frameRate +
		technicalExposureWeight*exposure +
		technicalSharpnessWeight*sharpness
}

// resolutionTier buckets vertical resolution.
func resolutionTier(width, height int) float64 {
	// Phones may report portrait dimensions; judge the smaller axis.
	lines := height
	if width < height {
		lines = width
	}
	switch {
	case lines >= 2160:
		return 1.0
	case lines >= 1080:
		return 0.9
	case lines >= 720:
		return 0.7
	case lines >= 480:
		return 0.4
	default:
		return 0.2
	}
}

// frameRateTier buckets capture frame rate.
func frameRateTier(fps float64) float64 {
	switch {
	case fps >= 60:
		return 1.0
	case fps >= 30:
		return 0.8
	case fps >= 24:
		return 0.6
	case fps > 0:
		return 0.3
	default:
		return 0
	}
}

// exposureScore rewards a centered brightness histogram with usable
// contrast. Mean is on the 0-255 scale; 128 is ideal.
func exposureScore(mean, stddev float64) float64 {
	centering := clamp01(1 - math.Abs(mean-128)/128)
	contrast := clamp01(stddev / 50)
	return centering * (0.5 + 0.5*contrast)
}

// PositionalScorer scores arena coverage for the assigned position,
// penalized by detected obstructions.
type PositionalScorer struct{}

// Score implements DimensionScorer.
func (PositionalScorer) Score(_ models.PositionSpec, meta *models.ChunkMetadata) float64 {
	coverage := clamp01(meta.CoverageRatio)
	obstruction := clamp01(meta.ObstructionRatio)
	return coverage * (1 - obstruction)
}

// ContentScorer scores subject presence against the ideal count range.
// It is the seam where an external tracking-based scorer plugs in; the
// default implementation reads detected subject counts from metadata.
type ContentScorer struct {
	// IdealMin and IdealMax bound the subject count earning full credit.
	IdealMin int
	IdealMax int
}

// Score implements DimensionScorer. Below the ideal range the score is
// partial credit proportional to the count; at or above it the score is
// full. Crowded frames are not penalized.
func (c ContentScorer) Score(_ models.PositionSpec, meta *models.ChunkMetadata) float64 {
	idealMin := c.IdealMin
	if idealMin <= 0 {
		idealMin = 1
	}

	count := meta.SubjectCount
	switch {
	case count <= 0:
		return 0.1
	case count < idealMin:
		return 0.3 + 0.7*float64(count)/float64(idealMin)
	default:
		return 1.0
	}
}

// Stability scoring constants: jitter (variance of frame-to-frame motion
// deltas) is penalized far harder than slow panning (mean drift).
const (
	stabilityJitterPenalty = 3.0
	stabilityPanPenalty    = 0.5
)

// stabilityScore computes the stability dimension from a window of
// recent motion magnitudes. High-frequency low-amplitude shake produces
// large delta variance; a steady pan produces a consistent delta with
// little variance.
func stabilityScore(motion []float64) float64 {
	if len(motion) < 2 {
		return 1.0
	}

	deltas := make([]float64, len(motion)-1)
	var sum float64
	for i := 1; i < len(motion); i++ {
		deltas[i-1] = motion[i] - motion[i-1]
		sum += deltas[i-1]
	}
	mean := sum / float64(len(deltas))

	var variance float64
	for _, d := range deltas {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(deltas))
	jitter := math.Sqrt(variance)

	pan := math.Abs(mean)
	return clamp01(1 - stabilityJitterPenalty*jitter - stabilityPanPenalty*pan)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
