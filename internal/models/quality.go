// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package models

import "time"

// QualityTier is the discretized bucket for an overall quality score.
type QualityTier string

const (
	TierExcellent  QualityTier = "excellent"
	TierGood       QualityTier = "good"
	TierAcceptable QualityTier = "acceptable"
	TierPoor       QualityTier = "poor"
	TierUnusable   QualityTier = "unusable"
)

// Rank orders tiers from best (0) to worst (4). Used for monotonicity
// checks and "below acceptable" comparisons.
func (t QualityTier) Rank() int {
	switch t {
	case TierExcellent:
		return 0
	case TierGood:
		return 1
	case TierAcceptable:
		return 2
	case TierPoor:
		return 3
	default:
		return 4
	}
}

// WorseThan reports whether t ranks strictly below other.
func (t QualityTier) WorseThan(other QualityTier) bool {
	return t.Rank() > other.Rank()
}

// QualityReport is one camera's per-tick quality snapshot. Immutable once
// produced; the next tick supersedes it rather than mutating it.
type QualityReport struct {
	CameraID  string    `json:"camera_id"`
	Tick      uint64    `json:"tick"`
	Timestamp time.Time `json:"timestamp"`

	// Dimension scores, each in [0,1].
	Technical  float64 `json:"technical"`
	Positional float64 `json:"positional"`
	Stability  float64 `json:"stability"`
	Content    float64 `json:"content"`

	// Overall is the configured weighted sum of the four dimensions.
	Overall float64     `json:"overall"`
	Tier    QualityTier `json:"tier"`

	// Degraded marks a report synthesized from the last valid one because
	// the camera's chunk metadata was missing or malformed.
	Degraded bool `json:"degraded,omitempty"`
}

// ChunkMetadata is the per-chunk measurement payload a camera submits with
// each recorded chunk. The assessor scores from this; pixel data never
// enters the control plane.
type ChunkMetadata struct {
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	FrameRate        float64 `json:"frame_rate"`
	BrightnessMean   float64 `json:"brightness_mean"`   // 0-255 histogram mean
	BrightnessStddev float64 `json:"brightness_stddev"` // 0-255 histogram spread
	Sharpness        float64 `json:"sharpness"`         // mean edge-gradient magnitude, 0-1
	MotionMagnitude  float64 `json:"motion_magnitude"`  // frame-to-frame displacement, 0-1
	CoverageRatio    float64 `json:"coverage_ratio"`    // visible-region overlap with assigned region, 0-1
	ObstructionRatio float64 `json:"obstruction_ratio"` // fraction of frame obstructed, 0-1
	SubjectCount     int     `json:"subject_count"`     // detected subjects of interest in frame
}

// Valid reports whether the metadata carries enough signal to score.
// Zero-valued dimensions degrade individual scores; an entirely empty or
// nonsensical payload is treated as missing.
func (m *ChunkMetadata) Valid() bool {
	if m == nil {
		return false
	}
	if m.Width <= 0 || m.Height <= 0 || m.FrameRate <= 0 {
		return false
	}
	return true
}

// ChunkRef is a reference to one received chunk's payload. The payload
// itself lives with the external storage collaborator; the control plane
// tracks only identity and timing.
type ChunkRef struct {
	CameraID   string        `json:"camera_id"`
	Sequence   uint64        `json:"sequence"`
	PayloadRef string        `json:"payload_ref"`
	Start      time.Time     `json:"start"` // master-clock chunk start
	Duration   time.Duration `json:"duration"`
	ReceivedAt time.Time     `json:"received_at"`
}
