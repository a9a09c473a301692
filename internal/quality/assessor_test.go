// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package quality

import (
	"testing"
	"time"

	"github.com/rinklab/rinkrelay/internal/config"
	"github.com/rinklab/rinkrelay/internal/models"
)

func testQualityConfig() config.QualityConfig {
	return config.QualityConfig{
		TechnicalWeight:  0.4,
		PositionalWeight: 0.3,
		StabilityWeight:  0.2,
		ContentWeight:    0.1,
		IdealSubjectsMin: 4,
		IdealSubjectsMax: 12,
		DecayPerTick:     0.9,
	}
}

// goodMeta is a healthy 1080p60 chunk with strong coverage.
func goodMeta() *models.ChunkMetadata {
	return &models.ChunkMetadata{
		Width:            1920,
		Height:           1080,
		FrameRate:        60,
		BrightnessMean:   128,
		BrightnessStddev: 55,
		Sharpness:        0.9,
		MotionMagnitude:  0.05,
		CoverageRatio:    0.9,
		ObstructionRatio: 0.05,
		SubjectCount:     8,
	}
}

var tNow = time.Date(2026, 1, 10, 19, 30, 0, 0, time.UTC)

func TestAssessGoodChunk(t *testing.T) {
	a := NewAssessor(testQualityConfig(), 30)
	pos := models.PositionSpec{Name: "centerIceElevated", BasePriority: 1, BaseWeight: 1}

	report := a.Assess("cam-a", pos, goodMeta(), 1, tNow)

	if report.Overall < ThresholdGood {
		t.Fatalf("healthy chunk scored %.3f, want >= %.2f", report.Overall, ThresholdGood)
	}
	for name, score := range map[string]float64{
		"technical":  report.Technical,
		"positional": report.Positional,
		"stability":  report.Stability,
		"content":    report.Content,
	} {
		if score < 0 || score > 1 {
			t.Errorf("%s score %.3f out of [0,1]", name, score)
		}
	}
	if report.Degraded {
		t.Fatal("valid metadata must not produce a degraded report")
	}
}

func TestTierThresholds(t *testing.T) {
	tests := []struct {
		overall float64
		want    models.QualityTier
	}{
		{0.95, models.TierExcellent},
		{0.85, models.TierExcellent},
		{0.84, models.TierGood},
		{0.70, models.TierGood},
		{0.69, models.TierAcceptable},
		{0.50, models.TierAcceptable},
		{0.49, models.TierPoor},
		{0.30, models.TierPoor},
		{0.29, models.TierUnusable},
		{0.0, models.TierUnusable},
	}
	for _, tt := range tests {
		if got := TierFor(tt.overall); got != tt.want {
			t.Errorf("TierFor(%.2f) = %s, want %s", tt.overall, got, tt.want)
		}
	}
}

func TestMalformedMetadataDegrades(t *testing.T) {
	a := NewAssessor(testQualityConfig(), 30)
	pos := models.PositionSpec{Name: "centerIceElevated", BasePriority: 1, BaseWeight: 1}

	valid := a.Assess("cam-a", pos, goodMeta(), 1, tNow)

	// Malformed metadata: previous report carried forward, decayed.
	degraded := a.Assess("cam-a", pos, nil, 2, tNow.Add(200*time.Millisecond))
	if !degraded.Degraded {
		t.Fatal("report must be flagged degraded")
	}
	if degraded.Overall >= valid.Overall {
		t.Fatalf("degraded overall %.3f not below valid %.3f", degraded.Overall, valid.Overall)
	}

	// Repeated failures keep decaying.
	further := a.Assess("cam-a", pos, &models.ChunkMetadata{}, 3, tNow.Add(400*time.Millisecond))
	if further.Overall >= degraded.Overall {
		t.Fatalf("decay must compound: %.3f then %.3f", degraded.Overall, further.Overall)
	}

	// Recovery: a valid chunk resets the decay entirely.
	recovered := a.Assess("cam-a", pos, goodMeta(), 4, tNow.Add(600*time.Millisecond))
	if recovered.Degraded {
		t.Fatal("valid chunk after failures must not be degraded")
	}
	if recovered.Overall <= further.Overall {
		t.Fatalf("recovery did not restore score: %.3f", recovered.Overall)
	}
}

func TestDegradedWithNoHistoryIsUnusable(t *testing.T) {
	a := NewAssessor(testQualityConfig(), 30)
	pos := models.PositionSpec{Name: "goalLineNorth", BasePriority: 4, BaseWeight: 0.7}

	report := a.Assess("cam-x", pos, nil, 1, tNow)
	if report.Tier != models.TierUnusable {
		t.Fatalf("no-history degraded report tier = %s, want unusable", report.Tier)
	}
	if !report.Degraded {
		t.Fatal("report must be flagged degraded")
	}

	// Still retained in history, never discarded.
	if hist := a.History("cam-x"); len(hist) != 1 {
		t.Fatalf("history length = %d, want 1", len(hist))
	}
}

func TestJitterPenalizedMoreThanPanning(t *testing.T) {
	a := NewAssessor(testQualityConfig(), 30)
	pos := models.PositionSpec{Name: "cornerDiagonal1", BasePriority: 2, BaseWeight: 0.85}

	// Shaky camera: motion alternating every sample.
	var shaky models.QualityReport
	for i := 0; i < 10; i++ {
		meta := goodMeta()
		meta.MotionMagnitude = 0.02
		if i%2 == 0 {
			meta.MotionMagnitude = 0.25
		}
		shaky = a.Assess("cam-shaky", pos, meta, uint64(i), tNow)
	}

	// Panning camera: steady ramp of the same amplitude span.
	var panning models.QualityReport
	for i := 0; i < 10; i++ {
		meta := goodMeta()
		meta.MotionMagnitude = 0.02 + 0.023*float64(i)
		panning = a.Assess("cam-pan", pos, meta, uint64(i), tNow)
	}

	if shaky.Stability >= panning.Stability {
		t.Fatalf("shake (%.3f) must score below panning (%.3f)", shaky.Stability, panning.Stability)
	}
}

func TestHistoryBounded(t *testing.T) {
	a := NewAssessor(testQualityConfig(), 5)
	pos := models.PositionSpec{Name: "centerIceElevated", BasePriority: 1, BaseWeight: 1}

	for i := 0; i < 12; i++ {
		a.Assess("cam-a", pos, goodMeta(), uint64(i), tNow.Add(time.Duration(i)*200*time.Millisecond))
	}

	hist := a.History("cam-a")
	if len(hist) != 5 {
		t.Fatalf("history length = %d, want 5", len(hist))
	}
	// Oldest first: ticks 7..11.
	if hist[0].Tick != 7 || hist[4].Tick != 11 {
		t.Fatalf("history window ticks %d..%d, want 7..11", hist[0].Tick, hist[4].Tick)
	}

	latest, ok := a.Latest("cam-a")
	if !ok || latest.Tick != 11 {
		t.Fatalf("latest tick = %d, want 11", latest.Tick)
	}
}

func TestContentScorerPartialCredit(t *testing.T) {
	scorer := ContentScorer{IdealMin: 4, IdealMax: 12}
	pos := models.PositionSpec{}

	none := scorer.Score(pos, &models.ChunkMetadata{SubjectCount: 0})
	below := scorer.Score(pos, &models.ChunkMetadata{SubjectCount: 2})
	ideal := scorer.Score(pos, &models.ChunkMetadata{SubjectCount: 8})
	crowded := scorer.Score(pos, &models.ChunkMetadata{SubjectCount: 40})

	if none >= below {
		t.Errorf("zero subjects (%.2f) must score below partial (%.2f)", none, below)
	}
	if below >= ideal {
		t.Errorf("partial credit (%.2f) must stay below ideal (%.2f)", below, ideal)
	}
	if crowded != ideal {
		t.Errorf("crowded frame (%.2f) must not be penalized vs ideal (%.2f)", crowded, ideal)
	}
}

// fixedScorer returns a constant; used to verify scorer substitution.
type fixedScorer struct{ v float64 }

func (f fixedScorer) Score(models.PositionSpec, *models.ChunkMetadata) float64 { return f.v }

func TestContentScorerSwappable(t *testing.T) {
	a := NewAssessor(testQualityConfig(), 30)
	a.SetContentScorer(fixedScorer{v: 0.0})
	pos := models.PositionSpec{Name: "centerIceElevated", BasePriority: 1, BaseWeight: 1}

	report := a.Assess("cam-a", pos, goodMeta(), 1, tNow)
	if report.Content != 0 {
		t.Fatalf("substituted scorer ignored: content = %.3f", report.Content)
	}
}
