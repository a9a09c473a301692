// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package quality

import (
	"time"

	"github.com/rinklab/rinkrelay/internal/config"
	"github.com/rinklab/rinkrelay/internal/models"
)

// Tier thresholds on the overall score.
const (
	ThresholdExcellent  = 0.85
	ThresholdGood       = 0.70
	ThresholdAcceptable = 0.50
	ThresholdPoor       = 0.30
)

// TierFor buckets an overall score into a quality tier.
func TierFor(overall float64) models.QualityTier {
	switch {
	case overall >= ThresholdExcellent:
		return models.TierExcellent
	case overall >= ThresholdGood:
		return models.TierGood
	case overall >= ThresholdAcceptable:
		return models.TierAcceptable
	case overall >= ThresholdPoor:
		return models.TierPoor
	default:
		return models.TierUnusable
	}
}

// cameraHistory is one camera's bounded rolling assessment state.
type cameraHistory struct {
	reports []models.QualityReport // ring, newest at (next-1+len)%len
	next    int
	count   int

	motion []float64 // rolling motion magnitudes for stability
	mNext  int
	mCount int

	lastValid *models.QualityReport
	decay     float64 // cumulative degradation multiplier
}

// Assessor computes per-tick quality reports. Owned by the session
// coordinator; not safe for concurrent use.
type Assessor struct {
	cfg config.QualityConfig

	technical  DimensionScorer
	positional DimensionScorer
	content    DimensionScorer

	window  int
	cameras map[string]*cameraHistory
}

// NewAssessor creates an assessor with the default scorers.
func NewAssessor(cfg config.QualityConfig, historyWindow int) *Assessor {
	if historyWindow <= 0 {
		historyWindow = 30
	}
	return &Assessor{
		cfg:        cfg,
		technical:  TechnicalScorer{},
		positional: PositionalScorer{},
		content:    ContentScorer{IdealMin: cfg.IdealSubjectsMin, IdealMax: cfg.IdealSubjectsMax},
		window:     historyWindow,
		cameras:    make(map[string]*cameraHistory),
	}
}

// SetContentScorer swaps the content-relevance scorer. Weight and
// switching code are untouched by the substitution.
func (a *Assessor) SetContentScorer(s DimensionScorer) {
	a.content = s
}

// Assess scores one camera for one tick. Malformed or missing metadata
// never fails the session: the last valid report is carried forward with
// a decay penalty so a silent camera drifts down the tiers instead of
// wedging the pipeline.
func (a *Assessor) Assess(cameraID string, pos models.PositionSpec, meta *models.ChunkMetadata, tick uint64, now time.Time) models.QualityReport {
	hist := a.history(cameraID)

	if !meta.Valid() {
		report := a.degradedReport(cameraID, hist, tick, now)
		a.record(hist, report)
		return report
	}

	hist.decay = 1.0

	hist.motion[hist.mNext] = clamp01(meta.MotionMagnitude)
	hist.mNext = (hist.mNext + 1) % len(hist.motion)
	if hist.mCount < len(hist.motion) {
		hist.mCount++
	}

	technical := a.technical.Score(pos, meta)
	positional := a.positional.Score(pos, meta)
	stability := stabilityScore(hist.motionWindow())
	content := a.content.Score(pos, meta)

	overall := a.cfg.TechnicalWeight*technical +
		a.cfg.PositionalWeight*positional +
		a.cfg.StabilityWeight*stability +
		a.cfg.ContentWeight*content
	overall = clamp01(overall)

	report := models.QualityReport{
		CameraID:   cameraID,
		Tick:       tick,
		Timestamp:  now,
		Technical:  technical,
		Positional: positional,
		Stability:  stability,
		Content:    content,
		Overall:    overall,
		Tier:       TierFor(overall),
	}

	copied := report
	hist.lastValid = &copied
	a.record(hist, report)
	return report
}

// degradedReport carries the last valid report forward with a
// multiplicative time-decay penalty. With no prior report the camera
// scores unusable but is still reported, never discarded.
func (a *Assessor) degradedReport(cameraID string, hist *cameraHistory, tick uint64, now time.Time) models.QualityReport {
	decay := a.cfg.DecayPerTick
	if decay <= 0 || decay >= 1 {
		decay = 0.9
	}
	hist.decay *= decay

	if hist.lastValid == nil {
		return models.QualityReport{
			CameraID:  cameraID,
			Tick:      tick,
			Timestamp: now,
			Tier:      models.TierUnusable,
			Degraded:  true,
		}
	}

	base := *hist.lastValid
	overall := clamp01(base.Overall * hist.decay)
	return models.QualityReport{
		CameraID:   cameraID,
		Tick:       tick,
		Timestamp:  now,
		Technical:  base.Technical * hist.decay,
		Positional: base.Positional * hist.decay,
		Stability:  base.Stability * hist.decay,
		Content:    base.Content * hist.decay,
		Overall:    overall,
		Tier:       TierFor(overall),
		Degraded:   true,
	}
}

// History returns the camera's retained reports, oldest first. Reports
// below usable tiers are retained like any other so a recovering stream
// regains eligibility with full context.
func (a *Assessor) History(cameraID string) []models.QualityReport {
	hist, ok := a.cameras[cameraID]
	if !ok || hist.count == 0 {
		return nil
	}

	out := make([]models.QualityReport, 0, hist.count)
	start := (hist.next - hist.count + len(hist.reports)) % len(hist.reports)
	for i := 0; i < hist.count; i++ {
		out = append(out, hist.reports[(start+i)%len(hist.reports)])
	}
	return out
}

// Latest returns the camera's most recent report.
func (a *Assessor) Latest(cameraID string) (models.QualityReport, bool) {
	hist, ok := a.cameras[cameraID]
	if !ok || hist.count == 0 {
		return models.QualityReport{}, false
	}
	idx := (hist.next - 1 + len(hist.reports)) % len(hist.reports)
	return hist.reports[idx], true
}

// Forget drops a camera's history.
func (a *Assessor) Forget(cameraID string) {
	delete(a.cameras, cameraID)
}

func (a *Assessor) history(cameraID string) *cameraHistory {
	hist, ok := a.cameras[cameraID]
	if !ok {
		hist = &cameraHistory{
			reports: make([]models.QualityReport, a.window),
			motion:  make([]float64, a.window),
			decay:   1.0,
		}
		a.cameras[cameraID] = hist
	}
	return hist
}

func (a *Assessor) record(hist *cameraHistory, report models.QualityReport) {
	hist.reports[hist.next] = report
	hist.next = (hist.next + 1) % len(hist.reports)
	if hist.count < len(hist.reports) {
		hist.count++
	}
}

// motionWindow returns the motion samples oldest first.
func (h *cameraHistory) motionWindow() []float64 {
	if h.mCount == 0 {
		return nil
	}
	out := make([]float64, 0, h.mCount)
	start := (h.mNext - h.mCount + len(h.motion)) % len(h.motion)
	for i := 0; i < h.mCount; i++ {
		out = append(out, h.motion[(start+i)%len(h.motion)])
	}
	return out
}
