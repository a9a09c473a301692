// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

// Package switching selects the program's primary camera each tick.
//
// The engine is stateless apart from configuration: hysteresis reads the
// previous decision passed in by the caller. Selection is fully
// deterministic: ties break by position priority, then camera id, so a
// replayed tick reproduces the same decision.
package switching

import (
	"math"
	"sort"
	"time"

	"github.com/rinklab/rinkrelay/internal/config"
	"github.com/rinklab/rinkrelay/internal/models"
)

// Suitability mix. Distance and coverage tie the choice to where the
// action is; quality keeps unwatchable feeds off program.
const (
	distanceShare = 0.3
	qualityShare  = 0.4
	coverageShare = 0.3
)

// CameraInput is one camera's state offered to a switching decision.
type CameraInput struct {
	CameraID string
	Position models.PositionSpec
	Weight   models.ProcessingWeight
	Report   models.QualityReport
}

// Engine computes switching decisions for one session's arena.
type Engine struct {
	cfg   config.SwitchingConfig
	arena *models.ArenaConfiguration

	// maxDistance normalizes camera-to-action distances; fixed per arena.
	maxDistance float64
}

// NewEngine creates an engine for the given arena.
func NewEngine(cfg config.SwitchingConfig, arenaCfg *models.ArenaConfiguration) *Engine {
	diag := math.Sqrt(arenaCfg.Dimensions.Length*arenaCfg.Dimensions.Length +
		arenaCfg.Dimensions.Width*arenaCfg.Dimensions.Width)
	if diag <= 0 {
		diag = 1
	}
	return &Engine{cfg: cfg, arena: arenaCfg, maxDistance: diag}
}

// Decide selects the primary and ranked secondaries for one tick.
//
// The engine always chooses a primary: when every camera is poor or
// worse it falls back to the best available weight and flags the
// decision so the session can raise an operator alert. allPoor reports
// that condition; latching the alert to once per episode is the
// caller's concern.
func (e *Engine) Decide(sessionID string, tick uint64, now time.Time, cameras []CameraInput, action models.ActionLocation, last *models.SwitchingDecision) (models.SwitchingDecision, bool) {
	scores := make([]models.CameraScore, 0, len(cameras))
	byID := make(map[string]CameraInput, len(cameras))

	allPoor := len(cameras) > 0
	for _, cam := range cameras {
		byID[cam.CameraID] = cam
		scores = append(scores, e.score(cam, action))
		if !cam.Report.Tier.WorseThan(models.TierAcceptable) {
			allPoor = false
		}
	}

	// Deterministic ranking: suitability desc, then position priority,
	// then camera id.
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Suitability != scores[j].Suitability {
			return scores[i].Suitability > scores[j].Suitability
		}
		pi := byID[scores[i].CameraID].Position.BasePriority
		pj := byID[scores[j].CameraID].Position.BasePriority
		if pi != pj {
			return pi < pj
		}
		return scores[i].CameraID < scores[j].CameraID
	})

	decision := models.SwitchingDecision{
		SessionID: sessionID,
		Tick:      tick,
		Timestamp: now,
		Scores:    scores,
	}

	if len(scores) == 0 {
		// No eligible cameras at all; the caller treats this tick as a
		// hold on the previous decision.
		if last != nil {
			decision.Primary = last.Primary
			decision.Reason = models.ReasonHeld
			decision.Transition = models.TransitionDissolve
		}
		return decision, false
	}

	challenger := scores[0]
	primary, reason := e.applyHysteresis(challenger, scores, byID, last)
	if allPoor {
		reason = models.ReasonBestAvailable
	}

	decision.Primary = primary
	decision.Reason = reason
	decision.Secondaries = e.secondaries(scores, primary)
	decision.Transition = transitionFor(action.Situation, last, primary)
	return decision, allPoor
}

// applyHysteresis decides whether the top-ranked challenger displaces
// the incumbent primary. Switching requires the challenger to clear the
// margin, or the incumbent to have dropped below acceptable or left the
// eligible set.
func (e *Engine) applyHysteresis(challenger models.CameraScore, scores []models.CameraScore, byID map[string]CameraInput, last *models.SwitchingDecision) (string, models.DecisionReason) {
	if last == nil || last.Primary == "" {
		return challenger.CameraID, models.ReasonInitial
	}

	incumbent, present := byID[last.Primary]
	if !present {
		return challenger.CameraID, models.ReasonIncumbentGone
	}
	if challenger.CameraID == last.Primary {
		return last.Primary, models.ReasonHeld
	}

	if incumbent.Report.Tier.WorseThan(models.TierAcceptable) {
		return challenger.CameraID, models.ReasonIncumbentUnfit
	}

	incumbentScore := challenger.Suitability
	for _, s := range scores {
		if s.CameraID == last.Primary {
			incumbentScore = s.Suitability
			break
		}
	}
	if challenger.Suitability > incumbentScore+e.cfg.HysteresisMargin {
		return challenger.CameraID, models.ReasonOvertaken
	}
	return last.Primary, models.ReasonHeld
}

// score computes one camera's suitability breakdown.
func (e *Engine) score(cam CameraInput, action models.ActionLocation) models.CameraScore {
	distance := e.distanceScore(cam.Position, action)
	quality := cam.Weight.Quality
	coverage := coverageScore(cam, action)

	return models.CameraScore{
		CameraID:    cam.CameraID,
		Distance:    distance,
		Quality:     quality,
		Coverage:    coverage,
		Suitability: distanceShare*distance + qualityShare*quality + coverageShare*coverage,
	}
}

// distanceScore maps camera-to-action distance onto [0,1], 1 at the
// action, 0 at the far diagonal.
func (e *Engine) distanceScore(pos models.PositionSpec, action models.ActionLocation) float64 {
	dx := pos.Coordinates.X - action.Coordinates.X
	dy := pos.Coordinates.Y - action.Coordinates.Y
	d := math.Sqrt(dx*dx + dy*dy)
	s := 1 - d/e.maxDistance
	if s < 0 {
		return 0
	}
	return s
}

// coverageScore estimates how well the camera's frame holds the action:
// the positional (visible-region) score blended with how closely the
// camera's mounted angle points at the action.
func coverageScore(cam CameraInput, action models.ActionLocation) float64 {
	bearing := math.Atan2(
		action.Coordinates.Y-cam.Position.Coordinates.Y,
		action.Coordinates.X-cam.Position.Coordinates.X,
	) * 180 / math.Pi
	if bearing < 0 {
		bearing += 360
	}

	delta := math.Abs(bearing - cam.Position.AngleDegrees)
	if delta > 180 {
		delta = 360 - delta
	}
	alignment := 1 - delta/180

	return 0.5*cam.Report.Positional + 0.5*alignment
}

// secondaries ranks the non-primary cameras, capped by configuration.
func (e *Engine) secondaries(scores []models.CameraScore, primary string) []string {
	max := e.cfg.MaxSecondaries
	if max <= 0 {
		return nil
	}
	out := make([]string, 0, max)
	for _, s := range scores {
		if s.CameraID == primary {
			continue
		}
		out = append(out, s.CameraID)
		if len(out) == max {
			break
		}
	}
	return out
}

// transitionFor picks the renderer transition: hard cut for fast play or
// an unchanged primary, short dissolve otherwise.
func transitionFor(situation models.GameSituation, last *models.SwitchingDecision, primary string) models.TransitionType {
	if last == nil || last.Primary == "" || last.Primary == primary {
		return models.TransitionCut
	}
	if situation == models.SituationHighAction {
		return models.TransitionCut
	}
	return models.TransitionDissolve
}
