// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package models

import "time"

// UsageTier classifies a camera's processing weight for downstream
// resource allocation.
type UsageTier string

const (
	UsagePrimary  UsageTier = "primary"  // weight >= 0.75
	UsageActive   UsageTier = "active"   // weight >= 0.40
	UsageStandby  UsageTier = "standby"  // weight >= 0.15
	UsageMinimal  UsageTier = "minimal"  // everything else, never below floor
)

// ProcessingWeight is a camera's derived weight for one tick. Ephemeral:
// recomputed every tick, never persisted.
//
// Final = clamp(Position * Quality * Situation * Temporal, floor, 1.0).
// The floor keeps every connected camera minimally eligible.
type ProcessingWeight struct {
	CameraID string `json:"camera_id"`
	Tick     uint64 `json:"tick"`

	Position  float64 `json:"position"`
	Quality   float64 `json:"quality"`
	Situation float64 `json:"situation"`
	Temporal  float64 `json:"temporal"`

	Final float64   `json:"final"`
	Usage UsageTier `json:"usage"`
}

// TransitionType is how the renderer should move to the next primary.
type TransitionType string

const (
	TransitionCut      TransitionType = "cut"
	TransitionDissolve TransitionType = "dissolve"
)

// DecisionReason explains why a switching decision chose its primary.
type DecisionReason string

const (
	ReasonInitial        DecisionReason = "initial"
	ReasonHeld           DecisionReason = "held"            // hysteresis retained the incumbent
	ReasonOvertaken      DecisionReason = "overtaken"       // challenger cleared the margin
	ReasonIncumbentUnfit DecisionReason = "incumbent_unfit" // incumbent fell below acceptable
	ReasonIncumbentGone  DecisionReason = "incumbent_gone"  // incumbent no longer eligible
	ReasonBestAvailable  DecisionReason = "best_available"  // all cameras poor, forced choice
)

// CameraScore is the per-camera suitability breakdown recorded with each
// decision so edits can be audited after the fact.
type CameraScore struct {
	CameraID    string  `json:"camera_id"`
	Distance    float64 `json:"distance"`
	Quality     float64 `json:"quality"`
	Coverage    float64 `json:"coverage"`
	Suitability float64 `json:"suitability"`
}

// SwitchingDecision is one entry of the append-only edit script. Strictly
// ordered by (SessionID, Seq); at most one primary exists per timestamp.
type SwitchingDecision struct {
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	Tick      uint64    `json:"tick"`
	Timestamp time.Time `json:"timestamp"` // master clock

	Primary     string         `json:"primary"`
	Secondaries []string       `json:"secondaries"` // ranked, capped
	Transition  TransitionType `json:"transition"`
	Reason      DecisionReason `json:"reason"`

	Scores []CameraScore `json:"scores"`
}

// Segment is one span of the compiled output manifest.
type Segment struct {
	CameraID     string         `json:"camera_id"`
	Start        time.Time      `json:"start"`
	End          time.Time      `json:"end"`
	TransitionIn TransitionType `json:"transition_in"`
}

// SegmentManifest is the ordered, gap-free edit list covering the full
// session duration. Produced by the compiler from the decision log.
type SegmentManifest struct {
	SessionID  string    `json:"session_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Segments   []Segment `json:"segments"`
	CompiledAt time.Time `json:"compiled_at"`
}

// GameSituation is the externally classified state of play. The engine
// only consumes it; classification is a collaborator concern.
type GameSituation string

const (
	SituationNormal     GameSituation = "normal"
	SituationHighAction GameSituation = "high_action"
	SituationStoppage   GameSituation = "stoppage"
)

// ActionLocation is the classifier's estimate of where play currently is.
type ActionLocation struct {
	Coordinates Coordinates   `json:"coordinates"`
	Confidence  float64       `json:"confidence"` // 0-1
	Situation   GameSituation `json:"situation"`
}
