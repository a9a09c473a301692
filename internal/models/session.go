// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package models

import "time"

// SessionStatus is the lifecycle state of a recording session.
type SessionStatus string

const (
	SessionWaiting       SessionStatus = "waiting"
	SessionSynchronizing SessionStatus = "synchronizing"
	SessionRecording     SessionStatus = "recording"
	SessionCompiling     SessionStatus = "compiling"
	SessionCompleted     SessionStatus = "completed"
	SessionAborted       SessionStatus = "aborted"
)

// Terminal reports whether the session can no longer change state.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionAborted
}

// CameraState is the connection state of a single camera stream.
type CameraState string

const (
	CameraJoining      CameraState = "joining"
	CameraSynced       CameraState = "synced"
	CameraStreaming    CameraState = "streaming"
	CameraDegraded     CameraState = "degraded"
	CameraDisconnected CameraState = "disconnected"
)

// Eligible reports whether the camera may be chosen as a program source.
// Degraded cameras stay eligible; the quality path down-weights them.
func (s CameraState) Eligible() bool {
	return s == CameraStreaming || s == CameraDegraded
}

// CameraStream is one device's feed within a session. Owned exclusively by
// the session coordinator; snapshots of it cross goroutine boundaries, the
// live value never does.
type CameraStream struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`

	Position PositionSpec `json:"position"`
	State    CameraState  `json:"state"`

	// OffsetMs is the smoothed master-minus-local clock offset estimate.
	OffsetMs float64 `json:"offset_ms"`

	// ClockUncertain is set when sync validation exhausted its retries and
	// the camera fell back to degraded-accuracy recording.
	ClockUncertain bool `json:"clock_uncertain"`

	LastHeartbeat   time.Time `json:"last_heartbeat"`
	MissedHeartbeat int       `json:"missed_heartbeats"`

	// NextSequence is the next chunk sequence number the ingest path will
	// accept from this camera.
	NextSequence uint64 `json:"next_sequence"`

	Quality *QualityReport    `json:"quality,omitempty"`
	Weight  *ProcessingWeight `json:"weight,omitempty"`

	JoinedAt       time.Time `json:"joined_at"`
	DisconnectedAt time.Time `json:"disconnected_at"`
}

// GameSession is the aggregate root for one recorded event. All mutation
// happens on the coordinator goroutine; see internal/session.
type GameSession struct {
	ID      string        `json:"id"`
	ArenaID string        `json:"arena_id"`
	Status  SessionStatus `json:"status"`

	// MasterOrigin is the master-clock instant at which all cameras began
	// (or will begin) recording.
	MasterOrigin time.Time `json:"master_origin"`

	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// SessionWarning is an operator-facing, non-fatal session condition.
type SessionWarning string

const (
	WarningAllCamerasPoor  SessionWarning = "all_cameras_poor"
	WarningCameraDegraded  SessionWarning = "camera_degraded"
	WarningCameraPoor      SessionWarning = "camera_poor"
	WarningCompilationGap  SessionWarning = "compilation_gap"
	WarningClockUncertain  SessionWarning = "clock_uncertain"
	WarningCameraRecovered SessionWarning = "camera_recovered"
)
