// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

// Request bodies with go-playground/validator v10 tags. Every mutating
// endpoint validates its body before touching the session coordinator.
package api

import (
	"github.com/rinklab/rinkrelay/internal/models"
	"github.com/rinklab/rinkrelay/internal/validation"
)

// CreateSessionRequest is the body for POST /api/v1/sessions.
// SessionID is optional; the server generates one when omitted.
type CreateSessionRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,max=64"`
	ArenaID   string `json:"arena_id"   validate:"omitempty,max=64"`
}

// JoinRequest is the body for POST /sessions/{sessionID}/join.
type JoinRequest struct {
	CameraID string `json:"camera_id" validate:"required,min=1,max=64"`
	DeviceID string `json:"device_id" validate:"required,min=1,max=128"`
}

// SyncRequest is the body for POST /sessions/{sessionID}/sync.
// LocalTimestamp is the camera's clock reading at send time, RFC3339
// with sub-second precision.
type SyncRequest struct {
	CameraID       string `json:"camera_id"       validate:"required,min=1,max=64"`
	LocalTimestamp string `json:"local_timestamp" validate:"required,datetime=2006-01-02T15:04:05.999999999Z07:00"`
}

// HeartbeatRequest is the body for POST /sessions/{sessionID}/heartbeat.
type HeartbeatRequest struct {
	CameraID string `json:"camera_id" validate:"required,min=1,max=64"`
}

// ChunkRequest is the body for POST /sessions/{sessionID}/chunks.
// The video payload itself travels out of band; PayloadRef points at it.
// Metadata is optional: a camera that failed to extract it still submits
// the chunk, and the quality pipeline decays its prior score.
type ChunkRequest struct {
	CameraID   string                `json:"camera_id"   validate:"required,min=1,max=64"`
	Sequence   uint64                `json:"sequence"`
	PayloadRef string                `json:"payload_ref" validate:"required,min=1,max=512"`
	DurationMs int64                 `json:"duration_ms" validate:"required,min=1,max=60000"`
	Metadata   *models.ChunkMetadata `json:"metadata,omitempty"`
}

// validateRequest validates a struct and converts failures to the API
// error format.
func validateRequest(v interface{}) *APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}
	apiErr := validationErr.ToAPIError()
	return &APIError{
		Code:    ErrCodeValidationFailed,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}
