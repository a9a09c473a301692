// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

// Package events publishes the decision stream and session status
// events over NATS JetStream.
//
// The stream is a downstream feed for the rendering pipeline and
// operator tooling; the durable decision log remains the source of
// truth. Decisions are published after they are logged, so a publish
// failure never loses an edit, only delays its delivery.
package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/rinklab/rinkrelay/internal/models"
)

// DefaultTopicPrefix is used when configuration leaves the prefix empty.
const DefaultTopicPrefix = "rinkrelay"

// DecisionEvent carries one switching decision on the decision stream.
type DecisionEvent struct {
	EventID   string                   `json:"event_id"`
	SessionID string                   `json:"session_id"`
	Decision  models.SwitchingDecision `json:"decision"`
	EmittedAt time.Time                `json:"emitted_at"`
}

// SessionEvent carries a session lifecycle change or warning on the
// session topic.
type SessionEvent struct {
	EventID   string               `json:"event_id"`
	SessionID string               `json:"session_id"`
	Status    models.SessionStatus `json:"status"`

	// Warning is set for warning events, empty for plain transitions.
	Warning models.SessionWarning `json:"warning,omitempty"`

	// CameraID is set for camera-scoped warnings.
	CameraID string `json:"camera_id,omitempty"`

	EmittedAt time.Time `json:"emitted_at"`
}

// NewDecisionEvent wraps a decision for publishing.
func NewDecisionEvent(d models.SwitchingDecision, now time.Time) *DecisionEvent {
	return &DecisionEvent{
		EventID:   uuid.New().String(),
		SessionID: d.SessionID,
		Decision:  d,
		EmittedAt: now,
	}
}

// NewSessionEvent wraps a session status change for publishing.
func NewSessionEvent(sessionID string, status models.SessionStatus, now time.Time) *SessionEvent {
	return &SessionEvent{
		EventID:   uuid.New().String(),
		SessionID: sessionID,
		Status:    status,
		EmittedAt: now,
	}
}

// NewWarningEvent wraps an operator warning for publishing.
func NewWarningEvent(sessionID string, status models.SessionStatus, warning models.SessionWarning, cameraID string, now time.Time) *SessionEvent {
	ev := NewSessionEvent(sessionID, status, now)
	ev.Warning = warning
	ev.CameraID = cameraID
	return ev
}

// DecisionTopic returns the per-session decision stream subject.
func DecisionTopic(prefix, sessionID string) string {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return fmt.Sprintf("%s.decisions.%s", prefix, sessionID)
}

// SessionTopic returns the shared session status subject.
func SessionTopic(prefix string) string {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + ".sessions"
}

// StreamSubjects returns the subject set the JetStream stream must own.
func StreamSubjects(prefix string) []string {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return []string{prefix + ".decisions.*", prefix + ".sessions"}
}

// Serialize encodes an event payload for the wire.
func Serialize(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("serialize event: %w", err)
	}
	return data, nil
}

// DeserializeDecision decodes a decision stream payload.
func DeserializeDecision(data []byte) (*DecisionEvent, error) {
	var ev DecisionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("deserialize decision event: %w", err)
	}
	if ev.SessionID == "" {
		return nil, fmt.Errorf("decision event missing session id")
	}
	return &ev, nil
}

// DeserializeSession decodes a session topic payload.
func DeserializeSession(data []byte) (*SessionEvent, error) {
	var ev SessionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("deserialize session event: %w", err)
	}
	if ev.SessionID == "" {
		return nil, fmt.Errorf("session event missing session id")
	}
	return &ev, nil
}
