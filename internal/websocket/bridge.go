// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package websocket

import (
	"context"
	"fmt"

	"github.com/rinklab/rinkrelay/internal/events"
	"github.com/rinklab/rinkrelay/internal/logging"
)

// MessageSource is the narrow subscription surface the bridge needs;
// tests substitute channels, production wires a NATS subscriber.
type MessageSource interface {
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)
	Close() error
}

// Bridge forwards decision and session events from the event stream to
// the dashboard hub. Runs as a supervised service beside the hub, so
// dashboards see the same feed as the rendering pipeline regardless of
// which process produced it.
type Bridge struct {
	hub         *Hub
	source      MessageSource
	topicPrefix string
}

// NewBridge creates an event-stream to dashboard bridge.
func NewBridge(hub *Hub, source MessageSource, topicPrefix string) *Bridge {
	return &Bridge{hub: hub, source: source, topicPrefix: topicPrefix}
}

// Serve subscribes and forwards until the context is cancelled.
func (b *Bridge) Serve(ctx context.Context) error {
	decisions, err := b.source.Subscribe(ctx, events.DecisionTopic(b.topicPrefix, "*"))
	if err != nil {
		return fmt.Errorf("subscribe decisions: %w", err)
	}
	sessions, err := b.source.Subscribe(ctx, events.SessionTopic(b.topicPrefix))
	if err != nil {
		return fmt.Errorf("subscribe sessions: %w", err)
	}

	logging.Info().Msg("dashboard event bridge started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-decisions:
			if !ok {
				return fmt.Errorf("decision subscription closed")
			}
			b.handleDecision(data)
		case data, ok := <-sessions:
			if !ok {
				return fmt.Errorf("session subscription closed")
			}
			b.handleSession(data)
		}
	}
}

// String names the service in supervisor logs.
func (b *Bridge) String() string { return "dashboard-bridge" }

func (b *Bridge) handleDecision(data []byte) {
	ev, err := events.DeserializeDecision(data)
	if err != nil {
		logging.Warn().Err(err).Msg("skipping unreadable decision event")
		return
	}
	b.hub.BroadcastDecision(ev.Decision)
}

func (b *Bridge) handleSession(data []byte) {
	ev, err := events.DeserializeSession(data)
	if err != nil {
		logging.Warn().Err(err).Msg("skipping unreadable session event")
		return
	}
	if ev.Warning != "" {
		b.hub.BroadcastWarning(ev.SessionID, ev.Warning, ev.CameraID)
		return
	}
	b.hub.BroadcastStatus(ev.SessionID, ev.Status)
}
