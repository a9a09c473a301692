// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/rinklab/rinkrelay/internal/events"
	"github.com/rinklab/rinkrelay/internal/models"
)

// fakeSource serves pre-wired channels per topic.
type fakeSource struct {
	topics map[string]chan []byte
}

func newFakeSource() *fakeSource {
	return &fakeSource{topics: make(map[string]chan []byte)}
}

func (f *fakeSource) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	ch := make(chan []byte, 16)
	f.topics[topic] = ch
	return ch, nil
}

func (f *fakeSource) Close() error { return nil }

func TestBridgeForwardsDecisions(t *testing.T) {
	hub, _ := startHub(t)
	c := testClient(t, hub)

	source := newFakeSource()
	bridge := NewBridge(hub, source, "rinkrelay")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bridge.Serve(ctx) }()

	waitFor(t, func() bool { return len(source.topics) == 2 })

	ev := events.NewDecisionEvent(models.SwitchingDecision{
		SessionID: "s1",
		Seq:       4,
		Primary:   "cam-b",
	}, time.Unix(7000, 0).UTC())
	data, err := events.Serialize(ev)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	source.topics["rinkrelay.decisions.*"] <- data

	msg := receive(t, c)
	if msg.Type != MessageTypeDecision {
		t.Fatalf("type = %q, want decision", msg.Type)
	}
	d, ok := msg.Data.(models.SwitchingDecision)
	if !ok || d.Primary != "cam-b" {
		t.Fatalf("data = %+v", msg.Data)
	}
}

func TestBridgeRoutesWarnings(t *testing.T) {
	hub, _ := startHub(t)
	c := testClient(t, hub)

	source := newFakeSource()
	bridge := NewBridge(hub, source, "rinkrelay")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bridge.Serve(ctx) }()

	waitFor(t, func() bool { return len(source.topics) == 2 })

	ev := events.NewWarningEvent("s1", models.SessionRecording, models.WarningCameraDegraded, "cam-c", time.Unix(7100, 0).UTC())
	data, err := events.Serialize(ev)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	source.topics["rinkrelay.sessions"] <- data

	msg := receive(t, c)
	if msg.Type != MessageTypeWarning {
		t.Fatalf("type = %q, want warning", msg.Type)
	}
	w, ok := msg.Data.(WarningData)
	if !ok || w.CameraID != "cam-c" {
		t.Fatalf("data = %+v", msg.Data)
	}
}

func TestBridgeSkipsGarbage(t *testing.T) {
	hub, _ := startHub(t)
	c := testClient(t, hub)

	source := newFakeSource()
	bridge := NewBridge(hub, source, "rinkrelay")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bridge.Serve(ctx) }()

	waitFor(t, func() bool { return len(source.topics) == 2 })

	source.topics["rinkrelay.sessions"] <- []byte(`{broken`)
	hub.BroadcastStatus("s1", models.SessionWaiting)

	// The garbage frame is skipped; the next real one arrives.
	msg := receive(t, c)
	if msg.Type != MessageTypeStatus {
		t.Fatalf("type = %q, want status", msg.Type)
	}
}
