// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package websocket

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rinklab/rinkrelay/internal/logging"
	"github.com/rinklab/rinkrelay/internal/models"
)

//nolint:gochecknoinits // quiet logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "error",
		Format: "console",
		Output: io.Discard,
	})
}

// startHub runs the hub and returns a stop function.
func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("hub did not stop")
		}
	})
	return hub, cancel
}

// testClient registers a hub client without a real connection.
func testClient(t *testing.T, hub *Hub) *Client {
	t.Helper()
	c := &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		send: make(chan Message, 4),
	}
	select {
	case hub.Register <- c:
	case <-time.After(time.Second):
		t.Fatal("register timed out")
	}
	return c
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestBroadcastDecisionReachesAllClients(t *testing.T) {
	hub, _ := startHub(t)
	c1 := testClient(t, hub)
	c2 := testClient(t, hub)

	hub.BroadcastDecision(models.SwitchingDecision{
		SessionID: "s1",
		Seq:       1,
		Primary:   "cam-a",
	})

	for _, c := range []*Client{c1, c2} {
		msg := receive(t, c)
		if msg.Type != MessageTypeDecision {
			t.Fatalf("type = %q, want decision", msg.Type)
		}
		d, ok := msg.Data.(models.SwitchingDecision)
		if !ok || d.Primary != "cam-a" {
			t.Fatalf("data = %+v", msg.Data)
		}
	}
}

func TestBroadcastStatusAndWarning(t *testing.T) {
	hub, _ := startHub(t)
	c := testClient(t, hub)

	hub.BroadcastStatus("s1", models.SessionRecording)
	msg := receive(t, c)
	if msg.Type != MessageTypeStatus {
		t.Fatalf("type = %q, want status", msg.Type)
	}

	hub.BroadcastWarning("s1", models.WarningAllCamerasPoor, "")
	msg = receive(t, c)
	if msg.Type != MessageTypeWarning {
		t.Fatalf("type = %q, want warning", msg.Type)
	}
	w, ok := msg.Data.(WarningData)
	if !ok || w.Warning != models.WarningAllCamerasPoor {
		t.Fatalf("data = %+v", msg.Data)
	}
}

func TestSlowClientDropped(t *testing.T) {
	hub, _ := startHub(t)
	slow := testClient(t, hub)
	fast := testClient(t, hub)

	// Fill the slow client's buffer without draining it.
	for i := 0; i < cap(slow.send)+1; i++ {
		hub.BroadcastStatus("s1", models.SessionRecording)
	}

	// The fast client keeps receiving.
	deadline := time.After(time.Second)
	drained := 0
	for drained < cap(slow.send)+1 {
		select {
		case <-fast.send:
			drained++
		case <-deadline:
			t.Fatalf("fast client stalled after %d messages", drained)
		}
	}

	// The slow client is unregistered once its buffer overflows.
	waitFor(t, func() bool { return hub.ClientCount() == 1 })
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	hub, _ := startHub(t)
	c := testClient(t, hub)

	select {
	case hub.Unregister <- c:
	case <-time.After(time.Second):
		t.Fatal("unregister timed out")
	}

	waitFor(t, func() bool {
		select {
		case _, ok := <-c.send:
			return !ok
		default:
			return false
		}
	})
	if hub.ClientCount() != 0 {
		t.Fatalf("client count = %d, want 0", hub.ClientCount())
	}
}

func TestShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Serve(ctx)
		close(done)
	}()

	c := testClient(t, hub)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	// Closed channel drains to not-ok.
	for {
		if _, ok := <-c.send; !ok {
			break
		}
	}
	if hub.ClientCount() != 0 {
		t.Fatalf("client count = %d, want 0 after shutdown", hub.ClientCount())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
