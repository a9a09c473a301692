// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/rinklab/rinkrelay/internal/arena"
	"github.com/rinklab/rinkrelay/internal/config"
	"github.com/rinklab/rinkrelay/internal/decisionlog"
	"github.com/rinklab/rinkrelay/internal/models"
)

// TestServeEndToEnd drives a whole session through the running actor:
// join, sync, recording ticks, stop, compile.
func TestServeEndToEnd(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DecisionLog.Path = t.TempDir()
	cfg.Session.TickInterval = 10 * time.Millisecond
	cfg.Sync.Countdown = 50 * time.Millisecond

	store, err := decisionlog.Open(cfg.DecisionLog)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	arenaCfg, err := arena.NewRegistry().Get(arena.StandardLayoutID)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}

	c := NewCoordinator("game-e2e", arenaCfg, Deps{Config: cfg, Store: store})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- c.Serve(ctx) }()

	for _, id := range []string{"cam-a", "cam-b"} {
		if _, err := c.Join(ctx, id, "device-"+id); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
		if _, err := c.RequestSync(ctx, id, time.Now().UTC()); err != nil {
			t.Fatalf("sync %s: %v", id, err)
		}
	}

	waitFor(t, ctx, c, func(s Status) bool { return s.Status == models.SessionRecording })

	for seq := uint64(0); seq < 3; seq++ {
		for _, id := range []string{"cam-a", "cam-b"} {
			if _, err := c.SubmitChunk(ctx, id, seq, goodMeta(), "chunk://e2e", cfg.Session.TickInterval); err != nil {
				t.Fatalf("chunk %s/%d: %v", id, seq, err)
			}
		}
		time.Sleep(2 * cfg.Session.TickInterval)
	}

	waitFor(t, ctx, c, func(s Status) bool { return s.CurrentPrimary != "" })

	if err := c.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	select {
	case err := <-served:
		if !errors.Is(err, suture.ErrDoNotRestart) {
			t.Errorf("serve returned %v, want ErrDoNotRestart", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not retire after completion")
	}

	manifest, err := store.GetManifest(context.Background(), "game-e2e")
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if len(manifest.Segments) == 0 {
		t.Error("empty manifest after live session")
	}
}

func waitFor(t *testing.T, ctx context.Context, c *Coordinator, cond func(Status) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := c.Status(ctx)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if cond(snap) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}
