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

	"github.com/rinklab/rinkrelay/internal/arena"
	"github.com/rinklab/rinkrelay/internal/config"
	"github.com/rinklab/rinkrelay/internal/decisionlog"
	"github.com/rinklab/rinkrelay/internal/models"
)

func newTestManager(t *testing.T) (*Manager, *decisionlog.Store) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DecisionLog.Path = t.TempDir()

	store, err := decisionlog.Open(cfg.DecisionLog)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	m := NewManager(arena.NewRegistry(), Deps{Config: cfg, Store: store})
	return m, store
}

func TestManagerCreateAndGet(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	coord, err := m.Create(ctx, "game-1", arena.StandardLayoutID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if coord.ID() != "game-1" {
		t.Errorf("coordinator id %s", coord.ID())
	}

	got, err := m.Get("game-1")
	if err != nil || got != coord {
		t.Errorf("get returned %v, %v", got, err)
	}

	if _, err := m.Create(ctx, "game-1", arena.StandardLayoutID); err == nil {
		t.Error("duplicate create should fail")
	}
	if _, err := m.Get("nope"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("unknown get = %v, want ErrSessionNotFound", err)
	}
	if _, err := m.Create(ctx, "game-2", "no-such-arena"); !errors.Is(err, models.ErrArenaNotFound) {
		t.Errorf("unknown arena = %v, want ErrArenaNotFound", err)
	}

	sess, err := store.GetSession(ctx, "game-1")
	if err != nil {
		t.Fatalf("persisted record missing: %v", err)
	}
	if sess.Status != models.SessionWaiting {
		t.Errorf("persisted status %s, want waiting", sess.Status)
	}
}

func TestManagerGeneratesSessionID(t *testing.T) {
	m, _ := newTestManager(t)

	coord, err := m.Create(context.Background(), "", arena.StandardLayoutID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if coord.ID() == "" {
		t.Error("expected generated session id")
	}
}

func TestManagerRecoverAbortsMidFlight(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	interrupted := &models.GameSession{
		ID:      "game-crashed",
		ArenaID: arena.StandardLayoutID,
		Status:  models.SessionRecording,
	}
	finished := &models.GameSession{
		ID:      "game-done",
		ArenaID: arena.StandardLayoutID,
		Status:  models.SessionCompleted,
	}
	for _, sess := range []*models.GameSession{interrupted, finished} {
		if err := store.PutSession(ctx, sess); err != nil {
			t.Fatalf("seed session: %v", err)
		}
	}

	if err := m.Recover(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}

	got, err := store.GetSession(ctx, "game-crashed")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.SessionAborted {
		t.Errorf("interrupted session status %s, want aborted", got.Status)
	}

	got, err = store.GetSession(ctx, "game-done")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.SessionCompleted {
		t.Errorf("completed session status %s, should be untouched", got.Status)
	}
}

func TestManagerCompileAbortedSession(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	origin := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	end := origin.Add(2 * time.Second)
	if err := store.PutSession(ctx, &models.GameSession{
		ID:           "game-aborted",
		ArenaID:      arena.StandardLayoutID,
		Status:       models.SessionAborted,
		MasterOrigin: origin,
		CompletedAt:  end,
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	for i := 0; i < 10; i++ {
		d := models.SwitchingDecision{
			SessionID:  "game-aborted",
			Seq:        uint64(i),
			Tick:       uint64(i + 1),
			Timestamp:  origin.Add(time.Duration(i) * 200 * time.Millisecond),
			Primary:    "cam-a",
			Transition: models.TransitionCut,
			Reason:     models.ReasonHeld,
		}
		if err := store.Append(ctx, d); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	manifest, err := m.Compile(ctx, "game-aborted")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(manifest.Segments) != 1 {
		t.Fatalf("expected 1 merged segment, got %d", len(manifest.Segments))
	}
	if !manifest.Segments[0].Start.Equal(origin) || !manifest.Segments[0].End.Equal(end) {
		t.Errorf("segment [%v, %v], want [%v, %v]",
			manifest.Segments[0].Start, manifest.Segments[0].End, origin, end)
	}

	// The manifest is durable and visible through the manager.
	stored, err := m.Manifest(ctx, "game-aborted")
	if err != nil {
		t.Fatalf("manifest lookup: %v", err)
	}
	if stored.SessionID != "game-aborted" {
		t.Errorf("stored manifest session %s", stored.SessionID)
	}
}

func TestManagerCompileRejectsLiveSession(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	if err := store.PutSession(ctx, &models.GameSession{
		ID:      "game-live",
		ArenaID: arena.StandardLayoutID,
		Status:  models.SessionRecording,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := m.Compile(ctx, "game-live"); !errors.Is(err, ErrSessionStillLive) {
		t.Errorf("compile live = %v, want ErrSessionStillLive", err)
	}
}

func TestManagerRelease(t *testing.T) {
	m, _ := newTestManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Serve(ctx) }()

	if _, err := m.Create(ctx, "game-1", arena.StandardLayoutID); err != nil {
		t.Fatalf("create: %v", err)
	}
	m.Release("game-1")

	if _, err := m.Get("game-1"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("released session still live: %v", err)
	}
}
