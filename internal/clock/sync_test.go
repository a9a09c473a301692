// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package clock

import (
	"testing"
	"time"

	"github.com/rinklab/rinkrelay/internal/config"
)

var syncEpoch = time.Date(2026, 1, 10, 19, 0, 0, 0, time.UTC)

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		Countdown:    3 * time.Second,
		MaxRetries:   3,
		OffsetTarget: 100 * time.Millisecond,
		OffsetWindow: 4,
	}
}

func TestRequestSyncOffset(t *testing.T) {
	clk := NewManual(syncEpoch)
	s := NewSynchronizer(clk, testSyncConfig())

	// Camera clock 250ms behind master.
	local := syncEpoch.Add(-250 * time.Millisecond)
	res := s.RequestSync("cam-a", local)

	if res.OffsetMs != 250 {
		t.Fatalf("offset = %.1fms, want 250ms", res.OffsetMs)
	}
	if !res.Validated {
		t.Fatal("first sample must validate")
	}
	if res.Degraded {
		t.Fatal("first sample must not be degraded")
	}
}

func TestRequestSyncRollingAverage(t *testing.T) {
	clk := NewManual(syncEpoch)
	s := NewSynchronizer(clk, testSyncConfig())

	for _, offsetMs := range []int{200, 220, 240} {
		s.RequestSync("cam-a", clk.Now().Add(-time.Duration(offsetMs)*time.Millisecond))
		clk.Advance(time.Second)
	}

	got, ok := s.Offset("cam-a")
	if !ok {
		t.Fatal("camera offset missing")
	}
	if got != 220 {
		t.Fatalf("rolling offset = %.1fms, want 220ms", got)
	}
}

func TestSyncValidationRetriesThenDegrades(t *testing.T) {
	clk := NewManual(syncEpoch)
	s := NewSynchronizer(clk, testSyncConfig())

	// Establish a stable baseline around 100ms.
	s.RequestSync("cam-a", clk.Now().Add(-100*time.Millisecond))

	// Wildly jittering samples fail validation against the average.
	var res SyncResult
	for i := 0; i < 3; i++ {
		jitter := time.Duration(1+i) * time.Second
		res = s.RequestSync("cam-a", clk.Now().Add(-jitter))
	}

	if !res.Degraded {
		t.Fatal("camera must degrade after exhausting sync retries")
	}
	// Degraded mode still validates so recording proceeds.
	if !res.Validated {
		t.Fatal("degraded sync must still report validated")
	}
	if !s.Degraded("cam-a") {
		t.Fatal("Degraded() must report fallback mode")
	}
}

func TestSharedCountdown(t *testing.T) {
	clk := NewManual(syncEpoch)
	s := NewSynchronizer(clk, testSyncConfig())

	startAt := s.ArmCountdown()
	if want := syncEpoch.Add(3 * time.Second); !startAt.Equal(want) {
		t.Fatalf("startAt = %v, want %v", startAt, want)
	}

	// Arming again must not move the instant.
	clk.Advance(time.Second)
	if again := s.ArmCountdown(); !again.Equal(startAt) {
		t.Fatalf("re-arm moved start instant to %v", again)
	}

	// Two cameras syncing at different times count down to the same
	// master instant.
	resA := s.RequestSync("cam-a", clk.Now())
	clk.Advance(500 * time.Millisecond)
	resB := s.RequestSync("cam-b", clk.Now())

	if resA.CountdownMs != 2000 {
		t.Errorf("cam-a countdown = %dms, want 2000ms", resA.CountdownMs)
	}
	if resB.CountdownMs != 1500 {
		t.Errorf("cam-b countdown = %dms, want 1500ms", resB.CountdownMs)
	}

	// Past the start instant the countdown is exhausted.
	clk.Advance(5 * time.Second)
	if res := s.RequestSync("cam-a", clk.Now()); res.CountdownMs != 0 {
		t.Errorf("post-start countdown = %dms, want 0", res.CountdownMs)
	}
}

func TestSyncedRequiresAllCameras(t *testing.T) {
	clk := NewManual(syncEpoch)
	s := NewSynchronizer(clk, testSyncConfig())

	s.RequestSync("cam-a", clk.Now())
	if s.Synced([]string{"cam-a", "cam-b"}) {
		t.Fatal("cam-b never synced, Synced must be false")
	}

	s.RequestSync("cam-b", clk.Now())
	if !s.Synced([]string{"cam-a", "cam-b"}) {
		t.Fatal("both cameras synced, Synced must be true")
	}

	if s.Synced(nil) {
		t.Fatal("empty camera list must not report synced")
	}
}
