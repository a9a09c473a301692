// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package compiler

import (
	"errors"
	"testing"
	"time"

	"github.com/rinklab/rinkrelay/internal/models"
)

var sessionStart = time.Date(2026, 2, 7, 19, 0, 0, 0, time.UTC)

// tickDecision builds a decision on the 200ms tick grid.
func tickDecision(seq uint64, primary string, transition models.TransitionType) models.SwitchingDecision {
	return models.SwitchingDecision{
		SessionID:  "s1",
		Seq:        seq,
		Tick:       seq,
		Timestamp:  sessionStart.Add(time.Duration(seq) * 200 * time.Millisecond),
		Primary:    primary,
		Transition: transition,
		Reason:     models.ReasonHeld,
	}
}

func TestCompileMergesRuns(t *testing.T) {
	c := New()
	end := sessionStart.Add(2 * time.Second)
	decisions := []models.SwitchingDecision{
		tickDecision(0, "cam-a", models.TransitionCut),
		tickDecision(1, "cam-a", models.TransitionCut),
		tickDecision(2, "cam-a", models.TransitionCut),
		tickDecision(3, "cam-b", models.TransitionDissolve),
		tickDecision(4, "cam-b", models.TransitionCut),
		tickDecision(5, "cam-a", models.TransitionDissolve),
	}

	m, err := c.Compile("s1", sessionStart, end, end.Add(time.Minute), decisions)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(m.Segments) != 3 {
		t.Fatalf("segments = %d, want 3 merged runs", len(m.Segments))
	}

	want := []struct {
		camera     string
		start, end time.Duration
		transition models.TransitionType
	}{
		{"cam-a", 0, 600 * time.Millisecond, models.TransitionCut},
		{"cam-b", 600 * time.Millisecond, 1 * time.Second, models.TransitionDissolve},
		{"cam-a", 1 * time.Second, 2 * time.Second, models.TransitionDissolve},
	}
	for i, w := range want {
		seg := m.Segments[i]
		if seg.CameraID != w.camera {
			t.Errorf("segment %d camera = %q, want %q", i, seg.CameraID, w.camera)
		}
		if !seg.Start.Equal(sessionStart.Add(w.start)) || !seg.End.Equal(sessionStart.Add(w.end)) {
			t.Errorf("segment %d span = [%v, %v], want [%v, %v]",
				i, seg.Start, seg.End, sessionStart.Add(w.start), sessionStart.Add(w.end))
		}
		if seg.TransitionIn != w.transition {
			t.Errorf("segment %d transition = %q, want %q", i, seg.TransitionIn, w.transition)
		}
	}
}

func TestCompileNoGapsNoOverlaps(t *testing.T) {
	c := New()
	end := sessionStart.Add(10 * time.Second)

	// A longer alternating stream; validate the assembled manifest with
	// the same checker used on storage loads.
	var decisions []models.SwitchingDecision
	cams := []string{"cam-a", "cam-b", "cam-c"}
	for seq := uint64(0); seq < 50; seq++ {
		decisions = append(decisions, tickDecision(seq, cams[(seq/7)%3], models.TransitionCut))
	}

	m, err := c.Compile("s1", sessionStart, end, end, decisions)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if err := Validate(m); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !m.Segments[0].Start.Equal(sessionStart) {
		t.Fatalf("first segment starts %v, want session start", m.Segments[0].Start)
	}
	if !m.Segments[len(m.Segments)-1].End.Equal(end) {
		t.Fatalf("last segment ends %v, want session end", m.Segments[len(m.Segments)-1].End)
	}
}

func TestCompileRejectsEmptyStream(t *testing.T) {
	c := New()
	_, err := c.Compile("s1", sessionStart, sessionStart.Add(time.Second), sessionStart, nil)
	if !errors.Is(err, models.ErrCompilationGap) {
		t.Fatalf("err = %v, want ErrCompilationGap", err)
	}
}

func TestCompileRejectsSequenceJump(t *testing.T) {
	c := New()
	end := sessionStart.Add(2 * time.Second)
	decisions := []models.SwitchingDecision{
		tickDecision(0, "cam-a", models.TransitionCut),
		tickDecision(1, "cam-a", models.TransitionCut),
		tickDecision(3, "cam-b", models.TransitionCut), // seq 2 lost
	}

	_, err := c.Compile("s1", sessionStart, end, end, decisions)
	if !errors.Is(err, models.ErrCompilationGap) {
		t.Fatalf("err = %v, want ErrCompilationGap", err)
	}
}

func TestCompileRejectsLateFirstDecision(t *testing.T) {
	c := New()
	end := sessionStart.Add(2 * time.Second)
	d := tickDecision(0, "cam-a", models.TransitionCut)
	d.Timestamp = sessionStart.Add(500 * time.Millisecond)

	_, err := c.Compile("s1", sessionStart, end, end, []models.SwitchingDecision{d})
	if !errors.Is(err, models.ErrCompilationGap) {
		t.Fatalf("err = %v, want ErrCompilationGap", err)
	}
}

func TestCompileRejectsBackwardsTimestamp(t *testing.T) {
	c := New()
	end := sessionStart.Add(2 * time.Second)
	d0 := tickDecision(0, "cam-a", models.TransitionCut)
	d1 := tickDecision(1, "cam-b", models.TransitionCut)
	d1.Timestamp = d0.Timestamp.Add(-time.Millisecond)

	_, err := c.Compile("s1", sessionStart, end, end, []models.SwitchingDecision{d0, d1})
	if !errors.Is(err, models.ErrCompilationGap) {
		t.Fatalf("err = %v, want ErrCompilationGap", err)
	}
}

func TestCompileDropsZeroLengthHead(t *testing.T) {
	c := New()
	end := sessionStart.Add(time.Second)

	// Primary changes on a decision sharing the start instant: the
	// zero-length head for cam-a must not appear.
	d0 := tickDecision(0, "cam-a", models.TransitionCut)
	d1 := tickDecision(1, "cam-b", models.TransitionCut)
	d1.Timestamp = sessionStart

	m, err := c.Compile("s1", sessionStart, end, end, []models.SwitchingDecision{d0, d1})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(m.Segments) != 1 || m.Segments[0].CameraID != "cam-b" {
		t.Fatalf("segments = %+v, want single cam-b segment", m.Segments)
	}
	if err := Validate(m); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateCatchesTamperedManifest(t *testing.T) {
	end := sessionStart.Add(time.Second)
	m := &models.SegmentManifest{
		SessionID: "s1",
		Start:     sessionStart,
		End:       end,
		Segments: []models.Segment{
			{CameraID: "cam-a", Start: sessionStart, End: sessionStart.Add(400 * time.Millisecond)},
			{CameraID: "cam-b", Start: sessionStart.Add(600 * time.Millisecond), End: end},
		},
	}
	if err := Validate(m); !errors.Is(err, models.ErrCompilationGap) {
		t.Fatalf("err = %v, want ErrCompilationGap for interior hole", err)
	}
}

func TestAssignChunks(t *testing.T) {
	end := sessionStart.Add(time.Second)
	m := &models.SegmentManifest{
		SessionID: "s1",
		Start:     sessionStart,
		End:       end,
		Segments: []models.Segment{
			{CameraID: "cam-a", Start: sessionStart, End: sessionStart.Add(500 * time.Millisecond)},
			{CameraID: "cam-b", Start: sessionStart.Add(500 * time.Millisecond), End: end},
		},
	}

	chunks := []models.ChunkRef{
		{CameraID: "cam-a", Sequence: 0, Start: sessionStart, Duration: 300 * time.Millisecond},
		{CameraID: "cam-a", Sequence: 1, Start: sessionStart.Add(300 * time.Millisecond), Duration: 300 * time.Millisecond},
		{CameraID: "cam-b", Sequence: 0, Start: sessionStart.Add(500 * time.Millisecond), Duration: 500 * time.Millisecond},
		// cam-b chunk from before the session: orphaned.
		{CameraID: "cam-b", Sequence: 99, Start: sessionStart.Add(-2 * time.Second), Duration: 100 * time.Millisecond},
	}

	bySegment, orphans := AssignChunks(m, chunks)
	if len(bySegment[0]) != 2 {
		t.Fatalf("segment 0 chunks = %d, want 2", len(bySegment[0]))
	}
	if len(bySegment[1]) != 1 || bySegment[1][0].CameraID != "cam-b" {
		t.Fatalf("segment 1 chunks = %+v, want single cam-b chunk", bySegment[1])
	}
	if len(orphans) != 1 || orphans[0].Sequence != 99 {
		t.Fatalf("orphans = %+v, want the out-of-span chunk", orphans)
	}
	if bySegment[0][0].Sequence != 0 || bySegment[0][1].Sequence != 1 {
		t.Fatalf("segment 0 chunk order = %+v, want ascending sequence", bySegment[0])
	}
}
