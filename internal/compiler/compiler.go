// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

// Package compiler turns a session's decision stream into the ordered
// segment manifest handed to the external rendering pipeline.
//
// Each decision owns the span from its timestamp to the next decision's
// timestamp; the final decision runs to session end. Consecutive
// decisions that keep the same primary merge into one segment. The
// compiler validates coverage instead of repairing it: a hole in the
// stream is reported as a gap error for the operator, never papered
// over by stretching a neighboring segment.
package compiler

import (
	"fmt"
	"sort"
	"time"

	"github.com/rinklab/rinkrelay/internal/models"
)

// Compiler assembles segment manifests. Stateless; the clock argument
// on Compile exists so tests control CompiledAt.
type Compiler struct{}

// New returns a manifest compiler.
func New() *Compiler { return &Compiler{} }

// Compile builds the manifest for [start, end] from the ordered
// decision stream. Decisions must carry consecutive sequence numbers;
// a missing sequence means part of the edit script is lost and yields
// a gap error wrapping models.ErrCompilationGap.
func (c *Compiler) Compile(sessionID string, start, end, compiledAt time.Time, decisions []models.SwitchingDecision) (*models.SegmentManifest, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("session %s: end %v not after start %v: %w",
			sessionID, end, start, models.ErrCompilationGap)
	}
	if len(decisions) == 0 {
		return nil, fmt.Errorf("session %s: no decisions cover the session: %w",
			sessionID, models.ErrCompilationGap)
	}

	if err := validateStream(sessionID, start, end, decisions); err != nil {
		return nil, err
	}

	segments := buildSegments(start, end, decisions)
	manifest := &models.SegmentManifest{
		SessionID:  sessionID,
		Start:      start,
		End:        end,
		Segments:   segments,
		CompiledAt: compiledAt,
	}
	return manifest, nil
}

// validateStream checks ordering, sequence continuity, and coverage of
// the session start. Coverage of the tail is implicit: the last segment
// extends to session end.
func validateStream(sessionID string, start, end time.Time, decisions []models.SwitchingDecision) error {
	first := decisions[0]
	if first.Timestamp.After(start) {
		return fmt.Errorf("session %s: first decision at %v leaves [%v, %v) uncovered: %w",
			sessionID, first.Timestamp, start, first.Timestamp, models.ErrCompilationGap)
	}

	prev := first
	for _, d := range decisions[1:] {
		if d.Seq != prev.Seq+1 {
			return fmt.Errorf("session %s: decision sequence jumps %d to %d: %w",
				sessionID, prev.Seq, d.Seq, models.ErrCompilationGap)
		}
		if d.Timestamp.Before(prev.Timestamp) {
			return fmt.Errorf("session %s: decision %d at %v precedes decision %d at %v: %w",
				sessionID, d.Seq, d.Timestamp, prev.Seq, prev.Timestamp, models.ErrCompilationGap)
		}
		if d.Primary == "" {
			return fmt.Errorf("session %s: decision %d has no primary: %w",
				sessionID, d.Seq, models.ErrCompilationGap)
		}
		prev = d
	}
	if first.Primary == "" {
		return fmt.Errorf("session %s: decision %d has no primary: %w",
			sessionID, first.Seq, models.ErrCompilationGap)
	}
	if prev.Timestamp.After(end) {
		return fmt.Errorf("session %s: decision %d at %v is past session end %v: %w",
			sessionID, prev.Seq, prev.Timestamp, end, models.ErrCompilationGap)
	}
	return nil
}

// buildSegments merges same-primary runs and clamps the first boundary
// to session start.
func buildSegments(start, end time.Time, decisions []models.SwitchingDecision) []models.Segment {
	var segments []models.Segment
	cur := models.Segment{
		CameraID:     decisions[0].Primary,
		Start:        start,
		TransitionIn: decisions[0].Transition,
	}

	for _, d := range decisions[1:] {
		if d.Primary == cur.CameraID {
			continue
		}
		cur.End = d.Timestamp
		// Zero-length head segments can appear when the primary changes
		// on the very first tick after start; drop them.
		if cur.End.After(cur.Start) {
			segments = append(segments, cur)
		}
		cur = models.Segment{
			CameraID:     d.Primary,
			Start:        d.Timestamp,
			TransitionIn: d.Transition,
		}
	}

	cur.End = end
	segments = append(segments, cur)
	return segments
}

// Validate rechecks an assembled manifest: full coverage of
// [Start, End], no gaps, no overlaps. Used on manifests loaded back
// from storage before they are handed downstream.
func Validate(m *models.SegmentManifest) error {
	if len(m.Segments) == 0 {
		return fmt.Errorf("session %s: empty manifest: %w", m.SessionID, models.ErrCompilationGap)
	}
	if !m.Segments[0].Start.Equal(m.Start) {
		return fmt.Errorf("session %s: manifest starts at %v, session at %v: %w",
			m.SessionID, m.Segments[0].Start, m.Start, models.ErrCompilationGap)
	}
	for i, seg := range m.Segments {
		if !seg.End.After(seg.Start) {
			return fmt.Errorf("session %s: segment %d is empty or inverted: %w",
				m.SessionID, i, models.ErrCompilationGap)
		}
		if i > 0 && !seg.Start.Equal(m.Segments[i-1].End) {
			return fmt.Errorf("session %s: segments %d and %d are not contiguous: %w",
				m.SessionID, i-1, i, models.ErrCompilationGap)
		}
	}
	last := m.Segments[len(m.Segments)-1]
	if !last.End.Equal(m.End) {
		return fmt.Errorf("session %s: manifest ends at %v, session at %v: %w",
			m.SessionID, last.End, m.End, models.ErrCompilationGap)
	}
	return nil
}

// AssignChunks maps each camera's received chunks onto the manifest
// segments that will consume them, ordered by sequence. Chunks outside
// every segment owned by their camera are returned separately so the
// caller can account for them.
func AssignChunks(m *models.SegmentManifest, chunks []models.ChunkRef) (bySegment [][]models.ChunkRef, orphans []models.ChunkRef) {
	bySegment = make([][]models.ChunkRef, len(m.Segments))

	sorted := make([]models.ChunkRef, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CameraID != sorted[j].CameraID {
			return sorted[i].CameraID < sorted[j].CameraID
		}
		return sorted[i].Sequence < sorted[j].Sequence
	})

	for _, ch := range sorted {
		placed := false
		chunkEnd := ch.Start.Add(ch.Duration)
		for i, seg := range m.Segments {
			if seg.CameraID != ch.CameraID {
				continue
			}
			// A chunk belongs to a segment when their spans intersect.
			if ch.Start.Before(seg.End) && chunkEnd.After(seg.Start) {
				bySegment[i] = append(bySegment[i], ch)
				placed = true
			}
		}
		if !placed {
			orphans = append(orphans, ch)
		}
	}
	return bySegment, orphans
}
