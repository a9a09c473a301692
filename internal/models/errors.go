// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package models

import "errors"

// Domain errors. All failures callers can branch on are typed; fatal
// configuration and invariant violations reject the operation outright,
// per-camera failures never abort a session.
var (
	// ErrSessionNotFound indicates the referenced session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionFull indicates every declared position slot is taken.
	ErrSessionFull = errors.New("session is full")

	// ErrSessionTerminal indicates the session has completed or aborted.
	ErrSessionTerminal = errors.New("session is in a terminal state")

	// ErrInvalidCameraCount indicates a camera count outside [2,6].
	ErrInvalidCameraCount = errors.New("camera count must be between 2 and 6")

	// ErrPositionUnavailable indicates no free slot exists for a joiner.
	ErrPositionUnavailable = errors.New("no position slot available")

	// ErrCameraNotFound indicates the camera is not part of the session.
	ErrCameraNotFound = errors.New("camera not found in session")

	// ErrArenaNotFound indicates the arena layout is not registered.
	ErrArenaNotFound = errors.New("arena configuration not found")

	// ErrInvalidArena indicates an arena layout failed validation.
	ErrInvalidArena = errors.New("arena configuration is invalid")

	// ErrStaleSequence indicates a duplicate or out-of-order chunk
	// sequence number. The chunk is rejected, not reordered.
	ErrStaleSequence = errors.New("chunk sequence is stale or out of order")

	// ErrCompilationGap indicates the decision log left an uncovered span
	// in the compiled manifest. Surfaced to the operator, never patched.
	ErrCompilationGap = errors.New("compilation gap detected")
)
