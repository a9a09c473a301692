// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

/*
Package session runs the per-session coordination loop.

One Coordinator actor owns each session. All camera and session state is
confined to the coordinator goroutine; HTTP handlers and other callers
interact exclusively through message passing (Join, RequestSync,
Heartbeat, SubmitChunk, Status, Stop), so decisions are produced by a
single serialized step per tick and the decision log has exactly one
writer.

The tick loop drives the lifecycle:

	Waiting -> Synchronizing -> Recording -> Compiling -> Completed
	                                  \-> Aborted (fatal error, restart)

Each recording tick evaluates heartbeat liveness, assesses per-camera
quality from the newest chunk metadata, computes processing weights,
asks the switching engine for a decision, appends it to the durable log,
and only then publishes it to the event stream and dashboard hub. A
slow or silent camera degrades; it never stalls the tick.

The Manager owns the live coordinators under a suture supervisor, serves
lookups for the API layer, and reconciles persisted session records
after a restart: sessions found mid-recording are aborted (their cameras
are gone) but their decision logs remain compilable via Compile.
*/
package session
