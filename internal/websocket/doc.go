// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

/*
Package websocket pushes live session activity to operator dashboards.

A single Hub fans switching decisions, session status changes, and
warnings out to every connected dashboard. Each connection is a Client
with dedicated read and write goroutines; the Bridge forwards events
arriving on the NATS stream into the hub so dashboards connected to any
instance see the full feed.

Delivery is best-effort. The hub never blocks on a client: a dashboard
that cannot keep up with its 256-frame buffer is disconnected and
counted in the dropped-messages metric. Authoritative state lives in
the decision log and the status API; a reconnecting dashboard resyncs
from there.

Frame format:

	{"type": "decision" | "status" | "warning" | "pong", "data": {...}}

Clients may send {"type": "ping"} and receive a pong; all other inbound
frames are ignored.
*/
package websocket
