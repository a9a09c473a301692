// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

// Package models defines the domain types shared across the coordination
// engine: arena layouts and position slots, session and camera stream
// lifecycles, per-tick quality reports and processing weights, switching
// decisions, and chunk/segment records.
//
// Types here are plain data. Behavior (assignment, scoring, switching,
// compilation) lives in the packages that own it; models only carries the
// vocabulary those packages exchange.
package models
