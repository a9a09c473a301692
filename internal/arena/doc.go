// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

// Package arena owns venue layouts and position assignment.
//
// A Registry holds immutable ArenaConfigurations: the built-in "standard"
// hockey layout plus any YAML layout files found in the configured
// directory. An Assigner maps joining cameras onto a layout's position
// slots in priority order and keeps slot occupancy for one session.
package arena
