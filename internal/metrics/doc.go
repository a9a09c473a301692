// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

/*
Package metrics provides Prometheus metrics collection and export.

All collectors are registered with the default registry via promauto and
served on /metrics by the API router. Metric families cover the full
coordination path:

  - Sessions: active count, status transitions, operator warnings
  - Cameras: per-state gauge, heartbeat misses, disconnects
  - Clock sync: request outcomes, offset distribution
  - Quality: per-camera score gauge, tier counters, chunk rejections
  - Switching: decisions by reason, tick duration
  - Event stream: NATS publish outcomes, circuit breaker state
  - Transport: HTTP latency by route, in-flight requests, websocket
    client count

Per-camera gauge series carry session_id and camera_id labels; callers
must remove them with ForgetCamera when a session ends, otherwise the
scrape surface grows with every session ever run.

Recording helpers (RecordAPIRequest, RecordDecision, ...) exist for call
sites that would otherwise repeat label plumbing; packages with richer
needs use the exported collectors directly.
*/
package metrics
