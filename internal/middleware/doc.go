// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

/*
Package middleware provides HTTP middleware for the coordination API.

Components:

  - RequestID: UUID-based request tracking, propagated through the
    logging context
  - PrometheusMetrics: request duration and in-flight instrumentation,
    labeled by chi route pattern
  - Compression: gzip for responses to clients that accept it

All middleware follows the chi convention func(http.Handler) http.Handler
and composes with the CORS and rate-limit middleware built in the api
package:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.Compression)

Thread safety: RequestID uses only immutable context values, the
metrics middleware relies on Prometheus collectors, and compression
uses a sync.Pool of per-request gzip writers.
*/
package middleware
