// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package decisionlog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// appendsTotal counts durable decision appends.
	appendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decisionlog_appends_total",
		Help: "Total number of switching decisions appended to the log",
	})

	// replaysTotal counts full replay iterations.
	replaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decisionlog_replays_total",
		Help: "Total number of decision log replay iterations",
	})

	// appendLatency measures decision append latency.
	appendLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "decisionlog_append_latency_seconds",
		Help:    "Decision append latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// gcRunsTotal counts value log GC runs.
	gcRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decisionlog_gc_runs_total",
		Help: "Total number of BadgerDB value log GC runs",
	})

	// gcLatency measures value log GC latency.
	gcLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "decisionlog_gc_latency_seconds",
		Help:    "BadgerDB value log GC latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)

func recordAppend()                    { appendsTotal.Inc() }
func recordReplay()                    { replaysTotal.Inc() }
func observeAppendLatency(sec float64) { appendLatency.Observe(sec) }
func recordGCRun(sec float64)          { gcRunsTotal.Inc(); gcLatency.Observe(sec) }
