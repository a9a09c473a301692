// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package decisionlog

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/rinklab/rinkrelay/internal/logging"
)

// GCService runs Badger value log garbage collection on an interval.
// Implements suture.Service; run it under the data supervisor.
type GCService struct {
	store *Store
}

// NewGCService wraps the store's value log GC as a supervised service.
func NewGCService(store *Store) *GCService {
	return &GCService{store: store}
}

// Serve runs GC until the context is cancelled.
func (g *GCService) Serve(ctx context.Context) error {
	interval := g.store.cfg.GCInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.runOnce()
		}
	}
}

func (g *GCService) runOnce() {
	g.store.mu.RLock()
	if g.store.closed {
		g.store.mu.RUnlock()
		return
	}
	g.store.mu.RUnlock()

	ratio := g.store.cfg.GCRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}

	start := time.Now()
	rewrites := 0
	for {
		err := g.store.db.RunValueLogGC(ratio)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			logging.Warn().Err(err).Msg("decision log value GC failed")
			break
		}
		rewrites++
	}
	recordGCRun(time.Since(start).Seconds())

	if rewrites > 0 {
		logging.Debug().
			Int("rewrites", rewrites).
			Dur("elapsed", time.Since(start)).
			Msg("decision log value GC")
	}
}

// String names the service in supervisor logs.
func (g *GCService) String() string { return "decisionlog-gc" }
