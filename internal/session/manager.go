// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/thejerf/suture/v4"

	"github.com/rinklab/rinkrelay/internal/arena"
	"github.com/rinklab/rinkrelay/internal/clock"
	"github.com/rinklab/rinkrelay/internal/compiler"
	"github.com/rinklab/rinkrelay/internal/decisionlog"
	"github.com/rinklab/rinkrelay/internal/logging"
	"github.com/rinklab/rinkrelay/internal/metrics"
	"github.com/rinklab/rinkrelay/internal/models"
)

var (
	// ErrSessionStillLive rejects recompilation of a session that has
	// not reached a terminal state.
	ErrSessionStillLive = errors.New("session has not finished")

	// ErrSessionExists rejects creating a session whose ID is already
	// live.
	ErrSessionExists = errors.New("session already exists")
)

// Manager owns every live session coordinator. It is itself a
// suture.Service: its Serve runs an inner supervisor that restarts
// crashed coordinators and retires completed ones.
type Manager struct {
	deps   Deps
	arenas *arena.Registry
	sup    *suture.Supervisor

	mu     sync.RWMutex
	active map[string]*Coordinator
	tokens map[string]suture.ServiceToken
}

// NewManager creates a manager. The arena registry supplies layouts for
// new sessions; deps are shared by every coordinator.
func NewManager(arenas *arena.Registry, deps Deps) *Manager {
	return &Manager{
		deps:   deps,
		arenas: arenas,
		sup:    suture.NewSimple("sessions"),
		active: make(map[string]*Coordinator),
		tokens: make(map[string]suture.ServiceToken),
	}
}

// Serve runs the session supervisor until ctx is cancelled.
func (m *Manager) Serve(ctx context.Context) error {
	return m.sup.Serve(ctx)
}

func (m *Manager) String() string { return "session-manager" }

// Create starts a new session on the given arena layout. An empty
// sessionID gets a generated UUID. Returns the coordinator.
func (m *Manager) Create(ctx context.Context, sessionID, arenaID string) (*Coordinator, error) {
	arenaCfg, err := m.arenas.Get(arenaID)
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.active[sessionID]; exists {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionExists)
	}

	coord := NewCoordinator(sessionID, arenaCfg, m.deps)
	if err := m.deps.Store.PutSession(ctx, coord.session); err != nil {
		return nil, fmt.Errorf("persist new session: %w", err)
	}

	m.tokens[sessionID] = m.sup.Add(coord)
	m.active[sessionID] = coord
	metrics.SessionsActive.Inc()

	logging.Info().
		Str("session_id", sessionID).
		Str("arena_id", arenaID).
		Msg("session created")
	return coord, nil
}

// Get returns the live coordinator for a session.
func (m *Manager) Get(sessionID string) (*Coordinator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coord, ok := m.active[sessionID]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return coord, nil
}

// Release drops a terminal session's coordinator from the live set. The
// durable record, decision log, and manifest remain in the store.
func (m *Manager) Release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token, ok := m.tokens[sessionID]; ok {
		_ = m.sup.Remove(token)
		delete(m.tokens, sessionID)
	}
	delete(m.active, sessionID)
}

// Sessions lists every persisted session record, live or historical.
func (m *Manager) Sessions(ctx context.Context) ([]*models.GameSession, error) {
	return m.deps.Store.Sessions(ctx)
}

// Session returns the persisted record for one session.
func (m *Manager) Session(ctx context.Context, sessionID string) (*models.GameSession, error) {
	return m.deps.Store.GetSession(ctx, sessionID)
}

// Manifest returns the compiled segment manifest for a session.
func (m *Manager) Manifest(ctx context.Context, sessionID string) (*models.SegmentManifest, error) {
	m.mu.RLock()
	_, live := m.active[sessionID]
	m.mu.RUnlock()

	manifest, err := m.deps.Store.GetManifest(ctx, sessionID)
	if err != nil {
		if live {
			return nil, fmt.Errorf("session still recording: %w", err)
		}
		return nil, err
	}
	return manifest, nil
}

// Recover reconciles persisted session records after a restart. Sessions
// found mid-flight are marked aborted: the cameras are gone, but their
// decision logs stay compilable.
func (m *Manager) Recover(ctx context.Context) error {
	sessions, err := m.deps.Store.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("list persisted sessions: %w", err)
	}

	recovered := 0
	for _, sess := range sessions {
		if sess.Status.Terminal() {
			continue
		}
		sess.Status = models.SessionAborted
		if err := m.deps.Store.PutSession(ctx, sess); err != nil {
			return fmt.Errorf("abort recovered session %s: %w", sess.ID, err)
		}
		recovered++
		logging.Warn().
			Str("session_id", sess.ID).
			Msg("session found mid-recording after restart, marked aborted")
	}

	if recovered > 0 {
		logging.Info().Int("sessions", recovered).Msg("session recovery complete")
	}
	return nil
}

// Compile rebuilds a manifest for a terminal session from its decision
// log. Used to recompile aborted sessions whose cameras are gone.
func (m *Manager) Compile(ctx context.Context, sessionID string) (*models.SegmentManifest, error) {
	sess, err := m.deps.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Status.Terminal() {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionStillLive)
	}

	decisions, err := m.deps.Store.Decisions(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("replay decision log: %w", err)
	}

	end := sess.CompletedAt
	if end.IsZero() && len(decisions) > 0 {
		end = decisions[len(decisions)-1].Timestamp
	}

	clk := m.deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	manifest, err := compiler.New().Compile(sessionID, sess.MasterOrigin, end, clk.Now(), decisions)
	if err != nil {
		return nil, err
	}
	if err := m.deps.Store.PutManifest(ctx, manifest); err != nil {
		return nil, fmt.Errorf("store manifest: %w", err)
	}
	return manifest, nil
}

// Store exposes the decision log for readiness checks.
func (m *Manager) Store() *decisionlog.Store {
	return m.deps.Store
}
