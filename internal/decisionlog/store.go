// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

// Package decisionlog persists the per-session switching decision stream
// and compiled manifests in BadgerDB.
//
// Decisions are written before they are published: the log, not the
// event stream, is the source of truth for compilation. Entries are
// append-only and keyed by (session, sequence) with zero-padded
// sequence numbers so Badger's lexicographic iteration replays them in
// order. With SyncWrites enabled every append is fsynced, so a crash
// between a decision and its publish loses nothing.
package decisionlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/rinklab/rinkrelay/internal/config"
	"github.com/rinklab/rinkrelay/internal/logging"
	"github.com/rinklab/rinkrelay/internal/models"
)

var (
	// ErrClosed is returned by all operations after Close.
	ErrClosed = errors.New("decision log closed")

	// ErrDecisionExists is returned when an append reuses a sequence
	// number already present for the session.
	ErrDecisionExists = errors.New("decision sequence already logged")

	// ErrManifestNotFound is returned when no compiled manifest exists
	// for the session.
	ErrManifestNotFound = errors.New("manifest not found")
)

// Key prefixes. Sequence numbers are zero-padded to 20 digits so that
// byte order equals numeric order during iteration.
const (
	prefixDecision = "decision:"
	prefixManifest = "manifest:"
	prefixSession  = "session:"
)

// Store is the durable decision log. Safe for concurrent use.
type Store struct {
	db  *badger.DB
	cfg config.DecisionLogConfig

	totalAppends atomic.Int64
	totalReplays atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the decision log at the configured path.
func Open(cfg config.DecisionLogConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("decision log path is empty")
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("decision log opened")

	return &Store{db: db, cfg: cfg}, nil
}

func decisionKey(sessionID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixDecision, sessionID, seq))
}

func manifestKey(sessionID string) []byte {
	return []byte(prefixManifest + sessionID)
}

func sessionKey(sessionID string) []byte {
	return []byte(prefixSession + sessionID)
}

// Append durably writes one switching decision. Sequence numbers are
// owned by the session coordinator; reuse of a sequence is a logic
// error and is rejected rather than overwritten.
func (s *Store) Append(ctx context.Context, d models.SwitchingDecision) error {
	start := time.Now()
	defer func() {
		observeAppendLatency(time.Since(start).Seconds())
	}()

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	s.mu.RUnlock()

	if d.SessionID == "" {
		return errors.New("decision has no session id")
	}

	data, err := json.Marshal(&d)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	key := decisionKey(d.SessionID, d.Seq)
	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return ErrDecisionExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check sequence: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return err
	}

	s.totalAppends.Add(1)
	recordAppend()
	return nil
}

// Replay streams the session's decisions to fn in sequence order.
// Returning an error from fn stops the replay and surfaces the error.
func (s *Store) Replay(ctx context.Context, sessionID string, fn func(models.SwitchingDecision) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	s.mu.RUnlock()

	s.totalReplays.Add(1)
	recordReplay()

	prefix := []byte(prefixDecision + sessionID + ":")
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			var d models.SwitchingDecision
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &d)
			})
			if err != nil {
				return fmt.Errorf("unmarshal decision %s: %w", it.Item().Key(), err)
			}
			if err := fn(d); err != nil {
				return err
			}
		}
		return nil
	})
}

// Decisions returns the session's full decision stream in order.
func (s *Store) Decisions(ctx context.Context, sessionID string) ([]models.SwitchingDecision, error) {
	var out []models.SwitchingDecision
	err := s.Replay(ctx, sessionID, func(d models.SwitchingDecision) error {
		out = append(out, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LastSeq returns the highest logged sequence for the session and
// whether any decision exists at all.
func (s *Store) LastSeq(ctx context.Context, sessionID string) (uint64, bool, error) {
	var (
		last  uint64
		found bool
	)
	err := s.Replay(ctx, sessionID, func(d models.SwitchingDecision) error {
		last = d.Seq
		found = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return last, found, nil
}

// PutManifest stores the compiled manifest for a session, replacing any
// previous compilation.
func (s *Store) PutManifest(ctx context.Context, m *models.SegmentManifest) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	s.mu.RUnlock()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(manifestKey(m.SessionID), data)
	})
}

// GetManifest loads the compiled manifest for a session.
func (s *Store) GetManifest(ctx context.Context, sessionID string) (*models.SegmentManifest, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	s.mu.RUnlock()

	var m models.SegmentManifest
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(manifestKey(sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrManifestNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		})
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// PutSession stores the session record. Written on every state change
// so a restart can find sessions that were mid-recording.
func (s *Store) PutSession(ctx context.Context, sess *models.GameSession) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	s.mu.RUnlock()

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(sess.ID), data)
	})
}

// GetSession loads one stored session record.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.GameSession, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	s.mu.RUnlock()

	var sess models.GameSession
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return models.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		})
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Sessions returns every stored session record. Used by startup
// recovery to find sessions interrupted mid-recording.
func (s *Store) Sessions(ctx context.Context) ([]*models.GameSession, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	s.mu.RUnlock()

	var out []*models.GameSession
	prefix := []byte(prefixSession)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			var sess models.GameSession
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sess)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("skipping unreadable session record")
				continue
			}
			out = append(out, &sess)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	logging.Info().
		Int64("appends", s.totalAppends.Load()).
		Int64("replays", s.totalReplays.Load()).
		Msg("decision log closing")
	return s.db.Close()
}
