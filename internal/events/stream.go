// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// StreamName is the JetStream stream holding all rinkrelay subjects.
const StreamName = "RINKRELAY"

// JetStreamContext is the subset of jetstream.JetStream used here;
// tests substitute a fake.
type JetStreamContext interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// StreamInitializer creates or updates the stream before publishers
// start, so the first decision of a session is never dropped for want
// of a subject binding.
type StreamInitializer struct {
	js          JetStreamContext
	topicPrefix string
	maxAge      time.Duration
}

// NewStreamInitializer returns an initializer for the given prefix.
func NewStreamInitializer(js JetStreamContext, topicPrefix string, maxAge time.Duration) (*StreamInitializer, error) {
	if js == nil {
		return nil, errors.New("jetstream context required")
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &StreamInitializer{js: js, topicPrefix: topicPrefix, maxAge: maxAge}, nil
}

// EnsureStream creates the stream or updates its configuration.
// Idempotent; safe to run on every startup.
func (s *StreamInitializer) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    StreamSubjects(s.topicPrefix),
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      s.maxAge,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		AllowDirect: true,
		Duplicates:  2 * time.Minute,
	}

	_, err := s.js.Stream(ctx, StreamName)
	if err == nil {
		stream, err := s.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", StreamName, err)
		}
		return stream, nil
	}
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		stream, err := s.js.CreateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("create stream %s: %w", StreamName, err)
		}
		return stream, nil
	}
	return nil, fmt.Errorf("check stream %s: %w", StreamName, err)
}

// IsHealthy reports whether the stream is reachable.
func (s *StreamInitializer) IsHealthy(ctx context.Context) bool {
	_, err := s.js.Stream(ctx, StreamName)
	return err == nil
}
