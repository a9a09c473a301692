// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/rinklab/rinkrelay/internal/logging"
)

// Subscriber delivers raw event payloads from NATS subjects. It feeds
// the dashboard bridge; consumers that need replay or acknowledgement
// should use a JetStream consumer instead.
type Subscriber struct {
	conn *natsgo.Conn

	mu   sync.Mutex
	subs []*natsgo.Subscription
}

// NewSubscriber connects to NATS for subscription use.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := natsgo.Connect(url,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats subscriber: %w", err)
	}
	return &Subscriber{conn: conn}, nil
}

// Subscribe returns a channel of payloads for a subject, which may
// contain wildcards. The channel closes when ctx is cancelled. A slow
// consumer drops messages rather than stalling the delivery goroutine;
// dashboards tolerate a missed frame, a blocked NATS callback does not.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	ch := make(chan []byte, 64)

	sub, err := s.conn.Subscribe(topic, func(msg *natsgo.Msg) {
		select {
		case ch <- msg.Data:
		default:
			logging.Warn().Str("topic", topic).Msg("event subscriber backlogged, dropping message")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
		close(ch)
	}()

	return ch, nil
}

// Close drains the connection, delivering in-flight messages first.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
	s.mu.Unlock()

	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
		return err
	}
	return nil
}
