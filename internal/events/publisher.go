// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rinklab/rinkrelay/internal/config"
	"github.com/rinklab/rinkrelay/internal/metrics"
	"github.com/rinklab/rinkrelay/internal/models"
)

// ErrPublisherClosed is returned by publish calls after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// Publisher sends decision and session events over NATS JetStream with
// circuit breaker protection. Safe for concurrent use by all session
// coordinators.
type Publisher struct {
	publisher   message.Publisher
	breaker     *gobreaker.CircuitBreaker[interface{}]
	topicPrefix string
	logger      watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewPublisher connects a resilient Watermill NATS publisher. Message
// UUIDs double as Nats-Msg-Id, so JetStream deduplicates redeliveries
// inside the duplicate window.
func NewPublisher(url string, cfg config.NATSConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = NewLoggerAdapter()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("nats disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("nats reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false, // stream is pre-created by StreamInitializer
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        "nats-publisher",
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			logger.Info("circuit breaker state change", watermill.LogFields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return &Publisher{
		publisher:   pub,
		breaker:     breaker,
		topicPrefix: cfg.TopicPrefix,
		logger:      logger,
	}, nil
}

// Publish sends one message to a topic through the circuit breaker.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPublisherClosed
	}
	p.mu.RUnlock()

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}

	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.publisher.Publish(topic, msg)
	})
	metrics.RecordNATSPublish(err)
	return err
}

// PublishDecision emits one switching decision on the session's
// decision topic.
func (p *Publisher) PublishDecision(ctx context.Context, d models.SwitchingDecision, now time.Time) error {
	ev := NewDecisionEvent(d, now)
	data, err := Serialize(ev)
	if err != nil {
		return err
	}

	msg := message.NewMessage(ev.EventID, data)
	msg.Metadata.Set("session_id", ev.SessionID)
	msg.Metadata.Set("primary", d.Primary)
	msg.Metadata.Set("reason", string(d.Reason))

	return p.Publish(ctx, DecisionTopic(p.topicPrefix, ev.SessionID), msg)
}

// PublishSession emits a session status or warning event.
func (p *Publisher) PublishSession(ctx context.Context, ev *SessionEvent) error {
	data, err := Serialize(ev)
	if err != nil {
		return err
	}

	msg := message.NewMessage(ev.EventID, data)
	msg.Metadata.Set("session_id", ev.SessionID)
	msg.Metadata.Set("status", string(ev.Status))
	if ev.Warning != "" {
		msg.Metadata.Set("warning", string(ev.Warning))
	}

	return p.Publish(ctx, SessionTopic(p.topicPrefix), msg)
}

// BreakerState exposes the circuit breaker state for readiness checks.
func (p *Publisher) BreakerState() gobreaker.State {
	return p.breaker.State()
}

// Close shuts down the underlying publisher. Idempotent.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
