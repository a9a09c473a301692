// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

// Package situation supplies the game-situation and action-location
// estimate consumed by the switching tick.
//
// Classification itself is an external collaborator (player tracking,
// ML, or a human spotter feed). This package wraps its HTTP API behind
// a narrow interface with a circuit breaker and a static fallback, so
// a dead classifier degrades switching quality but never stalls a tick.
package situation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rinklab/rinkrelay/internal/config"
	"github.com/rinklab/rinkrelay/internal/logging"
	"github.com/rinklab/rinkrelay/internal/metrics"
	"github.com/rinklab/rinkrelay/internal/models"
)

// Classifier produces the current action estimate for a session. Calls
// must return quickly; the tick loop will not wait past the configured
// timeout.
type Classifier interface {
	Classify(ctx context.Context, sessionID string) (models.ActionLocation, error)
}

// Static returns a fixed estimate. Used when no classifier service is
// configured and as the fallback value on classifier failure.
type Static struct {
	Estimate models.ActionLocation
}

// NewStatic builds the default static estimate: normal play at the
// given arena center.
func NewStatic(center models.Coordinates) *Static {
	return &Static{Estimate: models.ActionLocation{
		Coordinates: center,
		Confidence:  0.0,
		Situation:   models.SituationNormal,
	}}
}

func (s *Static) Classify(ctx context.Context, sessionID string) (models.ActionLocation, error) {
	return s.Estimate, nil
}

// HTTPClassifier calls an external classifier service. Failures trip a
// circuit breaker; while open, calls return the fallback estimate
// without touching the network.
type HTTPClassifier struct {
	url      string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[models.ActionLocation]
	fallback *Static
}

// NewHTTPClassifier wires the classifier client from configuration.
func NewHTTPClassifier(cfg config.SituationConfig, fallback *Static) *HTTPClassifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 150 * time.Millisecond
	}
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[models.ActionLocation](gobreaker.Settings{
		Name:        "situation-classifier",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("classifier circuit breaker state change")
		},
	})

	return &HTTPClassifier{
		url:      cfg.URL,
		client:   &http.Client{Timeout: timeout},
		breaker:  breaker,
		fallback: fallback,
	}
}

// classifyResponse is the classifier service's wire format.
type classifyResponse struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
	Situation  string  `json:"situation"`
}

// Classify queries the service. On any failure (network, non-200,
// malformed body, open breaker) it returns the fallback estimate and a
// nil error: the tick must always get a usable value.
func (c *HTTPClassifier) Classify(ctx context.Context, sessionID string) (models.ActionLocation, error) {
	est, err := c.breaker.Execute(func() (models.ActionLocation, error) {
		return c.query(ctx, sessionID)
	})
	if err != nil {
		logging.Debug().Err(err).Str("session_id", sessionID).Msg("classifier unavailable, using fallback")
		return c.fallback.Estimate, nil
	}
	return est, nil
}

func (c *HTTPClassifier) query(ctx context.Context, sessionID string) (models.ActionLocation, error) {
	var zero models.ActionLocation

	url := fmt.Sprintf("%s/v1/sessions/%s/situation", c.url, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return zero, fmt.Errorf("build classifier request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return zero, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return zero, fmt.Errorf("classifier status %d", resp.StatusCode)
	}

	var body classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return zero, fmt.Errorf("decode classifier response: %w", err)
	}

	situation := models.GameSituation(body.Situation)
	switch situation {
	case models.SituationNormal, models.SituationHighAction, models.SituationStoppage:
	default:
		return zero, fmt.Errorf("unknown situation %q", body.Situation)
	}

	return models.ActionLocation{
		Coordinates: models.Coordinates{X: body.X, Y: body.Y},
		Confidence:  clampConfidence(body.Confidence),
		Situation:   situation,
	}, nil
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// FromConfig returns the configured classifier: HTTP-backed when a URL
// is set, otherwise the static fallback alone.
func FromConfig(cfg config.SituationConfig, center models.Coordinates) Classifier {
	fallback := NewStatic(center)
	if cfg.URL == "" {
		return fallback
	}
	return NewHTTPClassifier(cfg, fallback)
}
