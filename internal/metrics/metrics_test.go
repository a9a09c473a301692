// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		endpoint string
		status   int
		duration time.Duration
	}{
		{"status get", "GET", "/api/v1/sessions/{id}/status", 200, 5 * time.Millisecond},
		{"chunk post", "POST", "/api/v1/sessions/{id}/cameras/{cameraID}/chunks", 202, 12 * time.Millisecond},
		{"stale chunk", "POST", "/api/v1/sessions/{id}/cameras/{cameraID}/chunks", 409, 3 * time.Millisecond},
		{"not found", "GET", "/api/v1/sessions/{id}/status", 404, time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordAPIRequest(tt.method, tt.endpoint, tt.status, tt.duration)
		})
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPActiveRequests)
	TrackActiveRequest(true)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(HTTPActiveRequests); got != before+2 {
		t.Fatalf("active requests = %v, want %v", got, before+2)
	}
	TrackActiveRequest(false)
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(HTTPActiveRequests); got != before {
		t.Fatalf("active requests = %v, want %v after release", got, before)
	}
}

func TestRecordNATSPublish(t *testing.T) {
	okBefore := testutil.ToFloat64(NATSPublishes)
	failBefore := testutil.ToFloat64(NATSPublishFailures)

	RecordNATSPublish(nil)
	RecordNATSPublish(errors.New("timeout"))

	if got := testutil.ToFloat64(NATSPublishes); got != okBefore+1 {
		t.Fatalf("publishes = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(NATSPublishFailures); got != failBefore+1 {
		t.Fatalf("failures = %v, want %v", got, failBefore+1)
	}
}

func TestQualityGaugeLifecycle(t *testing.T) {
	RecordQualityReport("s1", "cam-a", "good", 0.82)
	if got := testutil.ToFloat64(QualityScore.WithLabelValues("s1", "cam-a")); got != 0.82 {
		t.Fatalf("quality gauge = %v, want 0.82", got)
	}

	// Superseded by the next tick's report.
	RecordQualityReport("s1", "cam-a", "poor", 0.31)
	if got := testutil.ToFloat64(QualityScore.WithLabelValues("s1", "cam-a")); got != 0.31 {
		t.Fatalf("quality gauge = %v, want 0.31", got)
	}

	ForgetCamera("s1", "cam-a")
	// Reading the label set recreates it at zero, which is what a fresh
	// series looks like.
	if got := testutil.ToFloat64(QualityScore.WithLabelValues("s1", "cam-a")); got != 0 {
		t.Fatalf("quality gauge after forget = %v, want 0", got)
	}
}

func TestRecordDecisionConcurrent(t *testing.T) {
	before := testutil.ToFloat64(SwitchingDecisions.WithLabelValues("held"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				RecordDecision("held")
			}
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(SwitchingDecisions.WithLabelValues("held")); got != before+1000 {
		t.Fatalf("decisions = %v, want %v", got, before+1000)
	}
}

func TestRecordSessionTransitionAndWarning(t *testing.T) {
	before := testutil.ToFloat64(SessionTransitions.WithLabelValues("recording"))
	RecordSessionTransition("recording")
	if got := testutil.ToFloat64(SessionTransitions.WithLabelValues("recording")); got != before+1 {
		t.Fatalf("transitions = %v, want %v", got, before+1)
	}

	wBefore := testutil.ToFloat64(SessionWarnings.WithLabelValues("all_cameras_poor"))
	RecordWarning("all_cameras_poor")
	if got := testutil.ToFloat64(SessionWarnings.WithLabelValues("all_cameras_poor")); got != wBefore+1 {
		t.Fatalf("warnings = %v, want %v", got, wBefore+1)
	}
}
