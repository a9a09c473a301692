// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

// Package api provides the HTTP surface for session coordination using
// the chi router. Cameras drive the session endpoints with device
// tokens; dashboards consume status over REST and live events over the
// /ws upgrade.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rinklab/rinkrelay/internal/middleware"
)

// Router assembles the handler and middleware into an http.Handler.
type Router struct {
	handler *Handler
	mw      *MiddlewareSet
}

// NewRouter creates a router from an assembled handler and middleware
// set.
func NewRouter(handler *Handler, mw *MiddlewareSet) *Router {
	return &Router{handler: handler, mw: mw}
}

// Setup builds the route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.mw.CORS())

	// Health probes stay outside auth and compression so load balancers
	// get fast, plain answers.
	r.Group(func(r chi.Router) {
		r.Use(router.mw.RateLimitHealth())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Dashboard websocket. Upgrade requests must skip compression.
	r.With(router.mw.RateLimit()).Get("/ws", router.handler.WebSocket)

	// Control plane: session lifecycle, operated by the bench tablet.
	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(SecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.Compression)

		r.Group(func(r chi.Router) {
			r.Use(router.mw.RateLimit())
			r.Post("/", router.handler.CreateSession)
			r.Get("/", router.handler.ListSessions)
			r.Get("/{sessionID}/status", router.handler.SessionStatus)
			r.Get("/{sessionID}/manifest", router.handler.Manifest)
			r.Post("/{sessionID}/stop", router.handler.StopSession)
			r.Post("/{sessionID}/compile", router.handler.CompileSession)
			r.Delete("/{sessionID}", router.handler.AbortSession)
		})

		// Camera data plane: authenticated per device, rate limited for
		// streaming cadence.
		r.Group(func(r chi.Router) {
			r.Use(router.mw.RateLimitStreaming())
			r.Use(router.mw.DeviceAuth())
			r.Post("/{sessionID}/join", router.handler.JoinSession)
			r.Post("/{sessionID}/sync", router.handler.RequestSync)
			r.Post("/{sessionID}/heartbeat", router.handler.Heartbeat)
			r.Post("/{sessionID}/chunks", router.handler.SubmitChunk)
		})
	})

	return r
}
