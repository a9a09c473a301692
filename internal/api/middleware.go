// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/rinklab/rinkrelay/internal/auth"
	"github.com/rinklab/rinkrelay/internal/config"
	"github.com/rinklab/rinkrelay/internal/logging"
)

// MiddlewareSet builds the Chi middleware stack from security config.
// CORS and rate limiting come from the chi ecosystem; device auth is
// local.
type MiddlewareSet struct {
	cfg    config.SecurityConfig
	cors   func(http.Handler) http.Handler
	tokens *auth.DeviceTokenManager
}

// NewMiddlewareSet creates the middleware factory. tokens may be nil
// when Security.DeviceTokenSecret is empty, which disables device auth.
func NewMiddlewareSet(cfg config.SecurityConfig, tokens *auth.DeviceTokenManager) *MiddlewareSet {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:         86400,
	})

	return &MiddlewareSet{
		cfg:    cfg,
		cors:   corsHandler,
		tokens: tokens,
	}
}

// CORS returns the CORS middleware. Must be global so OPTIONS preflight
// requests reach it before routing.
func (m *MiddlewareSet) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns the default per-IP rate limiter from config.
func (m *MiddlewareSet) RateLimit() func(http.Handler) http.Handler {
	if m.cfg.RateLimitReqs <= 0 {
		return passthrough
	}
	return httprate.LimitByIP(m.cfg.RateLimitReqs, m.cfg.RateLimitWindow)
}

// RateLimitStreaming returns a permissive limiter for chunk and
// heartbeat traffic. Six cameras at a 200ms tick produce far more
// requests than the control plane, so the streaming endpoints get ten
// times the configured budget.
func (m *MiddlewareSet) RateLimitStreaming() func(http.Handler) http.Handler {
	if m.cfg.RateLimitReqs <= 0 {
		return passthrough
	}
	return httprate.LimitByIP(m.cfg.RateLimitReqs*10, m.cfg.RateLimitWindow)
}

// RateLimitHealth returns a permissive limiter for health probes.
func (m *MiddlewareSet) RateLimitHealth() func(http.Handler) http.Handler {
	return httprate.LimitByIP(1000, time.Minute)
}

func passthrough(next http.Handler) http.Handler { return next }

type deviceClaimsKey struct{}

// DeviceAuth returns a middleware that requires a valid device token in
// the Authorization header. When no token manager is configured the
// middleware is a no-op so development setups work without enrollment.
func (m *MiddlewareSet) DeviceAuth() func(http.Handler) http.Handler {
	if m.tokens == nil {
		return passthrough
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				NewResponseWriter(w, r).Unauthorized("device token required")
				return
			}

			claims, err := m.tokens.Validate(token)
			if err != nil {
				logging.Ctx(r.Context()).Warn().
					Err(err).
					Str("path", r.URL.Path).
					Msg("device token rejected")
				NewResponseWriter(w, r).Unauthorized("invalid device token")
				return
			}

			ctx := context.WithValue(r.Context(), deviceClaimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DeviceClaimsFromContext returns the validated device claims, or nil
// when auth is disabled.
func DeviceClaimsFromContext(ctx context.Context) *auth.DeviceClaims {
	claims, _ := ctx.Value(deviceClaimsKey{}).(*auth.DeviceClaims)
	return claims
}

// requireDevice checks that the authenticated device matches the one the
// request acts for. A nil claims value means auth is disabled.
func requireDevice(ctx context.Context, deviceID string) error {
	claims := DeviceClaimsFromContext(ctx)
	if claims == nil {
		return nil
	}
	if claims.DeviceID != deviceID {
		return auth.ErrDeviceMismatch
	}
	return nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// SecurityHeaders adds standard hardening headers to API responses.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
