// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/rinklab/rinkrelay/internal/auth"
	"github.com/rinklab/rinkrelay/internal/decisionlog"
	"github.com/rinklab/rinkrelay/internal/logging"
	"github.com/rinklab/rinkrelay/internal/models"
	"github.com/rinklab/rinkrelay/internal/session"
	"github.com/rinklab/rinkrelay/internal/websocket"
)

// maxBodyBytes caps request bodies. Chunk metadata is a few hundred
// bytes; anything near the cap is malformed or hostile.
const maxBodyBytes = 1 << 20

// HealthCheck is one named readiness probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler serves the coordination API.
type Handler struct {
	manager      *session.Manager
	hub          *websocket.Hub
	defaultArena string
	checks       []HealthCheck
	upgrader     gorillaws.Upgrader
}

// NewHandler creates the API handler. defaultArena fills in session
// creation requests that name no arena; checks run on /ready in order.
func NewHandler(manager *session.Manager, hub *websocket.Hub, defaultArena string, checks []HealthCheck) *Handler {
	return &Handler{
		manager:      manager,
		hub:          hub,
		defaultArena: defaultArena,
		checks:       checks,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards connect from configured origins only; the CORS
			// middleware already gates preflight, and tokens never ride
			// the WS URL.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// CreateSession handles POST /api/v1/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req CreateSessionRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}
	if req.ArenaID == "" {
		req.ArenaID = h.defaultArena
	}

	coord, err := h.manager.Create(r.Context(), req.SessionID, req.ArenaID)
	if err != nil {
		h.respondDomainError(rw, r, err)
		return
	}

	snap, err := coord.Status(r.Context())
	if err != nil {
		h.respondDomainError(rw, r, err)
		return
	}
	rw.Created(snap)
}

// ListSessions handles GET /api/v1/sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	sessions, err := h.manager.Sessions(r.Context())
	if err != nil {
		h.respondDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// SessionStatus handles GET /api/v1/sessions/{sessionID}/status.
// Live sessions return the full coordinator snapshot; finished ones fall
// back to the persisted record.
func (h *Handler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	sessionID := chi.URLParam(r, "sessionID")

	coord, err := h.manager.Get(sessionID)
	if err == nil {
		snap, serr := coord.Status(r.Context())
		if serr != nil {
			h.respondDomainError(rw, r, serr)
			return
		}
		rw.Success(snap)
		return
	}

	record, err := h.manager.Session(r.Context(), sessionID)
	if err != nil {
		h.respondDomainError(rw, r, err)
		return
	}
	rw.Success(record)
}

// JoinSession handles POST /api/v1/sessions/{sessionID}/join.
func (h *Handler) JoinSession(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req JoinRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}
	if err := requireDevice(r.Context(), req.DeviceID); err != nil {
		rw.Forbidden("device token does not match device_id")
		return
	}

	coord, err := h.manager.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondDomainError(rw, r, err)
		return
	}

	result, err := coord.Join(r.Context(), req.CameraID, req.DeviceID)
	if err != nil {
		h.respondDomainError(rw, r, err)
		return
	}
	rw.Success(result)
}

// RequestSync handles POST /api/v1/sessions/{sessionID}/sync.
func (h *Handler) RequestSync(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req SyncRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	localTS, err := time.Parse(time.RFC3339Nano, req.LocalTimestamp)
	if err != nil {
		rw.BadRequest("local_timestamp must be RFC3339")
		return
	}

	coord, err := h.cameraCoordinator(rw, r, req.CameraID)
	if coord == nil || err != nil {
		return
	}

	result, err := coord.RequestSync(r.Context(), req.CameraID, localTS)
	if err != nil {
		h.respondDomainError(rw, r, err)
		return
	}
	rw.Success(result)
}

// Heartbeat handles POST /api/v1/sessions/{sessionID}/heartbeat.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req HeartbeatRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	coord, err := h.cameraCoordinator(rw, r, req.CameraID)
	if coord == nil || err != nil {
		return
	}

	if err := coord.Heartbeat(r.Context(), req.CameraID); err != nil {
		h.respondDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]string{"camera_id": req.CameraID})
}

// SubmitChunk handles POST /api/v1/sessions/{sessionID}/chunks. A stale
// or out-of-order sequence returns 409 with the next expected sequence
// so the camera can resynchronize its upload cursor.
func (h *Handler) SubmitChunk(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req ChunkRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	coord, err := h.cameraCoordinator(rw, r, req.CameraID)
	if coord == nil || err != nil {
		return
	}

	duration := time.Duration(req.DurationMs) * time.Millisecond
	result, err := coord.SubmitChunk(r.Context(), req.CameraID, req.Sequence, req.Metadata, req.PayloadRef, duration)
	if err != nil {
		if errors.Is(err, models.ErrStaleSequence) {
			rw.ErrorWithDetails(http.StatusConflict, ErrCodeStaleSequence, err.Error(), map[string]uint64{
				"next_expected_sequence": result.NextExpected,
			})
			return
		}
		h.respondDomainError(rw, r, err)
		return
	}
	rw.Success(result)
}

// StopSession handles POST /api/v1/sessions/{sessionID}/stop. The
// session compiles its manifest and completes; the coordinator is then
// released from the live set.
func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	sessionID := chi.URLParam(r, "sessionID")

	coord, err := h.manager.Get(sessionID)
	if err != nil {
		h.respondDomainError(rw, r, err)
		return
	}

	if err := coord.Stop(r.Context()); err != nil {
		h.respondDomainError(rw, r, err)
		return
	}
	h.manager.Release(sessionID)

	manifest, err := h.manager.Manifest(r.Context(), sessionID)
	if err != nil {
		// Completed with a compilation warning and no manifest.
		record, rerr := h.manager.Session(r.Context(), sessionID)
		if rerr != nil {
			h.respondDomainError(rw, r, rerr)
			return
		}
		rw.Success(record)
		return
	}
	rw.Success(manifest)
}

// AbortSession handles DELETE /api/v1/sessions/{sessionID}. The decision
// log survives and can be recompiled later.
func (h *Handler) AbortSession(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	sessionID := chi.URLParam(r, "sessionID")

	coord, err := h.manager.Get(sessionID)
	if err != nil {
		h.respondDomainError(rw, r, err)
		return
	}

	if err := coord.Abort(r.Context()); err != nil {
		h.respondDomainError(rw, r, err)
		return
	}
	h.manager.Release(sessionID)

	record, err := h.manager.Session(r.Context(), sessionID)
	if err != nil {
		h.respondDomainError(rw, r, err)
		return
	}
	rw.Success(record)
}

// Manifest handles GET /api/v1/sessions/{sessionID}/manifest.
func (h *Handler) Manifest(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	sessionID := chi.URLParam(r, "sessionID")

	manifest, err := h.manager.Manifest(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, decisionlog.ErrManifestNotFound) {
			if _, live := h.manager.Get(sessionID); live == nil {
				rw.Conflict(ErrCodeConflict, "session is still recording")
				return
			}
			rw.NotFound("no manifest compiled for session")
			return
		}
		h.respondDomainError(rw, r, err)
		return
	}
	rw.Success(manifest)
}

// CompileSession handles POST /api/v1/sessions/{sessionID}/compile.
// Recompiles a terminal session's manifest from its decision log, which
// is how aborted sessions recover their footage.
func (h *Handler) CompileSession(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	manifest, err := h.manager.Compile(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondDomainError(rw, r, err)
		return
	}
	rw.Success(manifest)
}

// WebSocket handles GET /ws, upgrading dashboard connections onto the
// broadcast hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	websocket.NewClient(h.hub, conn).Start()
}

// HealthLive handles GET /live. Process-up probe only.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady handles GET /ready. Runs every registered check and
// reports the first failure.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			logging.Ctx(r.Context()).Warn().
				Err(err).
				Str("check", check.Name).
				Msg("readiness check failed")
			rw.ServiceUnavailable("not ready: " + check.Name)
			return
		}
	}
	rw.Success(map[string]string{"status": "ready"})
}

// cameraCoordinator resolves the session coordinator for a camera
// request and enforces the device binding. Writes the error response
// itself; a nil return means the response is already written.
func (h *Handler) cameraCoordinator(rw *ResponseWriter, r *http.Request, cameraID string) (*session.Coordinator, error) {
	coord, err := h.manager.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondDomainError(rw, r, err)
		return nil, err
	}

	if claims := DeviceClaimsFromContext(r.Context()); claims != nil {
		deviceID, derr := coord.DeviceFor(r.Context(), cameraID)
		if derr != nil {
			h.respondDomainError(rw, r, derr)
			return nil, derr
		}
		if deviceID != claims.DeviceID {
			rw.Forbidden("device token does not match camera")
			return nil, auth.ErrDeviceMismatch
		}
	}
	return coord, nil
}

// respondDomainError maps typed coordination errors onto HTTP statuses.
func (h *Handler) respondDomainError(rw *ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrSessionNotFound),
		errors.Is(err, models.ErrCameraNotFound),
		errors.Is(err, models.ErrArenaNotFound):
		rw.NotFound(err.Error())
	case errors.Is(err, models.ErrSessionFull):
		rw.Conflict(ErrCodeSessionFull, err.Error())
	case errors.Is(err, models.ErrSessionTerminal):
		rw.Conflict(ErrCodeSessionTerminal, err.Error())
	case errors.Is(err, session.ErrSessionStillLive),
		errors.Is(err, session.ErrSessionExists):
		rw.Conflict(ErrCodeConflict, err.Error())
	case errors.Is(err, models.ErrCompilationGap):
		rw.Conflict(ErrCodeCompilationGap, err.Error())
	case errors.Is(err, models.ErrInvalidCameraCount),
		errors.Is(err, models.ErrInvalidArena),
		errors.Is(err, models.ErrPositionUnavailable):
		rw.BadRequest(err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		rw.ServiceUnavailable("session coordinator unavailable")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("unhandled API error")
		rw.InternalError("internal error")
	}
}

// decodeBody decodes a JSON body, writing the 400 response itself on
// failure.
func decodeBody(rw *ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		rw.BadRequest("invalid JSON body: " + err.Error())
		return false
	}
	return true
}
