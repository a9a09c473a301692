// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/rinklab/rinkrelay/internal/arena"
	"github.com/rinklab/rinkrelay/internal/auth"
	"github.com/rinklab/rinkrelay/internal/config"
	"github.com/rinklab/rinkrelay/internal/decisionlog"
	"github.com/rinklab/rinkrelay/internal/logging"
	"github.com/rinklab/rinkrelay/internal/session"
	"github.com/rinklab/rinkrelay/internal/websocket"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

type apiRig struct {
	server  *httptest.Server
	manager *session.Manager
	tokens  *auth.DeviceTokenManager
}

// newAPIRig builds a full router over a live session manager. secret
// empty means device auth disabled.
func newAPIRig(t *testing.T, secret string) *apiRig {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DecisionLog.Path = t.TempDir()
	cfg.Security.DeviceTokenSecret = secret

	store, err := decisionlog.Open(cfg.DecisionLog)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	manager := session.NewManager(arena.NewRegistry(), session.Deps{
		Config: cfg,
		Store:  store,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = manager.Serve(ctx) }()

	var tokens *auth.DeviceTokenManager
	if secret != "" {
		tokens, err = auth.NewDeviceTokenManager(secret, time.Hour)
		if err != nil {
			t.Fatalf("token manager: %v", err)
		}
	}

	handler := NewHandler(manager, websocket.NewHub(), arena.StandardLayoutID, nil)
	router := NewRouter(handler, NewMiddlewareSet(cfg.Security, tokens))

	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)

	return &apiRig{server: server, manager: manager, tokens: tokens}
}

func (rig *apiRig) do(t *testing.T, method, path string, body interface{}, token string) (*http.Response, APIResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, rig.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var envelope APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, envelope
}

// dataField digs a key out of the decoded data payload.
func dataField(t *testing.T, envelope APIResponse, key string) interface{} {
	t.Helper()
	data, ok := envelope.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data has type %T", envelope.Data)
	}
	return data[key]
}

func createSession(t *testing.T, rig *apiRig, sessionID string) string {
	t.Helper()
	resp, envelope := rig.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{SessionID: sessionID}, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: status %d", resp.StatusCode)
	}
	id, _ := dataField(t, envelope, "session_id").(string)
	if id == "" {
		t.Fatal("create session returned no session_id")
	}
	return id
}

func TestCreateSession(t *testing.T) {
	rig := newAPIRig(t, "")

	t.Run("generates id when omitted", func(t *testing.T) {
		id := createSession(t, rig, "")
		if len(id) < 8 {
			t.Errorf("generated id %q looks wrong", id)
		}
	})

	t.Run("honors explicit id", func(t *testing.T) {
		if id := createSession(t, rig, "game-explicit"); id != "game-explicit" {
			t.Errorf("session_id = %q", id)
		}
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		createSession(t, rig, "game-dup")
		resp, envelope := rig.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{SessionID: "game-dup"}, "")
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d, want 409", resp.StatusCode)
		}
		if envelope.Error == nil || envelope.Error.Code != ErrCodeConflict {
			t.Errorf("error = %+v, want CONFLICT", envelope.Error)
		}
	})

	t.Run("unknown arena is 404", func(t *testing.T) {
		resp, _ := rig.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{ArenaID: "nowhere"}, "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestJoinSession(t *testing.T) {
	rig := newAPIRig(t, "")
	id := createSession(t, rig, "game-join")

	t.Run("first joiner gets a position", func(t *testing.T) {
		resp, envelope := rig.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/join",
			JoinRequest{CameraID: "cam-a", DeviceID: "device-a"}, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if pos := dataField(t, envelope, "position"); pos == nil {
			t.Error("join returned no position")
		}
	})

	t.Run("missing camera_id fails validation", func(t *testing.T) {
		resp, envelope := rig.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/join",
			JoinRequest{DeviceID: "device-b"}, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
		if envelope.Error == nil || envelope.Error.Code != ErrCodeValidationFailed {
			t.Errorf("error = %+v, want VALIDATION_FAILED", envelope.Error)
		}
	})

	t.Run("unknown session is 404", func(t *testing.T) {
		resp, _ := rig.do(t, http.MethodPost, "/api/v1/sessions/no-such/join",
			JoinRequest{CameraID: "cam-a", DeviceID: "device-a"}, "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, rig.server.URL+"/api/v1/sessions/"+id+"/join",
			bytes.NewReader([]byte("{not json")))
		if err != nil {
			t.Fatal(err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestSubmitChunkSequenceConflict(t *testing.T) {
	rig := newAPIRig(t, "")
	id := createSession(t, rig, "game-chunks")

	rig.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/join",
		JoinRequest{CameraID: "cam-a", DeviceID: "device-a"}, "")

	resp, envelope := rig.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/chunks", ChunkRequest{
		CameraID:   "cam-a",
		Sequence:   5,
		PayloadRef: "chunk://cam-a/5",
		DurationMs: 200,
	}, "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != ErrCodeStaleSequence {
		t.Fatalf("error = %+v, want STALE_SEQUENCE", envelope.Error)
	}

	details, ok := envelope.Error.Details.(map[string]interface{})
	if !ok {
		t.Fatalf("details has type %T", envelope.Error.Details)
	}
	if next, _ := details["next_expected_sequence"].(float64); next != 0 {
		t.Errorf("next_expected_sequence = %v, want 0", details["next_expected_sequence"])
	}
}

func TestSessionStatusEndpoint(t *testing.T) {
	rig := newAPIRig(t, "")
	id := createSession(t, rig, "game-status")

	resp, envelope := rig.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/status", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := dataField(t, envelope, "status"); got != "waiting" {
		t.Errorf("session status = %v, want waiting", got)
	}
}

func TestStopBeforeRecordingAborts(t *testing.T) {
	rig := newAPIRig(t, "")
	id := createSession(t, rig, "game-early-stop")

	resp, envelope := rig.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/stop", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := dataField(t, envelope, "status"); got != "aborted" {
		t.Errorf("session status = %v, want aborted", got)
	}

	// Released from the live set: camera calls now 404.
	resp, _ = rig.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/join",
		JoinRequest{CameraID: "cam-a", DeviceID: "device-a"}, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("join after release = %d, want 404", resp.StatusCode)
	}
}

func TestManifestForLiveSessionConflicts(t *testing.T) {
	rig := newAPIRig(t, "")
	id := createSession(t, rig, "game-manifest")

	resp, envelope := rig.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/manifest", nil, "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != ErrCodeConflict {
		t.Errorf("error = %+v", envelope.Error)
	}

	resp, _ = rig.do(t, http.MethodGet, "/api/v1/sessions/never-existed/manifest", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session manifest = %d, want 404", resp.StatusCode)
	}
}

func TestListSessions(t *testing.T) {
	rig := newAPIRig(t, "")
	createSession(t, rig, "game-list-1")
	createSession(t, rig, "game-list-2")

	resp, envelope := rig.do(t, http.MethodGet, "/api/v1/sessions", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if count, _ := dataField(t, envelope, "count").(float64); count != 2 {
		t.Errorf("count = %v, want 2", dataField(t, envelope, "count"))
	}
}

func TestDeviceAuth(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"
	rig := newAPIRig(t, secret)
	id := createSession(t, rig, "game-auth")

	tokenA, err := rig.tokens.Generate("device-a")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	tokenB, err := rig.tokens.Generate("device-b")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	t.Run("missing token is 401", func(t *testing.T) {
		resp, _ := rig.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/join",
			JoinRequest{CameraID: "cam-a", DeviceID: "device-a"}, "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("garbage token is 401", func(t *testing.T) {
		resp, _ := rig.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/join",
			JoinRequest{CameraID: "cam-a", DeviceID: "device-a"}, "not.a.jwt")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("token for another device is 403", func(t *testing.T) {
		resp, _ := rig.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/join",
			JoinRequest{CameraID: "cam-a", DeviceID: "device-a"}, tokenB)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("matching token joins", func(t *testing.T) {
		resp, _ := rig.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/join",
			JoinRequest{CameraID: "cam-a", DeviceID: "device-a"}, tokenA)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("camera endpoints check the joined device", func(t *testing.T) {
		resp, _ := rig.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/heartbeat",
			HeartbeatRequest{CameraID: "cam-a"}, tokenB)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}

		resp, _ = rig.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/heartbeat",
			HeartbeatRequest{CameraID: "cam-a"}, tokenA)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("control plane needs no token", func(t *testing.T) {
		resp, _ := rig.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/status", nil, "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	rig := newAPIRig(t, "")

	resp, envelope := rig.do(t, http.MethodGet, "/live", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/live = %d, want 200", resp.StatusCode)
	}
	if got := dataField(t, envelope, "status"); got != "alive" {
		t.Errorf("live status = %v", got)
	}

	resp, _ = rig.do(t, http.MethodGet, "/ready", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/ready with no checks = %d, want 200", resp.StatusCode)
	}
}

func TestReadinessCheckFailure(t *testing.T) {
	handler := NewHandler(nil, websocket.NewHub(), arena.StandardLayoutID, []HealthCheck{
		{Name: "store", Check: func(context.Context) error { return nil }},
		{Name: "stream", Check: func(context.Context) error { return errors.New("nats down") }},
	})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	handler.HealthReady(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var envelope APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error == nil || envelope.Error.Code != ErrCodeServiceUnavailable {
		t.Errorf("error = %+v", envelope.Error)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rig := newAPIRig(t, "")

	resp, err := http.Get(rig.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("go_goroutines")) {
		t.Error("metrics output missing runtime collectors")
	}
}
