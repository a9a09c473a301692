// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/rinklab/rinkrelay/internal/arena"
	"github.com/rinklab/rinkrelay/internal/clock"
	"github.com/rinklab/rinkrelay/internal/compiler"
	"github.com/rinklab/rinkrelay/internal/config"
	"github.com/rinklab/rinkrelay/internal/decisionlog"
	"github.com/rinklab/rinkrelay/internal/events"
	"github.com/rinklab/rinkrelay/internal/logging"
	"github.com/rinklab/rinkrelay/internal/metrics"
	"github.com/rinklab/rinkrelay/internal/models"
	"github.com/rinklab/rinkrelay/internal/quality"
	"github.com/rinklab/rinkrelay/internal/situation"
	"github.com/rinklab/rinkrelay/internal/switching"
	"github.com/rinklab/rinkrelay/internal/weight"
)

// maxRecentWarnings bounds the warning list returned by Status.
const maxRecentWarnings = 32

// clockUncertainTechnicalCap limits the technical score of a camera
// recording with an unvalidated clock offset.
const clockUncertainTechnicalCap = 0.6

// Publisher is the slice of the event stream the coordinator needs.
type Publisher interface {
	PublishDecision(ctx context.Context, d models.SwitchingDecision, now time.Time) error
	PublishSession(ctx context.Context, ev *events.SessionEvent) error
}

// Broadcaster is the slice of the dashboard hub the coordinator needs.
type Broadcaster interface {
	BroadcastDecision(d models.SwitchingDecision)
	BroadcastStatus(sessionID string, status models.SessionStatus)
	BroadcastWarning(sessionID string, warning models.SessionWarning, cameraID string)
}

// JoinResult is the response to a successful join.
type JoinResult struct {
	Position models.PositionSpec        `json:"position"`
	Arena    *models.ArenaConfiguration `json:"arena"`
	Rejoined bool                       `json:"rejoined"`
}

// ChunkResult is the response to a chunk submission.
type ChunkResult struct {
	Accepted     bool   `json:"accepted"`
	NextExpected uint64 `json:"next_expected_sequence"`
}

// CameraStatus is one camera's slice of a status snapshot.
type CameraStatus struct {
	CameraID       string                   `json:"camera_id"`
	Position       string                   `json:"position"`
	State          models.CameraState       `json:"state"`
	OffsetMs       float64                  `json:"offset_ms"`
	ClockUncertain bool                     `json:"clock_uncertain"`
	Quality        *models.QualityReport    `json:"quality,omitempty"`
	Weight         *models.ProcessingWeight `json:"weight,omitempty"`
}

// Status is a point-in-time snapshot of one session, safe to hand across
// goroutines.
type Status struct {
	SessionID      string                  `json:"session_id"`
	ArenaID        string                  `json:"arena_id"`
	Status         models.SessionStatus    `json:"status"`
	MasterOrigin   time.Time               `json:"master_origin"`
	Tick           uint64                  `json:"tick"`
	CurrentPrimary string                  `json:"current_primary"`
	Cameras        []CameraStatus          `json:"cameras"`
	Warnings       []models.SessionWarning `json:"warnings"`
}

// cameraEntry is the coordinator-private state for one camera.
type cameraEntry struct {
	stream *models.CameraStream

	// pendingMeta is the newest chunk metadata since the last tick.
	// Consumed (and cleared) by the quality step.
	pendingMeta *models.ChunkMetadata

	// chunks are the accepted chunk references, kept for manifest
	// assignment at compile time.
	chunks []models.ChunkRef

	lastTier models.QualityTier
}

// Coordinator is the single-writer actor owning one session.
//
// Every mutation flows through the calls channel and executes on the
// Serve goroutine, so the session aggregate needs no locks. Camera-facing
// entry points (Join, RequestSync, Heartbeat, SubmitChunk) are the
// concurrent per-camera tasks; they only ever exchange messages with the
// coordinator, never touch its state.
type Coordinator struct {
	cfg        config.Config
	clk        clock.Clock
	session    *models.GameSession
	arenaCfg   *models.ArenaConfiguration
	assigner   *arena.Assigner
	syncer     *clock.Synchronizer
	heartbeats *clock.HeartbeatTracker
	assessor   *quality.Assessor
	weights    *weight.Calculator
	engine     *switching.Engine
	compiler   *compiler.Compiler
	store      *decisionlog.Store
	classifier situation.Classifier
	publisher  Publisher   // optional
	hub        Broadcaster // optional

	cameras map[string]*cameraEntry
	archive map[string]*cameraEntry

	tick     uint64
	nextSeq  uint64
	last     *models.SwitchingDecision
	allPoor  bool
	warnings []models.SessionWarning

	calls chan func()
}

// Deps bundles the collaborators a coordinator needs.
type Deps struct {
	Config     config.Config
	Clock      clock.Clock
	Store      *decisionlog.Store
	Classifier situation.Classifier
	Publisher  Publisher
	Hub        Broadcaster
}

// NewCoordinator creates the actor for a fresh session in Waiting state.
func NewCoordinator(sessionID string, arenaCfg *models.ArenaConfiguration, deps Deps) *Coordinator {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	classifier := deps.Classifier
	if classifier == nil {
		classifier = situation.NewStatic(arenaCfg.Center())
	}

	return &Coordinator{
		cfg:        deps.Config,
		clk:        clk,
		arenaCfg:   arenaCfg,
		assigner:   arena.NewAssigner(arenaCfg, deps.Config.Session.MaxCameras),
		syncer:     clock.NewSynchronizer(clk, deps.Config.Sync),
		heartbeats: clock.NewHeartbeatTracker(clk, deps.Config.Session),
		assessor:   quality.NewAssessor(deps.Config.Quality, deps.Config.Session.HistoryWindow),
		weights:    weight.NewCalculator(deps.Config.Switching),
		engine:     switching.NewEngine(deps.Config.Switching, arenaCfg),
		compiler:   compiler.New(),
		store:      deps.Store,
		classifier: classifier,
		publisher:  deps.Publisher,
		hub:        deps.Hub,
		session: &models.GameSession{
			ID:        sessionID,
			ArenaID:   arenaCfg.ID,
			Status:    models.SessionWaiting,
			CreatedAt: clk.Now(),
		},
		cameras: make(map[string]*cameraEntry),
		archive: make(map[string]*cameraEntry),
		calls:   make(chan func(), 64),
	}
}

// Serve runs the coordinator loop: commands interleaved with the fixed
// decision tick. Returns suture.ErrDoNotRestart once the session reaches
// a terminal state so the supervisor retires the service.
func (c *Coordinator) Serve(ctx context.Context) error {
	logging.Info().
		Str("session_id", c.session.ID).
		Str("arena_id", c.session.ArenaID).
		Msg("session coordinator started")

	ticker := time.NewTicker(c.cfg.Session.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.persist(context.Background())
			logging.Info().
				Str("session_id", c.session.ID).
				Msg("session coordinator stopped")
			return ctx.Err()
		case <-ticker.C:
			c.onTick(ctx)
			if c.session.Status.Terminal() {
				return suture.ErrDoNotRestart
			}
		case call := <-c.calls:
			call()
			if c.session.Status.Terminal() {
				return suture.ErrDoNotRestart
			}
		}
	}
}

func (c *Coordinator) String() string {
	return "session-" + c.session.ID
}

// ID returns the session id.
func (c *Coordinator) ID() string { return c.session.ID }

// call runs fn on the coordinator goroutine and waits for it.
func (c *Coordinator) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case c.calls <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join admits a camera, assigning the highest-priority free slot, or
// reattaches a previously disconnected camera to its reserved slot.
// Idempotent for cameras already holding a slot.
func (c *Coordinator) Join(ctx context.Context, cameraID, deviceID string) (JoinResult, error) {
	var (
		res JoinResult
		err error
	)
	if cerr := c.call(ctx, func() { res, err = c.handleJoin(cameraID, deviceID) }); cerr != nil {
		return JoinResult{}, cerr
	}
	return res, err
}

// RequestSync records a clock offset sample and returns the smoothed
// estimate plus the shared countdown.
func (c *Coordinator) RequestSync(ctx context.Context, cameraID string, localTimestamp time.Time) (clock.SyncResult, error) {
	var (
		res clock.SyncResult
		err error
	)
	if cerr := c.call(ctx, func() { res, err = c.handleSync(cameraID, localTimestamp) }); cerr != nil {
		return clock.SyncResult{}, cerr
	}
	return res, err
}

// Heartbeat records a liveness signal.
func (c *Coordinator) Heartbeat(ctx context.Context, cameraID string) error {
	var err error
	if cerr := c.call(ctx, func() { err = c.handleHeartbeat(cameraID) }); cerr != nil {
		return cerr
	}
	return err
}

// SubmitChunk ingests one chunk's metadata and payload reference.
// Out-of-order and duplicate sequences are rejected with the expected
// sequence, never reordered.
func (c *Coordinator) SubmitChunk(ctx context.Context, cameraID string, seq uint64, meta *models.ChunkMetadata, payloadRef string, duration time.Duration) (ChunkResult, error) {
	var (
		res ChunkResult
		err error
	)
	if cerr := c.call(ctx, func() { res, err = c.handleChunk(cameraID, seq, meta, payloadRef, duration) }); cerr != nil {
		return ChunkResult{}, cerr
	}
	return res, err
}

// DeviceFor returns the device identity a camera joined with. Used by
// the API layer to check that a device token acts only for its own
// camera.
func (c *Coordinator) DeviceFor(ctx context.Context, cameraID string) (string, error) {
	var (
		deviceID string
		err      error
	)
	cerr := c.call(ctx, func() {
		entry, ok := c.cameras[cameraID]
		if !ok {
			entry, ok = c.archive[cameraID]
		}
		if !ok {
			err = models.ErrCameraNotFound
			return
		}
		deviceID = entry.stream.DeviceID
	})
	if cerr != nil {
		return "", cerr
	}
	return deviceID, err
}

// Status returns a snapshot for dashboards.
func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	var snap Status
	if cerr := c.call(ctx, func() { snap = c.snapshot() }); cerr != nil {
		return Status{}, cerr
	}
	return snap, nil
}

// Stop ends recording, compiles the manifest, and completes the session.
// A compilation gap completes the session with a warning; the decision
// log stays intact for later recompilation.
func (c *Coordinator) Stop(ctx context.Context) error {
	var err error
	if cerr := c.call(ctx, func() { err = c.finish(ctx) }); cerr != nil {
		return cerr
	}
	return err
}

// Abort moves the session to Aborted immediately. The decision log is
// retained and remains compilable.
func (c *Coordinator) Abort(ctx context.Context) error {
	return c.call(ctx, func() { c.transition(models.SessionAborted) })
}

// ---- coordinator-goroutine handlers ----

func (c *Coordinator) handleJoin(cameraID, deviceID string) (JoinResult, error) {
	if c.session.Status.Terminal() {
		return JoinResult{}, models.ErrSessionTerminal
	}

	// Reconnection: the slot stayed reserved for this identity.
	if entry, ok := c.archive[cameraID]; ok {
		pos, err := c.assigner.Reattach(cameraID)
		if err != nil {
			return JoinResult{}, err
		}
		delete(c.archive, cameraID)
		c.cameras[cameraID] = entry
		entry.stream.State = models.CameraStreaming
		entry.stream.DisconnectedAt = time.Time{}
		c.heartbeats.Reconnect(cameraID)
		c.warn(models.WarningCameraRecovered, cameraID)
		logging.Info().
			Str("session_id", c.session.ID).
			Str("camera_id", cameraID).
			Str("position", pos.Name).
			Msg("camera reconnected")
		return JoinResult{Position: pos, Arena: c.arenaCfg, Rejoined: true}, nil
	}

	if entry, ok := c.cameras[cameraID]; ok {
		return JoinResult{Position: entry.stream.Position, Arena: c.arenaCfg}, nil
	}

	pos, err := c.assigner.Assign(cameraID)
	if err != nil {
		return JoinResult{}, err
	}

	now := c.clk.Now()
	c.cameras[cameraID] = &cameraEntry{
		stream: &models.CameraStream{
			ID:       cameraID,
			DeviceID: deviceID,
			Position: pos,
			State:    models.CameraJoining,
			JoinedAt: now,
		},
	}
	c.heartbeats.Track(cameraID, models.CameraJoining)
	metrics.CamerasByState.WithLabelValues(string(models.CameraJoining)).Inc()

	logging.Info().
		Str("session_id", c.session.ID).
		Str("camera_id", cameraID).
		Str("position", pos.Name).
		Int("cameras", len(c.cameras)).
		Msg("camera joined")
	return JoinResult{Position: pos, Arena: c.arenaCfg}, nil
}

func (c *Coordinator) handleSync(cameraID string, localTimestamp time.Time) (clock.SyncResult, error) {
	entry, ok := c.cameras[cameraID]
	if !ok {
		return clock.SyncResult{}, models.ErrCameraNotFound
	}

	res := c.syncer.RequestSync(cameraID, localTimestamp)
	entry.stream.OffsetMs = res.OffsetMs
	metrics.ClockOffsetMs.Observe(res.OffsetMs)

	switch {
	case res.Degraded:
		metrics.SyncRequests.WithLabelValues("degraded").Inc()
		if !entry.stream.ClockUncertain {
			entry.stream.ClockUncertain = true
			c.warn(models.WarningClockUncertain, cameraID)
		}
	case res.Validated:
		metrics.SyncRequests.WithLabelValues("validated").Inc()
	default:
		metrics.SyncRequests.WithLabelValues("retry").Inc()
	}

	if entry.stream.State == models.CameraJoining && res.Validated {
		c.setCameraState(entry, models.CameraSynced)
		if c.session.Status == models.SessionRecording {
			// Late joiner: recording is already underway.
			c.setCameraState(entry, models.CameraStreaming)
		}
	}
	return res, nil
}

func (c *Coordinator) handleHeartbeat(cameraID string) error {
	entry, ok := c.cameras[cameraID]
	if !ok {
		// Disconnected cameras reconnect through the join path so the
		// slot identity check applies.
		return models.ErrCameraNotFound
	}

	entry.stream.LastHeartbeat = c.clk.Now()
	entry.stream.MissedHeartbeat = 0
	if ev, recovered := c.heartbeats.Beat(cameraID); recovered {
		c.applyLiveness(entry, ev)
		c.warn(models.WarningCameraRecovered, cameraID)
	}
	return nil
}

func (c *Coordinator) handleChunk(cameraID string, seq uint64, meta *models.ChunkMetadata, payloadRef string, duration time.Duration) (ChunkResult, error) {
	entry, ok := c.cameras[cameraID]
	if !ok {
		return ChunkResult{}, models.ErrCameraNotFound
	}

	if seq != entry.stream.NextSequence {
		metrics.ChunksRejected.WithLabelValues("stale_sequence").Inc()
		return ChunkResult{Accepted: false, NextExpected: entry.stream.NextSequence},
			fmt.Errorf("%w: got %d, expected %d", models.ErrStaleSequence, seq, entry.stream.NextSequence)
	}

	now := c.clk.Now()
	entry.stream.NextSequence++
	entry.pendingMeta = meta
	entry.chunks = append(entry.chunks, models.ChunkRef{
		CameraID:   cameraID,
		Sequence:   seq,
		PayloadRef: payloadRef,
		Start:      now.Add(-duration),
		Duration:   duration,
		ReceivedAt: now,
	})

	if entry.stream.State == models.CameraSynced && c.session.Status == models.SessionRecording {
		c.setCameraState(entry, models.CameraStreaming)
	}
	return ChunkResult{Accepted: true, NextExpected: entry.stream.NextSequence}, nil
}

func (c *Coordinator) snapshot() Status {
	snap := Status{
		SessionID:    c.session.ID,
		ArenaID:      c.session.ArenaID,
		Status:       c.session.Status,
		MasterOrigin: c.session.MasterOrigin,
		Tick:         c.tick,
	}
	if c.last != nil {
		snap.CurrentPrimary = c.last.Primary
	}
	snap.Warnings = append(snap.Warnings, c.warnings...)

	for _, entry := range c.cameras {
		snap.Cameras = append(snap.Cameras, cameraStatus(entry))
	}
	for _, entry := range c.archive {
		snap.Cameras = append(snap.Cameras, cameraStatus(entry))
	}
	sort.Slice(snap.Cameras, func(i, j int) bool {
		return snap.Cameras[i].CameraID < snap.Cameras[j].CameraID
	})
	return snap
}

func cameraStatus(entry *cameraEntry) CameraStatus {
	return CameraStatus{
		CameraID:       entry.stream.ID,
		Position:       entry.stream.Position.Name,
		State:          entry.stream.State,
		OffsetMs:       entry.stream.OffsetMs,
		ClockUncertain: entry.stream.ClockUncertain,
		Quality:        entry.stream.Quality,
		Weight:         entry.stream.Weight,
	}
}

// ---- tick pipeline ----

func (c *Coordinator) onTick(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	now := c.clk.Now()
	switch c.session.Status {
	case models.SessionWaiting:
		if len(c.cameras) >= c.cfg.Session.MinCameras {
			c.transition(models.SessionSynchronizing)
			startAt := c.syncer.ArmCountdown()
			logging.Info().
				Str("session_id", c.session.ID).
				Time("start_at", startAt).
				Msg("countdown armed")
		}
	case models.SessionSynchronizing:
		startAt := c.syncer.StartAt()
		if !startAt.IsZero() && !now.Before(startAt) {
			c.beginRecording(startAt)
		}
	case models.SessionRecording:
		c.tick++
		c.evaluateLiveness()
		c.decide(ctx, now)
	}
}

// beginRecording flips every camera to streaming at the shared start
// instant. Cameras without a validated offset record anyway with their
// clock flagged uncertain.
func (c *Coordinator) beginRecording(origin time.Time) {
	c.session.MasterOrigin = origin
	for id, entry := range c.cameras {
		if !c.syncer.Synced([]string{id}) || c.syncer.Degraded(id) {
			if !entry.stream.ClockUncertain {
				entry.stream.ClockUncertain = true
				c.warn(models.WarningClockUncertain, id)
			}
		}
		c.setCameraState(entry, models.CameraStreaming)
	}
	c.transition(models.SessionRecording)
}

func (c *Coordinator) evaluateLiveness() {
	for _, ev := range c.heartbeats.Evaluate() {
		entry, ok := c.cameras[ev.CameraID]
		if !ok {
			continue
		}
		c.applyLiveness(entry, ev)
	}
}

func (c *Coordinator) applyLiveness(entry *cameraEntry, ev clock.LivenessEvent) {
	metrics.CamerasByState.WithLabelValues(string(ev.From)).Dec()
	metrics.CamerasByState.WithLabelValues(string(ev.To)).Inc()
	entry.stream.State = ev.To
	entry.stream.MissedHeartbeat = ev.Misses

	switch ev.To {
	case models.CameraDegraded:
		metrics.HeartbeatMisses.Add(float64(ev.Misses))
		c.warn(models.WarningCameraDegraded, entry.stream.ID)
	case models.CameraDisconnected:
		metrics.CameraDisconnects.Inc()
		entry.stream.DisconnectedAt = c.clk.Now()
		// Removed, not destroyed: the slot stays reserved for this
		// identity and the quality history survives for analysis.
		delete(c.cameras, entry.stream.ID)
		c.archive[entry.stream.ID] = entry
		metrics.ForgetCamera(c.session.ID, entry.stream.ID)
		logging.Warn().
			Str("session_id", c.session.ID).
			Str("camera_id", entry.stream.ID).
			Msg("camera disconnected, slot reserved")
	}
}

func (c *Coordinator) decide(ctx context.Context, now time.Time) {
	action, err := c.classifier.Classify(ctx, c.session.ID)
	if err != nil {
		action = models.ActionLocation{
			Coordinates: c.arenaCfg.Center(),
			Situation:   models.SituationNormal,
		}
	}

	inputs := make([]switching.CameraInput, 0, len(c.cameras))
	for id, entry := range c.cameras {
		if !entry.stream.State.Eligible() {
			continue
		}

		meta := entry.pendingMeta
		entry.pendingMeta = nil
		report := c.assessor.Assess(id, entry.stream.Position, meta, c.tick, now)
		if entry.stream.ClockUncertain {
			report = c.capTechnical(report)
		}
		metrics.RecordQualityReport(c.session.ID, id, string(report.Tier), report.Overall)

		if report.Tier.WorseThan(models.TierAcceptable) && !entry.lastTier.WorseThan(models.TierAcceptable) {
			c.warn(models.WarningCameraPoor, id)
		}
		entry.lastTier = report.Tier

		w := c.weights.Compute(entry.stream.Position, report, action.Situation, c.tick)
		entry.stream.Quality = &report
		entry.stream.Weight = &w

		inputs = append(inputs, switching.CameraInput{
			CameraID: id,
			Position: entry.stream.Position,
			Weight:   w,
			Report:   report,
		})
	}

	decision, allPoor := c.engine.Decide(c.session.ID, c.tick, now, inputs, action, c.last)
	if decision.Primary == "" {
		return
	}
	decision.Seq = c.nextSeq
	if c.nextSeq == 0 && decision.Timestamp.After(c.session.MasterOrigin) {
		// The first decision governs from the recording origin so the
		// compiled manifest covers the full session.
		decision.Timestamp = c.session.MasterOrigin
	}

	if err := c.store.Append(ctx, decision); err != nil {
		logging.Err(err).
			Str("session_id", c.session.ID).
			Uint64("seq", decision.Seq).
			Msg("decision append failed, aborting session")
		c.transition(models.SessionAborted)
		return
	}
	c.nextSeq++
	c.last = &decision
	metrics.RecordDecision(string(decision.Reason))

	if c.publisher != nil {
		if err := c.publisher.PublishDecision(ctx, decision, now); err != nil {
			logging.Err(err).
				Str("session_id", c.session.ID).
				Uint64("seq", decision.Seq).
				Msg("decision publish failed")
		}
	}
	if c.hub != nil {
		c.hub.BroadcastDecision(decision)
	}

	// AllCamerasPoor latches: one warning per episode, not per tick.
	if allPoor && !c.allPoor {
		c.warn(models.WarningAllCamerasPoor, "")
	}
	c.allPoor = allPoor
}

// capTechnical limits the technical dimension for cameras recording with
// an unvalidated clock and recomputes the overall score and tier.
func (c *Coordinator) capTechnical(r models.QualityReport) models.QualityReport {
	if r.Technical <= clockUncertainTechnicalCap {
		return r
	}
	r.Technical = clockUncertainTechnicalCap
	q := c.cfg.Quality
	r.Overall = q.TechnicalWeight*r.Technical +
		q.PositionalWeight*r.Positional +
		q.StabilityWeight*r.Stability +
		q.ContentWeight*r.Content
	r.Tier = quality.TierFor(r.Overall)
	return r
}

// ---- lifecycle ----

func (c *Coordinator) finish(ctx context.Context) error {
	switch c.session.Status {
	case models.SessionWaiting, models.SessionSynchronizing:
		c.transition(models.SessionAborted)
		return nil
	case models.SessionCompiling, models.SessionCompleted, models.SessionAborted:
		return models.ErrSessionTerminal
	}

	c.transition(models.SessionCompiling)
	end := c.clk.Now()

	decisions, err := c.store.Decisions(ctx, c.session.ID)
	if err != nil {
		c.transition(models.SessionAborted)
		return fmt.Errorf("replay decision log: %w", err)
	}

	manifest, err := c.compiler.Compile(c.session.ID, c.session.MasterOrigin, end, c.clk.Now(), decisions)
	if err != nil {
		if errors.Is(err, models.ErrCompilationGap) {
			// Surfaced, never patched. The log is intact for a
			// corrected recompilation.
			c.warn(models.WarningCompilationGap, "")
			c.session.CompletedAt = end
			c.transition(models.SessionCompleted)
			return err
		}
		c.transition(models.SessionAborted)
		return fmt.Errorf("compile session %s: %w", c.session.ID, err)
	}

	if err := c.store.PutManifest(ctx, manifest); err != nil {
		c.transition(models.SessionAborted)
		return fmt.Errorf("store manifest: %w", err)
	}

	c.logChunkCoverage(manifest)
	c.session.CompletedAt = end
	c.transition(models.SessionCompleted)
	logging.Info().
		Str("session_id", c.session.ID).
		Int("segments", len(manifest.Segments)).
		Msg("session compiled")
	return nil
}

// logChunkCoverage maps received chunk references onto the manifest and
// reports orphans, so downstream rendering can spot missing footage.
func (c *Coordinator) logChunkCoverage(manifest *models.SegmentManifest) {
	var chunks []models.ChunkRef
	for _, entry := range c.cameras {
		chunks = append(chunks, entry.chunks...)
	}
	for _, entry := range c.archive {
		chunks = append(chunks, entry.chunks...)
	}
	if len(chunks) == 0 {
		return
	}

	_, orphans := compiler.AssignChunks(manifest, chunks)
	if len(orphans) > 0 {
		logging.Warn().
			Str("session_id", c.session.ID).
			Int("orphans", len(orphans)).
			Int("chunks", len(chunks)).
			Msg("chunks outside any manifest segment")
	}
}

func (c *Coordinator) transition(status models.SessionStatus) {
	if c.session.Status == status {
		return
	}
	from := c.session.Status
	c.session.Status = status
	metrics.RecordSessionTransition(string(status))
	if status.Terminal() {
		metrics.SessionsActive.Dec()
		c.retireCameras()
	}

	logging.Info().
		Str("session_id", c.session.ID).
		Str("from", string(from)).
		Str("to", string(status)).
		Msg("session transition")

	c.persist(context.Background())
	if c.hub != nil {
		c.hub.BroadcastStatus(c.session.ID, status)
	}
	if c.publisher != nil {
		ev := events.NewSessionEvent(c.session.ID, status, c.clk.Now())
		if err := c.publisher.PublishSession(context.Background(), ev); err != nil {
			logging.Err(err).Str("session_id", c.session.ID).Msg("session event publish failed")
		}
	}
}

// retireCameras releases per-camera tracking state once the session is
// terminal. Sync windows, heartbeat liveness, quality history, and EMA
// smoothing all belong to a live session; chunk references stay on the
// entries for manifest coverage accounting.
func (c *Coordinator) retireCameras() {
	for id := range c.cameras {
		c.forgetCamera(id)
	}
	for id := range c.archive {
		c.forgetCamera(id)
	}
}

func (c *Coordinator) forgetCamera(cameraID string) {
	c.syncer.Forget(cameraID)
	c.heartbeats.Forget(cameraID)
	c.assessor.Forget(cameraID)
	c.weights.Forget(cameraID)
	metrics.ForgetCamera(c.session.ID, cameraID)
}

func (c *Coordinator) warn(warning models.SessionWarning, cameraID string) {
	c.warnings = append(c.warnings, warning)
	if len(c.warnings) > maxRecentWarnings {
		c.warnings = c.warnings[len(c.warnings)-maxRecentWarnings:]
	}
	metrics.RecordWarning(string(warning))

	logging.Warn().
		Str("session_id", c.session.ID).
		Str("warning", string(warning)).
		Str("camera_id", cameraID).
		Msg("session warning")

	if c.hub != nil {
		c.hub.BroadcastWarning(c.session.ID, warning, cameraID)
	}
	if c.publisher != nil {
		ev := events.NewWarningEvent(c.session.ID, c.session.Status, warning, cameraID, c.clk.Now())
		if err := c.publisher.PublishSession(context.Background(), ev); err != nil {
			logging.Err(err).Str("session_id", c.session.ID).Msg("warning event publish failed")
		}
	}
}

func (c *Coordinator) setCameraState(entry *cameraEntry, state models.CameraState) {
	if entry.stream.State == state {
		return
	}
	metrics.CamerasByState.WithLabelValues(string(entry.stream.State)).Dec()
	metrics.CamerasByState.WithLabelValues(string(state)).Inc()
	entry.stream.State = state
	c.heartbeats.SetState(entry.stream.ID, state)
}

func (c *Coordinator) persist(ctx context.Context) {
	if err := c.store.PutSession(ctx, c.session); err != nil {
		logging.Err(err).Str("session_id", c.session.ID).Msg("session record persist failed")
	}
}
