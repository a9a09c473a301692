// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

// Package main is the entry point for the rinkrelay coordination server.
//
// Rinkrelay coordinates multiple camera phones recording one hockey
// game: it assigns rink positions, synchronizes clocks, scores incoming
// footage quality every tick, decides which camera is primary, and
// compiles the decision log into a gap-free segment manifest when the
// game ends.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered loading (env over file over defaults)
//  2. Decision log: BadgerDB store for decisions, sessions, manifests
//  3. Arena registry: built-in standard layout plus *.yaml layout files
//  4. NATS: embedded JetStream server, or an external cluster by URL
//  5. Event stream: JetStream stream provisioning and the publisher
//  6. Session manager: recovers mid-flight sessions as aborted
//  7. HTTP API: chi router with device-token auth for camera endpoints
//
// Everything long-running sits in a suture supervisor tree; a crash in
// one layer restarts only that layer.
//
// # Signal handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains,
// session coordinators persist their state, NATS flushes, and the
// decision log closes last.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/rinklab/rinkrelay/internal/api"
	"github.com/rinklab/rinkrelay/internal/arena"
	"github.com/rinklab/rinkrelay/internal/auth"
	"github.com/rinklab/rinkrelay/internal/config"
	"github.com/rinklab/rinkrelay/internal/decisionlog"
	"github.com/rinklab/rinkrelay/internal/events"
	"github.com/rinklab/rinkrelay/internal/logging"
	"github.com/rinklab/rinkrelay/internal/session"
	"github.com/rinklab/rinkrelay/internal/situation"
	"github.com/rinklab/rinkrelay/internal/supervisor"
	"github.com/rinklab/rinkrelay/internal/supervisor/services"
	ws "github.com/rinklab/rinkrelay/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Str("decision_log", cfg.DecisionLog.Path).
		Bool("nats", cfg.NATS.Enabled).
		Bool("device_auth", cfg.Security.DeviceTokenSecret != "").
		Msg("starting rinkrelay")

	if cfg.Security.DeviceTokenSecret == "" {
		logging.Warn().Msg("device token auth is DISABLED; any client can act as any camera")
	}

	// Decision log store. Everything durable lives here.
	store, err := decisionlog.Open(cfg.DecisionLog)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open decision log")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing decision log")
		}
	}()

	// Arena layouts: the built-in standard rink plus any layout files.
	arenas, err := arena.LoadDir(cfg.Arena.LayoutsDir)
	if err != nil {
		logging.Warn().Err(err).Str("dir", cfg.Arena.LayoutsDir).
			Msg("arena layout dir not loaded, using built-in layouts only")
		arenas = arena.NewRegistry()
	}
	logging.Info().Strs("arenas", arenas.IDs()).Msg("arena registry ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Event stream over NATS JetStream. Embedded for single-box rigs,
	// external URL for shared infrastructure.
	var (
		embedded   *events.EmbeddedServer
		publisher  *events.Publisher
		subscriber *events.Subscriber
	)
	if cfg.NATS.Enabled {
		natsURL := cfg.NATS.URL
		if cfg.NATS.EmbeddedServer {
			embedded, err = events.NewEmbeddedServer(cfg.NATS)
			if err != nil {
				logging.Fatal().Err(err).Msg("failed to start embedded nats")
			}
			natsURL = embedded.ClientURL()
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := embedded.Shutdown(shutdownCtx); err != nil {
					logging.Error().Err(err).Msg("embedded nats shutdown failed")
				}
			}()
		}

		if err := provisionStream(ctx, natsURL, cfg); err != nil {
			logging.Fatal().Err(err).Msg("failed to provision event stream")
		}

		publisher, err = events.NewPublisher(natsURL, cfg.NATS, nil)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to create event publisher")
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logging.Error().Err(err).Msg("publisher close failed")
			}
		}()

		subscriber, err = events.NewSubscriber(natsURL)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to create event subscriber")
		}
		defer func() {
			if err := subscriber.Close(); err != nil {
				logging.Error().Err(err).Msg("subscriber close failed")
			}
		}()
	} else {
		logging.Info().Msg("nats disabled; decisions stay local to this process")
	}

	hub := ws.NewHub()

	// External situation classifier, or the static center-ice fallback
	// each coordinator builds from its own arena.
	var classifier situation.Classifier
	if cfg.Situation.URL != "" {
		arenaCfg, aerr := arenas.Get(cfg.Arena.DefaultID)
		if aerr != nil {
			logging.Fatal().Err(aerr).Msg("default arena not registered")
		}
		classifier = situation.FromConfig(cfg.Situation, arenaCfg.Center())
		logging.Info().Str("url", cfg.Situation.URL).Msg("situation classifier enabled")
	}

	deps := session.Deps{
		Config:     *cfg,
		Store:      store,
		Classifier: classifier,
		Hub:        hub,
	}
	if publisher != nil {
		deps.Publisher = publisher
	}
	manager := session.NewManager(arenas, deps)

	// Sessions found mid-recording after a crash abort cleanly; their
	// decision logs stay compilable through the API.
	if err := manager.Recover(ctx); err != nil {
		logging.Fatal().Err(err).Msg("session recovery failed")
	}

	// Device token auth for camera endpoints.
	var tokens *auth.DeviceTokenManager
	if cfg.Security.DeviceTokenSecret != "" {
		tokens, err = auth.NewDeviceTokenManager(cfg.Security.DeviceTokenSecret, 0)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to initialize device token manager")
		}
	}

	handler := api.NewHandler(manager, hub, cfg.Arena.DefaultID, readinessChecks(store, embedded))
	router := api.NewRouter(handler, api.NewMiddlewareSet(cfg.Security, tokens))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       120 * time.Second,
	}

	// Supervisor tree: data, coordination, api layers.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(decisionlog.NewGCService(store))
	tree.AddCoordinationService(hub)
	tree.AddCoordinationService(manager)
	if subscriber != nil {
		tree.AddCoordinationService(ws.NewBridge(hub, subscriber, cfg.NATS.TopicPrefix))
	}
	tree.AddAPIService(services.NewHTTPServerService(httpServer, 10*time.Second))

	errCh := tree.ServeBackground(ctx)
	logging.Info().Msg("rinkrelay ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				logging.Error().Err(err).Msg("supervisor tree exited with error")
			}
		case <-time.After(30 * time.Second):
			logging.Error().Msg("shutdown timed out")
			if report, rerr := tree.UnstoppedServiceReport(); rerr == nil {
				for _, svc := range report {
					logging.Error().Str("service", svc.Name).Msg("service failed to stop")
				}
			}
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Fatal().Err(err).Msg("supervisor tree failed")
		}
	}

	logging.Info().Msg("rinkrelay stopped")
}

// provisionStream creates or updates the JetStream stream so publishers
// never race stream creation.
func provisionStream(ctx context.Context, url string, cfg *config.Config) error {
	conn, err := nats.Connect(url)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer conn.Close()

	js, err := jetstream.New(conn)
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}

	init, err := events.NewStreamInitializer(js, cfg.NATS.TopicPrefix, 24*time.Hour)
	if err != nil {
		return err
	}

	provisionCtx, provisionCancel := context.WithTimeout(ctx, 10*time.Second)
	defer provisionCancel()
	if _, err := init.EnsureStream(provisionCtx); err != nil {
		return fmt.Errorf("ensure stream: %w", err)
	}
	return nil
}

func readinessChecks(store *decisionlog.Store, embedded *events.EmbeddedServer) []api.HealthCheck {
	checks := []api.HealthCheck{
		{
			Name: "decision-log",
			Check: func(ctx context.Context) error {
				_, err := store.Sessions(ctx)
				return err
			},
		},
	}
	if embedded != nil {
		checks = append(checks, api.HealthCheck{
			Name: "nats",
			Check: func(context.Context) error {
				if !embedded.IsRunning() {
					return errors.New("embedded nats not running")
				}
				return nil
			},
		})
	}
	return checks
}
