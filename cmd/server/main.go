// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package main is the entry point for the Watchpost server.
//
// Watchpost continuously monitors a sensor: an adaptive scheduler fires
// capture batches on day/night cadences, each batch is quality-gated,
// analyzed by a pluggable backend, rendered into reports, and persisted
// under a storage quota. The HTTP API exposes status, reports, alerts, and
// manual control; a websocket pushes live events to dashboards.
//
// Components start under a suture supervisor tree:
//
//  1. Configuration: koanf v2 layers defaults, config.yaml, WATCHPOST_ env
//  2. Storage: BadgerDB with quota enforcement and retention cleanup
//  3. Pipeline: capture, analysis, report, orchestrator wiring
//  4. Supervisor: scheduler, fire consumer, health monitor, janitor,
//     websocket hub, HTTP server
//
// The server shuts down gracefully on SIGINT and SIGTERM: the scheduler
// stops firing, in-flight work finishes within the supervisor timeout, and
// storage closes last.
package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"

	"github.com/watchpost/watchpost/internal/api"
	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/pipeline"
	"github.com/watchpost/watchpost/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("watchpost starting")

	if err := run(cfg); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("watchpost exited with error")
	}
	logging.Info().Msg("watchpost stopped")
}

func run(cfg *config.Config) error {
	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logging.Err(err).Msg("pipeline close failed")
		}
	}()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddPipelineService(p.Sched)
	tree.AddPipelineService(pipeline.NewFireConsumer(p))
	tree.AddPipelineService(p.Health)
	tree.AddPipelineService(pipeline.NewJanitor(p))

	tree.AddMessagingService(p.Hub)
	tree.AddMessagingService(pipeline.NewHubRelay(p))

	tree.AddAPIService(api.NewServer(cfg.Server, p))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service did not stop within timeout")
		}
	}
	return err
}
