// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/pipeline"
)

// Server wraps the HTTP server as a supervised service.
type Server struct {
	cfg config.ServerConfig
	srv *http.Server
}

// NewServer builds the server over the pipeline.
func NewServer(cfg config.ServerConfig, p *pipeline.Pipeline) *Server {
	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           NewRouter(cfg, p),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.Timeout,
			WriteTimeout:      cfg.Timeout,
			IdleTimeout:       2 * cfg.Timeout,
		},
	}
}

// String names the service in supervisor logs.
func (s *Server) String() string { return "http-server" }

// Serve listens until ctx is cancelled, then shuts down gracefully within the
// configured timeout. It satisfies suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.srv.Addr).Msg("http server listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			logging.Err(err).Msg("http server shutdown incomplete")
		}
		// ListenAndServe returns ErrServerClosed after Shutdown; wait for
		// it so the listener goroutine never outlives the service.
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}
