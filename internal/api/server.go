// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api serves the HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sitestats/internal/api/handlers"
	"github.com/autobrr/sitestats/internal/api/middleware"
	"github.com/autobrr/sitestats/internal/config"
	"github.com/autobrr/sitestats/internal/models"
	"github.com/autobrr/sitestats/internal/services/notifications"
	"github.com/autobrr/sitestats/internal/services/statistics"
	"github.com/autobrr/sitestats/pkg/httphelpers"
)

const (
	compressionMinSize = 1024
	compressionLevel   = 5
)

type Dependencies struct {
	Config              *config.AppConfig
	Statistics          *statistics.Service
	Snapshots           *models.SiteUserDataStore
	NotificationTargets *models.NotificationTargetStore
	Notifications       *notifications.Service
	// ReadinessChecks run on /api/health/readiness.
	ReadinessChecks []handlers.ReadinessCheck
	Logger          zerolog.Logger
}

type Server struct {
	deps   *Dependencies
	server *http.Server
}

func NewServer(deps *Dependencies) *Server {
	return &Server{
		deps: deps,
		server: &http.Server{
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       180 * time.Second,
		},
	}
}

// Handler builds the router. Everything lives under the configured base URL.
func (s *Server) Handler() (http.Handler, error) {
	if s.deps == nil || s.deps.Config == nil {
		return nil, errors.New("api: config is required")
	}
	if s.deps.Statistics == nil || s.deps.Snapshots == nil || s.deps.NotificationTargets == nil {
		return nil, errors.New("api: statistics and stores are required")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger(s.deps.Logger))
	r.Use(cors.New(cors.Options{
		AllowOriginFunc:  func(string) bool { return true },
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.APIKeyHeader, "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	r.Use(middleware.Compress(compressionMinSize, compressionLevel))

	apiRouter := chi.NewRouter()

	health := handlers.NewHealthHandler(s.deps.ReadinessChecks...)
	apiRouter.Route("/health", health.Routes)

	apiToken := func() string { return s.deps.Config.Current().APIToken }
	stats := handlers.NewStatisticsHandler(s.deps.Statistics, s.deps.Snapshots)

	apiRouter.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyFromQuery("apikey"))
		r.Use(middleware.RequireAPITokenWith(apiToken, handlers.RejectRefresh))
		stats.RefreshRoutes(r)
	})

	apiRouter.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyFromQuery("apikey"))
		r.Use(middleware.RequireAPIToken(apiToken))

		r.Get("/version", handlers.GetVersion)
		handlers.NewConfigHandler(s.deps.Config).Routes(r)
		stats.Routes(r)
		handlers.NewNotificationsHandler(s.deps.NotificationTargets, s.deps.Notifications).Routes(r)
	})

	basePath := httphelpers.NormalizeBasePath(s.deps.Config.Current().BaseURL)
	r.Mount(httphelpers.JoinBasePath(basePath, "/api"), apiRouter)

	return r, nil
}

// ListenAndServe blocks until the server stops. A clean shutdown returns
// nil, including one that happened before the listener started.
func (s *Server) ListenAndServe() error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	cfg := s.deps.Config.Current()
	s.server.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	s.server.Handler = handler

	log.Info().Str("addr", s.server.Addr).Msg("Starting API server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
