// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/sitestats/internal/api"
	"github.com/autobrr/sitestats/internal/api/handlers"
	"github.com/autobrr/sitestats/internal/buildinfo"
	"github.com/autobrr/sitestats/internal/database"
	"github.com/autobrr/sitestats/internal/domain"
	"github.com/autobrr/sitestats/internal/metrics"
	"github.com/autobrr/sitestats/internal/services/scheduler"
)

const (
	fillJobName     = "fill-forward"
	fillOnceJobName = "fill-forward-startup"
	shutdownTimeout = 15 * time.Second
)

func RunServeCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the fill-forward schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, configDir)
		},
	}

	addConfigFlag(cmd, &configDir)
	return cmd
}

// serveRuntime is everything serve runs next to the shared app wiring.
type serveRuntime struct {
	scheduler *scheduler.Scheduler
	api       *api.Server
	metrics   *metrics.Server
}

func newServeRuntime(a *app) (*serveRuntime, error) {
	cfg := a.cfg.Current()
	loc, err := cfg.Location()
	if err != nil {
		return nil, errors.Wrap(err, "timezone")
	}

	sched := scheduler.New(loc, componentLogger("scheduler"))
	fill := func(ctx context.Context) error {
		_, err := a.statistics.FillForward(ctx)
		return err
	}
	if err := sched.Register(fillJobName, fillSchedule(cfg), fill); err != nil {
		return nil, errors.Wrap(err, "register fill-forward schedule")
	}
	if cfg.OnlyOnce {
		sched.RunOnceAfter(fillOnceJobName, domain.OnlyOnceDelay, fill)
	}

	a.cfg.OnReload(func(c *domain.Config) {
		statsCfg, err := statisticsConfig(c)
		if err != nil {
			log.Error().Err(err).Msg("config reload: keeping previous statistics settings")
		} else {
			a.statistics.SetConfig(statsCfg)
		}
		if newLoc, err := c.Location(); err != nil {
			log.Error().Err(err).Msg("config reload: keeping previous timezone")
		} else {
			a.statistics.SetClock(zonedClock(newLoc))
			if newLoc.String() != loc.String() {
				log.Warn().Str("timezone", newLoc.String()).Msg("config reload: fill-forward schedule keeps its timezone until restart")
			}
		}
		if err := sched.Register(fillJobName, fillSchedule(c), fill); err != nil {
			log.Error().Err(err).Str("schedule", c.FillSchedule).Msg("config reload: keeping previous fill-forward schedule")
		}
	})

	rt := &serveRuntime{
		scheduler: sched,
		api: api.NewServer(&api.Dependencies{
			Config:              a.cfg,
			Statistics:          a.statistics,
			Snapshots:           a.snapshots,
			NotificationTargets: a.targets,
			Notifications:       a.notifications,
			ReadinessChecks: []handlers.ReadinessCheck{
				func(ctx context.Context) error { return a.db.Conn().PingContext(ctx) },
			},
			Logger: componentLogger("http"),
		}),
	}

	if cfg.MetricsEnabled {
		manager := metrics.NewManager(a.statistics, database.NewMetricsCollector(a.db))
		rt.metrics = metrics.NewServer(manager, cfg.MetricsHost, cfg.MetricsPort, cfg.MetricsBasicAuthUsers)
	}

	return rt, nil
}

// shutdown stops the servers and then waits for running jobs.
func (rt *serveRuntime) shutdown(ctx context.Context) {
	var errs []error
	if err := rt.api.Shutdown(ctx); err != nil {
		errs = append(errs, errors.Wrap(err, "api server"))
	}
	if rt.metrics != nil {
		if err := rt.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, errors.Wrap(err, "metrics server"))
		}
	}
	if err := rt.scheduler.Stop(ctx); err != nil {
		errs = append(errs, errors.Wrap(err, "scheduler"))
	}
	for _, err := range errs {
		log.Error().Err(err).Msg("shutdown")
	}
}

func runServe(ctx context.Context, configDir string) error {
	a, err := newApp(ctx, configDir, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close resources")
		}
	}()

	if err := a.cfg.ApplyLogConfig(); err != nil {
		return errors.Wrap(err, "apply log config")
	}

	log.Info().Str("version", buildinfo.Version).Str("config", a.cfg.ConfigPath()).Msg("Starting sitestats")

	rt, err := newServeRuntime(a)
	if err != nil {
		return err
	}
	a.cfg.WatchConfig()

	a.notifications.Start(ctx)
	rt.scheduler.Start()
	if next, ok := rt.scheduler.Next(fillJobName); ok {
		log.Info().Time("next", next).Msg("fill-forward scheduled")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(rt.api.ListenAndServe)
	if rt.metrics != nil {
		g.Go(rt.metrics.ListenAndServe)
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		rt.shutdown(shutdownCtx)
		return nil
	})

	return g.Wait()
}

func fillSchedule(c *domain.Config) string {
	if c.FillSchedule == "" {
		return domain.DefaultFillSchedule
	}
	return c.FillSchedule
}
