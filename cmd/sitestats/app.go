// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sitestats/internal/config"
	"github.com/autobrr/sitestats/internal/database"
	"github.com/autobrr/sitestats/internal/domain"
	"github.com/autobrr/sitestats/internal/models"
	"github.com/autobrr/sitestats/internal/services/notifications"
	"github.com/autobrr/sitestats/internal/services/statistics"
	"github.com/autobrr/sitestats/internal/sitestats"
)

// app holds the wiring shared by every command.
type app struct {
	cfg           *config.AppConfig
	db            *database.DB
	snapshots     *models.SiteUserDataStore
	targets       *models.NotificationTargetStore
	notifications *notifications.Service
	statistics    *statistics.Service
}

// newApp loads the config and opens the database. With inline set, events
// are delivered before the raising call returns instead of going through
// the background queue, which one-shot commands never start.
func newApp(ctx context.Context, configDir string, inline bool) (*app, error) {
	cfg, err := config.New(configDir)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	statsCfg, err := statisticsConfig(cfg.Current())
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Current().Location()
	if err != nil {
		return nil, errors.Wrap(err, "timezone")
	}

	db, err := database.New(cfg.GetDatabasePath())
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s", cfg.GetDatabasePath())
	}

	a := &app{
		cfg:       cfg,
		db:        db,
		snapshots: models.NewSiteUserDataStore(db),
		targets:   models.NewNotificationTargetStore(db),
	}
	a.notifications = notifications.NewService(a.targets, componentLogger("notifications"))

	var notifier notifications.Notifier = a.notifications
	if inline {
		notifier = &dispatchNotifier{ctx: ctx, service: a.notifications}
	}
	a.statistics = statistics.NewService(a.snapshots, notifier, statsCfg, componentLogger("statistics"),
		statistics.WithClock(zonedClock(loc)))
	return a, nil
}

// Close flushes a pending digest before the database goes away.
func (a *app) Close() error {
	a.statistics.Close()
	err := a.db.Close()
	if cerr := a.cfg.Close(); err == nil {
		err = cerr
	}
	return err
}

// statisticsConfig maps the file settings onto the statistics service.
func statisticsConfig(c *domain.Config) (statistics.Config, error) {
	mode, err := sitestats.ParseNotifyMode(c.NotifyType)
	if err != nil {
		return statistics.Config{}, errors.Wrap(err, "notifyType")
	}
	dashType, err := statistics.ParseDashboardType(c.DashboardType)
	if err != nil {
		return statistics.Config{}, errors.Wrap(err, "dashboardType")
	}
	return statistics.Config{
		NotifyMode:    mode,
		DashboardType: dashType,
		DigestDelay:   c.DigestDelayDuration(),
	}, nil
}

// zonedClock reports wall time in loc so day boundaries follow the
// configured timezone rather than the host's.
func zonedClock(loc *time.Location) func() time.Time {
	return func() time.Time { return time.Now().In(loc) }
}

type dispatchNotifier struct {
	ctx     context.Context
	service *notifications.Service
}

func (n *dispatchNotifier) Notify(event notifications.Event) {
	sent, err := n.service.Dispatch(n.ctx, event)
	if err != nil {
		log.Error().Err(err).Str("event", string(event.Type)).Msg("notification delivery failed")
		return
	}
	log.Debug().Str("event", string(event.Type)).Int("targets", sent).Msg("notification delivered")
}

func componentLogger(name string) zerolog.Logger {
	return log.Logger.With().Str("module", name).Logger()
}
