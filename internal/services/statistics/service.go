// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package statistics computes the daily site statistics from stored
// snapshots and drives the digest, dashboard and fill-forward features.
package statistics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/autobrr/sitestats/internal/models"
	"github.com/autobrr/sitestats/internal/services/notifications"
	"github.com/autobrr/sitestats/internal/sitestats"
	"github.com/autobrr/sitestats/pkg/debounce"
)

// AllSites is the site id carried by the refresh event fired after every
// site has been refreshed.
const AllSites = "*"

// Store is the subset of the snapshot store the service needs.
type Store interface {
	Snapshots(ctx context.Context) ([]sitestats.UsageSnapshot, error)
	ListByDomain(ctx context.Context, domain string) ([]*models.SiteUserData, error)
	Upsert(ctx context.Context, data *models.SiteUserData) (*models.SiteUserData, error)
}

// Config holds the settings that can change at runtime.
type Config struct {
	NotifyMode    sitestats.NotifyMode
	DashboardType DashboardType
	// DigestDelay coalesces refresh events arriving within the window into
	// one digest. Zero sends immediately.
	DigestDelay time.Duration
}

type Service struct {
	store     Store
	notifier  notifications.Notifier
	refresher Refresher
	logger    zerolog.Logger

	mu        sync.RWMutex
	cfg       Config
	debouncer *debounce.Debouncer
	clock     func() time.Time
}

type Option func(*Service)

// WithClock replaces the wall clock used for stale annotations and
// fill-forward timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.clock = now
	}
}

// WithRefresher replaces the per-domain refresher.
func WithRefresher(r Refresher) Option {
	return func(s *Service) {
		s.refresher = r
	}
}

func NewService(store Store, notifier notifications.Notifier, cfg Config, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.refresher == nil {
		s.refresher = &carryForwardRefresher{store: store, now: s.now}
	}
	s.SetConfig(cfg)
	return s
}

// SetClock swaps the wall clock, typically after the configured timezone
// changes.
func (s *Service) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.mu.Lock()
	s.clock = now
	s.mu.Unlock()
}

func (s *Service) now() time.Time {
	s.mu.RLock()
	clock := s.clock
	s.mu.RUnlock()
	return clock()
}

// SetConfig swaps the runtime settings, flushing any queued digest first.
func (s *Service) SetConfig(cfg Config) {
	if cfg.DashboardType == "" {
		cfg.DashboardType = DashboardToday
	}

	s.mu.Lock()
	old := s.debouncer
	s.cfg = cfg
	s.debouncer = nil
	if cfg.DigestDelay > 0 {
		s.debouncer = debounce.New(cfg.DigestDelay)
	}
	s.mu.Unlock()

	if old != nil {
		old.Stop()
	}
}

func (s *Service) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Close flushes a queued digest.
func (s *Service) Close() {
	s.mu.Lock()
	d := s.debouncer
	s.debouncer = nil
	s.mu.Unlock()

	if d != nil {
		d.Stop()
	}
}

// Partition loads every stored snapshot and splits it into today and
// yesterday.
func (s *Service) Partition(ctx context.Context) (sitestats.Partition, error) {
	snaps, err := s.store.Snapshots(ctx)
	if err != nil {
		return sitestats.Partition{}, fmt.Errorf("load snapshots: %w", err)
	}
	return sitestats.NewPartition(snaps), nil
}

// Digest builds the digest for mode. An empty mode uses the configured one.
func (s *Service) Digest(ctx context.Context, mode sitestats.NotifyMode) (sitestats.Digest, error) {
	if mode == sitestats.NotifyDisabled {
		mode = s.Config().NotifyMode
	}

	p, err := s.Partition(ctx)
	if err != nil {
		return sitestats.Digest{}, err
	}

	return sitestats.BuildDigest(p, sitestats.DigestOptions{
		Mode:         mode,
		ReferenceDay: sitestats.FormatDay(s.now()),
	}), nil
}

// HandleSiteRefreshed reacts to a site refresh event. Only the event for
// all sites triggers a digest, and only when a notify mode is configured.
// It reports whether a digest was scheduled.
func (s *Service) HandleSiteRefreshed(ctx context.Context, siteID string) bool {
	if siteID != AllSites {
		s.logger.Trace().Str("siteID", siteID).Msg("statistics: ignoring single site refresh")
		return false
	}

	s.mu.RLock()
	mode := s.cfg.NotifyMode
	d := s.debouncer
	s.mu.RUnlock()

	if mode == sitestats.NotifyDisabled {
		return false
	}

	send := func() {
		// detached: the digest may outlive the request that triggered it
		if err := s.SendDigest(context.WithoutCancel(ctx), mode); err != nil {
			s.logger.Error().Err(err).Msg("statistics: failed to send digest")
		}
	}

	if d == nil {
		send()
		return true
	}
	d.Do(send)
	return true
}

// SendDigest builds the digest and hands it to the notifier when it has at
// least one moving site.
func (s *Service) SendDigest(ctx context.Context, mode sitestats.NotifyMode) error {
	digest, err := s.Digest(ctx, mode)
	if err != nil {
		return err
	}

	if digest.Empty() {
		s.logger.Debug().Str("today", digest.Today).Msg("statistics: no upload or download since yesterday, skipping digest")
		return nil
	}

	s.logger.Info().
		Str("today", digest.Today).
		Int("sites", len(digest.Sites)).
		Str("mode", string(digest.Mode)).
		Msg("statistics: sending digest")

	if s.notifier != nil {
		s.notifier.Notify(notifications.Event{
			Type:    notifications.EventSiteStatisticsDigest,
			Title:   "Site statistics",
			Message: digest.Text(),
			Day:     digest.Today,
			Count:   len(digest.Sites),
		})
	}
	return nil
}
