// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package statistics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/autobrr/sitestats/internal/models"
	"github.com/autobrr/sitestats/internal/services/notifications"
	"github.com/autobrr/sitestats/internal/sitestats"
)

var (
	ErrUnknownSite   = errors.New("site does not exist")
	ErrNoRefreshData = errors.New("refresh returned no data")
)

// Refresher fetches current user data for one site.
type Refresher interface {
	Refresh(ctx context.Context, domain string) (*sitestats.UsageSnapshot, error)
}

// carryForwardRefresher re-dates the newest stored snapshot to the current
// day. It stands in for a scraper when none is configured.
type carryForwardRefresher struct {
	store Store
	now   func() time.Time
}

func (r *carryForwardRefresher) Refresh(ctx context.Context, domain string) (*sitestats.UsageSnapshot, error) {
	rows, err := r.store.ListByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	snap := rows[0].UsageSnapshot
	snap.Day = sitestats.FormatDay(r.now())
	return &snap, nil
}

// FillResult reports what a fill-forward run wrote.
type FillResult struct {
	Today  string   `json:"today"`
	Filled []string `json:"filled"`
}

// FillForward copies the newest snapshot of every site that has no record
// for the latest day, dated that day. Afterwards the all-sites refresh event
// is raised so the digest reflects the filled data.
func (s *Service) FillForward(ctx context.Context) (*FillResult, error) {
	result, err := s.fillForward(ctx)
	if err != nil {
		s.notify(notifications.Event{
			Type:         notifications.EventFillForwardFailed,
			Day:          sitestats.FormatDay(s.now()),
			ErrorMessage: err.Error(),
		})
		return nil, err
	}

	if len(result.Filled) > 0 {
		s.notify(notifications.Event{
			Type:    notifications.EventFillForwardCompleted,
			Day:     result.Today,
			Count:   len(result.Filled),
			Message: "Sites: " + strings.Join(result.Filled, ", "),
		})
	}

	s.HandleSiteRefreshed(ctx, AllSites)
	return result, nil
}

func (s *Service) fillForward(ctx context.Context) (*FillResult, error) {
	snaps, err := s.store.Snapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	result := &FillResult{Filled: []string{}}
	if p := sitestats.NewPartition(snaps); !p.Empty() {
		result.Today = p.Today
	}

	updatedTime := s.now().Format(time.DateTime)
	for _, snap := range sitestats.PlanFillForward(snaps) {
		s.logger.Info().Str("site", snap.Label()).Str("day", snap.Day).Msg("statistics: no data for today, filling from newest record")

		if _, err := s.store.Upsert(ctx, &models.SiteUserData{UsageSnapshot: snap, UpdatedTime: updatedTime}); err != nil {
			return nil, fmt.Errorf("fill %s: %w", snap.Label(), err)
		}
		result.Filled = append(result.Filled, snap.Label())
	}

	return result, nil
}

// RecordSnapshot stores data, replacing any earlier record of the same site
// and day. A snapshot carrying a site error raises a refresh-failed event.
func (s *Service) RecordSnapshot(ctx context.Context, data *models.SiteUserData) (*models.SiteUserData, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: nil payload", models.ErrInvalidSiteUserData)
	}
	if data.Day == "" {
		data.Day = sitestats.FormatDay(s.now())
	}
	if data.UpdatedTime == "" {
		data.UpdatedTime = s.now().Format(time.DateTime)
	}

	stored, err := s.store.Upsert(ctx, data)
	if err != nil {
		return nil, err
	}

	if msg := strings.TrimSpace(stored.ErrMsg); msg != "" {
		s.notify(notifications.Event{
			Type:         notifications.EventSiteRefreshFailed,
			Site:         stored.Label(),
			Day:          stored.Day,
			ErrorMessage: msg,
		})
	}

	return stored, nil
}

// RefreshByDomain refreshes one known site and stores the result.
func (s *Service) RefreshByDomain(ctx context.Context, domain string) (*models.SiteUserData, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, fmt.Errorf("%w: domain is required", models.ErrInvalidSiteUserData)
	}

	known, err := s.store.ListByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	if len(known) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSite, domain)
	}

	snap, err := s.refresher.Refresh(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("refresh %s: %w", domain, err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRefreshData, domain)
	}
	if snap.Domain == "" {
		snap.Domain = domain
	}

	return s.RecordSnapshot(ctx, &models.SiteUserData{UsageSnapshot: *snap})
}

func (s *Service) notify(event notifications.Event) {
	if s.notifier != nil {
		s.notifier.Notify(event)
	}
}
