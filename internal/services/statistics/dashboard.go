// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package statistics

import (
	"context"
	"fmt"
	"strings"

	"github.com/autobrr/sitestats/internal/sitestats"
)

type DashboardType string

const (
	DashboardToday DashboardType = "today"
	DashboardTotal DashboardType = "total"
	DashboardAll   DashboardType = "all"
)

func ParseDashboardType(raw string) (DashboardType, error) {
	switch DashboardType(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return "", nil
	case DashboardToday:
		return DashboardToday, nil
	case DashboardTotal:
		return DashboardTotal, nil
	case DashboardAll:
		return DashboardAll, nil
	default:
		return "", fmt.Errorf("unknown dashboard type %q", raw)
	}
}

func (t DashboardType) showsCharts() bool { return t == DashboardToday || t == DashboardAll }
func (t DashboardType) showsTotals() bool { return t == DashboardTotal || t == DashboardAll }

// Card is one headline number on the dashboard.
type Card struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Raw   int64  `json:"raw"`
}

type Dashboard struct {
	Type  DashboardType    `json:"type"`
	Today string           `json:"today"`
	Cards []Card           `json:"cards,omitempty"`
	Chart *sitestats.Chart `json:"chart,omitempty"`
	Empty bool             `json:"empty"`
}

// PageRow is one site in the detail table.
type PageRow struct {
	Site        string `json:"site"`
	Domain      string `json:"domain"`
	Username    string `json:"username"`
	UserLevel   string `json:"userLevel"`
	Upload      string `json:"upload"`
	Download    string `json:"download"`
	Ratio       string `json:"ratio"`
	Bonus       string `json:"bonus"`
	Seeding     string `json:"seeding"`
	SeedingSize string `json:"seedingSize"`
}

type Page struct {
	Today     string     `json:"today"`
	Message   string     `json:"message,omitempty"`
	Dashboard *Dashboard `json:"dashboard,omitempty"`
	Rows      []PageRow  `json:"rows"`
}

const noDataMessage = "no data"

// Dashboard renders the widget for dashType. An empty type uses the
// configured one.
func (s *Service) Dashboard(ctx context.Context, dashType DashboardType) (*Dashboard, error) {
	if dashType == "" {
		dashType = s.Config().DashboardType
	}

	p, err := s.Partition(ctx)
	if err != nil {
		return nil, err
	}
	return buildDashboard(p, dashType), nil
}

func buildDashboard(p sitestats.Partition, dashType DashboardType) *Dashboard {
	d := &Dashboard{Type: dashType, Today: p.Today, Empty: p.Empty()}

	if dashType.showsTotals() {
		totals := sitestats.ComputeTotals(p.TodaySet)
		d.Cards = []Card{
			{Title: "Total upload", Value: sitestats.FormatSize(totals.Upload), Raw: totals.Upload},
			{Title: "Total download", Value: sitestats.FormatSize(totals.Download), Raw: totals.Download},
			{Title: "Seeding", Value: sitestats.FormatCount(totals.SeedingCount), Raw: totals.SeedingCount},
			{Title: "Seeding size", Value: sitestats.FormatSize(totals.SeedingSize), Raw: totals.SeedingSize},
		}
	}

	if dashType.showsCharts() {
		chart := sitestats.BuildChart(p)
		d.Chart = &chart
	}

	return d
}

// Page renders the detail page: one row per site of the latest day followed
// by the full dashboard.
func (s *Service) Page(ctx context.Context) (*Page, error) {
	p, err := s.Partition(ctx)
	if err != nil {
		return nil, err
	}

	page := &Page{Today: p.Today, Rows: []PageRow{}}
	if p.Empty() {
		page.Message = noDataMessage
		return page, nil
	}

	for _, snap := range p.TodaySet {
		page.Rows = append(page.Rows, PageRow{
			Site:        snap.Label(),
			Domain:      snap.Domain,
			Username:    snap.Username,
			UserLevel:   snap.UserLevel,
			Upload:      sitestats.FormatSize(snap.Upload),
			Download:    sitestats.FormatSize(snap.Download),
			Ratio:       fmt.Sprintf("%.2f", snap.Ratio),
			Bonus:       sitestats.FormatBonus(snap.Bonus),
			Seeding:     sitestats.FormatCount(snap.SeedingCount),
			SeedingSize: sitestats.FormatSize(snap.SeedingSize),
		})
	}
	page.Dashboard = buildDashboard(p, DashboardAll)

	return page, nil
}
