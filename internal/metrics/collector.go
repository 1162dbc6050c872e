// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sitestats/internal/sitestats"
)

const collectTimeout = 10 * time.Second

// PartitionSource provides the current today/yesterday split.
type PartitionSource interface {
	Partition(ctx context.Context) (sitestats.Partition, error)
}

// SiteCollector exports the latest snapshot of every site and its increment
// since the previous day.
type SiteCollector struct {
	source PartitionSource

	sitesDesc            *prometheus.Desc
	uploadDesc           *prometheus.Desc
	downloadDesc         *prometheus.Desc
	uploadIncrementDesc  *prometheus.Desc
	downloadIncreaseDesc *prometheus.Desc
	seedingDesc          *prometheus.Desc
	seedingSizeDesc      *prometheus.Desc
	ratioDesc            *prometheus.Desc
	bonusDesc            *prometheus.Desc
	staleDesc            *prometheus.Desc
}

func NewSiteCollector(source PartitionSource) *SiteCollector {
	siteLabels := []string{"site", "domain"}

	return &SiteCollector{
		source: source,

		sitesDesc: prometheus.NewDesc(
			"sitestats_sites",
			"Number of sites reporting on the latest day",
			[]string{"day"},
			nil,
		),
		uploadDesc: prometheus.NewDesc(
			"sitestats_site_upload_bytes",
			"Cumulative uploaded bytes reported by the site",
			siteLabels,
			nil,
		),
		downloadDesc: prometheus.NewDesc(
			"sitestats_site_download_bytes",
			"Cumulative downloaded bytes reported by the site",
			siteLabels,
			nil,
		),
		uploadIncrementDesc: prometheus.NewDesc(
			"sitestats_site_upload_increment_bytes",
			"Bytes uploaded since the previous day",
			siteLabels,
			nil,
		),
		downloadIncreaseDesc: prometheus.NewDesc(
			"sitestats_site_download_increment_bytes",
			"Bytes downloaded since the previous day",
			siteLabels,
			nil,
		),
		seedingDesc: prometheus.NewDesc(
			"sitestats_site_seeding_torrents",
			"Number of torrents seeding on the site",
			siteLabels,
			nil,
		),
		seedingSizeDesc: prometheus.NewDesc(
			"sitestats_site_seeding_size_bytes",
			"Total size of torrents seeding on the site",
			siteLabels,
			nil,
		),
		ratioDesc: prometheus.NewDesc(
			"sitestats_site_ratio",
			"Share ratio reported by the site",
			siteLabels,
			nil,
		),
		bonusDesc: prometheus.NewDesc(
			"sitestats_site_bonus",
			"Bonus points reported by the site",
			siteLabels,
			nil,
		),
		staleDesc: prometheus.NewDesc(
			"sitestats_site_has_baseline",
			"Whether the site has a record for the previous day (1=yes, 0=no)",
			siteLabels,
			nil,
		),
	}
}

func (c *SiteCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sitesDesc
	ch <- c.uploadDesc
	ch <- c.downloadDesc
	ch <- c.uploadIncrementDesc
	ch <- c.downloadIncreaseDesc
	ch <- c.seedingDesc
	ch <- c.seedingSizeDesc
	ch <- c.ratioDesc
	ch <- c.bonusDesc
	ch <- c.staleDesc
}

func (c *SiteCollector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		log.Debug().Msg("Partition source is nil, skipping site metrics")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	p, err := c.source.Partition(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load site statistics for metrics")
		return
	}
	if p.Empty() {
		return
	}

	ch <- prometheus.MustNewConstMetric(c.sitesDesc, prometheus.GaugeValue, float64(len(p.TodaySet)), p.Today)

	for _, snap := range p.TodaySet {
		site, domain := snap.Label(), snap.Domain
		baseline := p.Baseline(snap)
		delta := sitestats.ComputeDelta(snap, baseline)

		hasBaseline := 0.0
		if baseline != nil {
			hasBaseline = 1
		}

		ch <- prometheus.MustNewConstMetric(c.uploadDesc, prometheus.GaugeValue, float64(snap.Upload), site, domain)
		ch <- prometheus.MustNewConstMetric(c.downloadDesc, prometheus.GaugeValue, float64(snap.Download), site, domain)
		ch <- prometheus.MustNewConstMetric(c.uploadIncrementDesc, prometheus.GaugeValue, float64(delta.Upload()), site, domain)
		ch <- prometheus.MustNewConstMetric(c.downloadIncreaseDesc, prometheus.GaugeValue, float64(delta.Download()), site, domain)
		ch <- prometheus.MustNewConstMetric(c.seedingDesc, prometheus.GaugeValue, float64(snap.SeedingCount), site, domain)
		ch <- prometheus.MustNewConstMetric(c.seedingSizeDesc, prometheus.GaugeValue, float64(snap.SeedingSize), site, domain)
		ch <- prometheus.MustNewConstMetric(c.ratioDesc, prometheus.GaugeValue, snap.Ratio, site, domain)
		ch <- prometheus.MustNewConstMetric(c.bonusDesc, prometheus.GaugeValue, snap.Bonus, site, domain)
		ch <- prometheus.MustNewConstMetric(c.staleDesc, prometheus.GaugeValue, hasBaseline, site, domain)
	}

	log.Trace().Int("sites", len(p.TodaySet)).Str("day", p.Today).Msg("Collected site metrics")
}
