// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector exposes writer statistics of a DB.
type MetricsCollector struct {
	db *DB

	writesDesc      *prometheus.Desc
	writeErrorsDesc *prometheus.Desc
	preparesDesc    *prometheus.Desc
}

func NewMetricsCollector(db *DB) *MetricsCollector {
	return &MetricsCollector{
		db: db,
		writesDesc: prometheus.NewDesc(
			"sitestats_db_writes_total",
			"Number of write statements executed by the single writer",
			nil,
			nil,
		),
		writeErrorsDesc: prometheus.NewDesc(
			"sitestats_db_write_errors_total",
			"Number of write statements that returned an error",
			nil,
			nil,
		),
		preparesDesc: prometheus.NewDesc(
			"sitestats_db_statement_prepares_total",
			"Number of statements prepared after a statement cache miss",
			nil,
			nil,
		),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.writesDesc
	ch <- c.writeErrorsDesc
	ch <- c.preparesDesc
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.db == nil {
		return
	}

	ch <- prometheus.MustNewConstMetric(c.writesDesc, prometheus.CounterValue, float64(c.db.writesTotal.Load()))
	ch <- prometheus.MustNewConstMetric(c.writeErrorsDesc, prometheus.CounterValue, float64(c.db.writeErrorsTotal.Load()))
	ch <- prometheus.MustNewConstMetric(c.preparesDesc, prometheus.CounterValue, float64(c.db.preparesTotal.Load()))
}
