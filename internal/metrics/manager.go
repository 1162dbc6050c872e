// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

type Manager struct {
	registry      *prometheus.Registry
	siteCollector *SiteCollector
}

// NewManager builds a registry with the runtime collectors, the site
// collector and any extra collectors such as the database one.
func NewManager(source PartitionSource, extra ...prometheus.Collector) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	siteCollector := NewSiteCollector(source)
	registry.MustRegister(siteCollector)

	for _, c := range extra {
		if c != nil {
			registry.MustRegister(c)
		}
	}

	log.Info().Msg("Metrics manager initialized with site collector")

	return &Manager{
		registry:      registry,
		siteCollector: siteCollector,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}
