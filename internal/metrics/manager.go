// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// TorrentCounter reports how many torrents are registered.
// *torrentdb.DB implements it.
type TorrentCounter interface {
	Len() int
}

type Manager struct {
	registry           *prometheus.Registry
	whitelistCollector *WhitelistCollector
}

// NewMetricsManager builds a registry with the Go and process collectors and
// the whitelist collector. db may be nil.
func NewMetricsManager(db TorrentCounter) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	whitelistCollector := NewWhitelistCollector(db)
	registry.MustRegister(whitelistCollector)

	log.Info().Msg("Metrics manager initialized with whitelist collector")

	return &Manager{
		registry:           registry,
		whitelistCollector: whitelistCollector,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

// Whitelist returns the collector that whitelist engines report cycles to.
func (m *Manager) Whitelist() *WhitelistCollector {
	return m.whitelistCollector
}
