// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/autobrr/trackerwl/internal/services/whitelist"
)

// WhitelistCollector exports per-root scan results and the size of the
// torrent database. It implements whitelist.Recorder.
type WhitelistCollector struct {
	db TorrentCounter

	cycles        *prometheus.CounterVec
	registered    *prometheus.CounterVec
	rejected      *prometheus.CounterVec
	failed        *prometheus.CounterVec
	evicted       *prometheus.CounterVec
	truncated     *prometheus.CounterVec
	visited       *prometheus.GaugeVec
	lastCycle     *prometheus.GaugeVec
	cycleDuration *prometheus.HistogramVec

	torrentsDesc *prometheus.Desc
}

var _ whitelist.Recorder = (*WhitelistCollector)(nil)

func NewWhitelistCollector(db TorrentCounter) *WhitelistCollector {
	rootLabel := []string{"root"}

	return &WhitelistCollector{
		db: db,

		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackerwl_cycles_total",
			Help: "Completed scan and reconcile cycles by root",
		}, rootLabel),
		registered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackerwl_files_registered_total",
			Help: "Torrent files registered by root, rescans count again",
		}, rootLabel),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackerwl_files_rejected_total",
			Help: "Files rejected by the content sniff by root",
		}, rootLabel),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackerwl_files_failed_total",
			Help: "Files that could not be read or parsed by root",
		}, rootLabel),
		evicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackerwl_torrents_evicted_total",
			Help: "Torrents removed because their file is gone by root",
		}, rootLabel),
		truncated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackerwl_scans_truncated_total",
			Help: "Scans stopped early by the inode limit by root",
		}, rootLabel),
		visited: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trackerwl_last_scan_entries",
			Help: "Files and directories visited by the last scan by root",
		}, rootLabel),
		lastCycle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trackerwl_last_cycle_timestamp_seconds",
			Help: "Unix time the last cycle started by root",
		}, rootLabel),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trackerwl_cycle_duration_seconds",
			Help:    "Duration of scan and reconcile cycles by root",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, rootLabel),

		torrentsDesc: prometheus.NewDesc(
			"trackerwl_torrents_registered",
			"Torrents currently registered in the tracker database",
			nil,
			nil,
		),
	}
}

func (c *WhitelistCollector) vecs() []prometheus.Collector {
	return []prometheus.Collector{
		c.cycles,
		c.registered,
		c.rejected,
		c.failed,
		c.evicted,
		c.truncated,
		c.visited,
		c.lastCycle,
		c.cycleDuration,
	}
}

func (c *WhitelistCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, v := range c.vecs() {
		v.Describe(ch)
	}
	ch <- c.torrentsDesc
}

func (c *WhitelistCollector) Collect(ch chan<- prometheus.Metric) {
	for _, v := range c.vecs() {
		v.Collect(ch)
	}
	if c.db != nil {
		ch <- prometheus.MustNewConstMetric(c.torrentsDesc, prometheus.GaugeValue, float64(c.db.Len()))
	}
}

// RecordCycle implements whitelist.Recorder.
func (c *WhitelistCollector) RecordCycle(_ context.Context, stats whitelist.CycleStats) error {
	root := stats.Root

	c.cycles.WithLabelValues(root).Inc()
	c.registered.WithLabelValues(root).Add(float64(stats.Registered))
	c.rejected.WithLabelValues(root).Add(float64(stats.Rejected))
	c.failed.WithLabelValues(root).Add(float64(stats.Failed))
	c.evicted.WithLabelValues(root).Add(float64(stats.Evicted))
	if stats.Truncated {
		c.truncated.WithLabelValues(root).Inc()
	}
	c.visited.WithLabelValues(root).Set(float64(stats.Visited))
	c.lastCycle.WithLabelValues(root).Set(float64(stats.StartedAt.Unix()))
	c.cycleDuration.WithLabelValues(root).Observe(stats.Duration.Seconds())

	return nil
}

// Forget drops the series of a root that is no longer scanned.
func (c *WhitelistCollector) Forget(root string) {
	for _, v := range []interface {
		DeleteLabelValues(...string) bool
	}{c.cycles, c.registered, c.rejected, c.failed, c.evicted, c.truncated, c.visited, c.lastCycle, c.cycleDuration} {
		v.DeleteLabelValues(root)
	}
}
