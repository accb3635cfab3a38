// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/trackerwl/internal/buildinfo"
	"github.com/autobrr/trackerwl/internal/config"
	"github.com/autobrr/trackerwl/internal/database"
	"github.com/autobrr/trackerwl/internal/domain"
	"github.com/autobrr/trackerwl/internal/metrics"
	"github.com/autobrr/trackerwl/internal/models"
	"github.com/autobrr/trackerwl/internal/services/whitelist"
	"github.com/autobrr/trackerwl/internal/torrentdb"
)

const historyPruneInterval = time.Hour

type Application struct {
	configDir string
	dataDir   string
	logPath   string
}

func NewApplication(configDir, dataDir, logPath string) *Application {
	return &Application{
		configDir: configDir,
		dataDir:   dataDir,
		logPath:   logPath,
	}
}

// whitelistConfigs maps the configured roots to one engine config each.
func whitelistConfigs(cfg *domain.Config) []whitelist.Config {
	roots := cfg.CleanWhitelistRoots()
	out := make([]whitelist.Config, 0, len(roots))
	for _, root := range roots {
		out = append(out, whitelist.Config{
			Root:           root,
			RescanInterval: cfg.RescanInterval,
			MaxDepth:       cfg.MaxScanDepth,
			MaxInodes:      cfg.MaxScanInodes,
		})
	}
	return out
}

// removedRoots returns the entries of before that are missing from after.
func removedRoots(before, after []string) []string {
	var removed []string
	for _, root := range before {
		if !slices.Contains(after, root) {
			removed = append(removed, root)
		}
	}
	return removed
}

// rootApplier is the part of whitelist.Manager a config reload drives.
type rootApplier interface {
	Apply(ctx context.Context, cfgs []whitelist.Config) error
	Roots() []string
}

// rootForgetter drops the metric series of a root.
type rootForgetter interface {
	Forget(root string)
}

// applyReloadedRoots applies the roots of a reloaded config. Apply may fail
// for some entries and still stop engines, so metric series of the roots
// that are gone are dropped either way.
func applyReloadedRoots(ctx context.Context, manager rootApplier, metricsManager *metrics.Manager, cfg *domain.Config) {
	var forgetter rootForgetter
	if metricsManager != nil {
		forgetter = metricsManager.Whitelist()
	}
	applyRoots(ctx, manager, forgetter, cfg)
}

func applyRoots(ctx context.Context, manager rootApplier, forgetter rootForgetter, cfg *domain.Config) {
	before := manager.Roots()
	if err := manager.Apply(ctx, whitelistConfigs(cfg)); err != nil {
		log.Error().Err(err).Msg("Failed to apply some whitelist roots from reloaded config")
	}
	if forgetter == nil {
		return
	}
	for _, root := range removedRoots(before, manager.Roots()) {
		forgetter.Forget(root)
	}
}

func (app *Application) runServer() {
	cfg, err := config.New(app.configDir, buildinfo.Version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize configuration")
	}

	// Override with CLI flags if provided
	if app.dataDir != "" {
		os.Setenv("TRACKERWL__DATA_DIR", app.dataDir)
		cfg.SetDataDir(app.dataDir)
	}
	if app.logPath != "" {
		os.Setenv("TRACKERWL__LOG_PATH", app.logPath)
		cfg.Config.LogPath = app.logPath
	}

	cfg.ApplyLogConfig()

	snapshot := cfg.Snapshot()
	log.Info().
		Str("version", buildinfo.Version).
		Str("config", cfg.ConfigFileUsed()).
		Msg("Starting trackerwl")

	torrents := torrentdb.New()

	var recorders whitelist.MultiRecorder

	var metricsManager *metrics.Manager
	if snapshot.MetricsEnabled {
		metricsManager = metrics.NewMetricsManager(torrents)
		recorders = append(recorders, metricsManager.Whitelist())
	}

	var history *models.WhitelistRunStore
	if snapshot.HistoryEnabled {
		db, err := database.New(cfg.GetDatabasePath())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer db.Close()

		history = models.NewWhitelistRunStore(db)
		recorders = append(recorders, history)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := whitelist.NewManager(torrents, whitelist.WithRecorder(recorders))
	if err := manager.Apply(ctx, whitelistConfigs(&snapshot)); err != nil {
		log.Error().Err(err).Msg("Failed to start whitelist engines")
	}
	if len(manager.Roots()) == 0 {
		log.Warn().Msg("No whitelist roots configured, add one with 'trackerwl roots add <dir>'")
	}

	cfg.RegisterReloadListener(func(c *domain.Config) {
		applyReloadedRoots(ctx, manager, metricsManager, c)
	})
	cfg.Watch()

	if history != nil {
		go runHistoryPruner(ctx, history, func() time.Duration {
			return cfg.Snapshot().HistoryRetention
		})
	}

	errorChannel := make(chan error, 1)

	var metricsServer *metrics.MetricsServer
	if metricsManager != nil {
		metricsServer = metrics.NewMetricsServer(
			metricsManager,
			snapshot.MetricsHost,
			snapshot.MetricsPort,
			snapshot.MetricsBasicAuthUsers,
		)
		if users := domain.RedactBasicAuthUsers(snapshot.MetricsBasicAuthUsers); users != "" {
			log.Debug().Str("users", users).Msg("Metrics basic auth enabled")
		}

		go func() {
			if err := metricsServer.ListenAndServe(); err != nil {
				errorChannel <- err
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

wait:
	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				log.Info().Msg("got SIGHUP, rescanning all whitelist roots")
				manager.TriggerAll()
				continue
			}
			log.Info().Msgf("got signal %v, shutting down", sig.String())
			break wait
		case err := <-errorChannel:
			log.Error().Err(err).Msg("got unexpected error from metrics server")
			break wait
		}
	}

	// Engines finish the cycle they are in before returning.
	cancel()
	manager.Stop()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("got error during graceful metrics shutdown")
		}
	}

	log.Info().Msg("trackerwl stopped")
}

// runHistoryPruner deletes run history older than the configured retention.
// A retention of zero keeps everything.
func runHistoryPruner(ctx context.Context, store *models.WhitelistRunStore, retention func() time.Duration) {
	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()

	for {
		pruneHistory(ctx, store, retention())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func pruneHistory(ctx context.Context, store *models.WhitelistRunStore, retention time.Duration) {
	if retention <= 0 {
		return
	}

	deleted, err := store.Prune(ctx, time.Now().Add(-retention))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to prune whitelist run history")
		return
	}
	if deleted > 0 {
		log.Debug().Int64("deleted", deleted).Dur("retention", retention).Msg("Pruned whitelist run history")
	}
}
