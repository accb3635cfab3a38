// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/trackerwl/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNew_CreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := New(dir)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "whitelistRoots = []")
	assert.Contains(t, string(content), `#rescanInterval = "60s"`)

	assert.Equal(t, "INFO", cfg.Config.LogLevel)
	assert.Empty(t, cfg.Config.WhitelistRoots)
	assert.Equal(t, 60*time.Second, cfg.Config.RescanInterval)
	assert.Equal(t, 64, cfg.Config.MaxScanDepth)
	assert.Equal(t, 100000, cfg.Config.MaxScanInodes)
	assert.Equal(t, 720*time.Hour, cfg.Config.HistoryRetention)
	assert.True(t, cfg.Config.HistoryEnabled)
	assert.Equal(t, "dev", cfg.Config.Version)
}

func TestNew_ReadsWhitelistSettings(t *testing.T) {
	path := writeConfig(t, `
whitelistRoots = ["/srv/torrents", "/mnt/archive"]
rescanInterval = "5m"
maxScanDepth = 4
maxScanInodes = 500
logLevel = "DEBUG"
`)

	cfg, err := New(path, "1.2.3")
	require.NoError(t, err)

	assert.Equal(t, []string{"/srv/torrents", "/mnt/archive"}, cfg.Config.WhitelistRoots)
	assert.Equal(t, 5*time.Minute, cfg.Config.RescanInterval)
	assert.Equal(t, 4, cfg.Config.MaxScanDepth)
	assert.Equal(t, 500, cfg.Config.MaxScanInodes)
	assert.Equal(t, "1.2.3", cfg.Config.Version)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `whitelistRoots = ["relative/dir"]`)

	_, err := New(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absolute path")
}

func TestDatabasePathNextToConfig(t *testing.T) {
	path := writeConfig(t, `logLevel = "INFO"`)

	cfg, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(filepath.Dir(path), "trackerwl.db"), cfg.GetDatabasePath())
}

func TestDatabasePathFromDataDir(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, `dataDir = "`+filepath.ToSlash(dataDir)+`"`)

	cfg, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dataDir, "trackerwl.db"), filepath.FromSlash(cfg.GetDatabasePath()))
}

func TestConfigPrecedence(t *testing.T) {
	path := writeConfig(t, `
whitelistRoots = ["/from/file"]
rescanInterval = "5m"
`)

	t.Setenv("TRACKERWL__WHITELIST_ROOTS", "/from/env,/also/env")
	t.Setenv("TRACKERWL__RESCAN_INTERVAL", "90s")
	t.Setenv("TRACKERWL__MAX_SCAN_DEPTH", "3")

	cfg, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/from/env", "/also/env"}, cfg.Config.WhitelistRoots)
	assert.Equal(t, 90*time.Second, cfg.Config.RescanInterval)
	assert.Equal(t, 3, cfg.Config.MaxScanDepth)
}

func TestMetricsBasicAuthFromFile(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "metrics-users")
	require.NoError(t, os.WriteFile(secret, []byte("prom:secret\n"), 0o600))
	t.Setenv("TRACKERWL__METRICS_BASIC_AUTH_USERS_FILE", secret)

	cfg, err := New(writeConfig(t, `metricsBasicAuthUsers = "ignored:value"`))
	require.NoError(t, err)

	assert.Equal(t, "prom:secret", cfg.Config.MetricsBasicAuthUsers)
}

func TestDockerEnvironmentCompatibility(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/config")
	assert.Equal(t, "/config", GetDefaultConfigDir())

	t.Setenv("XDG_CONFIG_HOME", "/home/user/.config")
	assert.Equal(t, filepath.Join("/home/user/.config", "trackerwl"), GetDefaultConfigDir())
}

func TestReloadNotifiesListeners(t *testing.T) {
	path := writeConfig(t, `whitelistRoots = ["/srv/a"]`)

	cfg, err := New(path)
	require.NoError(t, err)

	var got []*domain.Config
	cfg.RegisterReloadListener(func(c *domain.Config) {
		got = append(got, c)
	})

	require.NoError(t, os.WriteFile(path, []byte(`whitelistRoots = ["/srv/a", "/srv/b"]`), 0o644))
	require.NoError(t, cfg.viper.ReadInConfig())
	cfg.reload()

	require.Len(t, got, 1)
	assert.Equal(t, []string{"/srv/a", "/srv/b"}, got[0].WhitelistRoots)
	assert.Equal(t, []string{"/srv/a", "/srv/b"}, cfg.Snapshot().WhitelistRoots)

	// An invalid edit keeps the previous configuration.
	require.NoError(t, os.WriteFile(path, []byte(`whitelistRoots = ["nope"]`), 0o644))
	require.NoError(t, cfg.viper.ReadInConfig())
	cfg.reload()

	assert.Len(t, got, 1)
	assert.Equal(t, []string{"/srv/a", "/srv/b"}, cfg.Snapshot().WhitelistRoots)
}

func TestWriteDefaultConfigKeepsExistingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel = \"WARN\"\n"), 0o644))

	require.NoError(t, WriteDefaultConfig(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), `logLevel = "WARN"`))
}
