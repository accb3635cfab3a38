// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Version               string
	LogLevel              string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath               string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize            int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups         int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DataDir               string `toml:"dataDir" mapstructure:"dataDir"`
	MetricsEnabled        bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost           string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort           int    `toml:"metricsPort" mapstructure:"metricsPort"`
	MetricsBasicAuthUsers string `toml:"metricsBasicAuthUsers" mapstructure:"metricsBasicAuthUsers"`

	// HistoryEnabled stores a row per whitelist cycle in the sqlite database
	// under DataDir. Rows older than HistoryRetention are pruned.
	HistoryEnabled   bool          `toml:"historyEnabled" mapstructure:"historyEnabled"`
	HistoryRetention time.Duration `toml:"historyRetention" mapstructure:"historyRetention"`

	WhitelistRoots []string      `toml:"whitelistRoots" mapstructure:"whitelistRoots"`
	RescanInterval time.Duration `toml:"rescanInterval" mapstructure:"rescanInterval"`
	MaxScanDepth   int           `toml:"maxScanDepth" mapstructure:"maxScanDepth"`
	MaxScanInodes  int           `toml:"maxScanInodes" mapstructure:"maxScanInodes"`
}

// CleanWhitelistRoots returns the configured roots trimmed, cleaned and
// deduplicated, in their original order. Empty entries are dropped.
func (c *Config) CleanWhitelistRoots() []string {
	seen := make(map[string]struct{}, len(c.WhitelistRoots))
	roots := make([]string, 0, len(c.WhitelistRoots))

	for _, raw := range c.WhitelistRoots {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		entry = filepath.Clean(entry)
		if _, ok := seen[entry]; ok {
			continue
		}
		seen[entry] = struct{}{}
		roots = append(roots, entry)
	}

	return roots
}

// Validate checks settings that cannot be fixed up with a default.
func (c *Config) Validate() error {
	var errs []error

	for _, root := range c.CleanWhitelistRoots() {
		if !filepath.IsAbs(root) {
			errs = append(errs, fmt.Errorf("whitelistRoots entry %q must be an absolute path", root))
		}
	}
	if c.RescanInterval < 0 {
		errs = append(errs, errors.New("rescanInterval must not be negative"))
	}
	if c.MaxScanDepth < 0 {
		errs = append(errs, errors.New("maxScanDepth must not be negative"))
	}
	if c.MaxScanInodes < 0 {
		errs = append(errs, errors.New("maxScanInodes must not be negative"))
	}
	if c.HistoryRetention < 0 {
		errs = append(errs, errors.New("historyRetention must not be negative"))
	}
	if c.MetricsEnabled && (c.MetricsPort < 0 || c.MetricsPort > 65535) {
		errs = append(errs, fmt.Errorf("metricsPort %d is out of range", c.MetricsPort))
	}

	return errors.Join(errs...)
}
