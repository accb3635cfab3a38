// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package whitelist

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

const (
	// DefaultRescanInterval is the delay between two scan+reconcile cycles.
	DefaultRescanInterval = 60 * time.Second

	// DefaultMaxScanDepth is how many directory levels below the root are visited.
	DefaultMaxScanDepth = 64

	// DefaultMaxScanInodes caps the entries (files and directories) visited per scan.
	DefaultMaxScanInodes = 100000

	recordTimeout = 10 * time.Second
)

var (
	ErrInvalidRoot   = errors.New("whitelist root must be an absolute path")
	ErrInvalidLimits = errors.New("invalid scan limits")
)

// Config binds an engine to one whitelist root. It is immutable once the
// engine is running.
type Config struct {
	Root           string
	RescanInterval time.Duration
	MaxDepth       int
	MaxInodes      int
}

// withDefaults validates c and fills zero values with the package defaults.
func (c Config) withDefaults() (Config, error) {
	if c.Root == "" || !filepath.IsAbs(c.Root) {
		return c, fmt.Errorf("%w: %q", ErrInvalidRoot, c.Root)
	}
	c.Root = filepath.Clean(c.Root)

	if c.RescanInterval < 0 {
		return c, fmt.Errorf("%w: negative rescan interval %s", ErrInvalidLimits, c.RescanInterval)
	}
	if c.RescanInterval == 0 {
		c.RescanInterval = DefaultRescanInterval
	}

	if c.MaxDepth < 0 || c.MaxInodes < 0 {
		return c, fmt.Errorf("%w: depth=%d inodes=%d", ErrInvalidLimits, c.MaxDepth, c.MaxInodes)
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxScanDepth
	}
	if c.MaxInodes == 0 {
		c.MaxInodes = DefaultMaxScanInodes
	}

	return c, nil
}
