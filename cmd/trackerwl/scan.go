// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/autobrr/trackerwl/internal/services/whitelist"
	"github.com/autobrr/trackerwl/internal/torrentdb"
)

func RunScanCommand() *cobra.Command {
	var (
		maxDepth  int
		maxInodes int
		output    string
		logLevel  string
	)

	command := &cobra.Command{
		Use:   "scan <dir>",
		Short: "Run a single whitelist cycle against a directory and print what it registers",
		Long: `Run one scan of a directory against an empty in-memory torrent database
and print the torrents that would be whitelisted.

Nothing is persisted. Use it to check a directory before adding it with
'trackerwl roots add'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return errors.Wrapf(err, "invalid --log-level %q", logLevel)
			}
			zerolog.SetGlobalLevel(level)

			root, err := filepath.Abs(args[0])
			if err != nil {
				return errors.Wrap(err, "could not resolve directory")
			}
			info, err := os.Stat(root)
			if err != nil {
				return errors.Wrap(err, "could not open directory")
			}
			if !info.IsDir() {
				return errors.Errorf("%s is not a directory", root)
			}

			db := torrentdb.New()
			stats, err := whitelist.RunOnce(cmd.Context(), whitelist.Config{
				Root:      root,
				MaxDepth:  maxDepth,
				MaxInodes: maxInodes,
			}, db)
			if err != nil {
				return err
			}

			return writeScanReport(cmd.OutOrStdout(), output, stats, db.List())
		},
	}

	command.Flags().IntVar(&maxDepth, "max-depth", whitelist.DefaultMaxScanDepth, "directory levels below the root to scan")
	command.Flags().IntVar(&maxInodes, "max-inodes", whitelist.DefaultMaxScanInodes, "entries to visit before the scan is cut short")
	command.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	command.Flags().StringVar(&logLevel, "log-level", "warn", "log level for scan diagnostics")

	return command
}
