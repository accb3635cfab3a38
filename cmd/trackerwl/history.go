// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/autobrr/trackerwl/internal/buildinfo"
	"github.com/autobrr/trackerwl/internal/config"
	"github.com/autobrr/trackerwl/internal/database"
	"github.com/autobrr/trackerwl/internal/models"
)

func RunHistoryCommand() *cobra.Command {
	var (
		configDir string
		dataDir   string
		root      string
		limit     int
		output    string
	)

	command := &cobra.Command{
		Use:   "history",
		Short: "Show recent whitelist cycles recorded by serve",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			cfg, err := config.New(configDir, buildinfo.Version)
			if err != nil {
				return errors.Wrap(err, "failed to initialize configuration")
			}
			if dataDir != "" {
				cfg.SetDataDir(dataDir)
			}

			db, err := database.New(cfg.GetDatabasePath())
			if err != nil {
				return errors.Wrap(err, "failed to open database")
			}
			defer db.Close()

			if root != "" {
				root, err = filepath.Abs(root)
				if err != nil {
					return errors.Wrap(err, "could not resolve --root")
				}
			}

			runs, err := models.NewWhitelistRunStore(db).ListRecent(cmd.Context(), root, limit)
			if err != nil {
				return errors.Wrap(err, "failed to list whitelist runs")
			}

			return writeRuns(cmd.OutOrStdout(), output, runs, time.Now())
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory or file path (defaults to OS-specific location)")
	command.Flags().StringVar(&dataDir, "data-dir", "", "data directory holding the database (default is next to config file)")
	command.Flags().StringVar(&root, "root", "", "only show runs for this whitelist root")
	command.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	command.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")

	return command
}
