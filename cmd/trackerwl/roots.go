// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/autobrr/trackerwl/internal/buildinfo"
	"github.com/autobrr/trackerwl/internal/config"
)

func RunRootsCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "roots",
		Short: "Manage the whitelist roots in the config file",
		Long: `List, add or remove whitelist roots.

Changes are written to the config file. A running 'trackerwl serve' picks them
up without a restart.`,
	}

	command.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory or file path (defaults to OS-specific location)")

	command.AddCommand(runRootsListCommand(&configDir))
	command.AddCommand(runRootsAddCommand(&configDir))
	command.AddCommand(runRootsRemoveCommand(&configDir))

	return command
}

func loadRootsConfig(configDir string) (*config.AppConfig, error) {
	cfg, err := config.New(configDir, buildinfo.Version)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize configuration")
	}
	return cfg, nil
}

func runRootsListCommand(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured whitelist roots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRootsConfig(*configDir)
			if err != nil {
				return err
			}

			snapshot := cfg.Snapshot()
			roots := snapshot.CleanWhitelistRoots()
			if len(roots) == 0 {
				cmd.Println("No whitelist roots configured.")
				return nil
			}
			for _, root := range roots {
				fmt.Fprintln(cmd.OutOrStdout(), root)
			}
			return nil
		},
	}
}

// addRoot appends root to roots unless it is already present.
func addRoot(roots []string, root string) ([]string, bool) {
	if slices.Contains(roots, root) {
		return roots, false
	}
	return append(roots, root), true
}

// removeRoot drops root from roots.
func removeRoot(roots []string, root string) ([]string, bool) {
	idx := slices.Index(roots, root)
	if idx < 0 {
		return roots, false
	}
	return slices.Delete(slices.Clone(roots), idx, idx+1), true
}

func runRootsAddCommand(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "add <dir>",
		Short: "Add a whitelist root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			cfg, err := loadRootsConfig(*configDir)
			if err != nil {
				return err
			}

			snapshot := cfg.Snapshot()
			roots, added := addRoot(snapshot.CleanWhitelistRoots(), root)
			if !added {
				cmd.Printf("%s is already a whitelist root\n", root)
				return nil
			}

			if err := cfg.PersistWhitelistRoots(roots); err != nil {
				return errors.Wrap(err, "failed to update config file")
			}

			cmd.Printf("Added whitelist root %s to %s\n", root, cfg.ConfigFileUsed())
			return nil
		},
	}
}

func runRootsRemoveCommand(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <dir>",
		Aliases: []string{"rm"},
		Short:   "Remove a whitelist root",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return errors.Wrap(err, "could not resolve directory")
			}

			cfg, err := loadRootsConfig(*configDir)
			if err != nil {
				return err
			}

			snapshot := cfg.Snapshot()
			roots, removed := removeRoot(snapshot.CleanWhitelistRoots(), root)
			if !removed {
				return errors.Errorf("%s is not a whitelist root", root)
			}

			if err := cfg.PersistWhitelistRoots(roots); err != nil {
				return errors.Wrap(err, "failed to update config file")
			}

			cmd.Printf("Removed whitelist root %s from %s\n", root, cfg.ConfigFileUsed())
			return nil
		},
	}
}
