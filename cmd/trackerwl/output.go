// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/autobrr/trackerwl/internal/models"
	"github.com/autobrr/trackerwl/internal/services/whitelist"
	"github.com/autobrr/trackerwl/internal/torrentdb"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func validateOutput(format string) error {
	switch strings.ToLower(format) {
	case outputTable, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

// writeStructured encodes v as JSON or YAML. It reports false for the table
// format so the caller renders its own table.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch strings.ToLower(format) {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return false, nil
	}
}

// scanReport is the structured form of a one-shot scan.
type scanReport struct {
	Root     string               `json:"root" yaml:"root"`
	Stats    scanSummary          `json:"stats" yaml:"stats"`
	Torrents []*torrentdb.Torrent `json:"torrents" yaml:"torrents"`
}

type scanSummary struct {
	Duration   string `json:"duration" yaml:"duration"`
	Visited    int    `json:"visited" yaml:"visited"`
	Registered int    `json:"registered" yaml:"registered"`
	Rejected   int    `json:"rejected" yaml:"rejected"`
	Failed     int    `json:"failed" yaml:"failed"`
	Truncated  bool   `json:"truncated" yaml:"truncated"`
}

func writeScanReport(w io.Writer, format string, stats whitelist.CycleStats, torrents []*torrentdb.Torrent) error {
	report := scanReport{
		Root: stats.Root,
		Stats: scanSummary{
			Duration:   stats.Duration.Round(time.Millisecond).String(),
			Visited:    stats.Visited,
			Registered: stats.Registered,
			Rejected:   stats.Rejected,
			Failed:     stats.Failed,
			Truncated:  stats.Truncated,
		},
		Torrents: torrents,
	}
	if report.Torrents == nil {
		report.Torrents = []*torrentdb.Torrent{}
	}

	if done, err := writeStructured(w, format, report); done {
		return err
	}

	rows := make([][]string, 0, len(torrents))
	for _, t := range torrents {
		rows = append(rows, []string{
			t.Key,
			t.Name,
			humanize.IBytes(uint64(max(t.Length, 0))),
			strconv.Itoa(t.Files),
			t.Path,
		})
	}

	if len(rows) > 0 {
		if _, err := fmt.Fprintln(w, renderTable([]string{"INFO HASH", "NAME", "SIZE", "FILES", "PATH"}, rows)); err != nil {
			return err
		}
	}

	summary := fmt.Sprintf("%s: %s entries visited, %d registered, %d rejected, %d failed in %s",
		stats.Root,
		humanize.Comma(int64(stats.Visited)),
		stats.Registered,
		stats.Rejected,
		stats.Failed,
		report.Stats.Duration,
	)
	if stats.Truncated {
		summary += " (scan truncated at the inode limit)"
	}
	_, err := fmt.Fprintln(w, summary)
	return err
}

func writeRuns(w io.Writer, format string, runs []*models.WhitelistRun, now time.Time) error {
	if runs == nil {
		runs = []*models.WhitelistRun{}
	}

	if done, err := writeStructured(w, format, runs); done {
		return err
	}

	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No whitelist runs recorded yet.")
		return err
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		truncated := ""
		if run.Truncated {
			truncated = "yes"
		}
		rows = append(rows, []string{
			humanize.RelTime(run.StartedAt, now, "ago", "from now"),
			run.Root,
			run.Duration.Round(time.Millisecond).String(),
			humanize.Comma(int64(run.Visited)),
			strconv.Itoa(run.Registered),
			strconv.Itoa(run.Rejected),
			strconv.Itoa(run.Failed),
			strconv.Itoa(run.Evicted),
			truncated,
		})
	}

	_, err := fmt.Fprintln(w, renderTable(
		[]string{"STARTED", "ROOT", "DURATION", "VISITED", "REGISTERED", "REJECTED", "FAILED", "EVICTED", "TRUNCATED"},
		rows,
	))
	return err
}
