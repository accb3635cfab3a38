// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/autobrr/trackerwl/internal/domain"
	"github.com/autobrr/trackerwl/internal/models"
	"github.com/autobrr/trackerwl/internal/services/whitelist"
	"github.com/autobrr/trackerwl/internal/testtorrent"
	"github.com/autobrr/trackerwl/internal/torrentdb"
)

func TestWhitelistConfigs(t *testing.T) {
	t.Parallel()

	cfg := &domain.Config{
		WhitelistRoots: []string{"/srv/a/", " /srv/b ", "", "/srv/a"},
		RescanInterval: 30 * time.Second,
		MaxScanDepth:   8,
		MaxScanInodes:  500,
	}

	got := whitelistConfigs(cfg)
	assert.Equal(t, []whitelist.Config{
		{Root: "/srv/a", RescanInterval: 30 * time.Second, MaxDepth: 8, MaxInodes: 500},
		{Root: "/srv/b", RescanInterval: 30 * time.Second, MaxDepth: 8, MaxInodes: 500},
	}, got)

	assert.Empty(t, whitelistConfigs(&domain.Config{}))
}

func TestRemovedRoots(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"/a", "/c"}, removedRoots([]string{"/a", "/b", "/c"}, []string{"/b"}))
	assert.Empty(t, removedRoots([]string{"/a"}, []string{"/a", "/b"}))
	assert.Empty(t, removedRoots(nil, nil))
}

func TestAddAndRemoveRoot(t *testing.T) {
	t.Parallel()

	roots, added := addRoot([]string{"/a"}, "/b")
	assert.True(t, added)
	assert.Equal(t, []string{"/a", "/b"}, roots)

	roots, added = addRoot(roots, "/a")
	assert.False(t, added)
	assert.Equal(t, []string{"/a", "/b"}, roots)

	original := []string{"/a", "/b", "/c"}
	roots, removed := removeRoot(original, "/b")
	assert.True(t, removed)
	assert.Equal(t, []string{"/a", "/c"}, roots)
	assert.Equal(t, []string{"/a", "/b", "/c"}, original)

	_, removed = removeRoot(roots, "/missing")
	assert.False(t, removed)
}

func TestConfigFilePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "existing.conf")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "directory", in: dir, want: filepath.Join(dir, "config.toml")},
		{name: "toml file", in: filepath.Join(dir, "custom.TOML"), want: filepath.Join(dir, "custom.TOML")},
		{name: "existing non-toml file", in: file, want: file},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, configFilePath(tt.in))
		})
	}
}

func TestValidateOutput(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"table", "json", "YAML"} {
		assert.NoError(t, validateOutput(format), format)
	}
	assert.Error(t, validateOutput("xml"))
}

func sampleScan() (whitelist.CycleStats, []*torrentdb.Torrent) {
	stats := whitelist.CycleStats{
		Root:       "/srv/torrents",
		Duration:   1500 * time.Millisecond,
		Visited:    12345,
		Registered: 1,
		Rejected:   2,
		Truncated:  true,
	}
	torrents := []*torrentdb.Torrent{{
		Key:    "0123456789abcdef0123456789abcdef01234567",
		Name:   "debian.iso",
		Path:   "/srv/torrents/debian.torrent",
		Length: 3 * 1024 * 1024,
		Files:  1,
	}}
	return stats, torrents
}

func TestWriteScanReport(t *testing.T) {
	t.Parallel()

	stats, torrents := sampleScan()

	t.Run("table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, writeScanReport(&buf, outputTable, stats, torrents))

		out := buf.String()
		assert.Contains(t, out, "INFO HASH")
		assert.Contains(t, out, "debian.iso")
		assert.Contains(t, out, "3.0 MiB")
		assert.Contains(t, out, "12,345 entries visited")
		assert.Contains(t, out, "scan truncated")
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, writeScanReport(&buf, outputJSON, stats, torrents))

		var report scanReport
		require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
		assert.Equal(t, "/srv/torrents", report.Root)
		assert.Equal(t, "1.5s", report.Stats.Duration)
		assert.True(t, report.Stats.Truncated)
		require.Len(t, report.Torrents, 1)
		assert.Equal(t, torrents[0].Key, report.Torrents[0].Key)
	})

	t.Run("yaml with no torrents", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, writeScanReport(&buf, outputYAML, stats, nil))

		var report map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &report))
		assert.Equal(t, "/srv/torrents", report["root"])
		assert.Empty(t, report["torrents"])
	})
}

func TestWriteRuns(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []*models.WhitelistRun{{
		ID:         1,
		Root:       "/srv/torrents",
		StartedAt:  now.Add(-2 * time.Hour),
		Duration:   250 * time.Millisecond,
		Visited:    42,
		Registered: 3,
		Evicted:    1,
	}}

	var buf bytes.Buffer
	require.NoError(t, writeRuns(&buf, outputTable, runs, now))
	assert.Contains(t, buf.String(), "2 hours ago")
	assert.Contains(t, buf.String(), "/srv/torrents")

	buf.Reset()
	require.NoError(t, writeRuns(&buf, outputTable, nil, now))
	assert.Equal(t, "No whitelist runs recorded yet.\n", buf.String())

	buf.Reset()
	require.NoError(t, writeRuns(&buf, outputJSON, nil, now))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestScanCommand(t *testing.T) {
	root := t.TempDir()
	hash := testtorrent.Write(t, filepath.Join(root, "nested", "a.torrent"), testtorrent.Spec{Name: "a", Length: 2048})
	testtorrent.WriteRaw(t, filepath.Join(root, "announce.txt"), []byte("d8:announce"))

	cmd := RunScanCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{root, "--output", "json", "--log-level", "disabled"})
	require.NoError(t, cmd.Execute())

	var report scanReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 1, report.Stats.Registered)
	assert.Equal(t, 1, report.Stats.Rejected)
	require.Len(t, report.Torrents, 1)
	assert.Equal(t, hash, report.Torrents[0].Key)
}

func TestScanCommandRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	cmd := RunScanCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{file, "--log-level", "disabled"})
	assert.ErrorContains(t, cmd.Execute(), "is not a directory")
}

func TestRootsCommand(t *testing.T) {
	configDir := t.TempDir()
	whitelistDir := t.TempDir()

	run := func(args ...string) (string, error) {
		cmd := RunRootsCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(append(args, "--config-dir", configDir))
		err := cmd.Execute()
		return out.String(), err
	}

	out, err := run("list")
	require.NoError(t, err)
	assert.Contains(t, out, "No whitelist roots configured.")

	out, err = run("add", whitelistDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Added whitelist root")

	out, err = run("add", whitelistDir)
	require.NoError(t, err)
	assert.Contains(t, out, "already a whitelist root")

	out, err = run("list")
	require.NoError(t, err)
	assert.Equal(t, whitelistDir+"\n", out)

	_, err = run("remove", whitelistDir)
	require.NoError(t, err)

	_, err = run("remove", whitelistDir)
	assert.ErrorContains(t, err, "is not a whitelist root")
}

type recordingForgetter struct {
	roots []string
}

func (f *recordingForgetter) Forget(root string) {
	f.roots = append(f.roots, root)
}

func TestApplyRootsForgetsRemovedRootsOnPartialFailure(t *testing.T) {
	t.Parallel()

	rootA := t.TempDir()
	rootB := t.TempDir()

	manager := whitelist.NewManager(torrentdb.New(), whitelist.WithLogger(zerolog.Nop()))
	t.Cleanup(manager.Stop)

	ctx := context.Background()
	forgetter := &recordingForgetter{}

	applyRoots(ctx, manager, forgetter, &domain.Config{
		WhitelistRoots: []string{rootA, rootB},
		RescanInterval: time.Hour,
	})
	assert.ElementsMatch(t, []string{rootA, rootB}, manager.Roots())
	assert.Empty(t, forgetter.roots)

	applyRoots(ctx, manager, forgetter, &domain.Config{
		WhitelistRoots: []string{rootA, "relative/dir"},
		RescanInterval: time.Hour,
	})
	assert.Equal(t, []string{rootA}, manager.Roots())
	assert.Equal(t, []string{rootB}, forgetter.roots)

	applyRoots(ctx, manager, nil, &domain.Config{RescanInterval: time.Hour})
	assert.Empty(t, manager.Roots())
}
