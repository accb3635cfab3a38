// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AppliesMigrations(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "nested", "trackerwl.db")

	db, err := New(dbPath)
	require.NoError(t, err)
	defer db.Close()

	var columns []string
	rows, err := db.Conn().Query(`SELECT name FROM pragma_table_info('whitelist_runs') ORDER BY cid`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		columns = append(columns, name)
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, []string{
		"id", "root", "started_at", "duration_ms", "visited",
		"registered", "rejected", "failed", "evicted", "truncated",
	}, columns)

	var applied int
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM migrations").Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestNew_ReopenIsIdempotent(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "trackerwl.db")

	first, err := New(dbPath)
	require.NoError(t, err)
	_, err = first.ExecContext(context.Background(),
		"INSERT INTO whitelist_runs (root, started_at) VALUES (?, CURRENT_TIMESTAMP)", "/srv")
	require.NoError(t, err)
	require.NoError(t, first.Close())
	require.NoError(t, first.Close())

	second, err := New(dbPath)
	require.NoError(t, err)
	defer second.Close()

	var runs, applied int
	require.NoError(t, second.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM whitelist_runs").Scan(&runs))
	require.NoError(t, second.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM migrations").Scan(&applied))
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, applied)
}

func TestApplyConnectionPragmas(t *testing.T) {
	t.Parallel()

	var got []string
	err := applyConnectionPragmas(context.Background(), func(_ context.Context, stmt string) error {
		got = append(got, stmt)
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, got, "PRAGMA journal_mode = WAL")
	assert.Contains(t, got, "PRAGMA busy_timeout = 5000")
}
