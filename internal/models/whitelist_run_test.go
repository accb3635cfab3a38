// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/trackerwl/internal/services/whitelist"
	"github.com/autobrr/trackerwl/internal/testdb"
)

func TestWhitelistRunStore_RecordAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewWhitelistRunStore(testdb.New(t))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, root := range []string{"/srv/a", "/srv/b", "/srv/a"} {
		id, err := store.Record(ctx, &WhitelistRun{
			Root:       root,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			Duration:   1500 * time.Millisecond,
			Visited:    10 + i,
			Registered: i,
			Truncated:  i == 2,
		})
		require.NoError(t, err)
		assert.Positive(t, id)
	}

	all, err := store.ListRecent(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "/srv/a", all[0].Root)
	assert.True(t, all[0].Truncated)
	assert.Equal(t, 12, all[0].Visited)
	assert.Equal(t, 1500*time.Millisecond, all[0].Duration)
	assert.True(t, all[0].StartedAt.Equal(base.Add(2*time.Minute)))

	onlyA, err := store.ListRecent(ctx, "/srv/a", 10)
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.True(t, onlyA[0].StartedAt.After(onlyA[1].StartedAt))

	limited, err := store.ListRecent(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestWhitelistRunStore_RecordCycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewWhitelistRunStore(testdb.New(t))

	var rec whitelist.Recorder = store
	require.NoError(t, rec.RecordCycle(ctx, whitelist.CycleStats{
		Root:       "/srv/torrents",
		StartedAt:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Duration:   2 * time.Second,
		Visited:    5,
		Registered: 3,
		Rejected:   1,
		Failed:     1,
		Evicted:    2,
	}))

	runs, err := store.ListRecent(ctx, "/srv/torrents", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 3, runs[0].Registered)
	assert.Equal(t, 1, runs[0].Rejected)
	assert.Equal(t, 1, runs[0].Failed)
	assert.Equal(t, 2, runs[0].Evicted)
	assert.False(t, runs[0].Truncated)
}

func TestWhitelistRunStore_Prune(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewWhitelistRunStore(testdb.New(t))

	cutoff := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, started := range []time.Time{
		cutoff.Add(-48 * time.Hour),
		cutoff.Add(-time.Hour),
		cutoff.Add(time.Hour),
	} {
		_, err := store.Record(ctx, &WhitelistRun{Root: "/srv", StartedAt: started})
		require.NoError(t, err)
	}

	removed, err := store.Prune(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	left, err := store.ListRecent(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.True(t, left[0].StartedAt.Equal(cutoff.Add(time.Hour)))
}
