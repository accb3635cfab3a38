// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrentdb

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB_AddReplaceRemove(t *testing.T) {
	t.Parallel()

	db := New()
	first := time.Now().Add(-time.Hour)

	require.True(t, db.Add(&Torrent{Key: "aa", Path: "/wl/a.torrent", AddedAt: first}))
	require.False(t, db.Add(&Torrent{Key: "aa", Path: "/wl/a.torrent", AddedAt: time.Now()}))
	assert.Equal(t, 1, db.Len())

	got, ok := db.Get("aa")
	require.True(t, ok)
	assert.True(t, got.AddedAt.Equal(first), "re-registering the same file keeps the first registration time")

	require.False(t, db.Add(&Torrent{Key: ""}), "records without a key are ignored")
	require.False(t, db.Add(nil))

	assert.True(t, db.Remove("aa"))
	assert.False(t, db.Remove("aa"))
	assert.Equal(t, 0, db.Len())
}

func TestDB_ListSortedByPath(t *testing.T) {
	t.Parallel()

	db := New()
	db.Add(&Torrent{Key: "3", Path: "/wl/c.torrent"})
	db.Add(&Torrent{Key: "1", Path: "/wl/a.torrent"})
	db.Add(&Torrent{Key: "2", Path: "/wl/b.torrent"})

	list := db.List()
	require.Len(t, list, 3)
	assert.Equal(t, "/wl/a.torrent", list[0].Path)
	assert.Equal(t, "/wl/b.torrent", list[1].Path)
	assert.Equal(t, "/wl/c.torrent", list[2].Path)
}

func TestDB_ForEachLockedAllowsConcurrentWriters(t *testing.T) {
	t.Parallel()

	db := New()
	for i := range 100 {
		db.Add(&Torrent{Key: fmt.Sprintf("k%03d", i), Path: fmt.Sprintf("/wl/%03d.torrent", i)})
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := range 100 {
			db.Add(&Torrent{Key: fmt.Sprintf("n%03d", i), Path: fmt.Sprintf("/other/%03d.torrent", i)})
		}
	}()

	go func() {
		defer wg.Done()
		for range 20 {
			seen := 0
			db.RLock()
			db.ForEachLocked(func(*Torrent) { seen++ })
			db.RUnlock()
			assert.GreaterOrEqual(t, seen, 100)
		}
	}()

	wg.Wait()
	assert.Equal(t, 200, db.Len())
}
