// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrentdb

import (
	"sort"
	"sync"
)

// DB is a thread-safe map of info-hash to torrent record.
//
// Readers that need a consistent view across many records take the shared
// lock with RLock and walk the map with ForEachLocked. Add and Remove take the
// exclusive lock themselves, so they must never be called while the caller
// holds the shared lock.
type DB struct {
	mu       sync.RWMutex
	torrents map[string]*Torrent
}

// New creates an empty database.
func New() *DB {
	return &DB{
		torrents: make(map[string]*Torrent),
	}
}

// RLock acquires the shared lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the shared lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}

// ForEachLocked calls fn for every record. The caller must hold the shared lock.
func (db *DB) ForEachLocked(fn func(*Torrent)) {
	for _, t := range db.torrents {
		fn(t)
	}
}

// Add inserts or replaces the record keyed by t.Key.
// It reports whether the key was not present before.
func (db *DB) Add(t *Torrent) bool {
	if t == nil || t.Key == "" {
		return false
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	prev, exists := db.torrents[t.Key]
	if exists && prev.Path == t.Path && !prev.AddedAt.IsZero() {
		// Rescans re-register every file, keep the first registration time.
		t.AddedAt = prev.AddedAt
	}
	db.torrents[t.Key] = t
	return !exists
}

// Remove deletes the record for key and reports whether it existed.
func (db *DB) Remove(key string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.torrents[key]; !ok {
		return false
	}
	delete(db.torrents, key)
	return true
}

// Get returns the record for key.
func (db *DB) Get(key string) (*Torrent, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	t, ok := db.torrents[key]
	return t, ok
}

// Len returns the number of registered torrents.
func (db *DB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.torrents)
}

// List returns a snapshot of all records sorted by path.
func (db *DB) List() []*Torrent {
	db.mu.RLock()
	out := make([]*Torrent, 0, len(db.torrents))
	for _, t := range db.torrents {
		out = append(out, t)
	}
	db.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path == out[j].Path {
			return out[i].Key < out[j].Key
		}
		return out[i].Path < out[j].Path
	})
	return out
}
