// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package whitelist

import (
	"errors"
	"io/fs"

	"github.com/rs/zerolog"

	"github.com/autobrr/trackerwl/internal/torrentdb"
	"github.com/autobrr/trackerwl/pkg/pathcmp"
)

type statFunc func(name string) (fs.FileInfo, error)

// collectStale returns the keys of records under root whose file no longer
// exists. It holds the database's shared lock for the whole iteration and
// never mutates the database. Only a not-exist stat result marks a record
// stale; permission or I/O errors leave it registered.
func collectStale(db Database, root string, stat statFunc) []string {
	var keys []string

	db.RLock()
	defer db.RUnlock()

	db.ForEachLocked(func(t *torrentdb.Torrent) {
		if !pathcmp.IsWithin(root, t.Path) {
			return
		}
		if _, err := stat(t.Path); err != nil && errors.Is(err, fs.ErrNotExist) {
			keys = append(keys, t.Key)
		}
	})

	return keys
}

// reconcile evicts stale records in two phases: collect under the shared
// lock, then remove each key after the lock is released.
func reconcile(db Database, root string, stat statFunc, logger zerolog.Logger) int {
	if db == nil {
		return 0
	}

	keys := collectStale(db, root, stat)

	evicted := 0
	for _, key := range keys {
		if db.Remove(key) {
			evicted++
			logger.Info().Str("key", key).Msg("whitelist: removed torrent, file is gone")
		}
	}
	return evicted
}

// purgeRoot evicts every record under root that no root in keep covers. It
// runs after the engine for root has stopped, so nothing re-registers them.
func purgeRoot(db Database, root string, keep []string, logger zerolog.Logger) int {
	if db == nil {
		return 0
	}

	var keys []string
	db.RLock()
	db.ForEachLocked(func(t *torrentdb.Torrent) {
		if !pathcmp.IsWithin(root, t.Path) {
			return
		}
		for _, other := range keep {
			if pathcmp.IsWithin(other, t.Path) {
				return
			}
		}
		keys = append(keys, t.Key)
	})
	db.RUnlock()

	purged := 0
	for _, key := range keys {
		if db.Remove(key) {
			purged++
		}
	}
	if purged > 0 {
		logger.Info().Str("root", root).Int("removed", purged).Msg("whitelist: removed torrents of a dropped root")
	}
	return purged
}
