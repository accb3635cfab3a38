// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package whitelist

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// visitFunc is called for every regular file. Returning false stops the walk.
type visitFunc func(path string) bool

type walkResult struct {
	visited   int  // entries counted against the inode cap
	truncated bool // the inode cap was hit
	aborted   bool // visit asked to stop
}

// treeWalker is a sequential, depth- and entry-bounded directory walker.
//
// Symlinks are resolved, so a link cycle is only cut by maxDepth. Entries
// directly under the root are at depth 1 and directories at maxDepth are
// counted but not descended into.
type treeWalker struct {
	maxDepth  int
	maxInodes int
	visit     visitFunc
	log       zerolog.Logger

	result walkResult
}

func walkTree(root string, maxDepth, maxInodes int, logger zerolog.Logger, visit visitFunc) walkResult {
	w := &treeWalker{
		maxDepth:  maxDepth,
		maxInodes: maxInodes,
		visit:     visit,
		log:       logger,
	}
	w.walkDir(root, 1)
	return w.result
}

func (w *treeWalker) walkDir(dir string, depth int) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.log.Error().Err(err).Str("dir", dir).Msg("whitelist: could not read directory")
		// ReadDir may still return the entries read before the failure.
		if len(entries) == 0 {
			return true
		}
	}

	for _, entry := range entries {
		if w.result.visited >= w.maxInodes {
			w.result.truncated = true
			return false
		}
		w.result.visited++

		path := filepath.Join(dir, entry.Name())
		typ := entry.Type()
		if typ&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				w.log.Debug().Err(err).Str("path", path).Msg("whitelist: skipping dangling symlink")
				continue
			}
			typ = info.Mode().Type()
		}

		switch {
		case typ.IsDir():
			if depth >= w.maxDepth {
				continue
			}
			if !w.walkDir(path, depth+1) {
				return false
			}
		case typ.IsRegular():
			if !w.visit(path) {
				w.result.aborted = true
				return false
			}
		}
	}

	return true
}
