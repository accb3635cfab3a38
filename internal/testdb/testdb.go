// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package testdb opens migrated throwaway databases for tests.
package testdb

import (
	"path/filepath"
	"testing"

	"github.com/autobrr/trackerwl/internal/database"
)

// New opens a fresh, migrated database in a test temp dir. It is closed when
// the test ends.
func New(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "trackerwl.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close test database: %v", err)
		}
	})
	return db
}
