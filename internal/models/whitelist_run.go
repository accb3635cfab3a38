// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"fmt"
	"time"

	"github.com/autobrr/trackerwl/internal/dbinterface"
	"github.com/autobrr/trackerwl/internal/services/whitelist"
)

const defaultRunListLimit = 50

// WhitelistRun is one recorded scan and reconcile cycle.
type WhitelistRun struct {
	ID         int64         `json:"id" yaml:"id"`
	Root       string        `json:"root" yaml:"root"`
	StartedAt  time.Time     `json:"startedAt" yaml:"startedAt"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	Visited    int           `json:"visited" yaml:"visited"`
	Registered int           `json:"registered" yaml:"registered"`
	Rejected   int           `json:"rejected" yaml:"rejected"`
	Failed     int           `json:"failed" yaml:"failed"`
	Evicted    int           `json:"evicted" yaml:"evicted"`
	Truncated  bool          `json:"truncated" yaml:"truncated"`
}

// WhitelistRunStore handles database operations for scan history.
type WhitelistRunStore struct {
	db dbinterface.Querier
}

var _ whitelist.Recorder = (*WhitelistRunStore)(nil)

// NewWhitelistRunStore creates a new WhitelistRunStore.
func NewWhitelistRunStore(db dbinterface.Querier) *WhitelistRunStore {
	return &WhitelistRunStore{db: db}
}

// Record inserts run and returns its ID.
func (s *WhitelistRunStore) Record(ctx context.Context, run *WhitelistRun) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO whitelist_runs (root, started_at, duration_ms, visited, registered, rejected, failed, evicted, truncated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.Root,
		run.StartedAt.UTC(),
		run.Duration.Milliseconds(),
		run.Visited,
		run.Registered,
		run.Rejected,
		run.Failed,
		run.Evicted,
		run.Truncated,
	)
	if err != nil {
		return 0, fmt.Errorf("insert whitelist run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("whitelist run id: %w", err)
	}
	run.ID = id
	return id, nil
}

// RecordCycle implements whitelist.Recorder.
func (s *WhitelistRunStore) RecordCycle(ctx context.Context, stats whitelist.CycleStats) error {
	_, err := s.Record(ctx, &WhitelistRun{
		Root:       stats.Root,
		StartedAt:  stats.StartedAt,
		Duration:   stats.Duration,
		Visited:    stats.Visited,
		Registered: stats.Registered,
		Rejected:   stats.Rejected,
		Failed:     stats.Failed,
		Evicted:    stats.Evicted,
		Truncated:  stats.Truncated,
	})
	return err
}

// ListRecent returns the newest runs first. An empty root lists every root;
// a limit of zero or less uses the default.
func (s *WhitelistRunStore) ListRecent(ctx context.Context, root string, limit int) ([]*WhitelistRun, error) {
	if limit <= 0 {
		limit = defaultRunListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, root, started_at, duration_ms, visited, registered, rejected, failed, evicted, truncated
		FROM whitelist_runs
		WHERE (? = '' OR root = ?)
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, root, root, limit)
	if err != nil {
		return nil, fmt.Errorf("query whitelist runs: %w", err)
	}
	defer rows.Close()

	var runs []*WhitelistRun
	for rows.Next() {
		var (
			run        WhitelistRun
			durationMs int64
		)
		if err := rows.Scan(
			&run.ID,
			&run.Root,
			&run.StartedAt,
			&durationMs,
			&run.Visited,
			&run.Registered,
			&run.Rejected,
			&run.Failed,
			&run.Evicted,
			&run.Truncated,
		); err != nil {
			return nil, fmt.Errorf("scan whitelist run: %w", err)
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

// Prune deletes runs that started before olderThan and returns how many
// rows were removed.
func (s *WhitelistRunStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM whitelist_runs WHERE started_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune whitelist runs: %w", err)
	}
	return res.RowsAffected()
}
