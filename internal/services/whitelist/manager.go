// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package whitelist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Manager runs one independent engine per configured root.
type Manager struct {
	db   Database
	opts []Option

	mu      sync.Mutex
	engines map[string]*Service
}

// NewManager creates a manager whose engines share db and opts.
func NewManager(db Database, opts ...Option) *Manager {
	return &Manager{
		db:      usableDatabase(db),
		opts:    opts,
		engines: make(map[string]*Service),
	}
}

// Apply reconciles the running engines with cfgs. Engines whose root is gone
// or whose settings changed are stopped, new or changed roots are started and
// untouched engines keep running. Records under a root that is gone are
// removed from the database unless another configured root covers them.
// A cancelled ctx leaves the engines as they are. Invalid entries are skipped
// and reported in the returned error; the valid ones are still applied.
func (m *Manager) Apply(ctx context.Context, cfgs []Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var errs []error

	wanted := make(map[string]Config, len(cfgs))
	for _, cfg := range cfgs {
		normalized, err := cfg.withDefaults()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := wanted[normalized.Root]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate root %q", ErrInvalidRoot, normalized.Root))
			continue
		}
		wanted[normalized.Root] = normalized
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	keep := make([]string, 0, len(wanted))
	for root := range wanted {
		keep = append(keep, root)
	}

	var (
		stopping []*Service
		dropped  []string
	)
	for root, svc := range m.engines {
		cfg, wantedRoot := wanted[root]
		if wantedRoot && cfg == svc.Config() {
			delete(wanted, root)
			continue
		}
		if !wantedRoot {
			dropped = append(dropped, root)
		}
		stopping = append(stopping, svc)
		delete(m.engines, root)
	}
	stopAll(stopping)

	// No engine reconciles a dropped root any more, its records go with it.
	for _, root := range dropped {
		purgeRoot(m.db, root, keep, log.Logger)
	}

	var (
		startMu sync.Mutex
		g       errgroup.Group
	)
	for _, cfg := range wanted {
		g.Go(func() error {
			svc, err := New(ctx, cfg, m.db, m.opts...)
			if err != nil {
				return fmt.Errorf("start engine for %s: %w", cfg.Root, err)
			}
			startMu.Lock()
			m.engines[cfg.Root] = svc
			startMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}

	log.Debug().Int("engines", len(m.engines)).Int("stopped", len(stopping)).Msg("whitelist: applied configuration")
	return errors.Join(errs...)
}

// Roots returns the roots of the running engines, sorted.
func (m *Manager) Roots() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	roots := make([]string, 0, len(m.engines))
	for root := range m.engines {
		roots = append(roots, root)
	}
	slices.Sort(roots)
	return roots
}

// Engine returns the engine running for root.
func (m *Manager) Engine(root string) (*Service, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	svc, ok := m.engines[root]
	return svc, ok
}

// TriggerAll starts a cycle on every engine without waiting for the interval.
func (m *Manager) TriggerAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, svc := range m.engines {
		svc.Trigger()
	}
}

// Stop stops every engine and waits for all of them to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	engines := make([]*Service, 0, len(m.engines))
	for _, svc := range m.engines {
		engines = append(engines, svc)
	}
	clear(m.engines)
	stopAll(engines)
}

// stopAll stops engines in parallel so one long cycle does not delay the rest.
func stopAll(engines []*Service) {
	var g errgroup.Group
	for _, svc := range engines {
		g.Go(func() error {
			svc.Stop()
			return nil
		})
	}
	_ = g.Wait()
}
