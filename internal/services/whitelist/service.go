// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package whitelist keeps the tracker's torrent database in sync with a
// directory tree. One engine per root scans for new metainfo files and evicts
// records whose file has been deleted, on a fixed rescan interval.
package whitelist

import (
	"context"
	"os"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/trackerwl/internal/torrentdb"
)

// State is the lifecycle state of an engine.
type State int32

const (
	StateRunning State = iota
	StateStopRequested
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopRequested:
		return "stop_requested"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Database is the part of the torrent database an engine uses.
// *torrentdb.DB implements it. A nil Database, typed or untyped, disables
// registration and reconciliation.
type Database interface {
	RLock()
	RUnlock()
	// ForEachLocked must only be called while holding the shared lock.
	ForEachLocked(fn func(*torrentdb.Torrent))
	// Add and Remove take the exclusive lock themselves.
	Add(t *torrentdb.Torrent) bool
	Remove(key string) bool
}

// usableDatabase turns a typed nil such as (*torrentdb.DB)(nil) into an
// untyped nil so the nil checks in the engine see it.
func usableDatabase(db Database) Database {
	if db == nil {
		return nil
	}
	if v := reflect.ValueOf(db); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil
	}
	return db
}

// ParseFunc turns an accepted candidate into a torrent record.
type ParseFunc func(path string) (*torrentdb.Torrent, error)

// Option configures a Service.
type Option func(*Service)

// WithParser replaces torrentdb.ParseFile as the registration parser.
func WithParser(fn ParseFunc) Option {
	return func(s *Service) {
		if fn != nil {
			s.parse = fn
		}
	}
}

// WithRecorder reports every completed cycle to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithLogger sets the base logger. The root is added as a field.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) {
		s.log = l.With().Str("root", s.cfg.Root).Logger()
	}
}

func withStat(fn statFunc) Option {
	return func(s *Service) {
		s.stat = fn
	}
}

// Service is a running whitelist engine bound to one root.
type Service struct {
	cfg      Config
	db       Database
	parse    ParseFunc
	recorder Recorder
	stat     statFunc
	log      zerolog.Logger

	state    atomic.Int32
	trigger  chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	lastMu sync.Mutex
	last   *CycleStats
}

// New validates cfg and starts the engine. The first cycle runs immediately.
//
// db may be nil, in which case the tree is still scanned and sniffed but
// nothing is registered or reconciled. The engine runs until Stop is called or
// ctx is cancelled.
func New(ctx context.Context, cfg Config, db Database, opts ...Option) (*Service, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:     cfg,
		db:      usableDatabase(db),
		parse:   torrentdb.ParseFile,
		stat:    os.Stat,
		log:     log.With().Str("root", cfg.Root).Logger(),
		trigger: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	var runCtx context.Context
	runCtx, s.cancel = context.WithCancel(ctx)
	s.state.Store(int32(StateRunning))

	s.wg.Add(1)
	go s.run(runCtx)

	s.log.Info().
		Dur("rescanInterval", cfg.RescanInterval).
		Int("maxDepth", cfg.MaxDepth).
		Int("maxInodes", cfg.MaxInodes).
		Msg("whitelist: engine started")

	return s, nil
}

// RunOnce runs a single scan+reconcile cycle on the calling goroutine and
// returns its stats. It is the one-shot form of New for CLI use.
func RunOnce(ctx context.Context, cfg Config, db Database, opts ...Option) (CycleStats, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return CycleStats{}, err
	}

	s := &Service{
		cfg:   cfg,
		db:    usableDatabase(db),
		parse: torrentdb.ParseFile,
		stat:  os.Stat,
		log:   log.With().Str("root", cfg.Root).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s.runCycle(ctx), nil
}

// Config returns the effective configuration with defaults applied.
func (s *Service) Config() Config {
	return s.cfg
}

// State reports the current lifecycle state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// Stop requests the engine to stop and waits for its goroutine to exit.
// A cycle in progress runs to completion first. Stop is safe to call more
// than once and from several goroutines.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.state.CompareAndSwap(int32(StateRunning), int32(StateStopRequested))
		s.cancel()
	})
	s.wg.Wait()
}

// Trigger cuts the current wait short so the next cycle starts right away.
// It never blocks; triggers that arrive during a cycle are coalesced.
func (s *Service) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// LastCycle returns the stats of the most recently completed cycle.
func (s *Service) LastCycle() (CycleStats, bool) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()

	if s.last == nil {
		return CycleStats{}, false
	}
	return *s.last, true
}

func (s *Service) run(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		s.state.Store(int32(StateStopped))
		s.log.Info().Msg("whitelist: engine stopped")
	}()

	timer := time.NewTimer(s.cfg.RescanInterval)
	defer timer.Stop()

	for {
		s.runCycle(ctx)

		// A stop requested during the cycle wins over a pending trigger.
		if ctx.Err() != nil {
			return
		}

		timer.Reset(s.cfg.RescanInterval)
		select {
		case <-ctx.Done():
			return
		case <-s.trigger:
			if ctx.Err() != nil {
				return
			}
			s.log.Debug().Msg("whitelist: rescan triggered")
		case <-timer.C:
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// runCycle scans the tree, then reconciles the database against it.
func (s *Service) runCycle(ctx context.Context) CycleStats {
	stats := CycleStats{
		Root:      s.cfg.Root,
		StartedAt: time.Now(),
	}

	res := walkTree(s.cfg.Root, s.cfg.MaxDepth, s.cfg.MaxInodes, s.log, func(path string) bool {
		s.handleCandidate(path, &stats)
		return true
	})
	stats.Visited = res.visited
	stats.Truncated = res.truncated
	if res.truncated {
		s.log.Error().Int("maxInodes", s.cfg.MaxInodes).Msg("whitelist: reached the limit of scanned inodes")
	}

	stats.Evicted = reconcile(s.db, s.cfg.Root, s.stat, s.log)
	stats.Duration = time.Since(stats.StartedAt)

	s.log.Debug().EmbedObject(stats).Msg("whitelist: cycle finished")

	s.lastMu.Lock()
	s.last = &stats
	s.lastMu.Unlock()

	if s.recorder != nil {
		// Stop may already be in progress, the finished cycle is still recorded.
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		if err := s.recorder.RecordCycle(recCtx, stats); err != nil {
			s.log.Warn().Err(err).Msg("whitelist: failed to record cycle")
		}
		cancel()
	}

	return stats
}

func (s *Service) handleCandidate(path string, stats *CycleStats) {
	accepted, err := sniffCandidate(path)
	if err != nil {
		stats.Failed++
		s.log.Error().Err(err).Str("path", path).Msg("whitelist: skipping file")
		return
	}
	if !accepted {
		stats.Rejected++
		s.log.Error().Str("path", path).Msg("whitelist: not a torrent file")
		return
	}

	if s.db == nil {
		return
	}

	t, err := s.parse(path)
	if err != nil {
		stats.Failed++
		s.log.Warn().Err(err).Str("path", path).Msg("whitelist: could not parse torrent")
		return
	}

	if s.db.Add(t) {
		s.log.Info().Str("key", t.Key).Str("path", t.Path).Msg("whitelist: registered torrent")
	}
	stats.Registered++
}
