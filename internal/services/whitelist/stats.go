// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package whitelist

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// CycleStats summarizes one scan+reconcile cycle of an engine.
type CycleStats struct {
	Root       string        `json:"root"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
	Visited    int           `json:"visited"`
	Registered int           `json:"registered"`
	Rejected   int           `json:"rejected"`
	Failed     int           `json:"failed"`
	Evicted    int           `json:"evicted"`
	Truncated  bool          `json:"truncated"`
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (c CycleStats) MarshalZerologObject(e *zerolog.Event) {
	e.Int("visited", c.Visited).
		Int("registered", c.Registered).
		Int("rejected", c.Rejected).
		Int("failed", c.Failed).
		Int("evicted", c.Evicted).
		Bool("truncated", c.Truncated).
		Dur("duration", c.Duration)
}

// Recorder receives the stats of every completed cycle.
// Implementations must be safe for concurrent use, one engine per root calls in.
type Recorder interface {
	RecordCycle(ctx context.Context, stats CycleStats) error
}

// MultiRecorder fans a cycle out to several recorders. Nil entries are ignored.
type MultiRecorder []Recorder

func (m MultiRecorder) RecordCycle(ctx context.Context, stats CycleStats) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.RecordCycle(ctx, stats); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
