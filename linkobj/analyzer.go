// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package linkobj

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Analyzer decides link units of entry points.
type Analyzer struct {
	Graph  DepGraph
	Linker Linker
	Mode   Mode

	// Jobs is the number of entries analyzed concurrently.
	// Jobs <= 1 analyzes entries one by one.
	Jobs int

	// Verify runs a final trial link in ModeAll and ModeSearch too.
	// ModeAnalyze and ModeFullAnalyze always verify.
	Verify bool
}

// Result is link units of an entry.
type Result struct {
	Entry string

	// Units are sorted source paths of translation units to link with
	// the entry, not including the entry itself.
	Units []string

	// Trials is the number of trial links run.
	Trials int

	// Removed is the number of candidates removed by trial links.
	Removed int

	Duration time.Duration
}

// Analyze decides link units for each of entries.
// sources are translation units that are not entry points.
// Results are in the order of entries.
func (a *Analyzer) Analyze(ctx context.Context, entries, sources []string) ([]Result, error) {
	if a.Mode != ModeAll && a.Graph == nil {
		return nil, fmt.Errorf("no dependency graph for mode %s", a.Mode)
	}
	if (a.Mode == ModeAnalyze || a.Mode == ModeFullAnalyze || a.Verify) && a.Linker == nil {
		return nil, fmt.Errorf("no linker for mode %s", a.Mode)
	}
	results := make([]Result, len(entries))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(a.Jobs, 1))
	for i, entry := range entries {
		eg.Go(func() error {
			started := time.Now()
			m := &minimizer{
				graph:  a.Graph,
				linker: a.Linker,
				entry:  entry,
			}
			log.Infof("%s: decide link objects mode=%s", entry, a.Mode)
			units, err := m.run(gctx, a.Mode, sources, a.Verify)
			if err != nil {
				return fmt.Errorf("link objects for %s: %w", entry, err)
			}
			results[i] = Result{
				Entry:    entry,
				Units:    units,
				Trials:   m.trials,
				Removed:  m.removed,
				Duration: time.Since(started),
			}
			log.Infof("%s: %d units, %d trials, %d removed in %s", entry, len(units), m.trials, m.removed, results[i].Duration)
			return nil
		})
	}
	err := eg.Wait()
	if err != nil {
		return nil, err
	}
	return results, nil
}
