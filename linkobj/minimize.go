// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package linkobj

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/mkgen/deptree"
	"go.chromium.org/infra/build/mkgen/toolsupport/pathutil"
)

// minimizer shrinks link objects of an entry by trial links.
// Trials run sequentially, since each result changes the set tested next.
type minimizer struct {
	graph  DepGraph
	linker Linker
	entry  string

	trials  int
	removed int

	// lastOK is the units of the last successful trial.
	lastOK     []string
	hasLastOK  bool
	lastOutput string
}

// try runs a trial link of units.
func (m *minimizer) try(ctx context.Context, units []string) (bool, error) {
	m.trials++
	trial, err := m.linker.TryLink(ctx, m.entry, units)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, &InvocationError{Entry: m.entry, Err: err}
	}
	m.lastOutput = trial.Output
	if trial.OK {
		m.lastOK = slices.Clone(units)
		m.hasLastOK = true
	}
	return trial.OK, nil
}

// sweepDirs tries to drop each directory's units at once.
// Directories are ordered by first appearance in depth order of tree,
// reversed, so deeper directories are tried first.
// It returns sorted surviving units, not including the entry.
func (m *minimizer) sweepDirs(ctx context.Context, tree *deptree.Tree) ([]string, error) {
	order, err := tree.DepthOrder()
	if err != nil {
		return nil, fmt.Errorf("directory sweep for %s: %w", m.entry, err)
	}
	var dirs []string
	seen := make(map[string]bool)
	for _, n := range order {
		dir := filepath.Dir(n.Path)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	slices.Reverse(dirs)

	active := candidates(tree)
	for _, dir := range dirs {
		var rest []string
		n := 0
		for _, u := range active {
			if filepath.Dir(u) == dir {
				n++
				continue
			}
			rest = append(rest, u)
		}
		if n == 0 {
			continue
		}
		log.Infof("%s: test removed dir %s (%d units)", m.entry, dir, n)
		ok, err := m.try(ctx, rest)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		log.Infof("%s: remove dir %s", m.entry, dir)
		m.removed += n
		active = rest
	}
	return active, nil
}

// sweepFiles tries to drop each node of tree with its subtree, shallow
// nodes first. Nodes removed by an earlier removal in the sweep are
// skipped. It returns the pruned tree; tree itself is not modified.
func (m *minimizer) sweepFiles(ctx context.Context, tree *deptree.Tree) (*deptree.Tree, error) {
	order, err := tree.DepthOrder()
	if err != nil {
		return nil, fmt.Errorf("file sweep for %s: %w", m.entry, err)
	}
	work := tree.Copy()
	for _, n := range order {
		if n.Path == m.entry {
			continue
		}
		if !work.Has(n.Path) {
			log.Debugf("%s: %s already removed", m.entry, n.Path)
			continue
		}
		trialTree := work.Copy()
		err := trialTree.Remove(n.Path)
		if err != nil {
			return nil, fmt.Errorf("file sweep for %s: %w", m.entry, err)
		}
		log.Infof("%s: test removed unit %s", m.entry, n.Path)
		ok, err := m.try(ctx, candidates(trialTree))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		log.Infof("%s: remove %s (%d units)", m.entry, n.Path, work.Len()-trialTree.Len())
		m.removed += work.Len() - trialTree.Len()
		work = trialTree
	}
	return work, nil
}

// analyzeStep runs a directory sweep and a file sweep over units.
// units are candidates not including the entry.
// It returns sorted surviving units.
func (m *minimizer) analyzeStep(ctx context.Context, units []string) ([]string, error) {
	universe := append([]string{m.entry}, units...)
	tree, err := CandidateTree(ctx, m.graph, m.entry, universe)
	if err != nil {
		return nil, err
	}
	survivors, err := m.sweepDirs(ctx, tree)
	if err != nil {
		return nil, err
	}
	universe = append([]string{m.entry}, survivors...)
	tree, err = CandidateTree(ctx, m.graph, m.entry, universe)
	if err != nil {
		return nil, err
	}
	tree, err = m.sweepFiles(ctx, tree)
	if err != nil {
		return nil, err
	}
	return candidates(tree), nil
}

// verify links units unless units were already linked successfully.
func (m *minimizer) verify(ctx context.Context, units []string) error {
	if m.hasLastOK && slices.Equal(m.lastOK, units) {
		return nil
	}
	log.Infof("%s: verify %d units", m.entry, len(units))
	ok, err := m.try(ctx, units)
	if err != nil {
		return err
	}
	if !ok {
		return &LinkFailure{Entry: m.entry, Units: units, Output: m.lastOutput}
	}
	return nil
}

// search returns sorted units of the candidate tree of the entry.
func (m *minimizer) search(ctx context.Context, units []string) ([]string, error) {
	universe := append([]string{m.entry}, units...)
	tree, err := CandidateTree(ctx, m.graph, m.entry, universe)
	if err != nil {
		return nil, err
	}
	return candidates(tree), nil
}

// run decides link units of the entry in mode.
// units are every non-entry translation unit.
func (m *minimizer) run(ctx context.Context, mode Mode, units []string, verify bool) ([]string, error) {
	units = pathutil.Sorted(slices.DeleteFunc(slices.Clone(units), func(u string) bool {
		return u == m.entry
	}))
	var result []string
	var err error
	switch mode {
	case ModeAll:
		result = units
	case ModeSearch:
		result, err = m.search(ctx, units)
	case ModeAnalyze:
		result, err = m.analyzeStep(ctx, units)
		verify = true
	case ModeFullAnalyze:
		result, err = m.analyzeStep(ctx, units)
		for cycle := 2; err == nil; cycle++ {
			var next []string
			next, err = m.analyzeStep(ctx, result)
			if err != nil {
				break
			}
			log.Infof("%s: cycle %d %d -> %d units", m.entry, cycle, len(result), len(next))
			if len(next) == len(result) {
				break
			}
			result = next
		}
		verify = true
	default:
		return nil, fmt.Errorf("unknown mode %v", mode)
	}
	if err != nil {
		return nil, err
	}
	if verify {
		err = m.verify(ctx, result)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}
