// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package linkobj

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/mkgen/deptree"
	"go.chromium.org/infra/build/mkgen/toolsupport/pathutil"
)

// CandidateTree builds a candidate tree rooted at entry.
// universe is translation units that may be candidates, and should
// contain entry but no other entry point.
// A target's children are the units in universe that include any header
// reachable from the target, except units already in the tree.
func CandidateTree(ctx context.Context, graph DepGraph, entry string, universe []string) (*deptree.Tree, error) {
	rev := graph.ReverseIndex(universe)
	tree := deptree.New(entry, nil)
	related := func(t string) ([]string, error) {
		headers, err := graph.LocalClosure(t)
		if err != nil {
			return nil, err
		}
		var units []string
		for _, h := range headers {
			for _, f := range rev[h] {
				if f == t || tree.Has(f) {
					continue
				}
				units = append(units, f)
			}
		}
		return pathutil.Sorted(units), nil
	}

	children, err := related(entry)
	if err != nil {
		return nil, fmt.Errorf("candidate tree for %s: %w", entry, err)
	}
	tree = deptree.New(entry, children)
	for !tree.IsClosed() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, t := range tree.TargetList() {
			children, err := related(t)
			if err != nil {
				return nil, fmt.Errorf("candidate tree for %s: %w", entry, err)
			}
			err = tree.Add(t, children)
			if err != nil {
				return nil, fmt.Errorf("candidate tree for %s: %w", entry, err)
			}
		}
	}
	log.Debugf("candidate tree for %s: %d nodes\n%s", entry, tree.Len(), tree)
	return tree, nil
}

// candidates returns sorted nodes of tree except the root.
func candidates(tree *deptree.Tree) []string {
	var units []string
	for _, p := range tree.NodeList() {
		if p == tree.Root() {
			continue
		}
		units = append(units, p)
	}
	return units
}
