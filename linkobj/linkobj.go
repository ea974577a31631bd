// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package linkobj decides which translation units to link into each
// program.
//
// Candidates are found by the shared-header heuristic: two files that
// include a common local header may need to be linked together. The
// candidate set is then shrunk by trial links, first per directory and
// then per file.
package linkobj

import (
	"context"
	"fmt"
	"strings"
)

// Mode is a mode to decide link objects.
type Mode int

const (
	// ModeAll links every translation unit that is not an entry point.
	ModeAll Mode = iota
	// ModeSearch links candidates found by the shared-header heuristic.
	ModeSearch
	// ModeAnalyze shrinks candidates by one directory sweep and
	// one file sweep of trial links.
	ModeAnalyze
	// ModeFullAnalyze repeats ModeAnalyze until nothing is removed.
	ModeFullAnalyze
)

var modeNames = []string{
	ModeAll:         "all",
	ModeSearch:      "search",
	ModeAnalyze:     "analyze",
	ModeFullAnalyze: "full-analyze",
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if s == name {
			return Mode(i), nil
		}
	}
	return ModeAll, fmt.Errorf("unknown link object mode %q: want one of %s", s, strings.Join(modeNames, ", "))
}

// Set implements flag.Value.
func (m *Mode) Set(s string) error {
	v, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// DepGraph is an include dependency graph of files.
type DepGraph interface {
	// LocalClosure returns sorted local headers reachable from fname.
	LocalClosure(fname string) ([]string, error)

	// ReverseIndex returns header -> sorted files in universe that
	// directly include the header.
	ReverseIndex(universe []string) map[string][]string
}

// Trial is a result of a trial link.
type Trial struct {
	// OK is true if the toolchain exited with 0.
	OK bool

	// Output is combined output of the toolchain.
	Output string
}

// Linker runs trial links.
type Linker interface {
	// TryLink links the object of entry with objects of units.
	// units are source paths of translation units, not including entry.
	// It returns error only when the toolchain could not run.
	TryLink(ctx context.Context, entry string, units []string) (Trial, error)
}

// InvocationError is an error when a trial link could not run at all.
type InvocationError struct {
	Entry string
	Err   error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("trial link for %s could not run: %v", e.Entry, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// LinkFailure is an error when the final link objects of an entry don't
// link.
type LinkFailure struct {
	Entry  string
	Units  []string
	Output string
}

func (e *LinkFailure) Error() string {
	return fmt.Sprintf("link %s failed with %d objects:\n%s", e.Entry, len(e.Units)+1, e.Output)
}
