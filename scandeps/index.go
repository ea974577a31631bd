// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/mkgen/toolsupport/pathutil"
)

// NotFoundError is an error for a file that was never added to the index.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s is not in the dependency index", e.Path)
}

// Closure is the transitive dependency of a file.
type Closure struct {
	// LocalIncludes are sorted canonical paths of reachable local headers.
	LocalIncludes []string

	// LibraryIncludes are sorted names of reachable library headers.
	LibraryIncludes []string
}

// Index holds dependency records of scanned files.
// Records are created once per file and discovered transitively
// through local includes.
type Index struct {
	mu      sync.RWMutex
	records map[string]*Record
	broken  map[string]error
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		records: make(map[string]*Record),
		broken:  make(map[string]error),
	}
}

// Add scans fname and every file transitively local-included from it.
// It returns the canonical path of fname.
// Adding a file already in the index is no-op.
// A local include that can't be scanned is logged and remembered in
// Broken, but doesn't fail Add; only fname itself failing does.
func (x *Index) Add(ctx context.Context, fname string) (string, error) {
	cname, err := pathutil.Canonical(fname)
	if err != nil {
		return "", &ScanError{Path: fname, Err: err}
	}
	fname = cname
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.records[fname]; ok {
		return fname, nil
	}
	rec, err := ScanFile(ctx, fname)
	if err != nil {
		return fname, err
	}
	x.records[fname] = rec
	log.Debugf("add file %s", fname)

	// breadth-first discovery of newly referenced files.
	queue := slices.Clone(rec.LocalIncludes)
	for len(queue) > 0 {
		var next []string
		for _, f := range queue {
			if _, ok := x.records[f]; ok {
				continue
			}
			if _, ok := x.broken[f]; ok {
				continue
			}
			r, err := ScanFile(ctx, f)
			if err != nil {
				log.Warnf("%v", err)
				x.broken[f] = err
				continue
			}
			x.records[f] = r
			log.Debugf("  add file %s", f)
			next = append(next, r.LocalIncludes...)
		}
		queue = next
	}
	return fname, nil
}

// Record returns the record of fname.
func (x *Index) Record(fname string) (*Record, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	r, ok := x.records[fname]
	return r, ok
}

// Files returns sorted paths of all recorded files.
func (x *Index) Files() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	files := make([]string, 0, len(x.records))
	for f := range x.records {
		files = append(files, f)
	}
	pathutil.Sort(files)
	return files
}

// Broken returns errors of referenced files that couldn't be scanned,
// keyed by path.
func (x *Index) Broken() map[string]error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	m := make(map[string]error, len(x.broken))
	for k, v := range x.broken {
		m[k] = v
	}
	return m
}

// Closure returns the transitive dependency of fname.
func (x *Index) Closure(fname string) (Closure, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	rec, ok := x.records[fname]
	if !ok {
		return Closure{}, &NotFoundError{Path: fname}
	}
	local := make(map[string]bool)
	library := make(map[string]bool)
	visited := map[string]bool{fname: true}
	queue := []*Record{rec}
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		for _, lib := range r.LibraryIncludes {
			library[lib] = true
		}
		for _, f := range r.LocalIncludes {
			local[f] = true
			if visited[f] {
				continue
			}
			visited[f] = true
			if next, ok := x.records[f]; ok {
				queue = append(queue, next)
			}
		}
	}
	var c Closure
	for f := range local {
		c.LocalIncludes = append(c.LocalIncludes, f)
	}
	pathutil.Sort(c.LocalIncludes)
	for lib := range library {
		c.LibraryIncludes = append(c.LibraryIncludes, lib)
	}
	slices.Sort(c.LibraryIncludes)
	return c, nil
}

// LocalClosure returns sorted local headers reachable from fname.
func (x *Index) LocalClosure(fname string) ([]string, error) {
	c, err := x.Closure(fname)
	if err != nil {
		return nil, err
	}
	return c.LocalIncludes, nil
}

// ReverseIndex returns header -> sorted files in universe that directly
// local-include the header.
func (x *Index) ReverseIndex(universe []string) map[string][]string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	rev := make(map[string][]string)
	for _, f := range pathutil.Sorted(universe) {
		r, ok := x.records[f]
		if !ok {
			continue
		}
		for _, h := range r.LocalIncludes {
			rev[h] = append(rev[h], f)
		}
	}
	// files were visited in sorted order, so each list is already sorted.
	return rev
}

// WriteGraph writes "file,header" lines for every direct local include,
// with paths relative to base.
func (x *Index) WriteGraph(w io.Writer, base string) error {
	bw := bufio.NewWriter(w)
	for _, f := range x.Files() {
		r, _ := x.Record(f)
		headers := pathutil.Sorted(r.LocalIncludes)
		for _, h := range headers {
			_, err := fmt.Fprintf(bw, "%s,%s\n", pathutil.Rel(base, f), pathutil.Rel(base, h))
			if err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
