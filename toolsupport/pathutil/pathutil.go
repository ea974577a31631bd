// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package pathutil provides path helpers shared by mkgen packages.
package pathutil

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Canonical returns the canonical absolute form of fname.
// Symlinks are resolved only when fname exists.
func Canonical(fname string) (string, error) {
	abs, err := filepath.Abs(fname)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", err
	}
	return resolved, nil
}

// Less orders paths by containing directory first, then by full path,
// so files in the same directory stay together.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Compare is the three-way version of Less.
func Compare(a, b string) int {
	if c := strings.Compare(filepath.Dir(a), filepath.Dir(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// Sort sorts paths in place by Less.
func Sort(paths []string) {
	slices.SortFunc(paths, Compare)
}

// Sorted returns a sorted, deduplicated copy of paths.
func Sorted(paths []string) []string {
	s := slices.Clone(paths)
	Sort(s)
	return slices.Compact(s)
}

// Rel returns path relative to base in slash form.
// It keeps path as is when it can't be made relative.
func Rel(base, path string) string {
	if base == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
