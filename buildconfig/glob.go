// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package buildconfig

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"go.chromium.org/infra/build/mkgen/toolsupport/pathutil"
)

// globSpec specifies glob operations.
// A pattern with "/" matches a slash separated path relative to the
// root. Otherwise, it matches the base name of files in any directory.
type globSpec struct {
	includes []string
	excludes []string
}

// Match returns sorted slash separated paths relative to root that
// match g. Hidden directories are not visited.
// It returns an error for a malformed pattern.
func (g globSpec) Match(root string) ([]string, error) {
	m, err := g.matcher()
	if err != nil {
		return nil, err
	}
	var files []string
	err = filepath.WalkDir(root, func(pathname string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if pathname != root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, pathname)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if m(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	pathutil.Sort(files)
	return files, nil
}

func matchFunc(p string) (func(string) bool, error) {
	// a malformed pattern is an error, not a pattern matching nothing.
	if _, err := path.Match(p, ""); err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", p, err)
	}
	if strings.Contains(p, "/") {
		return func(s string) bool {
			ok, _ := path.Match(p, s)
			return ok
		}, nil
	}
	return func(s string) bool {
		ok, _ := path.Match(p, path.Base(s))
		return ok
	}, nil
}

func (g globSpec) matcher() (func(string) bool, error) {
	var inc, exc []func(string) bool
	for _, p := range g.includes {
		m, err := matchFunc(p)
		if err != nil {
			return nil, err
		}
		inc = append(inc, m)
	}
	for _, p := range g.excludes {
		m, err := matchFunc(p)
		if err != nil {
			return nil, err
		}
		exc = append(exc, m)
	}
	return func(s string) bool {
		for _, m := range exc {
			if m(s) {
				return false
			}
		}
		for _, m := range inc {
			if m(s) {
				return true
			}
		}
		return false
	}, nil
}
