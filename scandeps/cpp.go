// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/mkgen/toolsupport/pathutil"
)

// ScanError is an error for a file that can't be scanned.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

var errInvalidUTF8 = errors.New("invalid UTF-8 text")

// Record is the direct dependency of a file.
// It must not be modified once created.
type Record struct {
	// File is the canonical path of the scanned file.
	File string

	// LocalIncludes are canonical paths of `#include "..."`
	// in first-seen order.
	LocalIncludes []string

	// LibraryIncludes are names of `#include <...>` in first-seen order.
	LibraryIncludes []string
}

// ScanFile reads fname and scans its #include directives.
// fname should be canonical.
func ScanFile(ctx context.Context, fname string) (*Record, error) {
	buf, err := os.ReadFile(fname)
	if err != nil {
		return nil, &ScanError{Path: fname, Err: err}
	}
	if !utf8.Valid(buf) {
		return nil, &ScanError{Path: fname, Err: errInvalidUTF8}
	}
	local, library := Scan(ctx, fname, buf)
	return &Record{
		File:            fname,
		LocalIncludes:   local,
		LibraryIncludes: library,
	}, nil
}

// Scan scans #include directives of fname in buf.
// It returns canonical paths of local includes and names of library
// includes, both deduplicated in first-seen order.
func Scan(ctx context.Context, fname string, buf []byte) ([]string, []string) {
	started := time.Now()
	dir := filepath.Dir(fname)

	var local, library []string
	seenLocal := make(map[string]bool)
	seenLibrary := make(map[string]bool)
	for len(buf) > 0 {
		var line []byte
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			line = buf
			buf = nil
		} else {
			line = buf[:i]
			buf = buf[i+1:]
		}
		name, delim, ok := parseInclude(line)
		if !ok {
			continue
		}
		switch delim {
		case '"':
			p := resolveLocal(dir, name)
			if seenLocal[p] {
				continue
			}
			seenLocal[p] = true
			local = append(local, p)
		case '<':
			if seenLibrary[name] {
				continue
			}
			seenLibrary[name] = true
			library = append(library, name)
		}
	}
	log.Debugf("scan %s local=%d library=%d %s", fname, len(local), len(library), time.Since(started))
	return local, library
}

// parseInclude parses `#include "name"` or `#include <name>` in line.
// It returns the name and its opening delimiter.
func parseInclude(line []byte) (string, byte, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '#' {
		return "", 0, false
	}
	line = bytes.TrimLeft(line[1:], " \t")
	if !bytes.HasPrefix(line, []byte("include")) {
		return "", 0, false
	}
	line = bytes.TrimLeft(line[len("include"):], " \t")
	if len(line) == 0 {
		return "", 0, false
	}
	var closing byte
	switch line[0] {
	case '"':
		closing = '"'
	case '<':
		closing = '>'
	default:
		// #include_next, #include MACRO etc.
		return "", 0, false
	}
	i := bytes.IndexByte(line[1:], closing)
	if i <= 0 {
		// unclosed or empty path.
		return "", 0, false
	}
	return string(line[1 : i+1]), line[0], true
}

// resolveLocal resolves a quoted include name found in dir.
// An absolute name is kept. Symlinks are resolved before applying "..",
// so "link/../x.h" is x.h next to the link's target.
func resolveLocal(dir, name string) string {
	name = filepath.FromSlash(name)
	base := dir
	if filepath.IsAbs(name) {
		base = filepath.VolumeName(name) + string(filepath.Separator)
		name = name[len(base):]
	}
	p := base
	for _, elem := range strings.Split(name, string(filepath.Separator)) {
		switch elem {
		case "", ".":
		case "..":
			if r, err := filepath.EvalSymlinks(p); err == nil {
				p = r
			}
			p = filepath.Dir(p)
		default:
			p = filepath.Join(p, elem)
		}
	}
	c, err := pathutil.Canonical(p)
	if err != nil {
		log.Warnf("canonical %s: %v", p, err)
		return p
	}
	return c
}
