// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package build holds project data of C/C++ programs, and runs
// toolchain commands for them.
package build

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/mkgen/linkobj"
	"go.chromium.org/infra/build/mkgen/scandeps"
	"go.chromium.org/infra/build/mkgen/toolchain"
	"go.chromium.org/infra/build/mkgen/toolsupport/pathutil"
)

// ObjectDirFunc returns a directory for the object file of source.
// root and source are absolute paths.
type ObjectDirFunc func(root, source string) string

// SameDir puts object files in the directory of their sources, or in
// its subdirectory sub.
func SameDir(sub string) ObjectDirFunc {
	return func(root, source string) string {
		return filepath.Join(filepath.Dir(source), sub)
	}
}

// MirrorDir puts object files under dir relative to root, in the same
// structure as the source tree.
func MirrorDir(dir string) ObjectDirFunc {
	return func(root, source string) string {
		rel, err := filepath.Rel(root, filepath.Dir(source))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			// source outside of root.
			rel = strings.TrimPrefix(filepath.Dir(source), filepath.VolumeName(source))
		}
		return filepath.Join(root, dir, rel)
	}
}

// Entry is an entry point of a program.
type Entry struct {
	// Source is the path of the source with main function.
	Source string

	// Program is the path of the executable.
	Program string
}

// Project is a C/C++ project.
type Project struct {
	// Root is the project root directory.
	Root string

	// Sources are translation units that may be linked to programs.
	// Sources of entries in Sources are ignored.
	Sources []string

	// Entries are entry points of programs.
	Entries []Entry

	// ObjectDir decides directory of object files.
	// nil puts objects next to their sources.
	ObjectDir ObjectDirFunc

	// ObjectSuffix is a suffix of object files without dot.
	// Empty means "o".
	ObjectSuffix string

	Toolchain *toolchain.Options

	// TransitiveLibs resolves libraries of a link from library headers
	// reachable from linked units, rather than ones directly included.
	TransitiveLibs bool
}

// ObjectPath returns object path of source.
func (p *Project) ObjectPath(source string) string {
	dirFunc := p.ObjectDir
	if dirFunc == nil {
		dirFunc = SameDir("")
	}
	suffix := p.ObjectSuffix
	if suffix == "" {
		suffix = "o"
	}
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base)) + "." + suffix
	return filepath.Join(dirFunc(p.Root, source), base)
}

// Unit is a translation unit.
type Unit struct {
	Source string
	Object string

	// Headers are sorted local headers reachable from Source.
	Headers []string

	// DirectLibs are library headers Source includes directly,
	// in first-seen order.
	DirectLibs []string

	// TransitiveLibs are sorted library headers reachable from Source.
	TransitiveLibs []string
}

// Libs returns library headers of the unit.
func (u *Unit) Libs(transitive bool) []string {
	if transitive {
		return u.TransitiveLibs
	}
	return u.DirectLibs
}

// Units are translation units of a scanned project.
type Units struct {
	// Entries are entries with canonical source paths.
	Entries []Entry

	// Sources are sorted canonical paths of scanned non-entry sources.
	Sources []string

	// Skipped are sources excluded since they can't be scanned.
	Skipped map[string]error

	units map[string]*Unit
}

// Unit returns the unit of source.
func (u *Units) Unit(source string) (*Unit, bool) {
	unit, ok := u.units[source]
	return unit, ok
}

// EntrySources returns canonical sources of entries.
func (u *Units) EntrySources() []string {
	var sources []string
	for _, e := range u.Entries {
		sources = append(sources, e.Source)
	}
	return sources
}

// Scan scans sources and entries of p into x.
// A source that can't be scanned is reported and excluded, but an entry
// that can't be scanned is an error.
func (p *Project) Scan(ctx context.Context, x *scandeps.Index) (*Units, error) {
	if len(p.Entries) == 0 {
		return nil, errors.New("no main code in project")
	}
	u := &Units{
		Skipped: make(map[string]error),
		units:   make(map[string]*Unit),
	}
	isEntry := make(map[string]bool)
	for _, e := range p.Entries {
		source, err := x.Add(ctx, e.Source)
		if err != nil {
			return nil, fmt.Errorf("main code %s: %w", e.Source, err)
		}
		if isEntry[source] {
			return nil, fmt.Errorf("main code %s is given twice", e.Source)
		}
		isEntry[source] = true
		u.Entries = append(u.Entries, Entry{Source: source, Program: e.Program})
	}
	var sources []string
	for _, s := range p.Sources {
		source, err := x.Add(ctx, s)
		if err != nil {
			log.Warnf("skip source %s: %v", s, err)
			u.Skipped[s] = err
			continue
		}
		if isEntry[source] {
			continue
		}
		sources = append(sources, source)
	}
	u.Sources = pathutil.Sorted(sources)

	for _, source := range append(u.EntrySources(), u.Sources...) {
		closure, err := x.Closure(source)
		if err != nil {
			return nil, err
		}
		rec, _ := x.Record(source)
		u.units[source] = &Unit{
			Source:         source,
			Object:         p.ObjectPath(source),
			Headers:        closure.LocalIncludes,
			DirectLibs:     slices.Clone(rec.LibraryIncludes),
			TransitiveLibs: closure.LibraryIncludes,
		}
	}
	log.Infof("scanned %d main codes, %d sources (%d skipped), %d files", len(u.Entries), len(u.Sources), len(u.Skipped), len(x.Files()))
	return u, nil
}

// ResolveLibraries returns the union of library headers of units,
// deduplicated in first-seen order.
func ResolveLibraries(units []*Unit, transitive bool) []string {
	var libs []string
	seen := make(map[string]bool)
	for _, u := range units {
		for _, lib := range u.Libs(transitive) {
			if seen[lib] {
				continue
			}
			seen[lib] = true
			libs = append(libs, lib)
		}
	}
	return libs
}

// LinkUnits returns units linked to entry: entry itself first, then
// units of sources.
func (u *Units) LinkUnits(entry string, sources []string) ([]*Unit, error) {
	var units []*Unit
	for _, s := range append([]string{entry}, sources...) {
		unit, ok := u.units[s]
		if !ok {
			return nil, fmt.Errorf("no translation unit for %s", s)
		}
		units = append(units, unit)
	}
	return units, nil
}

// Program is a program to build.
type Program struct {
	Unit

	// ProgramPath is the path of the executable.
	ProgramPath string

	// LinkObjects are objects to link, starting with the object of
	// the entry.
	LinkObjects []string

	// Libraries are library headers of linked units.
	Libraries []string
}

// Result is build data of a project.
type Result struct {
	Programs []Program

	// Units are non-entry translation units.
	Units []Unit
}

// Result returns build data from results of link object decision.
func (p *Project) Result(u *Units, results []linkobj.Result) (Result, error) {
	var r Result
	programs := make(map[string]string)
	for _, e := range u.Entries {
		programs[e.Source] = e.Program
	}
	for _, res := range results {
		units, err := u.LinkUnits(res.Entry, res.Units)
		if err != nil {
			return Result{}, err
		}
		prog := Program{
			Unit:        *units[0],
			ProgramPath: programs[res.Entry],
			Libraries:   ResolveLibraries(units, p.TransitiveLibs),
		}
		for _, unit := range units {
			prog.LinkObjects = append(prog.LinkObjects, unit.Object)
		}
		r.Programs = append(r.Programs, prog)
	}
	for _, s := range u.Sources {
		r.Units = append(r.Units, *u.units[s])
	}
	return r, nil
}
