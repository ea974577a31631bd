// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package makefile generates Makefiles for build data of a project.
//
// One Makefile is generated for each directory that has translation
// units, and one for the project root. The root Makefile builds other
// directories with recursive make.
package makefile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/mkgen/build"
	"go.chromium.org/infra/build/mkgen/toolchain"
	"go.chromium.org/infra/build/mkgen/toolsupport/pathutil"
	"go.chromium.org/infra/build/mkgen/toolsupport/shutil"
)

// Name is the filename of generated Makefiles.
const Name = "Makefile"

const (
	macroPrograms = "PROGRAMS"
	macroObjects  = "OBJECTS"
	macroSubdirs  = "SUBDIRS"

	autoTarget       = "$@"
	autoPrerequisite = "$^"

	subdirTarget = "MAKE_SUBDIR"
)

// Makefile is a Makefile of a directory.
type Makefile struct {
	// Dir is the absolute path of the directory.
	Dir string

	// Programs are programs whose entries are in Dir, sorted by program path.
	Programs []build.Program

	// Units are translation units in Dir, sorted by source path.
	Units []build.Unit

	// Subdirs are directories built by recursive make.
	Subdirs []string

	toolchain *toolchain.Options
}

// Generate returns Makefiles of r for a project in root.
// The Makefile of root comes first, followed by others in directory order.
func Generate(root string, tc *toolchain.Options, r build.Result) []*Makefile {
	byDir := make(map[string]*Makefile)
	get := func(dir string) *Makefile {
		m, ok := byDir[dir]
		if !ok {
			m = &Makefile{Dir: dir, toolchain: tc}
			byDir[dir] = m
		}
		return m
	}
	for _, p := range r.Programs {
		m := get(filepath.Dir(p.Source))
		m.Programs = append(m.Programs, p)
		m.Units = append(m.Units, p.Unit)
	}
	for _, u := range r.Units {
		m := get(filepath.Dir(u.Source))
		m.Units = append(m.Units, u)
	}
	rootMakefile := get(root)

	var dirs []string
	for dir := range byDir {
		if dir == root {
			continue
		}
		dirs = append(dirs, dir)
	}
	slices.Sort(dirs)

	makefiles := []*Makefile{rootMakefile}
	for _, dir := range dirs {
		rootMakefile.Subdirs = append(rootMakefile.Subdirs, dir)
		makefiles = append(makefiles, byDir[dir])
	}
	for _, m := range makefiles {
		slices.SortFunc(m.Programs, func(a, b build.Program) int {
			return pathutil.Compare(a.ProgramPath, b.ProgramPath)
		})
		slices.SortFunc(m.Units, func(a, b build.Unit) int {
			return pathutil.Compare(a.Source, b.Source)
		})
	}
	return makefiles
}

// Path returns the path of the Makefile.
func (m *Makefile) Path() string {
	return filepath.Join(m.Dir, Name)
}

// rel returns path relative to the directory of the Makefile, escaped for
// make targets and prerequisites.
func (m *Makefile) rel(path string) string {
	return escape(pathutil.Rel(m.Dir, path))
}

// Bytes returns the content of the Makefile.
func (m *Makefile) Bytes() []byte {
	var buf bytes.Buffer
	m.writeMacros(&buf)
	m.writeAll(&buf)
	m.writeClean(&buf)
	for _, p := range m.Programs {
		m.writeLink(&buf, p)
	}
	for _, u := range m.Units {
		m.writeCompile(&buf, u)
	}
	for _, u := range m.Units {
		m.writeHeaders(&buf, u)
	}
	return buf.Bytes()
}

func (m *Makefile) writeMacros(buf *bytes.Buffer) {
	var programs, objects, subdirs []string
	for _, p := range m.Programs {
		programs = append(programs, m.rel(p.ProgramPath))
	}
	for _, u := range m.Units {
		objects = append(objects, m.rel(u.Object))
	}
	for _, d := range m.Subdirs {
		subdirs = append(subdirs, m.rel(d))
	}
	writeMacro(buf, macroPrograms, programs)
	writeMacro(buf, macroObjects, objects)
	writeMacro(buf, macroSubdirs, subdirs)
}

func (m *Makefile) writeAll(buf *bytes.Buffer) {
	var prereqs []string
	if len(m.Subdirs) > 0 {
		prereqs = append(prereqs, ref(macroSubdirs))
	}
	if len(m.Units) > 0 {
		prereqs = append(prereqs, ref(macroObjects))
	}
	if len(m.Programs) > 0 {
		prereqs = append(prereqs, ref(macroPrograms))
	}
	buf.WriteString(".PHONY: all\n")
	if len(prereqs) > 0 {
		prereqs = []string{strings.Join(prereqs, " ")}
	}
	writeRule(buf, "all", prereqs, false)
	if len(m.Subdirs) > 0 {
		writeRule(buf, ref(macroSubdirs), []string{subdirTarget}, false)
		buf.WriteString("\t$(MAKE) all -C $@\n")
		writeRule(buf, subdirTarget, nil, false)
	}
	buf.WriteString("\n")
}

func (m *Makefile) writeClean(buf *bytes.Buffer) {
	var files []string
	if len(m.Units) > 0 {
		files = append(files, ref(macroObjects))
	}
	if len(m.Programs) > 0 {
		files = append(files, ref(macroPrograms))
	}
	buf.WriteString(".PHONY: clean\n")
	writeRule(buf, "clean", nil, false)
	rm := strings.TrimRight("\trm -f "+strings.Join(files, " "), " ")
	if len(m.Subdirs) == 0 {
		fmt.Fprintf(buf, "%s\n\n", rm)
		return
	}
	if len(files) > 0 {
		fmt.Fprintf(buf, "%s; \\\n", rm)
	}
	fmt.Fprintf(buf, "\tfor subdir in %s; do \\\n", ref(macroSubdirs))
	buf.WriteString("\t    $(MAKE) clean -C $$subdir; \\\n")
	buf.WriteString("\tdone\n\n")
}

func (m *Makefile) writeLink(buf *bytes.Buffer, p build.Program) {
	var objects []string
	for _, o := range p.LinkObjects {
		objects = append(objects, m.rel(o))
	}
	writeRule(buf, m.rel(p.ProgramPath), objects, false)
	args := m.toolchain.LinkArgs(autoTarget, []string{autoPrerequisite}, p.Libraries)
	fmt.Fprintf(buf, "\t%s\n\n", commandLine(args))
}

func (m *Makefile) writeCompile(buf *bytes.Buffer, u build.Unit) {
	source := pathutil.Rel(m.Dir, u.Source)
	writeRule(buf, m.rel(u.Object), []string{escape(source)}, false)
	args := m.toolchain.CompileArgs(source, autoTarget, u.TransitiveLibs)
	fmt.Fprintf(buf, "\t%s\n\n", commandLine(args))
}

func (m *Makefile) writeHeaders(buf *bytes.Buffer, u build.Unit) {
	if len(u.Headers) == 0 {
		return
	}
	var headers []string
	for _, h := range u.Headers {
		headers = append(headers, pathutil.Rel(m.Dir, h))
	}
	pathutil.Sort(headers)
	for i, h := range headers {
		headers[i] = escape(h)
	}
	writeRule(buf, m.rel(u.Object), headers, true)
	buf.WriteString("\n")
}

// Write writes the Makefile to its directory.
func (m *Makefile) Write() error {
	err := os.MkdirAll(m.Dir, 0755)
	if err != nil {
		return err
	}
	err = os.WriteFile(m.Path(), m.Bytes(), 0644)
	if err != nil {
		return err
	}
	log.Infof("write %s", m.Path())
	return nil
}

// WriteAll writes all makefiles.
func WriteAll(makefiles []*Makefile) error {
	for _, m := range makefiles {
		err := m.Write()
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", m.Path(), err)
		}
	}
	return nil
}

func ref(macro string) string {
	return "$(" + macro + ")"
}

// writeMacro writes a macro definition with one value per line.
// Nothing is written for empty values.
func writeMacro(buf *bytes.Buffer, name string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(buf, "%s = \\\n", name)
	for _, v := range values[:len(values)-1] {
		fmt.Fprintf(buf, "  %s \\\n", v)
	}
	fmt.Fprintf(buf, "  %s\n\n", values[len(values)-1])
}

// writeRule writes "target: prereqs". prereqs are put on separate lines
// if there are more than one, or multiline is set.
func writeRule(buf *bytes.Buffer, target string, prereqs []string, multiline bool) {
	switch {
	case len(prereqs) == 0:
		fmt.Fprintf(buf, "%s:\n", target)
	case len(prereqs) == 1 && !multiline:
		fmt.Fprintf(buf, "%s: %s\n", target, prereqs[0])
	default:
		fmt.Fprintf(buf, "%s: \\\n", target)
		for _, p := range prereqs[:len(prereqs)-1] {
			fmt.Fprintf(buf, "  %s \\\n", p)
		}
		fmt.Fprintf(buf, "  %s\n", prereqs[len(prereqs)-1])
	}
}

// escape escapes path for targets and prerequisites.
func escape(path string) string {
	path = strings.ReplaceAll(path, "$", "$$")
	return strings.ReplaceAll(path, " ", `\ `)
}

// commandLine returns a recipe line of args.
// Automatic variables are kept as is, and other args are quoted for
// shell with "$" escaped for make.
func commandLine(args []string) string {
	var sb strings.Builder
	for i, arg := range args {
		if i > 0 {
			sb.WriteByte(' ')
		}
		switch arg {
		case autoTarget, autoPrerequisite:
			sb.WriteString(arg)
		default:
			sb.WriteString(strings.ReplaceAll(shutil.Quote(arg), "$", "$$"))
		}
	}
	return sb.String()
}
