// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package toolchain builds compile and link command lines for a gcc
// compatible compiler driver.
package toolchain

import (
	"slices"

	"go.chromium.org/infra/build/mkgen/toolsupport/shutil"
)

// Flags are option flags of a compiler driver.
type Flags struct {
	// Compile is a flag to compile without linking.
	Compile string
	// Output is a flag to specify output filename.
	Output string
	// IncludePath is a flag prefix to add include directory.
	IncludePath string
	// Library is a flag prefix to link a library.
	Library string
	// LibraryPath is a flag prefix to add library directory.
	LibraryPath string
}

// GCCFlags are flags of gcc and clang.
var GCCFlags = Flags{
	Compile:     "-c",
	Output:      "-o",
	IncludePath: "-I",
	Library:     "-l",
	LibraryPath: "-L",
}

// setting is a list of values applied to commands whose translation unit
// includes any of headers. nil headers applies to every command.
type setting struct {
	headers []string
	values  []string
}

func (s setting) match(libHeaders []string) bool {
	if s.headers == nil {
		return true
	}
	for _, h := range s.headers {
		if slices.Contains(libHeaders, h) {
			return true
		}
	}
	return false
}

// Options are toolchain options of a project.
type Options struct {
	Compiler     string
	Flags        Flags
	CompileFlags []string

	includePaths []setting
	libraries    []setting
	libraryPaths []setting
}

// New returns options for compiler with gcc flags.
func New(compiler string) *Options {
	if compiler == "" {
		compiler = "g++"
	}
	return &Options{
		Compiler: compiler,
		Flags:    GCCFlags,
	}
}

// AddCompileFlags adds flags to every compile command.
func (o *Options) AddCompileFlags(flags ...string) {
	o.CompileFlags = append(o.CompileFlags, flags...)
}

// AddIncludePath adds dir as include directory for units that include
// any of headers. nil headers applies to every unit.
func (o *Options) AddIncludePath(dir string, headers []string) {
	o.includePaths = append(o.includePaths, setting{headers: headers, values: []string{dir}})
}

// AddLibrary adds libraries to link to programs that include any of
// headers. nil headers applies to every program.
func (o *Options) AddLibrary(names, headers []string) {
	o.libraries = append(o.libraries, setting{headers: headers, values: slices.Clone(names)})
}

// AddLibraryPath adds dir as library directory for programs that include
// any of headers. nil headers applies to every program.
func (o *Options) AddLibraryPath(dir string, headers []string) {
	o.libraryPaths = append(o.libraryPaths, setting{headers: headers, values: []string{dir}})
}

// collect returns deduplicated values of settings matching libHeaders.
// Header specific settings come first in the order added, then settings
// applied to every command.
func collect(settings []setting, libHeaders []string) []string {
	var values []string
	seen := make(map[string]bool)
	add := func(s setting) {
		for _, v := range s.values {
			if seen[v] {
				continue
			}
			seen[v] = true
			values = append(values, v)
		}
	}
	for _, s := range settings {
		if s.headers != nil && s.match(libHeaders) {
			add(s)
		}
	}
	for _, s := range settings {
		if s.headers == nil {
			add(s)
		}
	}
	return values
}

// IncludePaths returns include directories for libHeaders.
func (o *Options) IncludePaths(libHeaders []string) []string {
	return collect(o.includePaths, libHeaders)
}

// Libraries returns libraries to link for libHeaders.
func (o *Options) Libraries(libHeaders []string) []string {
	return collect(o.libraries, libHeaders)
}

// LibraryPaths returns library directories for libHeaders.
func (o *Options) LibraryPaths(libHeaders []string) []string {
	return collect(o.libraryPaths, libHeaders)
}

// CompileArgs returns command line args to compile source into object.
// libHeaders are library headers the source includes.
func (o *Options) CompileArgs(source, object string, libHeaders []string) []string {
	args := []string{o.Compiler, o.Flags.Output, object, source, o.Flags.Compile}
	args = append(args, o.CompileFlags...)
	for _, dir := range o.IncludePaths(libHeaders) {
		args = append(args, o.Flags.IncludePath+dir)
	}
	return args
}

// CompileCommand returns the compile command line of CompileArgs.
func (o *Options) CompileCommand(source, object string, libHeaders []string) string {
	return shutil.Join(o.CompileArgs(source, object, libHeaders))
}

// LinkArgs returns command line args to link objects into program.
// libHeaders are library headers the linked units include.
func (o *Options) LinkArgs(program string, objects, libHeaders []string) []string {
	args := []string{o.Compiler, o.Flags.Output, program}
	args = append(args, objects...)
	for _, dir := range o.LibraryPaths(libHeaders) {
		args = append(args, o.Flags.LibraryPath+dir)
	}
	for _, lib := range o.Libraries(libHeaders) {
		args = append(args, o.Flags.Library+lib)
	}
	return args
}

// LinkCommand returns the link command line of LinkArgs.
func (o *Options) LinkCommand(program string, objects, libHeaders []string) string {
	return shutil.Join(o.LinkArgs(program, objects, libHeaders))
}
