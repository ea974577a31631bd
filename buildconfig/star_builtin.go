// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package buildconfig

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"go.chromium.org/infra/build/mkgen/build"
	"go.chromium.org/infra/build/mkgen/execute/localexec"
	"go.chromium.org/infra/build/mkgen/linkobj"
	"go.chromium.org/infra/build/mkgen/toolsupport/shutil"
)

func builtins() starlark.StringDict {
	runtimeModule := &starlarkstruct.Module{
		Name: "runtime",
		Members: starlark.StringDict{
			"num_cpu": starlark.MakeInt(localexec.NumCPU()),
			"os":      starlark.String(runtime.GOOS),
			"arch":    starlark.String(runtime.GOARCH),
		},
	}
	runtimeModule.Freeze()

	return starlark.StringDict{
		"runtime":               runtimeModule,
		"struct":                starlark.NewBuiltin("struct", starlarkstruct.Make),
		"source_code":           starlark.NewBuiltin("source_code", starSourceCode),
		"main_code":             starlark.NewBuiltin("main_code", starMainCode),
		"glob":                  starlark.NewBuiltin("glob", starGlob),
		"compiler":              starlark.NewBuiltin("compiler", starCompiler),
		"compile_option":        starlark.NewBuiltin("compile_option", starCompileOption),
		"include_path":          starlark.NewBuiltin("include_path", starIncludePath),
		"library":               starlark.NewBuiltin("library", starLibrary),
		"library_path":          starlark.NewBuiltin("library_path", starLibraryPath),
		"object_dir":            starlark.NewBuiltin("object_dir", starObjectDir),
		"object_suffix":         starlark.NewBuiltin("object_suffix", starObjectSuffix),
		"link_object_mode":      starlark.NewBuiltin("link_object_mode", starLinkObjectMode),
		"link_object_log":       starlark.NewBuiltin("link_object_log", starLinkObjectLog),
		"transitive_libs":       starlark.NewBuiltin("transitive_libs", starTransitiveLibs),
		"save_dependence_graph": starlark.NewBuiltin("save_dependence_graph", starSaveDependenceGraph),
	}
}

func threadConfig(thread *starlark.Thread) (*Config, error) {
	cfg, ok := thread.Local(configKey).(*Config)
	if !ok {
		return nil, errors.New("no project config in thread")
	}
	return cfg, nil
}

// unpackList unpacks a string or an iterable of strings.
// None is unpacked as nil.
func unpackList(v starlark.Value) ([]string, error) {
	if v == nil || v == starlark.None {
		return nil, nil
	}
	if s, ok := v.(starlark.String); ok {
		return []string{string(s)}, nil
	}
	iterator := starlark.Iterate(v)
	if iterator == nil {
		return nil, fmt.Errorf("got %v; want string or iterable", v.Type())
	}
	defer iterator.Done()
	list := []string{}
	var elem starlark.Value
	for iterator.Next(&elem) {
		s, ok := starlark.AsString(elem)
		if !ok {
			return nil, fmt.Errorf("got %v in %v; want string", elem.Type(), v.Type())
		}
		list = append(list, s)
	}
	return list, nil
}

func packList(list []string) starlark.Value {
	values := make([]starlark.Value, 0, len(list))
	for _, elem := range list {
		values = append(values, starlark.String(elem))
	}
	return starlark.NewList(values)
}

// Starlark function `source_code(paths)` to add translation units.
func starSourceCode(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	cfg, err := threadConfig(thread)
	if err != nil {
		return starlark.None, err
	}
	var v starlark.Value
	err = starlark.UnpackArgs(fn.Name(), args, kwargs, "paths", &v)
	if err != nil {
		return starlark.None, err
	}
	paths, err := unpackList(v)
	if err != nil {
		return starlark.None, fmt.Errorf("%s: %w", fn.Name(), err)
	}
	for _, p := range paths {
		cfg.Project.Sources = append(cfg.Project.Sources, cfg.abs(p))
	}
	return starlark.None, nil
}

// Starlark function `main_code(program, source)` to add an entry point.
func starMainCode(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	cfg, err := threadConfig(thread)
	if err != nil {
		return starlark.None, err
	}
	var program, source string
	err = starlark.UnpackArgs(fn.Name(), args, kwargs, "program", &program, "source", &source)
	if err != nil {
		return starlark.None, err
	}
	if program == "" || source == "" {
		return starlark.None, fmt.Errorf("%s: empty program or source", fn.Name())
	}
	cfg.Project.Entries = append(cfg.Project.Entries, build.Entry{
		Source:  cfg.abs(source),
		Program: cfg.abs(program),
	})
	return starlark.None, nil
}

// Starlark function `glob(include, exclude=None)` to return files under
// the project root matching include.
func starGlob(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	cfg, err := threadConfig(thread)
	if err != nil {
		return starlark.None, err
	}
	var include, exclude starlark.Value
	err = starlark.UnpackArgs(fn.Name(), args, kwargs, "include", &include, "exclude?", &exclude)
	if err != nil {
		return starlark.None, err
	}
	var g globSpec
	g.includes, err = unpackList(include)
	if err != nil {
		return starlark.None, fmt.Errorf("%s: include: %w", fn.Name(), err)
	}
	g.excludes, err = unpackList(exclude)
	if err != nil {
		return starlark.None, fmt.Errorf("%s: exclude: %w", fn.Name(), err)
	}
	files, err := g.Match(cfg.Project.Root)
	if err != nil {
		return starlark.None, fmt.Errorf("%s: %w", fn.Name(), err)
	}
	log.Debugf("glob %q exclude=%q => %d files", g.includes, g.excludes, len(files))
	return packList(files), nil
}

// Starlark function `compiler(name)` to set compiler driver.
func starCompiler(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	cfg, err := threadConfig(thread)
	if err != nil {
		return starlark.None, err
	}
	var name string
	err = starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name)
	if err != nil {
		return starlark.None, err
	}
	if name == "" {
		return starlark.None, fmt.Errorf("%s: empty name", fn.Name())
	}
	cfg.Project.Toolchain.Compiler = name
	return starlark.None, nil
}

// Starlark function `compile_option(options)` to add compile flags.
// A string is split as a shell command line.
func starCompileOption(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	cfg, err := threadConfig(thread)
	if err != nil {
		return starlark.None, err
	}
	var v starlark.Value
	err = starlark.UnpackArgs(fn.Name(), args, kwargs, "options", &v)
	if err != nil {
		return starlark.None, err
	}
	var flags []string
	if s, ok := v.(starlark.String); ok {
		flags, err = shutil.Split(string(s))
	} else {
		flags, err = unpackList(v)
	}
	if err != nil {
		return starlark.None, fmt.Errorf("%s: %w", fn.Name(), err)
	}
	cfg.Project.Toolchain.AddCompileFlags(flags...)
	return starlark.None, nil
}

// unpackDirSetting unpacks args of `fn(dir, target_header=None)`.
func unpackDirSetting(fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (string, []string, error) {
	var dir string
	var targetHeader starlark.Value
	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "dir", &dir, "target_header?", &targetHeader)
	if err != nil {
		return "", nil, err
	}
	headers, err := unpackList(targetHeader)
	if err != nil {
		return "", nil, fmt.Errorf("%s: target_header: %w", fn.Name(), err)
	}
	return dir, headers, nil
}

// Starlark function `include_path(dir, target_header=None)` to add
// include directory for units that include target_header.
func starIncludePath(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	cfg, err := threadConfig(thread)
	if err != nil {
		return starlark.None, err
	}
	dir, headers, err := unpackDirSetting(fn, args, kwargs)
	if err != nil {
		return starlark.None, err
	}
	cfg.Project.Toolchain.AddIncludePath(cfg.abs(dir), headers)
	return starlark.None, nil
}

// Starlark function `library_path(dir, target_header=None)` to add
// library directory for programs that include target_header.
func starLibraryPath(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	cfg, err := threadConfig(thread)
	if err != nil {
		return starlark.None, err
	}
	dir, headers, err := unpackDirSetting(fn, args, kwargs)
	if err != nil {
		return starlark.None, err
	}
	cfg.Project.Toolchain.AddLibraryPath(cfg.abs(dir), headers)
	return starlark.None, nil
}

// Starlark function `library(names, target_header=None)` to link
// libraries to programs that include target_header.
func starLibrary(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	cfg, err := threadConfig(thread)
	if err != nil {
		return starlark.None, err
	}
	var v, targetHeader starlark.Value
	err = starlark.UnpackArgs(fn.Name(), args, kwargs, "names", &v, "target_header?", &targetHeader)
	if err != nil {
		return starlark.None, err
	}
	names, err := unpackList(v)
	if err != nil {
		return starlark.None, fmt.Errorf("%s: names: %w", fn.Name(), err)
	}
	headers, err := unpackList(targetHeader)
	if err != nil {
		return starlark.None, fmt.Errorf("%s: target_header: %w", fn.Name(), err)
	}
	cfg.Project.Toolchain.AddLibrary(names, headers)
	return starlark.None, nil
}

// Starlark function `object_dir(dir, relative=False)` to set directory
// of object files. With relative, dir is a subdirectory of each source
// directory. Otherwise dir is a directory under the project root that
// mirrors the source tree.
func starObjectDir(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	cfg, err := threadConfig(thread)
	if err != nil {
		return starlark.None, err
	}
	var dir string
	var relative bool
	err = starlark.UnpackArgs(fn.Name(), args, kwargs, "dir", &dir, "relative?", &relative)
	if err != nil {
		return starlark.None, err
	}
	if relative {
		cfg.Project.ObjectDir = build.SameDir(dir)
	} else {
		cfg.Project.ObjectDir = build.MirrorDir(dir)
	}
	return starlark.None, nil
}

// Starlark function `object_suffix(suffix)` to set suffix of object files.
func starObjectSuffix(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	cfg, err := threadConfig(thread)
	if err != nil {
		return starlark.None, err
	}
	var suffix string
	err = starlark.UnpackArgs(fn.Name(), args, kwargs, "suffix", &suffix)
	if err != nil {
		return starlark.None, err
	}
	suffix = strings.TrimPrefix(suffix, ".")
	if suffix == "" {
		return starlark.None, fmt.Errorf("%s: empty suffix", fn.Name())
	}
	cfg.Project.ObjectSuffix = suffix
	return starlark.None, nil
}

// Starlark function `link_object_mode(mode)` to set mode to decide link
// objects.
func starLinkObjectMode(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	cfg, err := threadConfig(thread)
	if err != nil {
		return starlark.None, err
	}
	var name string
	err = starlark.UnpackArgs(fn.Name(), args, kwargs, "mode", &name)
	if err != nil {
		return starlark.None, err
	}
	mode, err := linkobj.ParseMode(name)
	if err != nil {
		return starlark.None, fmt.Errorf("%s: %w", fn.Name(), err)
	}
	cfg.Mode = mode
	return starlark.None, nil
}

// Starlark function `link_object_log(path)` to set trial log file.
func starLinkObjectLog(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	cfg, err := threadConfig(thread)
	if err != nil {
		return starlark.None, err
	}
	var path string
	err = starlark.UnpackArgs(fn.Name(), args, kwargs, "path", &path)
	if err != nil {
		return starlark.None, err
	}
	cfg.LogFile = cfg.abs(path)
	return starlark.None, nil
}

// Starlark function `transitive_libs(enabled=True)` to resolve libraries
// from transitively included library headers.
func starTransitiveLibs(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	cfg, err := threadConfig(thread)
	if err != nil {
		return starlark.None, err
	}
	enabled := true
	err = starlark.UnpackArgs(fn.Name(), args, kwargs, "enabled?", &enabled)
	if err != nil {
		return starlark.None, err
	}
	cfg.Project.TransitiveLibs = enabled
	return starlark.None, nil
}

// Starlark function `save_dependence_graph(path)` to save include graph.
func starSaveDependenceGraph(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	cfg, err := threadConfig(thread)
	if err != nil {
		return starlark.None, err
	}
	var path string
	err = starlark.UnpackArgs(fn.Name(), args, kwargs, "path", &path)
	if err != nil {
		return starlark.None, err
	}
	cfg.GraphFile = cfg.abs(path)
	return starlark.None, nil
}
