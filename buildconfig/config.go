// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package buildconfig loads a project description of mkgen.
//
// A project description is a Starlark file, usually named mkgen.star,
// that calls builtins such as source_code and main_code to describe
// the project.
package buildconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"go.starlark.net/starlark"

	"go.chromium.org/infra/build/mkgen/build"
	"go.chromium.org/infra/build/mkgen/linkobj"
	"go.chromium.org/infra/build/mkgen/toolchain"
)

// DefaultFilename is the default filename of a project description.
const DefaultFilename = "mkgen.star"

// Config is a project config loaded from a project description.
type Config struct {
	Project *build.Project

	// Mode is a mode to decide link objects.
	Mode linkobj.Mode

	// LogFile is a path of the trial log. Empty means no log.
	LogFile string

	// GraphFile is a path to save the include graph. Empty means
	// the graph is not saved.
	GraphFile string
}

// ConfigError is an error in a project description.
type ConfigError struct {
	Filename string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Filename, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Backtrace returns Starlark call stack of the error if any.
func (e *ConfigError) Backtrace() string {
	var eerr *starlark.EvalError
	if errors.As(e.Err, &eerr) {
		return eerr.Backtrace()
	}
	return ""
}

const configKey = "mkgen.config"

// Load loads a project description in fname.
// The project root is the directory of fname.
func Load(ctx context.Context, fname string) (*Config, error) {
	abs, err := filepath.Abs(fname)
	if err != nil {
		return nil, err
	}
	buf, err := os.ReadFile(abs)
	if err != nil {
		return nil, &ConfigError{Filename: fname, Err: err}
	}
	return load(ctx, abs, buf)
}

func load(ctx context.Context, fname string, buf []byte) (*Config, error) {
	root := filepath.Dir(fname)
	cfg := &Config{
		Project: &build.Project{
			Root:      root,
			Toolchain: toolchain.New(""),
		},
		Mode: linkobj.ModeSearch,
	}
	loader := &fileLoader{
		ctx:         ctx,
		predeclared: builtins(),
		config:      cfg,
		loaded:      make(map[string]*loadEntry),
	}
	thread := loader.newThread(fname)
	_, err := starlark.ExecFile(thread, fname, buf, loader.predeclared)
	if err != nil {
		cerr := &ConfigError{Filename: fname, Err: err}
		if bt := cerr.Backtrace(); bt != "" {
			log.Warnf("stacktrace:\n%s", bt)
		}
		return nil, cerr
	}
	p := cfg.Project
	log.Infof("config %s: %d sources, %d main codes, mode=%s", fname, len(p.Sources), len(p.Entries), cfg.Mode)
	return cfg, nil
}

// abs returns path resolved against the project root.
func (cfg *Config) abs(path string) string {
	path = filepath.FromSlash(path)
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(cfg.Project.Root, path)
}

// loadEntry is a module loaded by fileLoader. nil globals with nil
// err means the module is being loaded.
type loadEntry struct {
	globals starlark.StringDict
	err     error
}

// fileLoader loads Starlark modules relative to the loading module.
type fileLoader struct {
	ctx         context.Context
	predeclared starlark.StringDict
	config      *Config
	loaded      map[string]*loadEntry
}

func (l *fileLoader) newThread(fname string) *starlark.Thread {
	t := &starlark.Thread{
		Name: "module " + fname,
		Print: func(thread *starlark.Thread, msg string) {
			log.Infof("thread:%s %s", thread.Name, msg)
		},
		Load: l.Load,
	}
	t.SetLocal("modulename", fname)
	t.SetLocal(configKey, l.config)
	return t
}

// Load loads a Starlark module.
// A relative module name is resolved from the directory of the loading
// module.
func (l *fileLoader) Load(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	curname := thread.Local("modulename").(string)
	fname := filepath.FromSlash(module)
	if !filepath.IsAbs(fname) {
		fname = filepath.Join(filepath.Dir(curname), fname)
	}
	log.Debugf("load %s from %s", fname, curname)
	e, ok := l.loaded[fname]
	if ok {
		if e == nil {
			return nil, fmt.Errorf("cycle in load graph: %s", fname)
		}
		return e.globals, e.err
	}
	l.loaded[fname] = nil
	buf, err := os.ReadFile(fname)
	if err != nil {
		err = fmt.Errorf("failed to load %s: %w", module, err)
		l.loaded[fname] = &loadEntry{err: err}
		return nil, err
	}
	globals, err := starlark.ExecFile(l.newThread(fname), fname, buf, l.predeclared)
	l.loaded[fname] = &loadEntry{globals: globals, err: err}
	return globals, err
}
