// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/infra/build/mkgen/execute"
	"go.chromium.org/infra/build/mkgen/execute/localexec"
)

// CompileError is an error of compile commands.
type CompileError struct {
	Source string
	Output []byte
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s: %v\n%s", e.Source, e.Err, e.Output)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// needsCompile reports whether the object of u is missing or older than
// its source or any of its headers.
func needsCompile(u *Unit) bool {
	oi, err := os.Stat(u.Object)
	if err != nil {
		return true
	}
	for _, f := range append([]string{u.Source}, u.Headers...) {
		fi, err := os.Stat(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil || fi.ModTime().After(oi.ModTime()) {
			return true
		}
	}
	return false
}

// Compile compiles units whose objects are missing or stale.
// It runs up to jobs commands concurrently. nil executor uses localexec.
// It returns the number of compiled units.
func (p *Project) Compile(ctx context.Context, u *Units, executor execute.Executor, jobs int) (int, error) {
	if executor == nil {
		executor = localexec.LocalExec{}
	}
	var units []*Unit
	for _, s := range append(u.EntrySources(), u.Sources...) {
		unit := u.units[s]
		if needsCompile(unit) {
			units = append(units, unit)
		}
	}
	if len(units) == 0 {
		log.Infof("all objects are up to date")
		return 0, nil
	}
	log.Infof("compile %d units", len(units))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(jobs, 1))
	for _, unit := range units {
		eg.Go(func() error {
			err := os.MkdirAll(filepath.Dir(unit.Object), 0755)
			if err != nil {
				return err
			}
			cmd := &execute.Cmd{
				ID:   uuid.New().String(),
				Desc: "CXX " + filepath.Base(unit.Object),
				Args: p.Toolchain.CompileArgs(unit.Source, unit.Object, unit.TransitiveLibs),
				Dir:  p.Root,
			}
			started := time.Now()
			err = executor.Run(gctx, cmd)
			if err != nil {
				return &CompileError{Source: unit.Source, Output: cmd.Output(), Err: err}
			}
			log.Infof("%s %s", cmd.Desc, time.Since(started).Round(time.Millisecond))
			if out := cmd.Output(); len(out) > 0 {
				log.Warnf("%s:\n%s", cmd.Desc, out)
			}
			return nil
		})
	}
	err := eg.Wait()
	if err != nil {
		return 0, err
	}
	return len(units), nil
}
