// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"go.chromium.org/infra/build/mkgen/execute"
	"go.chromium.org/infra/build/mkgen/execute/localexec"
	"go.chromium.org/infra/build/mkgen/linkobj"
)

// TrialLinker runs trial links of a project.
// It implements linkobj.Linker.
type TrialLinker struct {
	Project *Project
	Units   *Units

	// OutDir is a directory to write trial executables.
	OutDir string

	// Timeout limits each trial link if positive.
	Timeout time.Duration

	// Log records trials if not nil.
	Log *TrialLog

	// Executor runs link commands. nil uses localexec.
	Executor execute.Executor
}

var _ linkobj.Linker = (*TrialLinker)(nil)

// TryLink links entry with units into a temporary executable.
// Nonzero exit and timeout are failed trials, not errors.
func (l *TrialLinker) TryLink(ctx context.Context, entry string, units []string) (linkobj.Trial, error) {
	linkUnits, err := l.Units.LinkUnits(entry, units)
	if err != nil {
		return linkobj.Trial{}, err
	}
	var objects []string
	for _, u := range linkUnits {
		objects = append(objects, u.Object)
	}
	libs := ResolveLibraries(linkUnits, l.Project.TransitiveLibs)

	id := uuid.New().String()
	out := filepath.Join(l.OutDir, "trial-"+id)
	cmd := &execute.Cmd{
		ID:      id,
		Desc:    "LINK " + filepath.Base(entry),
		Args:    l.Project.Toolchain.LinkArgs(out, objects, libs),
		Dir:     l.Project.Root,
		Timeout: l.Timeout,
	}
	executor := l.Executor
	if executor == nil {
		executor = localexec.LocalExec{}
	}
	started := time.Now()
	err = executor.Run(ctx, cmd)
	defer os.Remove(out)

	var trial linkobj.Trial
	var eerr execute.ExitError
	var terr execute.TimeoutError
	fatal := false
	switch {
	case err == nil:
		trial.OK = true
	case errors.As(err, &eerr):
	case errors.As(err, &terr):
		log.Warnf("%s: trial link %s %v", entry, id, err)
	default:
		fatal = true
	}
	trial.Output = string(cmd.Output())
	if l.Log != nil {
		lerr := l.Log.Write(TrialRecord{
			ID:       id,
			Entry:    entry,
			Units:    len(units),
			Command:  cmd.Command(),
			Result:   cmd.Result(),
			Err:      err,
			Output:   cmd.Output(),
			Duration: time.Since(started),
		})
		if lerr != nil {
			log.Warnf("failed to write trial log: %v", lerr)
		}
	}
	if fatal {
		return linkobj.Trial{}, err
	}
	return trial, nil
}
