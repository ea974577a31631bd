// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package localexec implements local command execution.
package localexec

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/cpuid/v2"

	"go.chromium.org/infra/build/mkgen/execute"
	"go.chromium.org/infra/build/mkgen/sync/semaphore"
)

// LocalExec implements execute.Executor interface that runs commands locally.
type LocalExec struct{}

// Run runs cmd with LocalExec.
func Run(ctx context.Context, cmd *execute.Cmd) error {
	return LocalExec{}.Run(ctx, cmd)
}

// Run runs a cmd.
// It returns execute.ExitError for nonzero exit and execute.TimeoutError
// when the cmd is killed by its timeout. Any other error means the cmd
// could not run.
func (LocalExec) Run(ctx context.Context, cmd *execute.Cmd) error {
	res, err := run(ctx, cmd)
	if err != nil {
		return err
	}
	cmd.SetResult(res)
	log.Debugf("%s exit=%d stdout=%d stderr=%d %s", cmd.ID, res.ExitCode, len(cmd.Stdout()), len(cmd.Stderr()), res.End.Sub(res.Start))
	if res.TimedOut {
		return execute.TimeoutError{Timeout: cmd.Timeout}
	}
	if res.ExitCode != 0 {
		return execute.ExitError{ExitCode: res.ExitCode}
	}
	return nil
}

// NumCPU returns number of logical CPUs.
func NumCPU() int {
	return max(cpuid.CPU.LogicalCores, runtime.NumCPU())
}

var forkSema = semaphore.New("fork", NumCPU())

// ForkSemaphore returns the semaphore that limits concurrent process
// starts.
func ForkSemaphore() *semaphore.Semaphore {
	return forkSema
}

func run(ctx context.Context, cmd *execute.Cmd) (execute.Result, error) {
	if len(cmd.Args) == 0 {
		return execute.Result{}, fmt.Errorf("no arguments in the command. ID: %s", cmd.ID)
	}
	cctx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}
	c := exec.CommandContext(cctx, cmd.Args[0], cmd.Args[1:]...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir
	c.Stdout = cmd.StdoutWriter()
	c.Stderr = cmd.StderrWriter()
	c.WaitDelay = 5 * time.Second
	setProcessGroup(c)

	s := time.Now()
	err := forkSema.Do(ctx, func(ctx context.Context) error {
		return c.Start()
	})
	if err != nil {
		return execute.Result{}, fmt.Errorf("failed to start %q: %w", cmd.Args[0], err)
	}
	err = c.Wait()
	e := time.Now()
	if ctx.Err() != nil {
		return execute.Result{}, ctx.Err()
	}
	result := execute.Result{
		ExitCode: exitCode(err),
		TimedOut: cctx.Err() != nil,
		Start:    s,
		End:      e,
		Rusage:   rusage(c),
	}
	if result.TimedOut && result.ExitCode == 0 {
		result.ExitCode = -1
	}
	log.Debugf("%s %s err=%v", cmd.ID, cmd.Desc, err)
	return result, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var eerr *exec.ExitError
	if !errors.As(err, &eerr) {
		return 1
	}
	if w, ok := eerr.ProcessState.Sys().(syscall.WaitStatus); ok {
		if w.Signaled() {
			return 128 + int(w.Signal())
		}
		return w.ExitStatus()
	}
	return 1
}
