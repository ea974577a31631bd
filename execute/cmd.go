// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package execute runs commands.
package execute

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.chromium.org/infra/build/mkgen/toolsupport/shutil"
)

// Executor is an interface to run the cmd.
type Executor interface {
	Run(ctx context.Context, cmd *Cmd) error
}

// Cmd includes all the information required to run a toolchain command.
type Cmd struct {
	// ID is used as a unique identifier for this cmd in logs.
	ID string

	// Desc is a short, human-readable description of the cmd.
	// Example: "LINK main"
	Desc string

	// Args holds command line arguments.
	Args []string

	// Env specifies the environment of the process.
	// nil means the current environment.
	Env []string

	// Dir specifies the working directory of the cmd.
	Dir string

	// Timeout limits the execution time of the cmd if positive.
	Timeout time.Duration

	mu                         sync.Mutex
	stdoutBuffer, stderrBuffer bytes.Buffer
	outputBuffer               bytes.Buffer

	result Result
}

// Result is a result of the cmd execution.
type Result struct {
	ExitCode int
	TimedOut bool
	Start    time.Time
	End      time.Time
	Rusage   Rusage
}

// Rusage is resource usage of the cmd.
type Rusage struct {
	MaxRSS int64
	Utime  time.Duration
	Stime  time.Duration
}

// String returns an ID of the cmd.
func (c *Cmd) String() string {
	return c.ID
}

// Command returns a command line string.
func (c *Cmd) Command() string {
	return shutil.Join(c.Args)
}

type cmdWriter struct {
	c   *Cmd
	buf *bytes.Buffer
}

func (w cmdWriter) Write(p []byte) (int, error) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	w.buf.Write(p)
	w.c.outputBuffer.Write(p)
	return len(p), nil
}

// StdoutWriter returns a writer for stdout.
// Writes are also recorded in Output.
func (c *Cmd) StdoutWriter() io.Writer {
	return cmdWriter{c: c, buf: &c.stdoutBuffer}
}

// StderrWriter returns a writer for stderr.
// Writes are also recorded in Output.
func (c *Cmd) StderrWriter() io.Writer {
	return cmdWriter{c: c, buf: &c.stderrBuffer}
}

// Stdout returns stdout output of the cmd.
func (c *Cmd) Stdout() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.stdoutBuffer.Bytes())
}

// Stderr returns stderr output of the cmd.
func (c *Cmd) Stderr() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.stderrBuffer.Bytes())
}

// Output returns stdout and stderr of the cmd in the order written.
func (c *Cmd) Output() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.outputBuffer.Bytes())
}

// SetResult sets a result of the cmd.
func (c *Cmd) SetResult(result Result) {
	c.result = result
}

// Result returns a result of the cmd.
func (c *Cmd) Result() Result {
	return c.result
}

// ExitError is an error of cmd exit.
type ExitError struct {
	ExitCode int
}

func (e ExitError) Error() string {
	return fmt.Sprintf("exit=%d", e.ExitCode)
}

// TimeoutError is an error of cmd that didn't finish in time.
type TimeoutError struct {
	Timeout time.Duration
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s", e.Timeout)
}
