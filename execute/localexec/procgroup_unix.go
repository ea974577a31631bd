// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build unix

package localexec

import (
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"go.chromium.org/infra/build/mkgen/execute"
)

// setProcessGroup runs c in a new process group, and kills the whole group
// when c's context is done.
func setProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return unix.Kill(-c.Process.Pid, unix.SIGKILL)
	}
}

func rusage(c *exec.Cmd) execute.Rusage {
	if c.ProcessState == nil {
		return execute.Rusage{}
	}
	if u, ok := c.ProcessState.SysUsage().(*syscall.Rusage); ok {
		return execute.Rusage{
			// 32bit arch may use int32 for Maxrss.
			MaxRSS: int64(u.Maxrss),
			Utime:  time.Duration(u.Utime.Nano()),
			Stime:  time.Duration(u.Stime.Nano()),
		}
	}
	return execute.Rusage{}
}
