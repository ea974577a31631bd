// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package build

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.chromium.org/infra/build/mkgen/execute"
)

// TrialRecord is a record of a trial link.
type TrialRecord struct {
	ID    string
	Entry string

	// Units is the number of linked units except the entry.
	Units int

	Command  string
	Result   execute.Result
	Err      error
	Output   []byte
	Duration time.Duration
}

func (r TrialRecord) status() string {
	var eerr execute.ExitError
	switch {
	case r.Result.TimedOut:
		return "TIMEOUT"
	case r.Err == nil:
		return "SUCCESS"
	case errors.As(r.Err, &eerr):
		return "FAILED"
	}
	// the linker couldn't run.
	return "ERROR"
}

// String returns a log text of the record.
func (r TrialRecord) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s %s units=%d exit=%d %s\n", r.status(), r.ID, r.Entry, r.Units, r.Result.ExitCode, r.Duration.Round(time.Millisecond))
	if r.Err != nil {
		fmt.Fprintf(&sb, "err: %v\n", r.Err)
	}
	fmt.Fprintf(&sb, "%s\n", r.Command)
	if len(r.Output) > 0 {
		fmt.Fprintf(&sb, "output:\n%s", r.Output)
		if r.Output[len(r.Output)-1] != '\n' {
			fmt.Fprintf(&sb, "\n")
		}
	}
	return sb.String()
}

// TrialLog is an append-only log of trial links.
// It is safe for concurrent use.
type TrialLog struct {
	mu sync.Mutex
	w  io.Writer
	f  *os.File
}

// NewTrialLog returns a trial log writing to w.
func NewTrialLog(w io.Writer) *TrialLog {
	return &TrialLog{w: w}
}

// OpenTrialLog opens fname to append trial records.
func OpenTrialLog(fname string) (*TrialLog, error) {
	f, err := os.OpenFile(fname, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &TrialLog{w: f, f: f}, nil
}

// Write writes r to the log in a single write.
func (l *TrialLog) Write(r TrialRecord) error {
	if l == nil {
		return nil
	}
	s := r.String() + "\f\n"
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := io.WriteString(l.w, s)
	return err
}

// Close closes the log file if it was opened by OpenTrialLog.
func (l *TrialLog) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	return l.f.Close()
}
