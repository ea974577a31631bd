// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package semaphore provides a named semaphore with usage counters.
package semaphore

import (
	"context"
	"fmt"
	"sync/atomic"

	xsemaphore "golang.org/x/sync/semaphore"
)

// Semaphore is a named counting semaphore.
type Semaphore struct {
	name string
	n    int
	w    *xsemaphore.Weighted

	servs atomic.Int64
	waits atomic.Int64
	reqs  atomic.Int64
}

// New creates a new semaphore with name and capacity n.
// n less than 1 is treated as 1.
func New(name string, n int) *Semaphore {
	n = max(n, 1)
	return &Semaphore{
		name: name,
		n:    n,
		w:    xsemaphore.NewWeighted(int64(n)),
	}
}

// WaitAcquire acquires a semaphore.
// It returns func to release it.
func (s *Semaphore) WaitAcquire(ctx context.Context) (func(), error) {
	s.waits.Add(1)
	err := s.w.Acquire(ctx, 1)
	s.waits.Add(-1)
	if err != nil {
		return func() {}, fmt.Errorf("semaphore %s: %w", s.name, err)
	}
	s.reqs.Add(1)
	s.servs.Add(1)
	var once atomic.Bool
	return func() {
		if !once.CompareAndSwap(false, true) {
			return
		}
		s.servs.Add(-1)
		s.w.Release(1)
	}, nil
}

// Do runs f under semaphore.
func (s *Semaphore) Do(ctx context.Context, f func(ctx context.Context) error) error {
	done, err := s.WaitAcquire(ctx)
	if err != nil {
		return err
	}
	defer done()
	return f(ctx)
}

// Name returns name of the semaphore.
func (s *Semaphore) Name() string {
	return s.name
}

// Capacity returns capacity of the semaphore.
func (s *Semaphore) Capacity() int {
	if s == nil {
		return 0
	}
	return s.n
}

// NumServs returns number of currently served.
func (s *Semaphore) NumServs() int {
	return int(s.servs.Load())
}

// NumWaits returns number of waiters.
func (s *Semaphore) NumWaits() int {
	return int(s.waits.Load())
}

// NumRequests returns total number of served requests.
func (s *Semaphore) NumRequests() int {
	return int(s.reqs.Load())
}

// String returns usage of the semaphore.
func (s *Semaphore) String() string {
	return fmt.Sprintf("%s: serv=%d/%d wait=%d reqs=%d", s.name, s.NumServs(), s.n, s.NumWaits(), s.NumRequests())
}
