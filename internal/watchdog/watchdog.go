// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package watchdog runs the single background waiter on the agent process:
// on exit it signals termination and force-closes the listening socket so
// any blocked Accept wakes up.
package watchdog

import (
	"context"

	"golang.org/x/sync/errgroup"

	"go.scrcpygo.dev/mirrorclient/bridge"
)

// Watchdog is a one-shot background waiter spawned immediately after the
// agent process is known to exist.
type Watchdog struct {
	group      *errgroup.Group
	terminated chan struct{}
}

// Spawn starts the watchdog goroutine. onTerminated is called once the
// agent process has exited, before anything else (to set Server's
// terminated flag and signal its condition variable). closeListener is
// Server's own close-authority-guarded closer: it performs its own
// compare-and-set, so the watchdog calls it unconditionally and relies on
// that guard to make the actual close a no-op if some other caller (a
// concurrent Connect or Stop) already won the race.
func Spawn(ctx context.Context, proc bridge.Process, onTerminated func(), closeListener func()) *Watchdog {
	w := &Watchdog{
		group:      &errgroup.Group{},
		terminated: make(chan struct{}),
	}
	w.group.Go(func() error {
		defer close(w.terminated)
		proc.Wait(ctx)
		if onTerminated != nil {
			onTerminated()
		}
		if closeListener != nil {
			closeListener()
		}
		return nil
	})
	return w
}

// Wait blocks until the watchdog goroutine has observed process exit and
// run its close hook.
func (w *Watchdog) Wait() {
	w.group.Wait()
}

// Terminated returns a channel closed once the watchdog has observed
// process exit.
func (w *Watchdog) Terminated() <-chan struct{} {
	return w.terminated
}
