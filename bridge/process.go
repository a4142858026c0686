// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package bridge

import (
	"context"
	"os/exec"
	"sync"

	"go.scrcpygo.dev/mirrorclient/internal/bridgeproc"
)

// cmdProcess is the default Process implementation: a subprocess managed
// in its own process group, so Terminate reaches everything the agent
// spawned in turn.
type cmdProcess struct {
	cmd *exec.Cmd

	mu       sync.Mutex
	exited   chan struct{}
	waitErr  error
	waitOnce sync.Once
}

func (p *cmdProcess) start() error {
	return bridgeproc.SetPgidAndStart(p.cmd)
}

// Wait blocks until the process exits or ctx is canceled. Multiple callers
// (a watchdog and, in error-unwind paths, the lifecycle thread) may call
// Wait concurrently; the underlying cmd.Wait runs exactly once.
func (p *cmdProcess) Wait(ctx context.Context) error {
	p.waitOnce.Do(func() {
		go func() {
			p.waitErr = p.cmd.Wait()
			close(p.exited)
		}()
	})

	select {
	case <-p.exited:
		return p.waitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Terminate sends SIGTERM to the process group, escalating to SIGKILL
// after bridgeproc.GracePeriod, then waits for exit to be observed.
func (p *cmdProcess) Terminate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd.Process == nil {
		return nil
	}
	bridgeproc.Terminate(p.cmd, p.exited)
	return p.Wait(ctx)
}
