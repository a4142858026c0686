// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package bridgeproc runs external commands in their own process group so
// that the whole group can be torn down together, and so that a canceled
// context can never leave an orphaned subprocess behind.
package bridgeproc

import (
	"context"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
)

// GracePeriod is how long Run waits after sending SIGTERM before escalating
// to SIGKILL.
const GracePeriod = 2 * time.Second

// Run starts cmd in its own process group, waits for it to finish, and
// terminates the whole group if ctx is canceled first: SIGTERM is sent
// immediately, followed by SIGKILL after GracePeriod if the group hasn't
// exited.
func Run(ctx context.Context, cmd *exec.Cmd) error {
	cmd.SysProcAttr = setpgid()
	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		pgid := -cmd.Process.Pid
		unix.Kill(pgid, unix.SIGTERM)

		select {
		case err := <-done:
			return err
		case <-time.After(GracePeriod):
			unix.Kill(pgid, unix.SIGKILL)
			<-done
			return ctx.Err()
		}
	}
}

// SetPgidAndStart sets cmd's process group and starts it without waiting,
// for callers (such as bridge.Process implementations) that manage their
// own Wait/Terminate lifecycle instead of using Run.
func SetPgidAndStart(cmd *exec.Cmd) error {
	cmd.SysProcAttr = setpgid()
	return cmd.Start()
}

// Terminate sends SIGTERM to cmd's process group, escalating to SIGKILL
// after GracePeriod if it hasn't exited. It does not wait past that point;
// callers that need the exit status should still select on cmd.Wait().
func Terminate(cmd *exec.Cmd, exited <-chan struct{}) {
	if cmd.Process == nil {
		return
	}
	pgid := -cmd.Process.Pid
	unix.Kill(pgid, unix.SIGTERM)

	select {
	case <-exited:
	case <-time.After(GracePeriod):
		unix.Kill(pgid, unix.SIGKILL)
	}
}
