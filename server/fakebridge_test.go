// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package server

import (
	"context"
	"fmt"
	"sync"

	"go.scrcpygo.dev/mirrorclient/bridge"
)

// fakeBridge is an in-memory recording double for bridge.Bridge: it lets
// scenario tests script per-port reverse/forward outcomes and control
// exactly when the launched agent process "exits".
type fakeBridge struct {
	mu sync.Mutex

	reverseFailPort map[uint16]bool
	forwardFailPort map[uint16]bool

	pushed        []string
	reverseCalls  []uint16
	forwardCalls  []uint16
	reverseRemove int
	forwardRemove int

	proc *fakeProcess
}

func (f *fakeBridge) Push(ctx context.Context, serial, localPath, devicePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, localPath)
	return nil
}

func (f *fakeBridge) Reverse(ctx context.Context, serial, socketName string, localPort uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reverseCalls = append(f.reverseCalls, localPort)
	if f.reverseFailPort[localPort] {
		return fmt.Errorf("reverse failed at port %d", localPort)
	}
	return nil
}

func (f *fakeBridge) ReverseRemove(ctx context.Context, serial, socketName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reverseRemove++
	return nil
}

func (f *fakeBridge) Forward(ctx context.Context, serial string, localPort uint16, socketName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwardCalls = append(f.forwardCalls, localPort)
	if f.forwardFailPort[localPort] {
		return fmt.Errorf("forward failed at port %d", localPort)
	}
	return nil
}

func (f *fakeBridge) ForwardRemove(ctx context.Context, serial string, localPort uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwardRemove++
	return nil
}

func (f *fakeBridge) ExecAgent(ctx context.Context, serial string, argv []string) (bridge.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.proc = &fakeProcess{exit: make(chan struct{})}
	return f.proc, nil
}

func (f *fakeBridge) Devices(ctx context.Context) ([]bridge.DeviceDescriptor, error) { return nil, nil }
func (f *fakeBridge) Serial(ctx context.Context) (string, error)                     { return "", nil }

// fakeProcess is a bridge.Process double whose exit is controlled
// explicitly by tests, standing in for a real device-side agent.
type fakeProcess struct {
	mu   sync.Mutex
	exit chan struct{}
}

func (p *fakeProcess) Wait(ctx context.Context) error {
	select {
	case <-p.exit:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *fakeProcess) Terminate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.exit:
	default:
		close(p.exit)
	}
	return nil
}

func (p *fakeProcess) simulateExit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.exit:
	default:
		close(p.exit)
	}
}
