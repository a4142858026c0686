// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package tunnel implements the transport strategy cascade: reverse tunnel
// first (unless forced off), falling back to forward, each with a
// port-range sweep.
package tunnel

import (
	"context"
	"net"

	"go.scrcpygo.dev/mirrorclient/bridge"
	"go.scrcpygo.dev/mirrorclient/errs"
	"go.scrcpygo.dev/mirrorclient/internal/logger"
	"go.scrcpygo.dev/mirrorclient/netio"
)

// LoopbackV4 is the address all non-direct connections bind and dial.
const LoopbackV4 = "127.0.0.1"

// PortRange is a closed interval of candidate local ports, First <= Last.
type PortRange struct {
	First uint16
	Last  uint16
}

// Mode is the established transport strategy: exactly one of ReverseMode,
// ForwardMode, or DirectMode. It replaces a pair of booleans
// (tunnel_forward, direct) with a tagged variant so impossible
// combinations can't be constructed.
type Mode interface {
	Disable(ctx context.Context, b bridge.Bridge, serial string) error
}

// ReverseMode: the agent connects into the bridge's reverse tunnel; the
// client accepts on a local listener.
type ReverseMode struct {
	LocalPort uint16
}

func (m ReverseMode) Disable(ctx context.Context, b bridge.Bridge, serial string) error {
	return b.ReverseRemove(ctx, serial, bridge.SocketName)
}

// ForwardMode: the client connects through the bridge's forward tunnel;
// the agent accepts on the device.
type ForwardMode struct {
	LocalPort uint16
}

func (m ForwardMode) Disable(ctx context.Context, b bridge.Bridge, serial string) error {
	return b.ForwardRemove(ctx, serial, m.LocalPort)
}

// DirectMode: the agent is reached directly by IP; no bridge involvement.
type DirectMode struct{}

func (DirectMode) Disable(ctx context.Context, b bridge.Bridge, serial string) error {
	return nil
}

// Establish runs the strategy cascade: reverse across the port range
// unless forceForward is set or the first reverse attempt itself fails
// (in which case reverse is unwinnable and forward is tried instead).
// Establish returns the bound net.Listener only for ReverseMode; callers
// store it as the server's listen socket.
func Establish(ctx context.Context, b bridge.Bridge, serial string, pr PortRange, forceForward bool) (Mode, net.Listener, error) {
	log := logger.FromContext(ctx)

	if !forceForward {
		mode, l, err := tryReverse(ctx, b, serial, pr)
		if err == nil {
			return mode, l, nil
		}
		log.Debugf("tunnel: reverse unavailable, falling back to forward: %v", err)
	}

	mode, err := tryForward(ctx, b, serial, pr)
	if err != nil {
		return nil, nil, &errs.TunnelError{Op: "establish", Err: err}
	}
	return mode, nil, nil
}

// tryReverse implements the reverse probe loop. If the bridge reverse
// command itself fails on the very first candidate port, the whole
// strategy is unwinnable and no port sweep is attempted.
func tryReverse(ctx context.Context, b bridge.Bridge, serial string, pr PortRange) (Mode, net.Listener, error) {
	first := true
	for p := pr.First; ; p++ {
		if err := b.Reverse(ctx, serial, bridge.SocketName, p); err != nil {
			if first {
				return nil, nil, err
			}
			if p >= pr.Last {
				return nil, nil, err
			}
			continue
		}
		first = false

		l, err := netio.Listen(ctx, LoopbackV4, p, 1)
		if err == nil {
			return ReverseMode{LocalPort: p}, l, nil
		}

		b.ReverseRemove(ctx, serial, bridge.SocketName)
		if p >= pr.Last {
			return nil, nil, err
		}
	}
}

// tryForward implements the forward probe loop: no local listen is needed
// because the client connects into the tunnel.
func tryForward(ctx context.Context, b bridge.Bridge, serial string, pr PortRange) (Mode, error) {
	var lastErr error
	for p := pr.First; ; p++ {
		err := b.Forward(ctx, serial, p, bridge.SocketName)
		if err == nil {
			return ForwardMode{LocalPort: p}, nil
		}
		lastErr = err
		if p >= pr.Last {
			return nil, lastErr
		}
	}
}
