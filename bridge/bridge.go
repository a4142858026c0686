// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package bridge is an opaque facade over the host-to-device command
// bridge: file push, reverse/forward tunnel registration, and agent
// process launch.
package bridge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"go.scrcpygo.dev/mirrorclient/errs"
	"go.scrcpygo.dev/mirrorclient/internal/logger"
)

// SocketName is the well-known endpoint name the on-device agent binds to
// for both reverse and forward tunnels.
const SocketName = "scrcpy"

// Process is a handle on the launched agent: borrowable by a watchdog for
// Wait while the lifecycle thread may concurrently call Terminate.
type Process interface {
	Wait(ctx context.Context) error
	Terminate(ctx context.Context) error
}

// DeviceDescriptor names an attached device as reported by the bridge's
// device-enumeration subcommand.
type DeviceDescriptor struct {
	Serial string
	State  string
}

// Bridge is the set of host-bridge operations the transport core depends
// on. ADBBridge is the default, subprocess-backed implementation.
type Bridge interface {
	Push(ctx context.Context, serial, localPath, devicePath string) error
	Reverse(ctx context.Context, serial, socketName string, localPort uint16) error
	ReverseRemove(ctx context.Context, serial, socketName string) error
	Forward(ctx context.Context, serial string, localPort uint16, socketName string) error
	ForwardRemove(ctx context.Context, serial string, localPort uint16) error
	ExecAgent(ctx context.Context, serial string, argv []string) (Process, error)
	Devices(ctx context.Context) ([]DeviceDescriptor, error)
	Serial(ctx context.Context) (string, error)
}

// ADBBridge shells out to an external adb-compatible binary, mirroring
// fastboot.Fastboot's exec wrapper: capture combined output, wrap stderr
// on non-zero exit.
type ADBBridge struct {
	// ToolPath is the path to the bridge command line tool. Defaults to
	// "adb" if empty.
	ToolPath string
}

func (b *ADBBridge) toolPath() string {
	if b.ToolPath != "" {
		return b.ToolPath
	}
	return "adb"
}

func (b *ADBBridge) exec(ctx context.Context, serial string, args ...string) ([]byte, error) {
	full := args
	if serial != "" {
		full = append([]string{"-s", serial}, args...)
	}
	cmd := exec.CommandContext(ctx, b.toolPath(), full...)
	log := logger.FromContext(ctx)
	log.Debugf("bridge: running: %s", cmd.Args)

	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("bridge: context error: %w", ctx.Err())
	}
	if err != nil {
		return out, &errs.BridgeError{Op: strings.Join(args, " "), Err: fmt.Errorf("%s: %w", strings.TrimSpace(string(out)), err)}
	}
	return out, nil
}

// Push uploads the agent artifact. localPath must name a regular file;
// that precondition is enforced here as a ConfigError, distinct from a
// BridgeError, since no subprocess is even attempted on failure.
func (b *ADBBridge) Push(ctx context.Context, serial, localPath, devicePath string) error {
	fi, err := os.Stat(localPath)
	if err != nil {
		return &errs.ConfigError{Op: "push", Err: fmt.Errorf("stat %s: %w", localPath, err)}
	}
	if !fi.Mode().IsRegular() {
		return &errs.ConfigError{Op: "push", Err: fmt.Errorf("%s is not a regular file", localPath)}
	}

	logger.FromContext(ctx).Infof("bridge: pushing %s (%s) to %s", localPath, humanize.Bytes(uint64(fi.Size())), devicePath)
	_, err = b.exec(ctx, serial, "push", localPath, devicePath)
	return err
}

func (b *ADBBridge) Reverse(ctx context.Context, serial, socketName string, localPort uint16) error {
	_, err := b.exec(ctx, serial, "reverse", "localabstract:"+socketName, "tcp:"+strconv.Itoa(int(localPort)))
	return err
}

func (b *ADBBridge) ReverseRemove(ctx context.Context, serial, socketName string) error {
	_, err := b.exec(ctx, serial, "reverse", "--remove", "localabstract:"+socketName)
	return err
}

func (b *ADBBridge) Forward(ctx context.Context, serial string, localPort uint16, socketName string) error {
	_, err := b.exec(ctx, serial, "forward", "tcp:"+strconv.Itoa(int(localPort)), "localabstract:"+socketName)
	return err
}

func (b *ADBBridge) ForwardRemove(ctx context.Context, serial string, localPort uint16) error {
	_, err := b.exec(ctx, serial, "forward", "--remove", "tcp:"+strconv.Itoa(int(localPort)))
	return err
}

// ExecAgent launches the agent binary on the device through the bridge's
// shell subcommand, returning a handle backed by the underlying process
// group.
func (b *ADBBridge) ExecAgent(ctx context.Context, serial string, argv []string) (Process, error) {
	args := append([]string{"shell"}, argv...)
	full := args
	if serial != "" {
		full = append([]string{"-s", serial}, args...)
	}
	cmd := exec.CommandContext(ctx, b.toolPath(), full...)
	logger.FromContext(ctx).Debugf("bridge: exec_agent: %s", cmd.Args)

	p := &cmdProcess{cmd: cmd, exited: make(chan struct{})}
	if err := p.start(); err != nil {
		return nil, &errs.ProcessError{Op: "exec_agent", Err: err}
	}
	return p, nil
}

// Devices enumerates attached devices.
func (b *ADBBridge) Devices(ctx context.Context) ([]DeviceDescriptor, error) {
	out, err := b.exec(ctx, "", "devices")
	if err != nil {
		return nil, err
	}
	var devices []DeviceDescriptor
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		devices = append(devices, DeviceDescriptor{Serial: fields[0], State: fields[1]})
	}
	return devices, nil
}

// Serial resolves the default device's serial when the caller left it
// blank: the sole attached device if exactly one is present.
func (b *ADBBridge) Serial(ctx context.Context) (string, error) {
	devices, err := b.Devices(ctx)
	if err != nil {
		return "", err
	}
	var online []DeviceDescriptor
	for _, d := range devices {
		if d.State == "device" {
			online = append(online, d)
		}
	}
	switch len(online) {
	case 0:
		return "", &errs.ConfigError{Op: "serial", Err: fmt.Errorf("no device attached")}
	case 1:
		return online[0].Serial, nil
	default:
		return "", &errs.ConfigError{Op: "serial", Err: fmt.Errorf("multiple devices attached, serial must be specified")}
	}
}
