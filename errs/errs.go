// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package errs defines the coarse error taxonomy shared by the transport
// core, so callers can distinguish failure domains with errors.As without
// depending on any single package's internals.
package errs

import "fmt"

// ConfigError indicates a missing or invalid artifact path or parameter.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config: %s: %v", e.Op, e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// BridgeError indicates a host-bridge command exited non-zero.
type BridgeError struct {
	Op  string
	Err error
}

func (e *BridgeError) Error() string { return fmt.Sprintf("bridge: %s: %v", e.Op, e.Err) }
func (e *BridgeError) Unwrap() error { return e.Err }

// TunnelError indicates no port in the configured range could be bound or
// forwarded.
type TunnelError struct {
	Op  string
	Err error
}

func (e *TunnelError) Error() string { return fmt.Sprintf("tunnel: %s: %v", e.Op, e.Err) }
func (e *TunnelError) Unwrap() error { return e.Err }

// ProcessError indicates the agent could not be launched, or died before
// Connect returned.
type ProcessError struct {
	Op  string
	Err error
}

func (e *ProcessError) Error() string { return fmt.Sprintf("process: %s: %v", e.Op, e.Err) }
func (e *ProcessError) Unwrap() error { return e.Err }

// NetworkError indicates a listen/accept/connect/probe failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network: %s: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError indicates a watchdog deadline was exceeded in Stop. Stop
// downgrades this to a log line and a forced terminate; it is never
// returned to a caller, but is defined here for the (internal) path that
// logs it.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("timeout: %s: %v", e.Op, e.Err) }
func (e *TimeoutError) Unwrap() error { return e.Err }
