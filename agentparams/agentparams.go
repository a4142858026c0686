// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package agentparams builds the on-device agent's launch argv and
// resolves the local path to its artifact. It is a leaf package (no
// dependency on package server) so that ServerParams lives here and
// server re-exports it, avoiding an import cycle between the two.
package agentparams

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.scrcpygo.dev/mirrorclient/errs"
)

// PortRange is a closed interval of candidate local ports, First <= Last.
type PortRange struct {
	First uint16
	Last  uint16
}

// LogLevel is the agent's own log verbosity, distinct from this module's
// internal/logger.LogLevel.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "debug"
	case LogWarn:
		return "warn"
	case LogError:
		return "error"
	default:
		return "info"
	}
}

// ServerParams is the immutable (once Start begins) set of negotiated
// options the agent is launched with.
type ServerParams struct {
	LogLevel             LogLevel
	MaxSize              uint16
	BitRate              uint32
	MaxFPS               uint16
	LockVideoOrientation int8
	DisplayID            uint16
	Crop                 *string
	Control              bool
	ShowTouches          bool
	StayAwake            bool
	CodecOptions         *string
	EncoderName          *string
	PortRange            PortRange
	ForceADBForward      bool
}

func optOrDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Argv builds the agent's launch argument vector in the exact positional
// order the agent expects.
func Argv(version string, p ServerParams, tunnelForward bool) []string {
	return []string{
		version,
		p.LogLevel.String(),
		strconv.Itoa(int(p.MaxSize)),
		strconv.FormatUint(uint64(p.BitRate), 10),
		strconv.Itoa(int(p.MaxFPS)),
		strconv.Itoa(int(p.LockVideoOrientation)),
		boolStr(tunnelForward),
		optOrDash(p.Crop),
		"true", // frame_meta always on
		boolStr(p.Control),
		strconv.Itoa(int(p.DisplayID)),
		boolStr(p.ShowTouches),
		boolStr(p.StayAwake),
		optOrDash(p.CodecOptions),
		optOrDash(p.EncoderName),
	}
}

// serverPathEnvVar overrides the local agent artifact path.
const serverPathEnvVar = "SCRCPY_SERVER_PATH"

// fixedInstallPath is the conventional system-wide install location tried
// after the environment override and before the executable-adjacent path.
const fixedInstallPath = "/usr/local/share/scrcpy/scrcpy-server"

const artifactFilename = "scrcpy-server"

// ResolveArtifactPath walks the resolution order: env override -> fixed
// install path -> executable-adjacent -> bare filename in the current
// directory. envLookup and execDir are injected so tests can stub the
// process-global env var and the running binary's location; this is the
// module's only process-global read.
func ResolveArtifactPath(envLookup func(string) string, execDir func() (string, error)) (string, error) {
	if path := envLookup(serverPathEnvVar); path != "" {
		if isRegularFile(path) {
			return path, nil
		}
		return "", &errs.ConfigError{Op: "resolve_artifact_path", Err: fmt.Errorf("%s=%s is not a regular file", serverPathEnvVar, path)}
	}

	if isRegularFile(fixedInstallPath) {
		return fixedInstallPath, nil
	}

	if dir, err := execDir(); err == nil {
		candidate := filepath.Join(dir, artifactFilename)
		if isRegularFile(candidate) {
			return candidate, nil
		}
	}

	if isRegularFile(artifactFilename) {
		return artifactFilename, nil
	}

	return "", &errs.ConfigError{Op: "resolve_artifact_path", Err: fmt.Errorf("could not locate %s via env, fixed install path, executable-adjacent, or current directory", artifactFilename)}
}

func isRegularFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
