// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package server

import (
	"os"
	"path/filepath"
)

// envLookup and execDir are the process-global resolvers Start wires into
// agentparams.ResolveArtifactPath. They are the module's only two
// process-global reads, isolated here so tests can stub
// agentparams.ResolveArtifactPath directly with their own functions
// instead of touching the real environment or binary location.
func envLookup(key string) string {
	return os.Getenv(key)
}

func execDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}
