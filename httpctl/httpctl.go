// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package httpctl drives the direct-mode transport's control endpoints: a
// fire-and-forget GET to start the remote agent session, and one to stop
// it.
package httpctl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.scrcpygo.dev/mirrorclient/errs"
)

// maxBodyBytes bounds the response body read so a misbehaving endpoint
// can't stall or exhaust memory.
const maxBodyBytes = 1024

const successSubstring = "success"

// Start issues GET {baseURL}/startScrcpy/{argv...} and succeeds iff the
// response body contains the literal substring "success".
func Start(ctx context.Context, baseURL string, argv []string) error {
	url := strings.TrimRight(baseURL, "/") + "/startScrcpy/" + strings.Join(argv, "/")
	return get(ctx, url, "start")
}

// Stop issues GET {baseURL}/stopScrcpy/ with the same success rule.
func Stop(ctx context.Context, baseURL string) error {
	url := strings.TrimRight(baseURL, "/") + "/stopScrcpy/"
	return get(ctx, url, "stop")
}

func get(ctx context.Context, url, op string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &errs.NetworkError{Op: op, Err: err}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return &errs.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &errs.NetworkError{Op: op, Err: err}
	}
	if !strings.Contains(string(body), successSubstring) {
		return &errs.NetworkError{Op: op, Err: fmt.Errorf("unexpected response (status %s): %q", resp.Status, body)}
	}
	return nil
}
