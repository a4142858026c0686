// Copyright 2018 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package retry

import (
	"context"
	"time"
)

// Retry calls fn until it returns nil, the context is canceled, or backOff
// signals Stop. notify, if non-nil, is called with each failed attempt's
// error and the delay before the next attempt. The final error, if any, is
// returned.
func Retry(ctx context.Context, backOff Backoff, fn func() error, notify func(error, time.Duration)) error {
	var err error
	for {
		if err = fn(); err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return err
		default:
		}

		wait := backOff.Next()
		if wait == Stop {
			return err
		}
		if notify != nil {
			notify(err, wait)
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
	}
}
