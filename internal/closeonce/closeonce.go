// Copyright 2018 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package closeonce implements the close-authority token: a one-shot,
// compare-and-set guarded close for a resource that may be raced on by
// more than one goroutine.
package closeonce

import "sync/atomic"

// Once guards a single destructive action so that exactly one caller
// among any number of concurrent callers performs it.
type Once struct {
	done atomic.Bool
}

// TryClose runs fn and returns true iff this call is the one that won the
// race to run it. Losing calls return false immediately without running
// fn. Safe for concurrent use.
func (o *Once) TryClose(fn func()) bool {
	if !o.done.CompareAndSwap(false, true) {
		return false
	}
	fn()
	return true
}

// Done reports whether some caller has already won the race.
func (o *Once) Done() bool {
	return o.done.Load()
}
