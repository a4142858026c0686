// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package closeonce

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestTryCloseRunsOnce(t *testing.T) {
	var o Once
	var calls int32

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	var winners int32
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if o.TryClose(func() { atomic.AddInt32(&calls, 1) }) {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("fn ran %d times, want 1", calls)
	}
	if winners != 1 {
		t.Errorf("%d callers won the race, want 1", winners)
	}
	if !o.Done() {
		t.Error("Done() = false after TryClose")
	}
}

func TestDoneBeforeClose(t *testing.T) {
	var o Once
	if o.Done() {
		t.Error("Done() = true before any TryClose")
	}
}
