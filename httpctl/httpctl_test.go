// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package httpctl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStartSuccess(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("success"))
	}))
	defer srv.Close()

	err := Start(context.Background(), srv.URL, []string{"1.0", "info", "1920"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	want := "/startScrcpy/1.0/info/1920"
	if gotPath != want {
		t.Errorf("request path = %q, want %q", gotPath, want)
	}
}

func TestStartFailureWithoutSuccessSubstring(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("nope"))
	}))
	defer srv.Close()

	if err := Start(context.Background(), srv.URL, []string{"1.0"}); err == nil {
		t.Error("expected an error when the response lacks \"success\"")
	}
}

func TestStopSuccess(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("success"))
	}))
	defer srv.Close()

	if err := Stop(context.Background(), srv.URL); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if gotPath != "/stopScrcpy/" {
		t.Errorf("request path = %q, want %q", gotPath, "/stopScrcpy/")
	}
}

func TestStartBoundsResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 4096) + "success"))
	}))
	defer srv.Close()

	// The 1 KiB bound means "success" (written past the 4096-byte prefix)
	// should never actually be seen.
	if err := Start(context.Background(), srv.URL, []string{"1.0"}); err == nil {
		t.Error("expected an error: the success substring falls outside the 1 KiB read bound")
	}
}
