// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package netio

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"
)

const loopback = "127.0.0.1"

func listenerPort(t *testing.T, l net.Listener) uint16 {
	t.Helper()
	_, portStr, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		t.Fatalf("split listener addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return uint16(port)
}

func TestListenAndAccept(t *testing.T) {
	ctx := context.Background()
	l, err := Listen(ctx, loopback, 0, 1)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	port := listenerPort(t, l)

	var accepted Socket
	acceptErr := make(chan error, 1)
	go func() {
		var err error
		accepted, err = Accept(ctx, l)
		acceptErr <- err
	}()

	conn, err := Connect(ctx, loopback, port)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if err := <-acceptErr; err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer accepted.Close()
}

func TestShutdownAndCloseUnblocksAccept(t *testing.T) {
	ctx := context.Background()
	l, err := Listen(ctx, loopback, 0, 1)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := Accept(ctx, l)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := ShutdownAndClose(l); err != nil {
		t.Fatalf("ShutdownAndClose: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Error("Accept should have returned an error once the listener closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Accept did not unblock after ShutdownAndClose")
	}
}

func TestConnectAndProbeConsumesReadinessByte(t *testing.T) {
	ctx := context.Background()
	l, err := Listen(ctx, loopback, 0, 1)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()
	port := listenerPort(t, l)

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte{0x01})
		conn.Write([]byte("payload"))
	}()

	conn, err := ConnectAndProbe(ctx, loopback, port)
	if err != nil {
		t.Fatalf("ConnectAndProbe: %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 7)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read after probe: %v", err)
	}
	if string(buf[:n]) != "payload" {
		t.Errorf("got %q after probe, want %q (readiness byte leaked into data stream)", buf[:n], "payload")
	}
}

func TestConnectAndProbeFailsOnNoData(t *testing.T) {
	ctx := context.Background()
	l, err := Listen(ctx, loopback, 0, 1)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()
	port := listenerPort(t, l)

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		conn.Close()
	}()

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if _, err := ConnectAndProbe(ctx2, loopback, port); err == nil {
		t.Error("expected an error when the peer closes before sending a readiness byte")
	}
}

func TestConnectWithRetrySucceedsEventually(t *testing.T) {
	ctx := context.Background()
	l, err := Listen(ctx, loopback, 0, 1)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()
	port := listenerPort(t, l)

	go func() {
		time.Sleep(150 * time.Millisecond)
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte{0x01})
	}()

	conn, err := ConnectWithRetry(ctx, loopback, port, 20, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("ConnectWithRetry: %v", err)
	}
	defer conn.Close()
}
