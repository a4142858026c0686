// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package netio provides the loopback TCP primitives the transport layer
// builds on: listen/accept/connect, a one-byte readiness probe, and a
// shutdown-then-close path that reliably unblocks a peer's pending Accept.
package netio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go.scrcpygo.dev/mirrorclient/internal/logger"
	"go.scrcpygo.dev/mirrorclient/internal/retry"
)

// Socket is a connected byte-stream endpoint.
type Socket = net.Conn

// ErrNotReady is returned by ConnectAndProbe when the peer accepted the
// connection but never wrote (or only short-wrote) its readiness byte.
var ErrNotReady = errors.New("netio: peer did not become ready")

// Listen binds a TCP listener at addr:port with the given backlog hint.
// Go's net package doesn't expose backlog tuning directly; it is accepted
// for API fidelity with the host-bridge-facing semantics and is otherwise
// advisory.
func Listen(ctx context.Context, addr string, port uint16, backlog int) (net.Listener, error) {
	_ = backlog
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp4", net.JoinHostPort(addr, strconv.Itoa(int(port))))
	if err != nil {
		return nil, fmt.Errorf("netio: listen %s:%d: %w", addr, port, err)
	}
	return l, nil
}

// Connect dials addr:port over TCP.
func Connect(ctx context.Context, addr string, port uint16) (Socket, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp4", net.JoinHostPort(addr, strconv.Itoa(int(port))))
	if err != nil {
		return nil, fmt.Errorf("netio: connect %s:%d: %w", addr, port, err)
	}
	return conn, nil
}

// Accept blocks for the next inbound connection on l, respecting ctx
// cancellation by racing the Accept against ctx.Done.
func Accept(ctx context.Context, l net.Listener) (Socket, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.Accept()
		ch <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("netio: accept: %w", r.err)
		}
		return r.conn, nil
	}
}

// ShutdownAndClose unblocks any pending Accept/Read on sock and releases
// it. A net.Listener only supports Close, which on the Go runtime's
// implementation is itself sufficient to wake a pending Accept; a data
// socket additionally gets CloseRead/CloseWrite before Close so that a
// pending peer Read also observes EOF.
func ShutdownAndClose(sock io.Closer) error {
	if sock == nil {
		return nil
	}
	if tc, ok := sock.(interface {
		CloseRead() error
		CloseWrite() error
	}); ok {
		tc.CloseRead()
		tc.CloseWrite()
	}
	return sock.Close()
}

// ConnectAndProbe connects to addr:port and consumes exactly one readiness
// byte before returning the socket. The byte is discarded: it signals the
// peer is actually serving, not merely that the tunnel is plumbed through.
func ConnectAndProbe(ctx context.Context, addr string, port uint16) (Socket, error) {
	log := logger.FromContext(ctx)
	conn, err := Connect(ctx, addr, port)
	if err != nil {
		return nil, err
	}

	var probe [1]byte
	if err := conn.SetReadDeadline(deadlineFromContext(ctx)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("netio: probe %s:%d: %w", addr, port, err)
	}
	n, err := conn.Read(probe[:])
	conn.SetReadDeadline(time.Time{})
	if err != nil || n != 1 {
		log.Debugf("netio: readiness probe failed for %s:%d: n=%d err=%v", addr, port, n, err)
		conn.Close()
		return nil, fmt.Errorf("netio: %s:%d: %w", addr, port, ErrNotReady)
	}
	return conn, nil
}

func deadlineFromContext(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		return dl
	}
	return time.Now().Add(5 * time.Second)
}

// ConnectWithRetry calls ConnectAndProbe up to attempts times, waiting delay
// between failures, and returns the first success.
func ConnectWithRetry(ctx context.Context, addr string, port uint16, attempts int, delay time.Duration) (Socket, error) {
	log := logger.FromContext(ctx)
	// attempts counts total calls to ConnectAndProbe; Retry's backoff only
	// governs the retries after the first call, hence attempts-1.
	var backOff retry.Backoff = retry.NoRetries()
	if attempts > 1 {
		backOff = retry.WithMaxAttempts(retry.NewConstantBackoff(delay), attempts-1)
	}

	var conn Socket
	err := retry.Retry(ctx, backOff, func() error {
		c, err := ConnectAndProbe(ctx, addr, port)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, func(err error, wait time.Duration) {
		log.Debugf("netio: connect %s:%d failed, retrying in %s: %v", addr, port, wait, err)
	})
	if err != nil {
		return nil, fmt.Errorf("netio: %s:%d: %d attempts exhausted: %w", addr, port, attempts, err)
	}
	return conn, nil
}
