// Copyright 2018 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package retry provides policy-driven retry of fallible operations.
package retry

import (
	"math/rand"
	"time"
)

// Stop is returned by Backoff.Next to signal that no further attempts
// should be made.
const Stop time.Duration = -1

// Backoff computes successive wait intervals between retry attempts.
type Backoff interface {
	// Next returns the duration to wait before the next attempt, or Stop
	// if retrying should cease.
	Next() time.Duration
	// Reset returns the Backoff to its initial state.
	Reset()
}

// ZeroBackoff never waits between attempts and never stops on its own.
type ZeroBackoff struct{}

func (*ZeroBackoff) Next() time.Duration { return 0 }
func (*ZeroBackoff) Reset()              {}

type constantBackoff struct {
	interval time.Duration
}

// NewConstantBackoff returns a Backoff that always waits interval between
// attempts.
func NewConstantBackoff(interval time.Duration) Backoff {
	return &constantBackoff{interval: interval}
}

func (c *constantBackoff) Next() time.Duration { return c.interval }
func (c *constantBackoff) Reset()              {}

type maxAttemptsBackoff struct {
	backOff     Backoff
	maxAttempts int
	attempt     int
}

// WithMaxAttempts wraps backOff so that it stops after maxAttempts calls to
// Next. A maxAttempts of 0 retries indefinitely.
func WithMaxAttempts(backOff Backoff, maxAttempts int) Backoff {
	return &maxAttemptsBackoff{backOff: backOff, maxAttempts: maxAttempts}
}

func (m *maxAttemptsBackoff) Next() time.Duration {
	if m.maxAttempts > 0 && m.attempt >= m.maxAttempts {
		return Stop
	}
	m.attempt++
	return m.backOff.Next()
}

func (m *maxAttemptsBackoff) Reset() {
	m.attempt = 0
	m.backOff.Reset()
}

// clock abstracts time.Now for testability.
type clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type maxDurationBackoff struct {
	backOff     Backoff
	maxDuration time.Duration
	c           clock
	start       time.Time
}

// WithMaxDuration wraps backOff so that it stops once maxDuration has
// elapsed since the most recent Reset.
func WithMaxDuration(backOff Backoff, maxDuration time.Duration) Backoff {
	return &maxDurationBackoff{backOff: backOff, maxDuration: maxDuration, c: systemClock{}}
}

func (m *maxDurationBackoff) Next() time.Duration {
	if m.start.IsZero() {
		m.start = m.c.Now()
	}
	if m.c.Now().Sub(m.start) >= m.maxDuration {
		return Stop
	}
	return m.backOff.Next()
}

func (m *maxDurationBackoff) Reset() {
	m.start = m.c.Now()
	m.backOff.Reset()
}

type exponentialBackoff struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
	current         time.Duration
}

// NewExponentialBackoff returns a Backoff that starts at initialInterval,
// grows by multiplier on each call (jittered by +/-50%), and caps at
// maxInterval.
func NewExponentialBackoff(initialInterval, maxInterval time.Duration, multiplier float64) Backoff {
	return &exponentialBackoff{
		initialInterval: initialInterval,
		maxInterval:     maxInterval,
		multiplier:      multiplier,
		current:         initialInterval,
	}
}

func (e *exponentialBackoff) Next() time.Duration {
	if e.current >= e.maxInterval {
		e.current = e.maxInterval
		return e.maxInterval
	}
	interval := e.current
	e.current = time.Duration(float64(e.current) * e.multiplier)
	jitter := 0.5 + rand.Float64()
	return time.Duration(float64(interval) * jitter)
}

func (e *exponentialBackoff) Reset() {
	e.current = e.initialInterval
}

type noRetries struct{}

// NoRetries returns a Backoff that never retries.
func NoRetries() Backoff { return noRetries{} }

func (noRetries) Next() time.Duration { return Stop }
func (noRetries) Reset()              {}
