// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package frameclock provides the frame scheduling port used by the
// text reveal engine.
//
// The engine never touches timers directly; it schedules the next
// frame through a Clock and cancels the registration on teardown.
// Production code uses TickerClock; tests drive frames by hand.
package frameclock

import "time"

// =============================================================================
// CLOCK PORT
// =============================================================================

// Registration represents one pending frame callback.
type Registration interface {
	// Cancel stops the pending callback. Safe to call more than once;
	// after Cancel returns the callback either already ran or never will.
	Cancel()
}

// Clock schedules a callback for the next display frame.
// At most one registration is outstanding per consumer at any time.
type Clock interface {
	// Schedule arranges for fn to be invoked once with the current
	// timestamp when the next frame elapses.
	Schedule(fn func(now time.Time)) Registration
}

// =============================================================================
// TICKER CLOCK
// =============================================================================

// TickerClock is the production Clock, firing once per frame interval.
type TickerClock struct {
	interval time.Duration
}

// DefaultFrameInterval approximates a 30fps display refresh.
const DefaultFrameInterval = 33 * time.Millisecond

// NewTickerClock creates a Clock with the given frame interval.
// Non-positive intervals fall back to DefaultFrameInterval.
func NewTickerClock(interval time.Duration) *TickerClock {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &TickerClock{interval: interval}
}

// Interval returns the configured frame interval.
func (c *TickerClock) Interval() time.Duration {
	return c.interval
}

// Schedule implements Clock using a one-shot timer.
func (c *TickerClock) Schedule(fn func(now time.Time)) Registration {
	t := time.AfterFunc(c.interval, func() {
		fn(time.Now())
	})
	return timerRegistration{timer: t}
}

type timerRegistration struct {
	timer *time.Timer
}

// Cancel implements Registration.
func (r timerRegistration) Cancel() {
	r.timer.Stop()
}
