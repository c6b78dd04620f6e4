// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reveal implements the typewriter reveal engine for streamed
// assistant responses.
//
// The engine decouples the rate at which text arrives from the rate at
// which it is shown: appended text accumulates in an input buffer, and
// a lagging displayed buffer advances on the frame clock at a
// configurable per-character pace. Characters are flushed to the
// displayed buffer in small batches to bound render-triggering updates
// relative to text length; a flush also happens on whitespace so the
// display never sticks mid-word, and at the end of available input.
//
// A turn is complete only when streaming has finished AND the displayed
// buffer has caught up with the input buffer. Deriving completion from
// the streaming-done flag alone would mark a turn finished while
// characters are still being revealed.
package reveal

import (
	"sync"
	"time"
	"unicode"

	"github.com/jeranaias/relay-tui/internal/frameclock"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config tunes the reveal animation.
type Config struct {
	// CharDelay is the minimum time between revealed characters.
	CharDelay time.Duration

	// BatchSize is the number of revealed characters that forces a
	// flush into the displayed buffer.
	BatchSize int
}

// DefaultConfig returns the default reveal tuning.
func DefaultConfig() Config {
	return Config{
		CharDelay: 12 * time.Millisecond,
		BatchSize: 3,
	}
}

// normalized returns the config with invalid values replaced by defaults.
func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.CharDelay <= 0 {
		c.CharDelay = d.CharDelay
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	return c
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine animates an append-only input buffer into a lagging displayed
// buffer on the frame clock.
//
// Thread-safety: all operations are protected by a mutex since frame
// callbacks fire on the clock goroutine while appends arrive from the
// transport.
type Engine struct {
	mu    sync.Mutex
	clock frameclock.Clock
	cfg   Config

	// Buffers. input only ever grows; displayedEnd <= revealedEnd <=
	// len(input) at all times. Runes are the atomic reveal unit so a
	// multi-byte character is never split.
	input        []rune
	revealedEnd  int // characters consumed by the animation
	displayedEnd int // characters flushed into the displayed buffer

	// Pacing state.
	credit   time.Duration // elapsed time not yet spent on a character
	lastTick time.Time

	// Lifecycle.
	streamingDone bool
	completed     bool // completion callback fired
	reg           frameclock.Registration

	// Callbacks.
	onUpdate   func(displayed string)
	onComplete func()
}

// NewEngine creates a reveal engine driven by the given clock.
func NewEngine(clock frameclock.Clock, cfg Config) *Engine {
	return &Engine{
		clock: clock,
		cfg:   cfg.normalized(),
	}
}

// SetOnUpdate registers the callback invoked after each displayed-buffer
// flush. Called without the engine lock held.
func (e *Engine) SetOnUpdate(fn func(displayed string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onUpdate = fn
}

// SetOnComplete registers the callback invoked exactly once when the
// turn completes (streaming finished and display caught up).
func (e *Engine) SetOnComplete(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onComplete = fn
}

// =============================================================================
// INPUT OPERATIONS
// =============================================================================

// AppendText extends the input buffer. Empty chunks are no-ops.
// Appending after FinishStreaming is ignored.
func (e *Engine) AppendText(chunk string) {
	if chunk == "" {
		return
	}
	e.mu.Lock()
	if e.streamingDone {
		e.mu.Unlock()
		return
	}
	e.input = append(e.input, []rune(chunk)...)
	e.scheduleLocked()
	e.mu.Unlock()
}

// FinishStreaming marks the input buffer as final. If the display has
// already caught up, completion fires immediately.
func (e *Engine) FinishStreaming() {
	e.mu.Lock()
	e.streamingDone = true
	fire := e.evaluateCompletionLocked()
	onComplete := e.onComplete
	e.mu.Unlock()

	if fire && onComplete != nil {
		onComplete()
	}
}

// SkipAnimation forces the displayed buffer to the full input
// immediately and evaluates completion. Calling it after completion is
// a no-op with respect to the completion callback.
func (e *Engine) SkipAnimation() {
	e.mu.Lock()
	e.revealedEnd = len(e.input)
	e.displayedEnd = len(e.input)
	e.cancelLocked()
	fire := e.evaluateCompletionLocked()
	onUpdate := e.onUpdate
	onComplete := e.onComplete
	displayed := string(e.input[:e.displayedEnd])
	e.mu.Unlock()

	if onUpdate != nil {
		onUpdate(displayed)
	}
	if fire && onComplete != nil {
		onComplete()
	}
}

// Reset clears all state so the engine can be reused for a new turn.
// Any pending frame registration is cancelled.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
	e.input = nil
	e.revealedEnd = 0
	e.displayedEnd = 0
	e.credit = 0
	e.lastTick = time.Time{}
	e.streamingDone = false
	e.completed = false
}

// Teardown cancels any pending frame registration without clearing
// buffers. Used when the owning turn is superseded or unmounted.
func (e *Engine) Teardown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
}

// =============================================================================
// STATE ACCESSORS
// =============================================================================

// Displayed returns the currently revealed text. Always a prefix of
// InputText, inclusive of equality.
func (e *Engine) Displayed() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return string(e.input[:e.displayedEnd])
}

// InputText returns the full text received so far.
func (e *Engine) InputText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return string(e.input)
}

// StreamingDone reports whether the input buffer is final.
func (e *Engine) StreamingDone() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streamingDone
}

// IsComplete reports whether streaming has finished AND the displayed
// buffer equals the input buffer. Both conditions are required.
func (e *Engine) IsComplete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isCompleteLocked()
}

// IsAnimating reports whether the display is lagging the input, or the
// engine is still waiting for more input.
func (e *Engine) IsAnimating() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isCompleteLocked() {
		return false
	}
	return e.displayedEnd < len(e.input) || !e.streamingDone
}

func (e *Engine) isCompleteLocked() bool {
	return e.streamingDone && e.displayedEnd == len(e.input)
}

// =============================================================================
// FRAME PROCESSING
// =============================================================================

// scheduleLocked arranges the next frame callback if none is pending
// and the turn is not complete. Caller must hold the lock.
func (e *Engine) scheduleLocked() {
	if e.reg != nil || e.completed {
		return
	}
	e.reg = e.clock.Schedule(e.tick)
}

// cancelLocked cancels the pending registration, if any.
func (e *Engine) cancelLocked() {
	if e.reg != nil {
		e.reg.Cancel()
		e.reg = nil
	}
}

// tick advances the animation by the elapsed frame time.
func (e *Engine) tick(now time.Time) {
	e.mu.Lock()
	e.reg = nil

	if e.completed {
		e.mu.Unlock()
		return
	}

	// Caught up with available input.
	if e.revealedEnd == len(e.input) {
		// Flush anything revealed but unflushed (defensively; the
		// end-of-input flush below keeps these in lockstep).
		flushed := e.flushLocked()

		if e.streamingDone {
			fire := e.evaluateCompletionLocked()
			onUpdate := e.onUpdate
			onComplete := e.onComplete
			displayed := string(e.input[:e.displayedEnd])
			e.mu.Unlock()
			if flushed && onUpdate != nil {
				onUpdate(displayed)
			}
			if fire && onComplete != nil {
				onComplete()
			}
			return
		}

		// Waiting for more input: keep ticking without progress and
		// without accruing time credit, so a later append does not
		// burst-reveal.
		e.credit = 0
		e.lastTick = now
		e.scheduleLocked()
		onUpdate := e.onUpdate
		displayed := string(e.input[:e.displayedEnd])
		e.mu.Unlock()
		if flushed && onUpdate != nil {
			onUpdate(displayed)
		}
		return
	}

	// Accumulate elapsed time since the previous frame.
	if !e.lastTick.IsZero() {
		e.credit += now.Sub(e.lastTick)
	} else {
		e.credit += e.cfg.CharDelay
	}
	e.lastTick = now

	flushed := false
	for e.credit >= e.cfg.CharDelay && e.revealedEnd < len(e.input) {
		e.credit -= e.cfg.CharDelay
		ch := e.input[e.revealedEnd]
		e.revealedEnd++

		batch := e.revealedEnd - e.displayedEnd
		if batch >= e.cfg.BatchSize || unicode.IsSpace(ch) || e.revealedEnd == len(e.input) {
			if e.flushLocked() {
				flushed = true
			}
		}
	}

	// Spending more than a frame's worth of credit per frame is fine;
	// holding unbounded credit is not.
	if e.credit > e.cfg.CharDelay {
		e.credit = e.cfg.CharDelay
	}

	fire := false
	if e.revealedEnd == len(e.input) && e.streamingDone {
		fire = e.evaluateCompletionLocked()
	} else {
		e.scheduleLocked()
	}

	onUpdate := e.onUpdate
	onComplete := e.onComplete
	displayed := string(e.input[:e.displayedEnd])
	e.mu.Unlock()

	if flushed && onUpdate != nil {
		onUpdate(displayed)
	}
	if fire && onComplete != nil {
		onComplete()
	}
}

// flushLocked moves the revealed-but-unflushed batch into the displayed
// buffer. Returns true when the displayed buffer advanced.
func (e *Engine) flushLocked() bool {
	if e.displayedEnd == e.revealedEnd {
		return false
	}
	e.displayedEnd = e.revealedEnd
	return true
}

// evaluateCompletionLocked marks completion if both conditions hold and
// the callback has not fired yet. Returns true when the caller should
// invoke the completion callback.
func (e *Engine) evaluateCompletionLocked() bool {
	if e.completed || !e.isCompleteLocked() {
		return false
	}
	e.completed = true
	e.cancelLocked()
	return true
}
