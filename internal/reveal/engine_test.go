// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reveal

import (
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/relay-tui/internal/frameclock"
)

// =============================================================================
// MANUAL CLOCK
// =============================================================================

// manualClock drives frames deterministically without real timing.
type manualClock struct {
	now       time.Time
	pending   func(time.Time)
	schedules int
	cancels   int
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Unix(0, 0)}
}

func (c *manualClock) Schedule(fn func(now time.Time)) frameclock.Registration {
	c.schedules++
	c.pending = fn
	return &manualReg{clock: c, fn: fn}
}

// Advance moves the clock forward and fires the pending frame, if any.
func (c *manualClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
	fn := c.pending
	c.pending = nil
	if fn != nil {
		fn(c.now)
	}
}

// HasPending reports whether a frame callback is registered.
func (c *manualClock) HasPending() bool {
	return c.pending != nil
}

type manualReg struct {
	clock *manualClock
	fn    func(time.Time)
}

func (r *manualReg) Cancel() {
	r.clock.cancels++
	if r.clock.pending != nil {
		r.clock.pending = nil
	}
}

func testConfig() Config {
	return Config{CharDelay: 10 * time.Millisecond, BatchSize: 3}
}

// =============================================================================
// SKIP / ROUND-TRIP TESTS
// =============================================================================

func TestSkipAnimationRoundTrip(t *testing.T) {
	clock := newManualClock()
	e := NewEngine(clock, testConfig())

	chunks := []string{"Hello", "", " ", "wörld — ₿ 漢字", "", "!"}
	for _, c := range chunks {
		e.AppendText(c)
	}
	e.SkipAnimation()

	want := strings.Join(chunks, "")
	if got := e.Displayed(); got != want {
		t.Errorf("Displayed = %q, want %q", got, want)
	}
	if got := e.InputText(); got != want {
		t.Errorf("InputText = %q, want %q", got, want)
	}
}

func TestRapidSmallAppends(t *testing.T) {
	clock := newManualClock()
	e := NewEngine(clock, testConfig())

	var want strings.Builder
	for i := 0; i < 100; i++ {
		e.AppendText("x")
		want.WriteString("x")
	}
	e.SkipAnimation()

	if got := e.Displayed(); got != want.String() {
		t.Errorf("Displayed has %d chars, want %d", len(got), want.Len())
	}
}

// =============================================================================
// COMPLETION SEMANTICS
// =============================================================================

func TestCompletionRequiresBothConditions(t *testing.T) {
	clock := newManualClock()
	e := NewEngine(clock, testConfig())

	e.AppendText("abc")

	// Not done streaming: never complete, regardless of animation state.
	if e.IsComplete() {
		t.Error("complete before FinishStreaming")
	}
	clock.Advance(10 * time.Millisecond)
	if e.IsComplete() {
		t.Error("complete while streaming still open")
	}

	// Done streaming but display lags: still not complete.
	e.FinishStreaming()
	if e.Displayed() == e.InputText() {
		t.Fatal("display caught up too early for this test")
	}
	if e.IsComplete() {
		t.Error("complete while displayed text lags input")
	}
	if !e.IsAnimating() {
		t.Error("should still be animating")
	}

	// Catch up: now complete.
	e.SkipAnimation()
	if !e.IsComplete() {
		t.Error("should be complete after skip with streaming done")
	}
	if e.IsAnimating() {
		t.Error("complete implies not animating")
	}
}

func TestCompletionCallbackFiresExactlyOnce(t *testing.T) {
	clock := newManualClock()
	e := NewEngine(clock, testConfig())

	fired := 0
	e.SetOnComplete(func() { fired++ })

	e.AppendText("ab")
	e.FinishStreaming()

	// Drive to natural completion.
	for i := 0; i < 10 && !e.IsComplete(); i++ {
		clock.Advance(10 * time.Millisecond)
	}
	if !e.IsComplete() {
		t.Fatal("engine did not complete")
	}
	if fired != 1 {
		t.Fatalf("completion fired %d times, want 1", fired)
	}

	// Skip after natural completion is a no-op for the callback.
	e.SkipAnimation()
	if fired != 1 {
		t.Errorf("completion fired %d times after skip, want 1", fired)
	}
}

func TestNoCompletionWithoutFinishStreaming(t *testing.T) {
	clock := newManualClock()
	e := NewEngine(clock, testConfig())

	fired := 0
	e.SetOnComplete(func() { fired++ })

	e.AppendText("hello")
	e.SkipAnimation()
	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Millisecond)
	}

	if fired != 0 {
		t.Errorf("completion fired %d times without FinishStreaming", fired)
	}
	if e.IsComplete() {
		t.Error("complete without FinishStreaming")
	}
}

// =============================================================================
// ANIMATION PACING
// =============================================================================

func TestRevealPaceIsParametric(t *testing.T) {
	clock := newManualClock()
	e := NewEngine(clock, Config{CharDelay: 50 * time.Millisecond, BatchSize: 2})

	e.AppendText("abcd")

	// First frame reveals one character and flushes nothing yet
	// (batch of 1, no whitespace, not end of input).
	clock.Advance(50 * time.Millisecond)
	if got := e.Displayed(); got != "" {
		t.Errorf("Displayed after 1 char = %q, want empty (batch not full)", got)
	}

	// Second character fills the batch.
	clock.Advance(50 * time.Millisecond)
	if got := e.Displayed(); got != "ab" {
		t.Errorf("Displayed = %q, want %q", got, "ab")
	}

	// Remaining two characters; the last flushes on end of input.
	clock.Advance(50 * time.Millisecond)
	clock.Advance(50 * time.Millisecond)
	if got := e.Displayed(); got != "abcd" {
		t.Errorf("Displayed = %q, want %q", got, "abcd")
	}
}

func TestWhitespaceForcesFlush(t *testing.T) {
	clock := newManualClock()
	e := NewEngine(clock, Config{CharDelay: 10 * time.Millisecond, BatchSize: 100})

	e.AppendText("ab cd")

	clock.Advance(10 * time.Millisecond)
	clock.Advance(10 * time.Millisecond)
	if got := e.Displayed(); got != "" {
		t.Errorf("Displayed = %q, want empty before whitespace", got)
	}

	// The space forces a flush despite the huge batch size.
	clock.Advance(10 * time.Millisecond)
	if got := e.Displayed(); got != "ab " {
		t.Errorf("Displayed = %q, want %q", got, "ab ")
	}
}

func TestWaitsForMoreInputWithoutBursting(t *testing.T) {
	clock := newManualClock()
	e := NewEngine(clock, testConfig())

	e.AppendText("a")
	clock.Advance(10 * time.Millisecond)
	if got := e.Displayed(); got != "a" {
		t.Fatalf("Displayed = %q, want %q", got, "a")
	}

	// Idle frames while waiting for the transport; no progress, but
	// the engine keeps a registration alive.
	for i := 0; i < 20; i++ {
		clock.Advance(10 * time.Millisecond)
	}
	if !clock.HasPending() {
		t.Fatal("engine stopped scheduling while streaming is open")
	}

	// A late chunk reveals at the configured pace, not all at once.
	e.AppendText("bcde")
	clock.Advance(10 * time.Millisecond)
	if got := e.Displayed(); len([]rune(got)) > 2 {
		t.Errorf("burst reveal after idle wait: %q", got)
	}

	e.FinishStreaming()
	for i := 0; i < 10 && !e.IsComplete(); i++ {
		clock.Advance(10 * time.Millisecond)
	}
	if got := e.Displayed(); got != "abcde" {
		t.Errorf("Displayed = %q, want %q", got, "abcde")
	}
}

// =============================================================================
// RESET AND TEARDOWN
// =============================================================================

func TestResetAllowsReuse(t *testing.T) {
	clock := newManualClock()
	e := NewEngine(clock, testConfig())

	fired := 0
	e.SetOnComplete(func() { fired++ })

	e.AppendText("first turn")
	e.FinishStreaming()
	e.SkipAnimation()
	if fired != 1 {
		t.Fatalf("first turn completion fired %d times", fired)
	}

	e.Reset()
	if e.InputText() != "" || e.Displayed() != "" {
		t.Error("residue left after Reset")
	}
	if e.IsComplete() {
		t.Error("complete after Reset")
	}

	e.AppendText("second")
	e.FinishStreaming()
	e.SkipAnimation()
	if got := e.Displayed(); got != "second" {
		t.Errorf("Displayed = %q, want %q", got, "second")
	}
	if fired != 2 {
		t.Errorf("second turn completion fired %d times total, want 2", fired)
	}
}

func TestTeardownCancelsPendingRegistration(t *testing.T) {
	clock := newManualClock()
	e := NewEngine(clock, testConfig())

	e.AppendText("streaming text")
	if !clock.HasPending() {
		t.Fatal("no registration after append")
	}

	before := clock.cancels
	e.Teardown()
	if clock.cancels != before+1 {
		t.Errorf("cancels = %d, want %d", clock.cancels, before+1)
	}
	if clock.HasPending() {
		t.Error("registration still pending after Teardown")
	}

	// Teardown again must not double-cancel the same registration.
	e.Teardown()
	if clock.cancels != before+1 {
		t.Errorf("cancels = %d after second Teardown, want %d", clock.cancels, before+1)
	}
}

func TestAppendAfterFinishIsIgnored(t *testing.T) {
	clock := newManualClock()
	e := NewEngine(clock, testConfig())

	e.AppendText("final")
	e.FinishStreaming()
	e.AppendText(" extra")
	e.SkipAnimation()

	if got := e.Displayed(); got != "final" {
		t.Errorf("Displayed = %q, want %q", got, "final")
	}
}
