// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// GATE PREDICATE TESTS
// =============================================================================

func TestCanSend_AuthenticatedAlwaysPasses(t *testing.T) {
	auth := Identity{Authenticated: true}

	// Even far past the limit.
	usage := Usage{SentCount: 100, Limit: DefaultSendLimit}
	assert.True(t, CanSend(auth, usage))
	assert.True(t, CanSend(auth, NewUsage()))
}

func TestCanSend_AnonymousBelowLimit(t *testing.T) {
	usage := NewUsage()
	for i := 0; i < DefaultSendLimit; i++ {
		assert.True(t, CanSend(Anonymous, usage), "send %d should pass", i+1)
		usage = RecordSend(Anonymous, usage)
	}
	assert.False(t, CanSend(Anonymous, usage), "send past the limit must be blocked")
	assert.Equal(t, 0, usage.Remaining())
}

func TestRecordSend_AuthenticatedDoesNotCount(t *testing.T) {
	auth := Identity{Authenticated: true}
	usage := NewUsage()
	for i := 0; i < 10; i++ {
		usage = RecordSend(auth, usage)
	}
	assert.Equal(t, 0, usage.SentCount)
	assert.Equal(t, DefaultSendLimit, usage.Remaining())
}

func TestNewUsageWithLimit(t *testing.T) {
	assert.Equal(t, 10, NewUsageWithLimit(10).Limit)
	assert.Equal(t, DefaultSendLimit, NewUsageWithLimit(0).Limit)
	assert.Equal(t, DefaultSendLimit, NewUsageWithLimit(-1).Limit)
}

func TestUsage_Remaining(t *testing.T) {
	assert.Equal(t, 3, Usage{SentCount: 0, Limit: 3}.Remaining())
	assert.Equal(t, 1, Usage{SentCount: 2, Limit: 3}.Remaining())
	assert.Equal(t, 0, Usage{SentCount: 3, Limit: 3}.Remaining())
	// Over-count never goes negative.
	assert.Equal(t, 0, Usage{SentCount: 7, Limit: 3}.Remaining())
}

// =============================================================================
// VIEW STATE TESTS
// =============================================================================

func TestViewState_OnboardingProgression(t *testing.T) {
	m := NewViewStateMachine(false)
	assert.Equal(t, StateOnboarding, m.State())

	m.OnFocus()
	assert.Equal(t, StateReady, m.State())

	m.OnSendDispatched()
	assert.Equal(t, StateChatting, m.State())
}

func TestViewState_SessionFlagSkipsOnboarding(t *testing.T) {
	m := NewViewStateMachine(true)
	assert.Equal(t, StateReady, m.State())
}

func TestViewState_NeverRegresses(t *testing.T) {
	m := NewViewStateMachine(false)
	m.OnSendDispatched()
	assert.Equal(t, StateChatting, m.State())

	// Late focus events do not move the machine backwards.
	m.OnFocus()
	assert.Equal(t, StateChatting, m.State())
}

func TestViewState_SendFromOnboardingJumpsToChatting(t *testing.T) {
	m := NewViewStateMachine(false)
	m.OnSendDispatched()
	assert.Equal(t, StateChatting, m.State())
}

func TestViewState_String(t *testing.T) {
	assert.Equal(t, "onboarding", StateOnboarding.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "chatting", StateChatting.String())
}
