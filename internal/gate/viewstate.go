// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gate

// =============================================================================
// VIEW STATE MACHINE
// =============================================================================

// ViewState is the coarse presentation state of the chat surface.
// Transitions only move forward within a session.
type ViewState int

const (
	// StateOnboarding shows the welcome surface; no chat activity yet.
	StateOnboarding ViewState = iota
	// StateReady shows the input; the session has been touched but no
	// turn dispatched.
	StateReady
	// StateChatting shows the transcript; at least one turn dispatched.
	StateChatting
)

func (s ViewState) String() string {
	switch s {
	case StateOnboarding:
		return "onboarding"
	case StateReady:
		return "ready"
	case StateChatting:
		return "chatting"
	default:
		return "unknown"
	}
}

// ViewStateMachine tracks the onboarding → ready → chatting
// progression. Not safe for concurrent use; the view layer owns it.
type ViewStateMachine struct {
	state ViewState
}

// NewViewStateMachine starts in onboarding, or directly in ready when
// the session has chatted before (session flag present at mount).
func NewViewStateMachine(hasChatted bool) *ViewStateMachine {
	m := &ViewStateMachine{state: StateOnboarding}
	if hasChatted {
		m.state = StateReady
	}
	return m
}

// State returns the current view state.
func (m *ViewStateMachine) State() ViewState {
	return m.state
}

// OnFocus advances onboarding to ready on first input interaction.
func (m *ViewStateMachine) OnFocus() {
	if m.state == StateOnboarding {
		m.state = StateReady
	}
}

// OnSendDispatched advances to chatting on the first dispatched send.
func (m *ViewStateMachine) OnSendDispatched() {
	if m.state < StateChatting {
		m.state = StateChatting
	}
}
