// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// messages.go - Bubble Tea message types for the chat view.

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/relay-tui/internal/config"
)

// =============================================================================
// RENDER TICK
// =============================================================================

// RevealTickMsg drives transcript re-rendering while a turn is active.
// Each tick polls the turn controller for newly revealed text.
type RevealTickMsg struct {
	Time time.Time
}

// revealTickCmd schedules the next render tick.
func revealTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return RevealTickMsg{Time: t}
	})
}

// =============================================================================
// INPUT MESSAGES
// =============================================================================

// SubmitInputMsg signals that the user submitted input. Transcription
// output enters through the same message as typed text.
type SubmitInputMsg struct {
	Content string
}

// =============================================================================
// PERSISTENCE MESSAGES
// =============================================================================

// ConversationSavedMsg reports the result of a background save.
type ConversationSavedMsg struct {
	ID  string
	Err error
}

// =============================================================================
// QUOTA MESSAGES
// =============================================================================

// QuotaPromptDismissMsg hides the sign-up prompt.
type QuotaPromptDismissMsg struct{}

// =============================================================================
// CONFIG MESSAGES
// =============================================================================

// ConfigReloadedMsg delivers a freshly loaded configuration to the
// running view. The host's file watcher sends it into the program.
type ConfigReloadedMsg struct {
	Config *config.Config
}
