// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the relay TUI.
package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/relay-tui/internal/ui/styles"
)

// =============================================================================
// SPINNER MODEL
// =============================================================================

// Spinner is the loading spinner shown while a turn is pending.
type Spinner struct {
	spinner   spinner.Model
	message   string
	startTime time.Time

	isActive  bool
	showTimer bool

	theme *styles.Theme
}

// NewSpinner creates a spinner with ASCII-compatible frames.
func NewSpinner(theme *styles.Theme) Spinner {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	s.Style = theme.Spinner

	return Spinner{
		spinner:   s,
		message:   "Thinking",
		showTimer: true,
		theme:     theme,
	}
}

// SetMessage changes the label next to the spinner.
func (s *Spinner) SetMessage(message string) {
	s.message = message
}

// Start activates the spinner and resets its timer.
func (s *Spinner) Start() tea.Cmd {
	s.isActive = true
	s.startTime = time.Now()
	return s.spinner.Tick
}

// Stop deactivates the spinner.
func (s *Spinner) Stop() {
	s.isActive = false
}

// IsActive reports whether the spinner is running.
func (s *Spinner) IsActive() bool {
	return s.isActive
}

// Update advances the spinner animation.
func (s Spinner) Update(msg tea.Msg) (Spinner, tea.Cmd) {
	if !s.isActive {
		return s, nil
	}
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return s, cmd
}

// View renders the spinner line.
func (s Spinner) View() string {
	if !s.isActive {
		return ""
	}

	line := s.spinner.View() + " " + s.theme.ThinkingText.Render(s.message+"...")
	if s.showTimer {
		elapsed := time.Since(s.startTime).Round(time.Second)
		if elapsed >= time.Second {
			line += " " + s.theme.ThinkingText.Render(fmt.Sprintf("(%s)", elapsed))
		}
	}
	return line
}
