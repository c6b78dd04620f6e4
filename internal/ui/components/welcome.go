// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/relay-tui/internal/ui/styles"
)

// =============================================================================
// WELCOME SCREEN
// =============================================================================

// Welcome is the onboarding surface shown before any chat activity.
type Welcome struct {
	version    string
	sendsLeft  int
	showSends  bool
	width      int
	height     int
	theme      *styles.Theme
}

// NewWelcome creates a new welcome screen.
func NewWelcome(theme *styles.Theme) Welcome {
	return Welcome{
		version: "dev",
		theme:   theme,
	}
}

// SetVersion sets the version string.
func (w *Welcome) SetVersion(version string) {
	w.version = version
}

// SetSendsLeft shows the anonymous quota remaining on the welcome
// surface. Hidden for authenticated users.
func (w *Welcome) SetSendsLeft(n int, show bool) {
	w.sendsLeft = n
	w.showSends = show
}

// SetSize updates the dimensions.
func (w *Welcome) SetSize(width, height int) {
	w.width = width
	w.height = height
}

// View renders the welcome screen centered in the available space.
func (w Welcome) View() string {
	width := w.width
	if width == 0 {
		width = 80
	}
	height := w.height
	if height == 0 {
		height = 24
	}

	var lines []string
	lines = append(lines, w.theme.WelcomeLogo.Render("relay"))
	lines = append(lines, w.theme.WelcomeInfo.Render("v"+w.version))
	lines = append(lines, "")
	lines = append(lines, w.theme.WelcomeInfo.Render("Ask anything. Responses stream in as they arrive."))
	if w.showSends {
		lines = append(lines, w.theme.QuotaCount.Render(
			fmt.Sprintf("%d free messages this session", w.sendsLeft)))
	}
	lines = append(lines, "")
	lines = append(lines, w.theme.WelcomePressKey.Render("Start typing to begin, Ctrl+C to quit"))

	box := w.theme.WelcomeBox.Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
