// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/relay-tui/internal/gate"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the full TUI.
func (m Model) View() string {
	if m.viewState.State() == gate.StateOnboarding {
		return m.welcome.View()
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.quotaPrompt {
		b.WriteString(m.renderQuotaPrompt())
		b.WriteString("\n")
	} else {
		b.WriteString(m.renderSpinnerLine())
		b.WriteString("\n")
		b.WriteString(m.theme.InputContainer.Render(m.input.View()))
		b.WriteString("\n")
	}

	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("relay")
	subtitle := m.theme.HeaderSubtitle.Render(m.version)
	return m.theme.Header.Render(title + " " + subtitle)
}

// renderSpinnerLine shows the thinking indicator while a turn is
// pending and nothing has been revealed yet.
func (m Model) renderSpinnerLine() string {
	if m.spinner.IsActive() {
		return m.spinner.View()
	}
	if m.statusMsg != "" {
		return m.theme.ShortcutDesc.Render(m.statusMsg)
	}
	return ""
}

// renderQuotaPrompt is the sign-up call to action shown when the
// anonymous send allowance runs out. It replaces the input area and
// never appears inside the transcript.
func (m Model) renderQuotaPrompt() string {
	title := m.theme.QuotaTitle.Render("You've used your free messages")
	detail := m.theme.QuotaDetail.Render(
		"Sign up to keep chatting with unlimited messages.\n" +
			"Press esc or enter to dismiss.")
	box := m.theme.QuotaBox.Render(title + "\n\n" + detail)
	if m.width > 0 {
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Center, box)
	}
	return box
}

func (m Model) renderStatusBar() string {
	var parts []string
	for _, binding := range m.keyMap.ShortHelp() {
		parts = append(parts,
			m.theme.ShortcutKey.Render(binding.Help().Key)+
				" "+m.theme.ShortcutDesc.Render(binding.Help().Desc))
	}
	bar := strings.Join(parts, "  ")

	if !m.identity.Authenticated {
		quota := m.theme.QuotaCount.Render(
			fmt.Sprintf("%d free message(s) left", m.usage.Remaining()))
		bar = bar + "  " + quota
	}
	return m.theme.StatusBar.Render(bar)
}
