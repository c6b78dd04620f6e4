// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/relay-tui/internal/config"
	"github.com/jeranaias/relay-tui/internal/frameclock"
	"github.com/jeranaias/relay-tui/internal/gate"
	"github.com/jeranaias/relay-tui/internal/model"
	"github.com/jeranaias/relay-tui/internal/reveal"
	"github.com/jeranaias/relay-tui/internal/turn"
	"github.com/jeranaias/relay-tui/internal/util"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case RevealTickMsg:
		return m.handleRevealTick()

	case SubmitInputMsg:
		return m.submit(msg.Content)

	case ConversationSavedMsg:
		if msg.Err != nil {
			m.statusMsg = "save failed: " + msg.Err.Error()
		}
		return m, nil

	case QuotaPromptDismissMsg:
		m.quotaPrompt = false
		return m, nil

	case ConfigReloadedMsg:
		return m.applyConfig(msg.Config)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleResize adjusts layout to the new terminal size.
func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	// Header, spinner line, input, status bar.
	chromeHeight := 5
	vpHeight := msg.Height - chromeHeight
	if vpHeight < 3 {
		vpHeight = 3
	}

	m.viewport.Width = msg.Width
	m.viewport.Height = vpHeight
	m.input.Width = msg.Width - 4
	m.welcome.SetSize(msg.Width, msg.Height)
	m.renderer.SetWidth(msg.Width)
	m.theme.SetSize(msg.Width, msg.Height)

	m.refreshTranscript()
	return m, nil
}

// handleKey routes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The first interaction leaves onboarding.
	m.viewState.OnFocus()

	switch {
	case key.Matches(msg, m.keyMap.Quit):
		if m.controller != nil {
			m.controller.Cancel()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Cancel):
		if m.quotaPrompt {
			m.quotaPrompt = false
			return m, nil
		}
		if m.turnActive() {
			m.controller.Cancel()
			m.spinner.Stop()
			m.ticking = false
			m.statusMsg = "cancelled"
			m.refreshTranscript()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Skip):
		if m.controller != nil {
			m.controller.SkipAnimation()
			m.refreshTranscript()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Clear):
		return m.newConversation()

	case key.Matches(msg, m.keyMap.Submit):
		if m.quotaPrompt {
			m.quotaPrompt = false
			return m, nil
		}
		return m.submit(m.input.Value())

	case key.Matches(msg, m.keyMap.Up):
		m.viewport.LineUp(1)
		return m, nil

	case key.Matches(msg, m.keyMap.Down):
		m.viewport.LineDown(1)
		return m, nil

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keyMap.End):
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// CONFIG RELOAD
// =============================================================================

// applyConfig adopts a reloaded configuration. Reveal pacing and the
// send limit take effect on the next turn; an in-flight turn keeps the
// settings it started with.
func (m Model) applyConfig(cfg *config.Config) (tea.Model, tea.Cmd) {
	if cfg == nil {
		return m, nil
	}

	m.tickInterval = time.Duration(cfg.Reveal.FrameIntervalMs) * time.Millisecond
	m.clock = frameclock.NewTickerClock(m.tickInterval)
	m.revealCfg = reveal.Config{
		CharDelay: time.Duration(cfg.Reveal.CharDelayMs) * time.Millisecond,
		BatchSize: cfg.Reveal.BatchSize,
	}
	m.showFollowUps = cfg.UI.ShowFollowUps

	m.usage.Limit = gate.NewUsageWithLimit(cfg.Gate.SendLimit).Limit
	if m.usage.SentCount < m.usage.Limit {
		m.quotaPrompt = false
	}
	m.welcome.SetSendsLeft(m.usage.Remaining(), !m.identity.Authenticated)

	m.refreshTranscript()
	return m, nil
}

// =============================================================================
// SEND PATH
// =============================================================================

// submit runs the gated send path: normalize, authorize, dispatch.
func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	text = util.NormalizeInput(text)
	if text == "" {
		return m, nil
	}

	// Quota check happens before any turn state is created. A denial
	// surfaces as the sign-up prompt, never as a chat message.
	if !gate.CanSend(m.identity, m.usage) {
		m.quotaPrompt = true
		return m, nil
	}

	// A new send supersedes any in-flight turn.
	if m.turnActive() {
		m.controller.Cancel()
	}

	orch := turn.NewOrchestrator(m.service, m.logger)
	m.controller = turn.NewController(orch, m.clock, m.revealCfg, m.conversation)
	m.controller.Start(text)

	// The send is dispatched; only now does it count against quota.
	m.usage = gate.RecordSend(m.identity, m.usage)
	if m.gateStore != nil && !m.identity.Authenticated {
		if u, err := m.gateStore.RecordSend(m.sessionID); err == nil {
			m.usage = u
		}
	}
	m.viewState.OnSendDispatched()
	m.welcome.SetSendsLeft(m.usage.Remaining(), !m.identity.Authenticated)

	m.input.Reset()
	m.statusMsg = ""
	m.ticking = true
	m.refreshTranscript()

	return m, tea.Batch(
		m.spinner.Start(),
		revealTickCmd(m.tickInterval),
		textinput.Blink,
	)
}

// newConversation saves the current transcript and starts fresh.
func (m Model) newConversation() (tea.Model, tea.Cmd) {
	if m.turnActive() {
		m.controller.Cancel()
		m.ticking = false
		m.spinner.Stop()
	}

	var saveCmd tea.Cmd
	if m.store != nil && m.conversation.Len() > 0 {
		conv := m.conversation
		store := m.store
		saveCmd = func() tea.Msg {
			id, err := store.Save(conv)
			return ConversationSavedMsg{ID: id, Err: err}
		}
	}

	m.conversation = model.NewConversation()
	m.controller = nil
	m.statusMsg = ""
	m.refreshTranscript()
	return m, saveCmd
}

// =============================================================================
// RENDER TICK
// =============================================================================

// handleRevealTick polls the active controller and re-renders.
func (m Model) handleRevealTick() (tea.Model, tea.Cmd) {
	if m.controller == nil {
		m.ticking = false
		return m, nil
	}

	// The spinner runs until the first revealed character.
	if m.spinner.IsActive() && m.controller.Displayed() != "" {
		m.spinner.Stop()
	}

	m.refreshTranscript()

	if m.turnActive() {
		return m, revealTickCmd(m.tickInterval)
	}

	// Turn finished: final render plus a background save.
	m.ticking = false
	m.spinner.Stop()

	var saveCmd tea.Cmd
	if m.store != nil && m.conversation.Len() > 0 {
		conv := m.conversation
		store := m.store
		saveCmd = func() tea.Msg {
			id, err := store.Save(conv)
			return ConversationSavedMsg{ID: id, Err: err}
		}
	}
	return m, saveCmd
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// refreshTranscript rebuilds the viewport content from the
// conversation plus the in-flight reveal buffer. The assistant message
// of the active turn is still being written by the controller's
// goroutines, so it is rendered exclusively from a locked snapshot;
// only settled messages are read directly.
func (m *Model) refreshTranscript() {
	var sections []string

	msgs := m.conversation.Messages
	settled := len(msgs)
	var snap turn.Snapshot
	if m.controller != nil && settled > 0 {
		snap = m.controller.Snapshot()
		settled--
	}

	for _, msg := range msgs[:settled] {
		if msg.Role == model.RoleUser {
			sections = append(sections, m.renderer.RenderUser(msg))
		} else {
			sections = append(sections, m.renderer.RenderAssistant(msg))
		}
	}

	if settled < len(msgs) {
		switch snap.Status {
		case turn.StatusComplete, turn.StatusFailed:
			reply := &model.Message{
				Role:        model.RoleAssistant,
				Content:     snap.Content,
				IsError:     snap.IsError,
				Disclaimers: snap.Disclaimers,
				Sources:     snap.Sources,
			}
			sections = append(sections, m.renderer.RenderAssistant(reply))
		default:
			// The lagging display buffer, not the raw streamed content.
			if out := m.renderer.RenderStreaming(snap.Displayed); out != "" {
				sections = append(sections, out)
			}
		}

		// Follow-up suggestions appear once the turn is complete.
		if m.showFollowUps && snap.Status == turn.StatusComplete {
			if out := m.renderer.RenderFollowUps(snap.FollowUps); out != "" {
				sections = append(sections, out)
			}
		}
	}

	m.viewport.SetContent(strings.Join(sections, "\n\n"))
	m.viewport.GotoBottom()
}
