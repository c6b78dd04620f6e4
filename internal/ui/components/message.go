// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/relay-tui/internal/model"
	"github.com/jeranaias/relay-tui/internal/ui/styles"
)

// =============================================================================
// MESSAGE RENDERER
// =============================================================================

// MessageRenderer renders conversation messages for the transcript.
// Completed assistant messages are rendered as markdown; in-flight
// text is shown raw so the reveal animation is not disturbed by
// reflowing.
type MessageRenderer struct {
	theme    *styles.Theme
	width    int
	markdown *glamour.TermRenderer
}

// NewMessageRenderer creates a renderer for the given width.
func NewMessageRenderer(theme *styles.Theme, width int) *MessageRenderer {
	r := &MessageRenderer{theme: theme}
	r.SetWidth(width)
	return r
}

// SetWidth rebuilds the markdown renderer for a new wrap width.
func (r *MessageRenderer) SetWidth(width int) {
	if width < 20 {
		width = 20
	}
	r.width = width

	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-8),
	)
	if err != nil {
		md = nil // fall back to plain text
	}
	r.markdown = md
}

// RenderUser renders a user message bubble.
func (r *MessageRenderer) RenderUser(msg *model.Message) string {
	return r.theme.UserBubble.MaxWidth(r.width).Render(msg.Content)
}

// RenderAssistant renders a completed assistant message, including
// any terminal metadata delivered with the done event.
func (r *MessageRenderer) RenderAssistant(msg *model.Message) string {
	if msg.IsError {
		return r.theme.ErrorBubble.MaxWidth(r.width).Render(msg.Content)
	}

	body := r.renderMarkdown(msg.Content)
	parts := []string{r.theme.AssistantBubble.MaxWidth(r.width).Render(body)}

	for _, d := range msg.Disclaimers {
		parts = append(parts, r.theme.Disclaimer.Render(d))
	}
	for _, s := range msg.Sources {
		label := s.Title
		if label == "" {
			label = s.URL
		}
		parts = append(parts, r.theme.SourceLink.Render(label))
	}

	return strings.Join(parts, "\n")
}

// RenderStreaming renders the in-flight portion of an assistant turn:
// plain text with code fences highlighted, no markdown reflow.
func (r *MessageRenderer) RenderStreaming(displayed string) string {
	if displayed == "" {
		return ""
	}
	body := ParseCodeBlocks(displayed, r.width)
	return r.theme.AssistantBubble.MaxWidth(r.width).Render(body)
}

// RenderFollowUps renders follow-up suggestions beneath a turn.
func (r *MessageRenderer) RenderFollowUps(followUps []string) string {
	if len(followUps) == 0 {
		return ""
	}
	var lines []string
	for _, f := range followUps {
		lines = append(lines, r.theme.FollowUp.Render("> "+f))
	}
	return strings.Join(lines, "\n")
}

func (r *MessageRenderer) renderMarkdown(content string) string {
	if r.markdown == nil {
		return content
	}
	out, err := r.markdown.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}
