// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question handler for the relay CLI.
//
// Handles "relay ask" which sends a single question and prints the
// response, with markdown rendering on a TTY and plain text when piped.
//
// Examples:
//   relay ask "how do I rotate my API key?"
//   relay ask "summarize this" < notes.txt
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/jeranaias/relay-tui/internal/chatapi"
	"github.com/jeranaias/relay-tui/internal/gate"
	"github.com/jeranaias/relay-tui/internal/turn"
	"github.com/jeranaias/relay-tui/internal/ui/styles"
	"github.com/jeranaias/relay-tui/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)

	warningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose)

	disclaimerStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Italic(true)
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdownRenderer is the shared glamour renderer for terminal output.
var markdownRenderer *glamour.TermRenderer

func init() {
	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		markdownRenderer = nil
	}
}

// renderMarkdown renders markdown for terminal display. Returns the
// original content if rendering fails.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayResponse prints a response, rendering markdown only on a TTY
// so piped output stays clean.
func displayResponse(response string) {
	if IsStdoutTTY() {
		fmt.Print(renderMarkdown(response))
	} else {
		fmt.Print(response)
	}
}

// =============================================================================
// ONE-SHOT ASK
// =============================================================================

// AskOptions configures a one-shot question.
type AskOptions struct {
	Service   turn.ChatService
	Identity  gate.Identity
	GateStore *gate.Store
	SessionID string
	SendLimit int
	Quiet     bool
}

// HandleAskCommand sends a single question and prints the response.
func HandleAskCommand(question string, opts AskOptions) error {
	question = util.NormalizeInput(question)
	if question == "" {
		return fmt.Errorf("no question provided")
	}

	usage := gate.NewUsageWithLimit(opts.SendLimit)
	if opts.GateStore != nil {
		if u, err := opts.GateStore.Usage(opts.SessionID); err == nil {
			usage = u
		}
	}
	if !gate.CanSend(opts.Identity, usage) {
		printQuotaNotice(usage)
		return nil
	}

	orch := turn.NewOrchestrator(opts.Service, nil)
	req := chatapi.ChatRequest{Message: question}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var content string
	var disclaimers []string
	var isError bool

	useMarkdown := IsStdoutTTY()
	outcome := orch.RunTurn(ctx, uuid.New(), req, func(ev turn.Event) {
		switch ev.Kind {
		case turn.KindContent:
			content += ev.Content
			if !useMarkdown {
				fmt.Print(ev.Content)
			}
		case turn.KindFallbackStarted:
			// Partial streamed content is superseded by the whole
			// fallback response.
			if !useMarkdown && content != "" {
				fmt.Println()
				fmt.Fprintln(os.Stderr, warningStyle.Render("[Retrying]"))
			}
			content = ""
		case turn.KindDone:
			disclaimers = ev.Disclaimers
			isError = ev.IsError
		}
	})

	if opts.GateStore != nil && !opts.Identity.Authenticated {
		opts.GateStore.RecordSend(opts.SessionID)
	}

	if useMarkdown {
		if isError {
			fmt.Fprintln(os.Stderr, errorStyle.Render(content))
		} else {
			displayResponse(content)
		}
	}
	fmt.Println()

	if !opts.Quiet {
		for _, d := range disclaimers {
			fmt.Fprintln(os.Stderr, disclaimerStyle.Render(d))
		}
	}

	if outcome.Err != nil && outcome.Phase != turn.PhaseErrorDelivered {
		return fmt.Errorf("turn failed: %w", outcome.Err)
	}
	return nil
}

// printQuotaNotice is the sign-up call to action for exhausted
// anonymous sessions. It goes to stderr and never looks like a
// response.
func printQuotaNotice(usage gate.Usage) {
	fmt.Fprintf(os.Stderr, "%s You've used your %d free messages this session.\n",
		warningStyle.Render("[Limit]"), usage.Limit)
	fmt.Fprintln(os.Stderr, infoStyle.Render("Sign up to keep chatting with unlimited messages."))
}
