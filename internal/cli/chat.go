// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat REPL for plain terminals.
//
// Handles "relay chat" for terminals where the full TUI is not
// available (piped stdin, dumb terminals). Provides readline-style
// input with history via liner.
//
// Interactive commands:
//   /help, /h      Show available commands
//   /clear, /c     Start a new conversation
//   /history       Show the conversation so far
//   /save          Save the conversation
//   /quit, /q      Exit chat
//   Ctrl+C         Cancel the current response
//   Ctrl+D         Exit chat
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/peterh/liner"

	"github.com/jeranaias/relay-tui/internal/chatapi"
	"github.com/jeranaias/relay-tui/internal/config"
	"github.com/jeranaias/relay-tui/internal/gate"
	"github.com/jeranaias/relay-tui/internal/model"
	"github.com/jeranaias/relay-tui/internal/storage"
	"github.com/jeranaias/relay-tui/internal/turn"
	"github.com/jeranaias/relay-tui/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI with history loaded from the config
// directory.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with history navigation.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and releases the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// ChatSession holds the state for an interactive chat session.
type ChatSession struct {
	Conversation *model.Conversation

	Config    *config.Config
	Identity  gate.Identity
	GateStore *gate.Store
	SessionID string
	Usage     gate.Usage

	Service turn.ChatService
	Store   *storage.ConversationStore

	StartTime time.Time
	SentCount int

	// Cancel function for the in-flight turn.
	CancelFunc context.CancelFunc

	InputCLI *ChatCLI
}

// ChatOptions configures an interactive session.
type ChatOptions struct {
	Service   turn.ChatService
	Config    *config.Config
	Identity  gate.Identity
	GateStore *gate.Store
	SessionID string
	Store     *storage.ConversationStore
	Quiet     bool
}

// NewChatSession creates a session with usage loaded from the gate
// store.
func NewChatSession(opts ChatOptions) *ChatSession {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
		cfg.Clamp()
	}

	usage := gate.NewUsageWithLimit(cfg.Gate.SendLimit)
	if opts.GateStore != nil {
		if u, err := opts.GateStore.Usage(opts.SessionID); err == nil {
			usage = u
		}
	}

	return &ChatSession{
		Conversation: model.NewConversation(),
		Config:       cfg,
		Identity:     opts.Identity,
		GateStore:    opts.GateStore,
		SessionID:    opts.SessionID,
		Usage:        usage,
		Service:      opts.Service,
		Store:        opts.Store,
		StartTime:    time.Now(),
		InputCLI:     NewChatCLI(),
	}
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChatCommand runs the interactive REPL until the user exits.
func HandleChatCommand(opts ChatOptions) error {
	session := NewChatSession(opts)

	if !opts.Quiet {
		printWelcome(session)
	}

	defer session.InputCLI.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for range sigChan {
			// First Ctrl+C cancels the current response.
			if session.CancelFunc != nil {
				session.CancelFunc()
				session.CancelFunc = nil
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Cancelled]"))
			}
		}
	}()

	for {
		input, err := session.InputCLI.ReadInput(promptStyle.Render("relay> "))
		if err != nil {
			// Ctrl+C at the prompt or EOF (Ctrl+D): exit gracefully.
			fmt.Println()
			printExitSummary(session)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldContinue, err := handleSlashCommand(input, session)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
			}
			if !shouldContinue {
				printExitSummary(session)
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			printExitSummary(session)
			return nil
		}

		if err := processMessage(session, input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		}
	}
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// processMessage runs one gated turn and prints the response.
func processMessage(session *ChatSession, input string) error {
	input = util.NormalizeInput(input)
	if input == "" {
		return nil
	}

	// The quota check happens before any turn state is created.
	if !gate.CanSend(session.Identity, session.Usage) {
		printQuotaNotice(session.Usage)
		return nil
	}

	req := chatapi.ChatRequest{
		Message:        input,
		ConversationID: session.Conversation.RemoteID,
		History:        session.Conversation.History(),
	}
	session.Conversation.AddMessage(model.NewUserMessage(input))

	ctx, cancel := context.WithCancel(context.Background())
	session.CancelFunc = cancel
	defer func() {
		session.CancelFunc = nil
		cancel()
	}()

	useMarkdown := IsStdoutTTY()
	fmt.Println()

	var content string
	var disclaimers []string
	var isError bool

	orch := turn.NewOrchestrator(session.Service, nil)
	outcome := orch.RunTurn(ctx, uuid.New(), req, func(ev turn.Event) {
		switch ev.Kind {
		case turn.KindConversationID:
			session.Conversation.SetRemoteID(ev.ConversationID)
		case turn.KindContent:
			content += ev.Content
			if !useMarkdown {
				fmt.Print(ev.Content)
			}
		case turn.KindFallbackStarted:
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

	// The send was dispatched; count it now.
	session.Usage = gate.RecordSend(session.Identity, session.Usage)
	if session.GateStore != nil && !session.Identity.Authenticated {
		if u, err := session.GateStore.RecordSend(session.SessionID); err == nil {
			session.Usage = u
		}
	}
	session.SentCount++

	if useMarkdown {
		if isError {
			fmt.Fprintln(os.Stderr, errorStyle.Render(content))
		} else {
			displayResponse(content)
		}
	}
	fmt.Println()

	for _, d := range disclaimers {
		fmt.Fprintln(os.Stderr, disclaimerStyle.Render(d))
	}
	fmt.Println()

	reply := model.NewMessage(model.RoleAssistant, content)
	reply.IsError = isError
	reply.Disclaimers = disclaimers
	session.Conversation.AddMessage(reply)

	if outcome.Err != nil && outcome.Phase != turn.PhaseErrorDelivered {
		return fmt.Errorf("turn failed: %w", outcome.Err)
	}

	if !session.Identity.Authenticated && session.Usage.Remaining() > 0 {
		fmt.Fprintf(os.Stderr, "%s %d free message(s) left\n",
			infoStyle.Render("[Session]"), session.Usage.Remaining())
	}
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands. Returns
// (shouldContinue, error) where shouldContinue=false means exit.
func handleSlashCommand(cmd string, session *ChatSession) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	switch strings.ToLower(parts[0]) {
	case "/help", "/h", "/?", "/":
		printHelp()
		return true, nil

	case "/clear", "/c":
		session.Conversation = model.NewConversation()
		fmt.Println(commandStyle.Render("[Conversation cleared]"))
		return true, nil

	case "/history":
		printHistory(session)
		return true, nil

	case "/save":
		return true, saveConversation(session)

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", parts[0])
	}
}

func saveConversation(session *ChatSession) error {
	if session.Store == nil {
		return fmt.Errorf("conversation store unavailable")
	}
	id, err := session.Store.Save(session.Conversation)
	if err != nil {
		return err
	}
	fmt.Printf("%s Saved conversation %s\n", commandStyle.Render("[OK]"), id)
	return nil
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

func printWelcome(session *ChatSession) {
	fmt.Println()
	fmt.Println(welcomeStyle.Render("relay interactive chat"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 30)))
	if !session.Identity.Authenticated {
		fmt.Printf("%s %d free messages this session\n",
			infoStyle.Render("Quota:"), session.Usage.Remaining())
	}
	fmt.Println(infoStyle.Render("Type /help for commands, /quit to exit"))
	fmt.Println()
}

func printHelp() {
	fmt.Println()
	fmt.Println(welcomeStyle.Render("Commands"))
	rows := [][2]string{
		{"/help, /h", "Show this help"},
		{"/clear, /c", "Start a new conversation"},
		{"/history", "Show the conversation so far"},
		{"/save", "Save the conversation"},
		{"/quit, /q", "Exit chat"},
	}
	for _, row := range rows {
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-12s", row[0])),
			infoStyle.Render(row[1]))
	}
	fmt.Println()
}

func printHistory(session *ChatSession) {
	if session.Conversation.Len() == 0 {
		fmt.Println(infoStyle.Render("[No messages yet]"))
		return
	}
	fmt.Println()
	for _, msg := range session.Conversation.Messages {
		label := infoStyle.Render("assistant")
		if msg.Role == model.RoleUser {
			label = promptStyle.Render("you")
		}
		fmt.Printf("%s  %s\n", label, msg.Preview(100))
	}
	fmt.Println()
}

func printExitSummary(session *ChatSession) {
	if session.SentCount == 0 {
		return
	}
	fmt.Printf("%s %d message(s) in %s\n",
		infoStyle.Render("[Session]"),
		session.SentCount,
		time.Since(session.StartTime).Round(time.Second))
}
