// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// model.go - Chat view model and construction.

package chat

import (
	"log"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/relay-tui/internal/config"
	"github.com/jeranaias/relay-tui/internal/frameclock"
	"github.com/jeranaias/relay-tui/internal/gate"
	"github.com/jeranaias/relay-tui/internal/model"
	"github.com/jeranaias/relay-tui/internal/reveal"
	"github.com/jeranaias/relay-tui/internal/storage"
	"github.com/jeranaias/relay-tui/internal/turn"
	"github.com/jeranaias/relay-tui/internal/ui/components"
	"github.com/jeranaias/relay-tui/internal/ui/styles"
)

// =============================================================================
// TRANSCRIBER
// =============================================================================

// Transcriber converts recorded audio into input text. The pipeline
// treats its output exactly like typed input. A nil Transcriber
// disables voice input.
type Transcriber func(audio []byte) (string, error)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Options configures a chat view.
type Options struct {
	Service     turn.ChatService
	Theme       *styles.Theme
	Config      *config.Config
	Identity    gate.Identity
	GateStore   *gate.Store
	SessionID   string
	Store       *storage.ConversationStore
	Logger      *log.Logger
	Transcriber Transcriber
	Version     string
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// Presentation state machine: onboarding -> ready -> chatting.
	viewState *gate.ViewStateMachine

	// Styling
	theme *styles.Theme

	// Dimensions
	width  int
	height int

	// Conversation and the active turn
	conversation *model.Conversation
	controller   *turn.Controller
	service      turn.ChatService

	// Animation plumbing
	clock        frameclock.Clock
	revealCfg    reveal.Config
	tickInterval time.Duration
	ticking      bool

	// Session gate
	identity    gate.Identity
	gateStore   *gate.Store
	sessionID   string
	usage       gate.Usage
	quotaPrompt bool

	// Persistence
	store *storage.ConversationStore

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  components.Spinner
	welcome  components.Welcome
	renderer *components.MessageRenderer

	keyMap KeyMap

	transcribe Transcriber
	logger     *log.Logger

	showFollowUps bool
	statusMsg     string
	version       string
}

// New creates a new chat model.
func New(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
		cfg.Clamp()
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask anything..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	tickInterval := time.Duration(cfg.Reveal.FrameIntervalMs) * time.Millisecond

	usage := gate.NewUsageWithLimit(cfg.Gate.SendLimit)
	hasChatted := false
	if opts.GateStore != nil {
		if u, err := opts.GateStore.Usage(opts.SessionID); err == nil {
			usage = u
		}
		if chatted, err := opts.GateStore.HasChatted(opts.SessionID); err == nil {
			hasChatted = chatted
		}
	}

	welcome := components.NewWelcome(theme)
	if opts.Version != "" {
		welcome.SetVersion(opts.Version)
	}
	welcome.SetSendsLeft(usage.Remaining(), !opts.Identity.Authenticated)

	return Model{
		viewState:    gate.NewViewStateMachine(hasChatted),
		theme:        theme,
		conversation: model.NewConversation(),
		service:      opts.Service,
		clock:        frameclock.NewTickerClock(tickInterval),
		revealCfg: reveal.Config{
			CharDelay: time.Duration(cfg.Reveal.CharDelayMs) * time.Millisecond,
			BatchSize: cfg.Reveal.BatchSize,
		},
		tickInterval:  tickInterval,
		identity:      opts.Identity,
		gateStore:     opts.GateStore,
		sessionID:     opts.SessionID,
		usage:         usage,
		store:         opts.Store,
		viewport:      vp,
		input:         ti,
		spinner:       components.NewSpinner(theme),
		welcome:       welcome,
		renderer:      components.NewMessageRenderer(theme, 80),
		keyMap:        DefaultKeyMap(),
		transcribe:    opts.Transcriber,
		logger:        opts.Logger,
		showFollowUps: cfg.UI.ShowFollowUps,
		version:       opts.Version,
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// ViewState exposes the presentation state for tests and the host.
func (m Model) ViewState() gate.ViewState {
	return m.viewState.State()
}

// Conversation returns the active conversation.
func (m Model) Conversation() *model.Conversation {
	return m.conversation
}

// turnActive reports whether a turn is currently in flight or
// animating.
func (m Model) turnActive() bool {
	if m.controller == nil {
		return false
	}
	switch m.controller.Status() {
	case turn.StatusComplete, turn.StatusFailed:
		return false
	default:
		return true
	}
}
