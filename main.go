// relay TUI - A terminal chat client with streamed, animated responses.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/jeranaias/relay-tui/internal/chatapi"
	"github.com/jeranaias/relay-tui/internal/cli"
	"github.com/jeranaias/relay-tui/internal/config"
	"github.com/jeranaias/relay-tui/internal/gate"
	"github.com/jeranaias/relay-tui/internal/storage"
	"github.com/jeranaias/relay-tui/internal/ui/chat"
	"github.com/jeranaias/relay-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "", "tui":
		runTUI()

	case "chat":
		runChat()

	case "ask":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: relay ask \"question\"")
			os.Exit(1)
		}
		runAsk(strings.Join(args[1:], " "))

	case "config":
		runConfig(args[1:])

	case "version", "--version", "-v":
		fmt.Printf("relay %s (%s, built %s)\n", Version, GitCommit, BuildDate)

	case "help", "--help", "-h":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("relay - terminal chat client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  relay              Start the TUI (default)")
	fmt.Println("  relay chat         Plain interactive chat (no TUI)")
	fmt.Println("  relay ask \"q\"      Ask a single question")
	fmt.Println("  relay config path  Print the config file path")
	fmt.Println("  relay config show  Print the active configuration")
	fmt.Println("  relay version      Print version information")
}

// =============================================================================
// SHARED WIRING
// =============================================================================

// deps is everything the chat surfaces need, wired once.
type deps struct {
	cfg       *config.Config
	service   *chatapi.Client
	identity  gate.Identity
	gateStore *gate.Store
	sessionID string
	store     *storage.ConversationStore
	logger    *log.Logger
	closers   []io.Closer
}

func buildDeps() (*deps, error) {
	cfg := config.Global()

	logger, logCloser := setupLogger(cfg)

	var opts []chatapi.Option
	if cfg.API.APIKey != "" {
		opts = append(opts, chatapi.WithAPIKey(cfg.API.APIKey))
	}
	if logger != nil {
		opts = append(opts, chatapi.WithLogger(logger))
	}
	service := chatapi.NewClient(cfg.API.BaseURL, opts...)

	// An API key is the authentication signal. Anonymous sessions get
	// the free-message allowance.
	identity := gate.Anonymous
	if cfg.API.APIKey != "" {
		identity = gate.Identity{Authenticated: true}
	}

	d := &deps{
		cfg:      cfg,
		service:  service,
		identity: identity,
		logger:   logger,
	}
	if logCloser != nil {
		d.closers = append(d.closers, logCloser)
	}

	if configDir, err := config.ConfigDir(); err == nil {
		if gs, err := gate.OpenStore(filepath.Join(configDir, "sessions.db"), cfg.Gate.SendLimit); err == nil {
			d.gateStore = gs
			d.closers = append(d.closers, gs)
		}
		d.sessionID = loadSessionID(configDir)
	}
	if d.sessionID == "" {
		d.sessionID = uuid.NewString()
	}

	if store, err := storage.NewConversationStore(); err == nil {
		d.store = store
	}

	return d, nil
}

func (d *deps) close() {
	for _, c := range d.closers {
		c.Close()
	}
}

// loadSessionID reads the persisted anonymous session id, minting one
// on first run so the free-message allowance survives restarts.
func loadSessionID(configDir string) string {
	path := filepath.Join(configDir, "session_id")
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}
	id := uuid.NewString()
	if err := config.EnsureConfigDir(); err == nil {
		os.WriteFile(path, []byte(id+"\n"), 0600)
	}
	return id
}

// setupLogger opens the diagnostic log file. Returns a nil logger when
// logging is disabled.
func setupLogger(cfg *config.Config) (*log.Logger, io.Closer) {
	if !cfg.Logging.Enabled {
		return nil, nil
	}
	path := cfg.Logging.Path
	if path == "" {
		configDir, err := config.ConfigDir()
		if err != nil {
			return nil, nil
		}
		path = filepath.Join(configDir, "relay.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil
	}
	return log.New(f, "", log.LstdFlags|log.Lmsgprefix), f
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

func runTUI() {
	// A TUI needs an interactive terminal; fall back to the plain REPL
	// when stdout is piped.
	if !cli.IsStdoutTTY() || !cli.IsStdinTTY() {
		runChat()
		return
	}

	d, err := buildDeps()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer d.close()

	theme := styles.NewThemeWithBackground(d.cfg.UI.Theme)

	m := chat.New(chat.Options{
		Service:   d.service,
		Theme:     theme,
		Config:    d.cfg,
		Identity:  d.identity,
		GateStore: d.gateStore,
		SessionID: d.sessionID,
		Store:     d.store,
		Logger:    d.logger,
		Version:   Version,
	})

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	// Live config reload: edits to the config file reach the running
	// view as a ConfigReloadedMsg, adjusting reveal pacing and send
	// limits between turns.
	if cfgPath, err := config.ConfigPathTOML(); err == nil {
		onReload := func(cfg *config.Config) {
			p.Send(chat.ConfigReloadedMsg{Config: cfg})
		}
		if watcher, err := config.NewWatcher(cfgPath, config.DefaultDebounce, onReload); err == nil {
			if err := watcher.Watch(); err == nil {
				defer watcher.Close()
			} else {
				watcher.Close()
			}
		}
	}
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runChat() {
	d, err := buildDeps()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer d.close()

	if err := cli.HandleChatCommand(cli.ChatOptions{
		Service:   d.service,
		Config:    d.cfg,
		Identity:  d.identity,
		GateStore: d.gateStore,
		SessionID: d.sessionID,
		Store:     d.store,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runAsk(question string) {
	d, err := buildDeps()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer d.close()

	if err := cli.HandleAskCommand(question, cli.AskOptions{
		Service:   d.service,
		Identity:  d.identity,
		GateStore: d.gateStore,
		SessionID: d.sessionID,
		SendLimit: d.cfg.Gate.SendLimit,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runConfig(args []string) {
	sub := "show"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "path":
		path, err := config.ConfigPathTOML()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(path)

	case "show":
		cfg := config.Global()
		fmt.Printf("base_url:          %s\n", cfg.API.BaseURL)
		fmt.Printf("theme:             %s\n", cfg.UI.Theme)
		fmt.Printf("send_limit:        %d\n", cfg.Gate.SendLimit)
		fmt.Printf("char_delay_ms:     %d\n", cfg.Reveal.CharDelayMs)
		fmt.Printf("batch_size:        %d\n", cfg.Reveal.BatchSize)
		fmt.Printf("frame_interval_ms: %d\n", cfg.Reveal.FrameIntervalMs)

	case "init":
		path, err := config.ConfigPathTOML()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := config.SaveTOML(config.Default(), path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", path)

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", sub)
		os.Exit(1)
	}
}
