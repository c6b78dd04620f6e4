// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// =============================================================================
// DEFAULTS AND CLAMPING
// =============================================================================

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.API.BaseURL != "http://localhost:8080" {
		t.Errorf("base URL = %q", cfg.API.BaseURL)
	}
	if cfg.Reveal.CharDelayMs != 12 || cfg.Reveal.BatchSize != 3 {
		t.Errorf("reveal defaults = %+v", cfg.Reveal)
	}
	if cfg.Gate.SendLimit != 3 {
		t.Errorf("send limit = %d", cfg.Gate.SendLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestClamp(t *testing.T) {
	cfg := Default()
	cfg.Reveal.CharDelayMs = 0
	cfg.Reveal.BatchSize = 1000
	cfg.Reveal.FrameIntervalMs = -5
	cfg.Gate.SendLimit = 0

	cfg.Clamp()

	if cfg.Reveal.CharDelayMs != 1 {
		t.Errorf("char delay clamped to %d, want 1", cfg.Reveal.CharDelayMs)
	}
	if cfg.Reveal.BatchSize != 32 {
		t.Errorf("batch size clamped to %d, want 32", cfg.Reveal.BatchSize)
	}
	if cfg.Reveal.FrameIntervalMs != 8 {
		t.Errorf("frame interval clamped to %d, want 8", cfg.Reveal.FrameIntervalMs)
	}
	if cfg.Gate.SendLimit != 1 {
		t.Errorf("send limit clamped to %d, want 1", cfg.Gate.SendLimit)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.API.BaseURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid base URL")
	}

	cfg = Default()
	cfg.UI.Theme = "solarized"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown theme")
	}

	cfg = Default()
	cfg.UI.Theme = "LIGHT" // case-insensitive
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// =============================================================================
// FILE LOADING
// =============================================================================

func TestLoadFromPathTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
version = "1.0.0"

[api]
base_url = "https://chat.example.com"

[reveal]
char_delay_ms = 20
batch_size = 5

[gate]
send_limit = 10
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.API.BaseURL != "https://chat.example.com" {
		t.Errorf("base URL = %q", cfg.API.BaseURL)
	}
	if cfg.Reveal.CharDelayMs != 20 || cfg.Reveal.BatchSize != 5 {
		t.Errorf("reveal = %+v", cfg.Reveal)
	}
	if cfg.Gate.SendLimit != 10 {
		t.Errorf("send limit = %d", cfg.Gate.SendLimit)
	}
	// Unset fields keep defaults.
	if cfg.UI.Theme != "dark" {
		t.Errorf("theme = %q, want default", cfg.UI.Theme)
	}
}

func TestLoadFromPathJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"api": {"base_url": "https://chat.example.com"}, "ui": {"theme": "light"}}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.API.BaseURL != "https://chat.example.com" {
		t.Errorf("base URL = %q", cfg.API.BaseURL)
	}
	if cfg.UI.Theme != "light" {
		t.Errorf("theme = %q", cfg.UI.Theme)
	}
}

func TestSaveTOMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.API.BaseURL = "https://relay.example.com"
	cfg.Gate.SendLimit = 7
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.API.BaseURL != cfg.API.BaseURL || loaded.Gate.SendLimit != cfg.Gate.SendLimit {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("RELAY_BASE_URL", "https://env.example.com")
	t.Setenv("RELAY_API_KEY", "sk-test")
	t.Setenv("RELAY_SEND_LIMIT", "5")
	t.Setenv("RELAY_CHAR_DELAY_MS", "30")
	t.Setenv("RELAY_NO_LOG", "true")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.API.BaseURL != "https://env.example.com" {
		t.Errorf("base URL = %q", cfg.API.BaseURL)
	}
	if cfg.API.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.API.APIKey)
	}
	if cfg.Gate.SendLimit != 5 {
		t.Errorf("send limit = %d", cfg.Gate.SendLimit)
	}
	if cfg.Reveal.CharDelayMs != 30 {
		t.Errorf("char delay = %d", cfg.Reveal.CharDelayMs)
	}
	if cfg.Logging.Enabled {
		t.Error("logging should be disabled")
	}
}

func TestEnvOverrideIgnoresGarbage(t *testing.T) {
	t.Setenv("RELAY_SEND_LIMIT", "not-a-number")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if cfg.Gate.SendLimit != 3 {
		t.Errorf("send limit = %d, want default after bad env value", cfg.Gate.SendLimit)
	}
}

// =============================================================================
// WATCHER
// =============================================================================

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[gate]\nsend_limit = 3\n"), 0600); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, 50*time.Millisecond, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()
	if err := w.Watch(); err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := os.WriteFile(path, []byte("[gate]\nsend_limit = 9\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Gate.SendLimit != 9 {
			t.Errorf("reloaded send limit = %d", cfg.Gate.SendLimit)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[gate]\nsend_limit = 3\n"), 0600); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, 50*time.Millisecond, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()
	if err := w.Watch(); err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
		t.Fatal("unrelated file triggered a reload")
	case <-time.After(300 * time.Millisecond):
	}
}
