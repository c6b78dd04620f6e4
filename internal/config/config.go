// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete relay configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// API configuration
	API APIConfig `toml:"api" json:"api"`

	// Reveal animation configuration
	Reveal RevealConfig `toml:"reveal" json:"reveal"`

	// Gate configuration
	Gate GateConfig `toml:"gate" json:"gate"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

// APIConfig contains backend endpoint configuration.
type APIConfig struct {
	// BaseURL is the chat backend base URL
	BaseURL string `toml:"base_url" json:"base_url"`
	// APIKey is the bearer token for authenticated sessions (empty = anonymous)
	APIKey string `toml:"api_key" json:"api_key"`
}

// RevealConfig tunes the typewriter animation.
type RevealConfig struct {
	// CharDelayMs is the per-character reveal delay in milliseconds.
	// Valid range is 1-200; values outside are clamped.
	CharDelayMs int `toml:"char_delay_ms" json:"char_delay_ms"`
	// BatchSize is how many revealed characters are flushed to the
	// display at once. Valid range is 1-32; clamped.
	BatchSize int `toml:"batch_size" json:"batch_size"`
	// FrameIntervalMs is the frame clock interval in milliseconds.
	// Valid range is 8-100; clamped.
	FrameIntervalMs int `toml:"frame_interval_ms" json:"frame_interval_ms"`
}

// GateConfig contains the anonymous send quota.
type GateConfig struct {
	// SendLimit is the anonymous per-session send quota.
	SendLimit int `toml:"send_limit" json:"send_limit"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme selects the color theme: "dark" or "light"
	Theme string `toml:"theme" json:"theme"`
	// ShowFollowUps renders follow-up suggestions after a turn
	ShowFollowUps bool `toml:"show_follow_ups" json:"show_follow_ups"`
	// CompactMode reduces vertical padding
	CompactMode bool `toml:"compact_mode" json:"compact_mode"`
}

// LoggingConfig contains diagnostic logging configuration.
type LoggingConfig struct {
	// Enabled writes diagnostics to the log file
	Enabled bool `toml:"enabled" json:"enabled"`
	// Path is the log file path (empty = ~/.relay/relay.log)
	Path string `toml:"path" json:"path"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		API: APIConfig{
			BaseURL: "http://localhost:8080",
		},

		Reveal: RevealConfig{
			CharDelayMs:     12,
			BatchSize:       3,
			FrameIntervalMs: 33,
		},

		Gate: GateConfig{
			SendLimit: 3,
		},

		UI: UIConfig{
			Theme:         "dark",
			ShowFollowUps: true,
			CompactMode:   false,
		},

		Logging: LoggingConfig{
			Enabled: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the relay configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".relay"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last, then validation clamps.
func Load() (*Config, error) {
	cfg := Default()

	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				return nil, fmt.Errorf("failed to load TOML config: %w", err)
			}
			return finishLoad(cfg)
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				return nil, fmt.Errorf("failed to load JSON config: %w", err)
			}
			return finishLoad(cfg)
		}
	}

	return finishLoad(cfg)
}

// LoadFromPath loads configuration from an explicit file path,
// selecting the decoder by extension.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = LoadJSON(cfg, path)
	default:
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, err
	}
	return finishLoad(cfg)
}

func finishLoad(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.Clamp()
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML path.
func Save(cfg *Config) error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to a TOML file. API keys can live
// here, so the file is owner read/write only.
func SaveTOML(cfg *Config, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns any errors. Numeric
// ranges are not errors; they are clamped by Clamp.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "api.base_url",
				Message: fmt.Sprintf("invalid URL %q", c.API.BaseURL),
			})
		}
	}

	validThemes := map[string]bool{"dark": true, "light": true}
	if c.UI.Theme != "" && !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Clamp forces numeric settings into their valid ranges.
func (c *Config) Clamp() {
	c.Reveal.CharDelayMs = clampInt(c.Reveal.CharDelayMs, 1, 200)
	c.Reveal.BatchSize = clampInt(c.Reveal.BatchSize, 1, 32)
	c.Reveal.FrameIntervalMs = clampInt(c.Reveal.FrameIntervalMs, 8, 100)
	if c.Gate.SendLimit < 1 {
		c.Gate.SendLimit = 1
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - RELAY_BASE_URL: overrides api.base_url
//   - RELAY_API_KEY: overrides api.api_key
//   - RELAY_THEME: overrides ui.theme
//   - RELAY_SEND_LIMIT: overrides gate.send_limit
//   - RELAY_CHAR_DELAY_MS: overrides reveal.char_delay_ms
//   - RELAY_NO_LOG: set to "1" or "true" to disable logging
func (c *Config) ApplyEnvOverrides() {
	if base := os.Getenv("RELAY_BASE_URL"); base != "" {
		c.API.BaseURL = base
	}

	if key := os.Getenv("RELAY_API_KEY"); key != "" {
		c.API.APIKey = key
	}

	if theme := os.Getenv("RELAY_THEME"); theme != "" {
		c.UI.Theme = theme
	}

	if limit := os.Getenv("RELAY_SEND_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			c.Gate.SendLimit = n
		}
	}

	if delay := os.Getenv("RELAY_CHAR_DELAY_MS"); delay != "" {
		if n, err := strconv.Atoi(delay); err == nil {
			c.Reveal.CharDelayMs = n
		}
	}

	if noLog := os.Getenv("RELAY_NO_LOG"); noLog != "" {
		c.Logging.Enabled = !(noLog == "1" || strings.ToLower(noLog) == "true")
	}
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
			cfg.Clamp()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
