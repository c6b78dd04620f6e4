// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatapi

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for the relay API.
const (
	// DefaultBaseURL is the base URL for the generation service.
	DefaultBaseURL = "http://localhost:8080"

	// DefaultTimeout bounds non-streaming requests.
	DefaultTimeout = 60 * time.Second

	// streamPath is the event-stream chat endpoint.
	streamPath = "/api/chat/stream"

	// chatPath is the non-streaming fallback endpoint.
	chatPath = "/api/chat"

	// MaxResponseSize is the maximum allowed fallback response body.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB
)

var (
	// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
	// Shared HTTP client for non-streaming requests.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient has no client timeout; the read loop is
	// bounded by the request context instead.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrTransport indicates the streaming transport failed: non-success
	// status, missing body, or a network-level error. Distinct from a
	// stream that ended normally. Triggers fallback.
	ErrTransport = errors.New("chat stream transport failed")

	// ErrFallback indicates the non-streaming fallback request failed.
	ErrFallback = errors.New("chat fallback request failed")
)

// APIError represents a non-success response from the service.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("relay API error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("relay API error (HTTP %d)", e.Status)
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// HistoryEntry is one prior message included with a request.
type HistoryEntry struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest is the payload shared by both chat endpoints.
type ChatRequest struct {
	Message        string         `json:"message"`
	ConversationID string         `json:"conversation_id,omitempty"`
	History        []HistoryEntry `json:"history"`
}

// Completion is the non-streaming fallback response.
type Completion struct {
	Response    string   `json:"response"`
	FollowUps   []string `json:"follow_ups"`
	Disclaimers []string `json:"disclaimers"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the generation service.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	logger       *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClients overrides both HTTP clients. Used by tests and by
// hosts with custom transport requirements.
func WithHTTPClients(httpClient, streamClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
		if streamClient != nil {
			c.streamClient = streamClient
		}
	}
}

// WithSendRate caps outgoing requests per second with the given burst.
func WithSendRate(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithLogger sets the diagnostic logger (malformed lines and the like).
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   sharedHTTPClient,
		streamClient: sharedStreamingClient,
		// Generous default: chat turns are user-paced.
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		logger:  log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// setHeaders applies the common request headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
