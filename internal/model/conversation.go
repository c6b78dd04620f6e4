// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/jeranaias/relay-tui/internal/chatapi"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds an ordered list of messages plus identity.
//
// The local ID is created client-side; the remote ID is assigned by
// the backend on the first turn of a new conversation and is set
// exactly once.
type Conversation struct {
	ID        string     `json:"id"`
	RemoteID  string     `json:"remote_id,omitempty"`
	Title     string     `json:"title,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Messages  []*Message `json:"messages"`
}

// NewConversation creates an empty conversation with a local ID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        generateConversationID(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddMessage appends a message and bumps the update time.
func (c *Conversation) AddMessage(m *Message) {
	c.Messages = append(c.Messages, m)
	c.UpdatedAt = time.Now()
}

// SetRemoteID records the backend-assigned conversation id. The first
// call wins; subsequent calls are ignored and return false.
func (c *Conversation) SetRemoteID(id string) bool {
	if c.RemoteID != "" || id == "" {
		return false
	}
	c.RemoteID = id
	return true
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.Messages)
}

// LastMessage returns the most recent message, or nil when empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// History converts prior finalized messages into the request history
// shape. Streaming and empty messages are excluded.
func (c *Conversation) History() []chatapi.HistoryEntry {
	history := make([]chatapi.HistoryEntry, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.IsStreaming || m.IsEmpty() || m.IsError {
			continue
		}
		history = append(history, chatapi.HistoryEntry{
			Role:    m.Role.String(),
			Content: m.Content,
		})
	}
	return history
}

// Summary returns a short title for the conversation: the explicit
// title when set, otherwise a preview of the first user message.
func (c *Conversation) Summary(maxLen int) string {
	if c.Title != "" {
		return c.Title
	}
	for _, m := range c.Messages {
		if m.Role == RoleUser && !m.IsEmpty() {
			return m.Preview(maxLen)
		}
	}
	return "New conversation"
}

// generateConversationID creates a unique local conversation ID.
func generateConversationID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "conv_" + hex.EncodeToString(bytes)
}
