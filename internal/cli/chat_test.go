// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"testing"
	"time"

	"github.com/jeranaias/relay-tui/internal/chatapi"
	"github.com/jeranaias/relay-tui/internal/config"
	"github.com/jeranaias/relay-tui/internal/gate"
	"github.com/jeranaias/relay-tui/internal/model"
)

type stubService struct {
	calls int
}

func (s *stubService) Stream(ctx context.Context, req chatapi.ChatRequest, fn chatapi.EventCallback) error {
	s.calls++
	fn(chatapi.Event{Type: chatapi.EventConversationID, ConversationID: "c9"})
	fn(chatapi.Event{Type: chatapi.EventContent, Content: "hello there"})
	fn(chatapi.Event{Type: chatapi.EventDone, Disclaimers: []string{"AI-generated"}})
	return nil
}

func (s *stubService) Complete(ctx context.Context, req chatapi.ChatRequest) (*chatapi.Completion, error) {
	return &chatapi.Completion{Response: "hello there"}, nil
}

func testSession(svc *stubService, limit int) *ChatSession {
	cfg := config.Default()
	cfg.Gate.SendLimit = limit
	cfg.Clamp()
	usage := gate.NewUsageWithLimit(limit)
	return &ChatSession{
		Conversation: model.NewConversation(),
		Config:       cfg,
		Identity:     gate.Anonymous,
		Usage:        usage,
		Service:      svc,
		StartTime:    time.Now(),
	}
}

func TestProcessMessageRecordsTurn(t *testing.T) {
	svc := &stubService{}
	session := testSession(svc, 3)

	if err := processMessage(session, "hi"); err != nil {
		t.Fatalf("processMessage: %v", err)
	}

	if session.Conversation.Len() != 2 {
		t.Fatalf("conversation has %d messages, want 2", session.Conversation.Len())
	}
	if session.Conversation.RemoteID != "c9" {
		t.Fatalf("RemoteID = %q, want c9", session.Conversation.RemoteID)
	}
	reply := session.Conversation.Messages[1]
	if reply.Content != "hello there" {
		t.Fatalf("reply = %q", reply.Content)
	}
	if session.Usage.SentCount != 1 {
		t.Fatalf("SentCount = %d, want 1", session.Usage.SentCount)
	}
}

func TestProcessMessageDeniedAtLimit(t *testing.T) {
	svc := &stubService{}
	session := testSession(svc, 1)

	if err := processMessage(session, "first"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := processMessage(session, "second"); err != nil {
		t.Fatalf("denied send should not error: %v", err)
	}

	if svc.calls != 1 {
		t.Fatalf("service called %d times, want 1", svc.calls)
	}
	// The denial leaves no trace in the transcript.
	if session.Conversation.Len() != 2 {
		t.Fatalf("conversation has %d messages, want 2", session.Conversation.Len())
	}
}

func TestSlashCommands(t *testing.T) {
	session := testSession(&stubService{}, 3)
	session.Conversation.AddMessage(model.NewUserMessage("hi"))

	cont, err := handleSlashCommand("/clear", session)
	if err != nil || !cont {
		t.Fatalf("/clear: cont=%v err=%v", cont, err)
	}
	if session.Conversation.Len() != 0 {
		t.Fatal("/clear did not reset the conversation")
	}

	cont, _ = handleSlashCommand("/quit", session)
	if cont {
		t.Fatal("/quit should stop the loop")
	}

	cont, err = handleSlashCommand("/bogus", session)
	if !cont || err == nil {
		t.Fatal("unknown command should continue with an error")
	}
}
