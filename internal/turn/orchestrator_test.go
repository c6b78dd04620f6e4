// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/jeranaias/relay-tui/internal/chatapi"
)

// =============================================================================
// FAKE CHAT SERVICE
// =============================================================================

// fakeService scripts the two transport tiers.
type fakeService struct {
	streamEvents []chatapi.Event
	streamErr    error

	completion  *chatapi.Completion
	completeErr error

	streamCalls   int
	completeCalls int
}

func (f *fakeService) Stream(ctx context.Context, req chatapi.ChatRequest, fn chatapi.EventCallback) error {
	f.streamCalls++
	for _, ev := range f.streamEvents {
		fn(ev)
	}
	return f.streamErr
}

func (f *fakeService) Complete(ctx context.Context, req chatapi.ChatRequest) (*chatapi.Completion, error) {
	f.completeCalls++
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return f.completion, nil
}

func runTurn(t *testing.T, svc *fakeService) ([]Event, Outcome) {
	t.Helper()
	o := NewOrchestrator(svc, nil)
	var events []Event
	outcome := o.RunTurn(context.Background(), uuid.New(), chatapi.ChatRequest{Message: "q"}, func(ev Event) {
		events = append(events, ev)
	})
	return events, outcome
}

// =============================================================================
// TESTS
// =============================================================================

func TestStreamSuccessNeverFallsBack(t *testing.T) {
	svc := &fakeService{
		streamEvents: []chatapi.Event{
			{Type: chatapi.EventConversationID, ConversationID: "c1"},
			{Type: chatapi.EventContent, Content: "Hello! "},
			{Type: chatapi.EventContent, Content: "How can I help?"},
			{Type: chatapi.EventDone, Disclaimers: []string{"X"}},
		},
	}

	events, outcome := runTurn(t, svc)

	if outcome.Phase != PhaseDelivered {
		t.Errorf("phase = %v, want delivered", outcome.Phase)
	}
	if svc.completeCalls != 0 {
		t.Errorf("fallback called %d times on stream success", svc.completeCalls)
	}

	var content string
	for _, ev := range events {
		if ev.Kind == KindContent {
			content += ev.Content
		}
	}
	if content != "Hello! How can I help?" {
		t.Errorf("content = %q", content)
	}
	last := events[len(events)-1]
	if last.Kind != KindDone || len(last.Disclaimers) != 1 || last.Disclaimers[0] != "X" {
		t.Errorf("final event = %+v", last)
	}
}

func TestStreamFailureTriggersExactlyOneFallback(t *testing.T) {
	svc := &fakeService{
		streamErr:  chatapi.ErrTransport,
		completion: &chatapi.Completion{Response: "full answer", FollowUps: []string{"f"}},
	}

	events, outcome := runTurn(t, svc)

	if svc.streamCalls != 1 || svc.completeCalls != 1 {
		t.Errorf("stream=%d complete=%d, want 1/1", svc.streamCalls, svc.completeCalls)
	}
	if outcome.Phase != PhaseDelivered {
		t.Errorf("phase = %v, want delivered", outcome.Phase)
	}

	// Fallback marker, then content, then done.
	kinds := make([]EventKind, 0, len(events))
	var content string
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == KindContent {
			content += ev.Content
		}
	}
	if len(kinds) != 3 || kinds[0] != KindFallbackStarted || kinds[1] != KindContent || kinds[2] != KindDone {
		t.Errorf("event kinds = %v", kinds)
	}
	if content != "full answer" {
		t.Errorf("content = %q", content)
	}
	if events[2].IsError {
		t.Error("fallback success marked as error turn")
	}
}

func TestBothTiersFailingDeliversApology(t *testing.T) {
	svc := &fakeService{
		streamErr:   chatapi.ErrTransport,
		completeErr: chatapi.ErrFallback,
	}

	events, outcome := runTurn(t, svc)

	if outcome.Phase != PhaseErrorDelivered {
		t.Errorf("phase = %v, want error-delivered", outcome.Phase)
	}
	if outcome.Err == nil {
		t.Error("outcome error not recorded")
	}

	var content string
	var doneEv *Event
	for i := range events {
		switch events[i].Kind {
		case KindContent:
			content += events[i].Content
		case KindDone:
			doneEv = &events[i]
		}
	}
	if content != ApologyText {
		t.Errorf("content = %q, want apology", content)
	}
	if doneEv == nil || !doneEv.IsError {
		t.Errorf("done event = %+v, want IsError", doneEv)
	}
}

func TestEmptyBodyStreamCountsAsStreamFailure(t *testing.T) {
	// HTTP-level success with a failure-shaped (empty) body.
	svc := &fakeService{
		streamEvents: nil,
		streamErr:    nil,
		completion:   &chatapi.Completion{Response: "rescued"},
	}

	_, outcome := runTurn(t, svc)

	if svc.completeCalls != 1 {
		t.Errorf("complete calls = %d, want 1", svc.completeCalls)
	}
	if outcome.Phase != PhaseDelivered {
		t.Errorf("phase = %v", outcome.Phase)
	}
}

func TestCleanEOFWithContentButNoDoneStillDelivers(t *testing.T) {
	svc := &fakeService{
		streamEvents: []chatapi.Event{
			{Type: chatapi.EventContent, Content: "partial but real"},
		},
	}

	events, outcome := runTurn(t, svc)

	if outcome.Phase != PhaseDelivered {
		t.Errorf("phase = %v, want delivered", outcome.Phase)
	}
	if svc.completeCalls != 0 {
		t.Error("fell back despite usable stream content")
	}
	last := events[len(events)-1]
	if last.Kind != KindDone {
		t.Errorf("final event kind = %v, want synthesized done", last.Kind)
	}
}

func TestCancelledTurnEmitsNothingFurther(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := &cancellingService{cancel: cancel}

	o := NewOrchestrator(svc, nil)
	var after []Event
	outcome := o.RunTurn(ctx, uuid.New(), chatapi.ChatRequest{Message: "q"}, func(ev Event) {
		if ctx.Err() != nil {
			after = append(after, ev)
		}
	})

	if svc.completeCalls != 0 {
		t.Error("fallback attempted after cancellation")
	}
	if len(after) != 0 {
		t.Errorf("%d events emitted after cancellation", len(after))
	}
	if !errors.Is(outcome.Err, context.Canceled) {
		t.Errorf("outcome err = %v", outcome.Err)
	}
}

// cancellingService cancels the turn mid-stream, then fails the read.
type cancellingService struct {
	cancel        context.CancelFunc
	completeCalls int
}

func (s *cancellingService) Stream(ctx context.Context, req chatapi.ChatRequest, fn chatapi.EventCallback) error {
	fn(chatapi.Event{Type: chatapi.EventContent, Content: "a"})
	s.cancel()
	return errors.Join(chatapi.ErrTransport, ctx.Err())
}

func (s *cancellingService) Complete(ctx context.Context, req chatapi.ChatRequest) (*chatapi.Completion, error) {
	s.completeCalls++
	return nil, chatapi.ErrFallback
}
