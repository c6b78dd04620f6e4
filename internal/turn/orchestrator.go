// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/google/uuid"

	"github.com/jeranaias/relay-tui/internal/chatapi"
)

// ApologyText is the fixed, user-safe message delivered when both
// transport tiers fail. It flows through the same content path as real
// responses so nothing downstream special-cases error turns.
const ApologyText = "I'm sorry - something went wrong while generating a response. Please try again in a moment."

// =============================================================================
// TURN EVENTS
// =============================================================================

// EventKind discriminates turn events delivered to the controller.
type EventKind int

const (
	// KindConversationID assigns the backend conversation id.
	KindConversationID EventKind = iota
	// KindContent appends a response text fragment.
	KindContent
	// KindSources carries citation metadata, passed through opaquely.
	KindSources
	// KindDone marks the end of content for the turn.
	KindDone
	// KindFallbackStarted tells the consumer to discard any partial
	// streamed content; the fallback tier will deliver the response
	// whole.
	KindFallbackStarted
)

// Event is one turn-scoped event. TurnID lets consumers discard events
// from a superseded turn.
type Event struct {
	TurnID         uuid.UUID
	Kind           EventKind
	ConversationID string
	Content        string
	Sources        []chatapi.Source
	Disclaimers    []string
	FollowUps      []string

	// IsError is set on the done event of a synthesized error turn.
	IsError bool
}

// =============================================================================
// PHASES
// =============================================================================

// Phase is the orchestrator's per-turn state.
type Phase int

const (
	PhasePending Phase = iota
	PhaseStreamAttempt
	PhaseStreamSucceeded
	PhaseStreamFailed
	PhaseFallbackAttempt
	PhaseFallbackSucceeded
	PhaseFallbackFailed
	PhaseDelivered
	PhaseErrorDelivered
)

// String returns a short phase name for logging.
func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseStreamAttempt:
		return "stream-attempt"
	case PhaseStreamSucceeded:
		return "stream-succeeded"
	case PhaseStreamFailed:
		return "stream-failed"
	case PhaseFallbackAttempt:
		return "fallback-attempt"
	case PhaseFallbackSucceeded:
		return "fallback-succeeded"
	case PhaseFallbackFailed:
		return "fallback-failed"
	case PhaseDelivered:
		return "delivered"
	case PhaseErrorDelivered:
		return "error-delivered"
	default:
		return "unknown"
	}
}

// Outcome summarizes a finished turn.
type Outcome struct {
	Phase Phase // PhaseDelivered, PhaseErrorDelivered, or the phase at cancellation
	Err   error
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// ChatService is the slice of the API client the orchestrator needs.
type ChatService interface {
	Stream(ctx context.Context, req chatapi.ChatRequest, fn chatapi.EventCallback) error
	Complete(ctx context.Context, req chatapi.ChatRequest) (*chatapi.Completion, error)
}

// Orchestrator drives turns against a ChatService.
type Orchestrator struct {
	service ChatService
	logger  *log.Logger
}

// NewOrchestrator creates an orchestrator. A nil logger discards
// diagnostics.
func NewOrchestrator(service ChatService, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Orchestrator{service: service, logger: logger}
}

// RunTurn drives exactly one turn to completion, emitting events in
// order. It never returns an error to the caller as a control-flow
// signal: every failure path terminates in well-formed turn content
// (real or synthesized). The Outcome records what happened.
//
// The streaming tier and the fallback tier are each attempted at most
// once, never concurrently. A cancelled context stops the turn without
// emitting further events.
func (o *Orchestrator) RunTurn(ctx context.Context, turnID uuid.UUID, req chatapi.ChatRequest, emit func(Event)) Outcome {
	phase := PhaseStreamAttempt

	var contentSeen, doneSeen bool
	streamErr := o.service.Stream(ctx, req, func(ev chatapi.Event) {
		switch ev.Type {
		case chatapi.EventContent:
			if ev.Content != "" {
				contentSeen = true
			}
		case chatapi.EventDone:
			doneSeen = true
		}
		emit(fromAPIEvent(turnID, ev))
	})

	if streamErr == nil && (doneSeen || contentSeen) {
		// Clean end of stream. A missing done event still closes the
		// turn so the reveal engine can reach completion.
		if !doneSeen {
			emit(Event{TurnID: turnID, Kind: KindDone})
		}
		return Outcome{Phase: PhaseDelivered}
	}

	// A superseded or unmounted turn: discard, no fallback, no apology.
	if ctx.Err() != nil {
		return Outcome{Phase: phase, Err: ctx.Err()}
	}

	// An HTTP-success stream with a failure-shaped (empty) body counts
	// as a transport failure for fallback purposes.
	phase = PhaseStreamFailed
	if streamErr == nil {
		streamErr = errors.New("stream ended with no usable response")
	}
	o.logger.Printf("turn %s: %s: %v; trying fallback", turnID, phase, streamErr)

	phase = PhaseFallbackAttempt
	emit(Event{TurnID: turnID, Kind: KindFallbackStarted})

	completion, fallbackErr := o.service.Complete(ctx, req)
	if fallbackErr == nil {
		emit(Event{TurnID: turnID, Kind: KindContent, Content: completion.Response})
		emit(Event{
			TurnID:      turnID,
			Kind:        KindDone,
			Disclaimers: completion.Disclaimers,
			FollowUps:   completion.FollowUps,
		})
		return Outcome{Phase: PhaseDelivered}
	}

	if ctx.Err() != nil {
		return Outcome{Phase: PhaseFallbackAttempt, Err: ctx.Err()}
	}

	phase = PhaseFallbackFailed
	o.logger.Printf("turn %s: %s: %v; delivering error text", turnID, phase, fallbackErr)

	// Both tiers exhausted: the apology flows through the normal
	// content path so the view has exactly one shape to render.
	emit(Event{TurnID: turnID, Kind: KindContent, Content: ApologyText})
	emit(Event{TurnID: turnID, Kind: KindDone, IsError: true})
	return Outcome{Phase: PhaseErrorDelivered, Err: errors.Join(streamErr, fallbackErr)}
}

// fromAPIEvent maps a transport event into a turn event.
func fromAPIEvent(turnID uuid.UUID, ev chatapi.Event) Event {
	out := Event{TurnID: turnID}
	switch ev.Type {
	case chatapi.EventConversationID:
		out.Kind = KindConversationID
		out.ConversationID = ev.ConversationID
	case chatapi.EventContent:
		out.Kind = KindContent
		out.Content = ev.Content
	case chatapi.EventSources:
		out.Kind = KindSources
		out.Sources = ev.Sources
	case chatapi.EventDone:
		out.Kind = KindDone
		out.Disclaimers = ev.Disclaimers
		out.FollowUps = ev.FollowUps
	}
	return out
}
