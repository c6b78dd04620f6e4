// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/relay-tui/internal/chatapi"
	"github.com/jeranaias/relay-tui/internal/frameclock"
	"github.com/jeranaias/relay-tui/internal/model"
	"github.com/jeranaias/relay-tui/internal/reveal"
)

// =============================================================================
// TURN STATUS
// =============================================================================

// Status is the turn lifecycle visible to the view layer.
type Status int

const (
	StatusPending   Status = iota // created, request not yet dispatched
	StatusStreaming               // request in flight, no content yet
	StatusRevealing               // content arriving or animating
	StatusComplete                // streaming done and display caught up
	StatusFailed                  // synthesized error turn, fully revealed
)

// String returns a short status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusStreaming:
		return "streaming"
	case StatusRevealing:
		return "revealing"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// =============================================================================
// TURN CONTROLLER
// =============================================================================

// Controller coordinates one turn: it owns a reveal engine, feeds it
// orchestrator events, and exposes the turn lifecycle. A Controller is
// single-use; a new turn gets a new Controller (and with it a fresh
// engine), which guarantees no two turns ever share reveal state.
type Controller struct {
	mu sync.Mutex

	id     uuid.UUID
	orch   *Orchestrator
	engine *reveal.Engine
	conv   *model.Conversation
	msg    *model.Message

	status    Status
	errorTurn bool
	cancelled bool
	outcome   Outcome

	disclaimers []string
	followUps   []string
	sources     []chatapi.Source

	cancelMgr  *cancelManager
	onFinished func() // invoked once when the turn completes or fails
}

// NewController creates a controller for the next turn of conv.
func NewController(orch *Orchestrator, clock frameclock.Clock, cfg reveal.Config, conv *model.Conversation) *Controller {
	c := &Controller{
		id:        uuid.New(),
		orch:      orch,
		engine:    reveal.NewEngine(clock, cfg),
		conv:      conv,
		status:    StatusPending,
		cancelMgr: newCancelManager(),
	}
	c.engine.SetOnComplete(c.onRevealComplete)
	return c
}

// ID returns the turn identifier.
func (c *Controller) ID() uuid.UUID {
	return c.id
}

// SetOnFinished registers the view notification fired once when the
// turn reaches StatusComplete or StatusFailed.
func (c *Controller) SetOnFinished(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFinished = fn
}

// Start dispatches the turn: appends the user message and a streaming
// assistant message to the conversation, then runs the orchestrator on
// its own goroutine. Must be called at most once.
func (c *Controller) Start(userText string) {
	c.mu.Lock()
	history := c.conv.History()
	req := chatapi.ChatRequest{
		Message:        userText,
		ConversationID: c.conv.RemoteID,
		History:        history,
	}

	c.conv.AddMessage(model.NewUserMessage(userText))
	c.msg = model.NewAssistantMessage()
	c.conv.AddMessage(c.msg)
	c.status = StatusStreaming

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelMgr.set(cancel)
	c.mu.Unlock()

	go func() {
		outcome := c.orch.RunTurn(ctx, c.id, req, c.handleEvent)
		cancel()
		c.mu.Lock()
		c.outcome = outcome
		c.mu.Unlock()
	}()
}

// Cancel tears the turn down: the in-flight request is cancelled, the
// engine's pending frame registration is released, and any event that
// still arrives for this turn is discarded.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()
	c.cancelMgr.cancel()
	c.engine.Teardown()
}

// handleEvent routes one orchestrator event into the engine and the
// conversation. Events for a superseded turn are dropped.
func (c *Controller) handleEvent(ev Event) {
	c.mu.Lock()
	if c.cancelled || ev.TurnID != c.id {
		c.mu.Unlock()
		return
	}

	switch ev.Kind {
	case KindConversationID:
		// Set exactly once; repeats for the same conversation are
		// ignored.
		c.conv.SetRemoteID(ev.ConversationID)
		c.mu.Unlock()

	case KindContent:
		c.msg.AppendToken(ev.Content)
		if ev.Content != "" {
			c.status = StatusRevealing
		}
		c.mu.Unlock()
		// Engine calls happen outside the controller lock: the engine
		// may fire callbacks that re-enter the controller.
		c.engine.AppendText(ev.Content)

	case KindSources:
		c.sources = append(c.sources, ev.Sources...)
		c.mu.Unlock()

	case KindFallbackStarted:
		// Discard partial streamed content; the fallback response
		// replaces it wholesale.
		c.msg.ReplaceContent("")
		c.status = StatusStreaming
		c.mu.Unlock()
		c.engine.Reset()

	case KindDone:
		c.disclaimers = ev.Disclaimers
		c.followUps = ev.FollowUps
		c.errorTurn = ev.IsError
		c.mu.Unlock()
		c.engine.FinishStreaming()

	default:
		c.mu.Unlock()
	}
}

// onRevealComplete runs when the engine reports completion: streaming
// finished and the displayed text caught up.
func (c *Controller) onRevealComplete() {
	c.mu.Lock()
	// A tick already past the engine's teardown check may land here
	// after Cancel; the dead turn must not touch the message.
	if c.cancelled {
		c.mu.Unlock()
		return
	}
	c.msg.FinalizeStream()
	c.msg.Disclaimers = c.disclaimers
	c.msg.FollowUps = c.followUps
	c.msg.Sources = c.sources
	c.msg.IsError = c.errorTurn
	if c.errorTurn {
		c.status = StatusFailed
	} else {
		c.status = StatusComplete
	}
	fn := c.onFinished
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// =============================================================================
// VIEW ACCESSORS
// =============================================================================

// Snapshot is a copy of the render-relevant turn state. The view
// renders the active turn only from snapshots: the clock and
// orchestrator goroutines keep writing the live message until the turn
// reaches a terminal status, so reading its fields directly would
// race.
type Snapshot struct {
	Status      Status
	Displayed   string
	Content     string
	IsError     bool
	Disclaimers []string
	FollowUps   []string
	Sources     []chatapi.Source
}

// Snapshot copies the turn state under the controller lock.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		Status:      c.status,
		IsError:     c.errorTurn,
		Disclaimers: c.disclaimers,
		FollowUps:   c.followUps,
		Sources:     c.sources,
	}
	if c.msg != nil {
		snap.Content = c.msg.Content
	}
	// The engine releases its own lock before firing callbacks, so this
	// nested acquisition cannot deadlock against onRevealComplete.
	snap.Displayed = c.engine.Displayed()
	return snap
}

// Status returns the turn lifecycle state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Displayed returns the currently revealed text for rendering.
func (c *Controller) Displayed() string {
	return c.engine.Displayed()
}

// IsAnimating reports whether the reveal is still in progress.
func (c *Controller) IsAnimating() bool {
	return c.engine.IsAnimating()
}

// IsComplete reports whether streaming finished and the display has
// caught up. This is the only correct turn-completion condition.
func (c *Controller) IsComplete() bool {
	return c.engine.IsComplete()
}

// SkipAnimation reveals all arrived text immediately.
func (c *Controller) SkipAnimation() {
	c.engine.SkipAnimation()
}

// Message returns the assistant message driven by this turn.
func (c *Controller) Message() *model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msg
}

// FollowUps returns the follow-up suggestions delivered with done.
func (c *Controller) FollowUps() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.followUps
}

// Disclaimers returns the disclaimers delivered with done.
func (c *Controller) Disclaimers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disclaimers
}

// Outcome returns the orchestrator outcome once the turn goroutine has
// finished. Zero value until then.
func (c *Controller) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}
