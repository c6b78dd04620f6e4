// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatapi

import (
	"encoding/json"
	"errors"
)

// =============================================================================
// EVENT TAXONOMY
// =============================================================================

// EventType discriminates stream event payloads.
type EventType string

const (
	// EventConversationID assigns the server-side conversation id.
	// Sent once, on the first turn of a new conversation.
	EventConversationID EventType = "conversation_id"

	// EventContent carries an incremental response text fragment.
	EventContent EventType = "content"

	// EventSources carries citation metadata. Passed through opaquely.
	EventSources EventType = "sources"

	// EventDone signals no more content; carries disclaimers and
	// follow-up suggestions.
	EventDone EventType = "done"
)

// Event is one decoded stream event. Only the fields relevant to the
// event's Type are populated.
type Event struct {
	Type           EventType
	ConversationID string
	Content        string
	Sources        []Source
	Disclaimers    []string
	FollowUps      []string
}

// Source is citation metadata attached to a response.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// EventCallback receives decoded events in arrival order.
type EventCallback func(ev Event)

// =============================================================================
// WIRE DECODING
// =============================================================================

// ErrMalformedEvent indicates a stream line that could not be decoded
// into a known event shape. Recoverable: the line is skipped.
var ErrMalformedEvent = errors.New("malformed stream event")

// streamPayload is the wire shape of one "data:" line.
type streamPayload struct {
	Type           string   `json:"type"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Content        string   `json:"content,omitempty"`
	Sources        []Source `json:"sources,omitempty"`
	Disclaimers    []string `json:"disclaimers,omitempty"`
	FollowUps      []string `json:"follow_ups,omitempty"`
}

// parseEvent decodes one JSON payload into an Event. The type
// discriminant is validated here, at the parse boundary; unrecognized
// tags are rejected rather than assumed to have any shape.
func parseEvent(data []byte) (Event, error) {
	var p streamPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Event{}, errors.Join(ErrMalformedEvent, err)
	}

	switch EventType(p.Type) {
	case EventConversationID:
		return Event{Type: EventConversationID, ConversationID: p.ConversationID}, nil
	case EventContent:
		return Event{Type: EventContent, Content: p.Content}, nil
	case EventSources:
		return Event{Type: EventSources, Sources: p.Sources}, nil
	case EventDone:
		return Event{Type: EventDone, Disclaimers: p.Disclaimers, FollowUps: p.FollowUps}, nil
	default:
		return Event{}, ErrMalformedEvent
	}
}
