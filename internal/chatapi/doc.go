// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chatapi implements the client for the relay generation
// service.
//
// Two endpoints are consumed:
//
//   - POST /api/chat/stream — a line-oriented event stream using the
//     "data: <JSON>\n" convention. Each payload carries a type
//     discriminant (conversation_id, content, sources, done) and is
//     decoded incrementally; a malformed line is logged and skipped
//     without aborting the stream.
//
//   - POST /api/chat — the non-streaming fallback returning the full
//     response in one JSON document.
//
// Transport failure (non-success status, missing body, network error)
// is surfaced as ErrTransport, distinct from a stream that ended
// normally, so the caller can decide whether to fall back.
package chatapi
