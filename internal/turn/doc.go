// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package turn coordinates one chat turn end to end.
//
// The Orchestrator drives the multi-tier request strategy: streaming
// transport first, the non-streaming fallback endpoint on transport
// failure, and a synthesized apology message when both tiers fail. The
// two attempts are strictly sequential and each tier is tried at most
// once per turn.
//
// The Controller owns the turn's reveal engine, routes orchestrator
// events into it, tracks the turn lifecycle (pending, streaming,
// revealing, complete, failed), and discards events that belong to a
// superseded turn so stale output is never shown.
package turn
