// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// The view owns the visible surfaces (welcome screen, transcript,
// input, quota prompt) and drives one turn controller at a time. The
// typewriter animation runs on its own frame clock; the view polls the
// active controller's displayed text on a render tick rather than
// receiving per-character pushes, so render cost stays bounded.
package chat
