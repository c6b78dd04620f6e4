// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gate decides whether a send may proceed for the current
// session. Authenticated users always pass; anonymous users are
// limited to a fixed number of sends per session, tracked in a small
// session store.
package gate

// =============================================================================
// IDENTITY AND USAGE
// =============================================================================

// DefaultSendLimit is the number of sends an anonymous session gets
// before being asked to sign up.
const DefaultSendLimit = 3

// Identity is the authentication signal for the current user. The
// gate only cares whether the user is authenticated; who they are is
// someone else's problem.
type Identity struct {
	Authenticated bool
}

// Anonymous is the zero identity.
var Anonymous = Identity{}

// Usage is a snapshot of the per-session send counter.
type Usage struct {
	SentCount int
	Limit     int
}

// NewUsage returns an empty usage record with the default limit.
func NewUsage() Usage {
	return Usage{Limit: DefaultSendLimit}
}

// NewUsageWithLimit returns an empty usage record with the configured
// limit. A non-positive limit falls back to the default.
func NewUsageWithLimit(limit int) Usage {
	if limit <= 0 {
		limit = DefaultSendLimit
	}
	return Usage{Limit: limit}
}

// Remaining returns how many anonymous sends are left, never negative.
func (u Usage) Remaining() int {
	if u.SentCount >= u.Limit {
		return 0
	}
	return u.Limit - u.SentCount
}

// =============================================================================
// GATE PREDICATE
// =============================================================================

// CanSend reports whether a send may be dispatched. Authenticated
// identities always pass. Anonymous identities pass while the counter
// is below the limit.
func CanSend(id Identity, usage Usage) bool {
	if id.Authenticated {
		return true
	}
	return usage.SentCount < usage.Limit
}

// RecordSend returns the usage after a successfully dispatched send.
// Only anonymous sends count against the limit. Callers must invoke
// this after dispatch, never on a blocked or merely attempted send.
func RecordSend(id Identity, usage Usage) Usage {
	if id.Authenticated {
		return usage
	}
	usage.SentCount++
	return usage
}
