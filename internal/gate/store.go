// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gate

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure-Go sqlite driver
)

// =============================================================================
// SESSION STORE
// =============================================================================

// ErrStoreClosed is returned when a store method is called after Close.
var ErrStoreClosed = errors.New("session store is closed")

// Schema for the session store. One row per session; the counter and
// the has-chatted flag are the only client-persisted state.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    sent_count INTEGER NOT NULL DEFAULT 0,
    send_limit INTEGER NOT NULL,
    has_chatted INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
) WITHOUT ROWID;
`

// Store persists per-session usage counters in a local sqlite file.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	limit  int
	closed bool
}

// OpenStore opens (creating if needed) the session database at path.
// limit is the configured send allowance; existing session rows are
// reconciled to it so a changed config takes effect on restart. A
// non-positive limit falls back to the default.
func OpenStore(path string, limit int) (*Store, error) {
	if limit <= 0 {
		limit = DefaultSendLimit
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create session store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	// SQLite allows a single writer; keep the pool at one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session schema: %w", err)
	}

	// Rows created under an older config keep counting against the old
	// allowance otherwise.
	if _, err := db.Exec("UPDATE sessions SET send_limit = ? WHERE send_limit != ?", limit, limit); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reconcile send limit: %w", err)
	}

	return &Store{db: db, limit: limit}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Usage returns the usage record for the session, creating the row on
// first access.
func (s *Store) Usage(sessionID string) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Usage{}, ErrStoreClosed
	}

	if err := s.ensureSessionLocked(sessionID); err != nil {
		return Usage{}, err
	}

	var u Usage
	err := s.db.QueryRow(
		"SELECT sent_count, send_limit FROM sessions WHERE id = ?", sessionID,
	).Scan(&u.SentCount, &u.Limit)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to read session usage: %w", err)
	}
	return u, nil
}

// RecordSend increments the session's counter and marks the session as
// having chatted. Returns the updated usage.
func (s *Store) RecordSend(sessionID string) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Usage{}, ErrStoreClosed
	}

	if err := s.ensureSessionLocked(sessionID); err != nil {
		return Usage{}, err
	}

	_, err := s.db.Exec(
		"UPDATE sessions SET sent_count = sent_count + 1, has_chatted = 1, updated_at = unixepoch() WHERE id = ?",
		sessionID,
	)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to record send: %w", err)
	}

	var u Usage
	err = s.db.QueryRow(
		"SELECT sent_count, send_limit FROM sessions WHERE id = ?", sessionID,
	).Scan(&u.SentCount, &u.Limit)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to read session usage: %w", err)
	}
	return u, nil
}

// HasChatted reports whether the session has dispatched at least one
// send. Missing sessions report false without creating a row.
func (s *Store) HasChatted(sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrStoreClosed
	}

	var chatted bool
	err := s.db.QueryRow(
		"SELECT has_chatted FROM sessions WHERE id = ?", sessionID,
	).Scan(&chatted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read session flag: %w", err)
	}
	return chatted, nil
}

// ClearSession deletes the session row, resetting counter and flag.
func (s *Store) ClearSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (s *Store) ensureSessionLocked(sessionID string) error {
	_, err := s.db.Exec(
		"INSERT INTO sessions (id, send_limit) VALUES (?, ?) ON CONFLICT(id) DO NOTHING",
		sessionID, s.limit,
	)
	if err != nil {
		return fmt.Errorf("failed to create session row: %w", err)
	}
	return nil
}
