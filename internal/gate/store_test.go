// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "session.db"), DefaultSendLimit)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_UsageCreatesSession(t *testing.T) {
	store := openTestStore(t)

	u, err := store.Usage("s1")
	require.NoError(t, err)
	assert.Equal(t, 0, u.SentCount)
	assert.Equal(t, DefaultSendLimit, u.Limit)
}

func TestStore_RecordSendIncrementsAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.db")

	store, err := OpenStore(path, DefaultSendLimit)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		u, err := store.RecordSend("s1")
		require.NoError(t, err)
		assert.Equal(t, i, u.SentCount)
	}
	require.NoError(t, store.Close())

	// Counter survives reopening the store.
	store, err = OpenStore(path, DefaultSendLimit)
	require.NoError(t, err)
	defer store.Close()

	u, err := store.Usage("s1")
	require.NoError(t, err)
	assert.Equal(t, 3, u.SentCount)
	assert.False(t, CanSend(Anonymous, u))
}

func TestStore_ConfiguredLimitApplies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.db")

	store, err := OpenStore(path, 10)
	require.NoError(t, err)

	u, err := store.Usage("s1")
	require.NoError(t, err)
	assert.Equal(t, 10, u.Limit)

	// Past the default allowance but within the configured one.
	for i := 0; i < DefaultSendLimit; i++ {
		u, err = store.RecordSend("s1")
		require.NoError(t, err)
	}
	assert.True(t, CanSend(Anonymous, u))
	require.NoError(t, store.Close())

	// Reopening with a different limit reconciles existing rows.
	store, err = OpenStore(path, 2)
	require.NoError(t, err)
	defer store.Close()

	u, err = store.Usage("s1")
	require.NoError(t, err)
	assert.Equal(t, 2, u.Limit)
	assert.Equal(t, DefaultSendLimit, u.SentCount)
	assert.False(t, CanSend(Anonymous, u))
}

func TestStore_NonPositiveLimitFallsBack(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "session.db"), 0)
	require.NoError(t, err)
	defer store.Close()

	u, err := store.Usage("s1")
	require.NoError(t, err)
	assert.Equal(t, DefaultSendLimit, u.Limit)
}

func TestStore_SessionsAreIndependent(t *testing.T) {
	store := openTestStore(t)

	_, err := store.RecordSend("s1")
	require.NoError(t, err)

	u, err := store.Usage("s2")
	require.NoError(t, err)
	assert.Equal(t, 0, u.SentCount)
}

func TestStore_HasChatted(t *testing.T) {
	store := openTestStore(t)

	// Unknown session reports false without creating a row.
	chatted, err := store.HasChatted("s1")
	require.NoError(t, err)
	assert.False(t, chatted)

	// Reading usage alone does not set the flag.
	_, err = store.Usage("s1")
	require.NoError(t, err)
	chatted, err = store.HasChatted("s1")
	require.NoError(t, err)
	assert.False(t, chatted)

	_, err = store.RecordSend("s1")
	require.NoError(t, err)
	chatted, err = store.HasChatted("s1")
	require.NoError(t, err)
	assert.True(t, chatted)
}

func TestStore_ClearSessionResets(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < DefaultSendLimit; i++ {
		_, err := store.RecordSend("s1")
		require.NoError(t, err)
	}
	u, err := store.Usage("s1")
	require.NoError(t, err)
	assert.False(t, CanSend(Anonymous, u))

	require.NoError(t, store.ClearSession("s1"))

	u, err = store.Usage("s1")
	require.NoError(t, err)
	assert.Equal(t, 0, u.SentCount)
	assert.True(t, CanSend(Anonymous, u))

	chatted, err := store.HasChatted("s1")
	require.NoError(t, err)
	assert.False(t, chatted)
}

func TestStore_ClosedStoreErrors(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Close())

	_, err := store.Usage("s1")
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.RecordSend("s1")
	assert.ErrorIs(t, err, ErrStoreClosed)
	err = store.ClearSession("s1")
	assert.ErrorIs(t, err, ErrStoreClosed)
}
