// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/relay-tui/internal/model"
)

func newTestStore(t *testing.T) *ConversationStore {
	t.Helper()
	store, err := NewConversationStoreWithDir(t.TempDir())
	require.NoError(t, err)
	return store
}

func buildConversation(userText, reply string) *model.Conversation {
	conv := model.NewConversation()
	conv.AddMessage(model.NewUserMessage(userText))
	conv.AddMessage(model.NewMessage(model.RoleAssistant, reply))
	return conv
}

func TestSaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	conv := buildConversation("What is relaying?", "Good question.")
	conv.SetRemoteID("c-remote-1")

	id, err := store.Save(conv)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, id)

	loaded, err := store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, "c-remote-1", loaded.RemoteID)
	require.Equal(t, 2, loaded.Len())
	assert.Equal(t, "What is relaying?", loaded.Messages[0].Content)
	assert.Equal(t, model.RoleAssistant, loaded.Messages[1].Role)
}

func TestSaveEmptyConversationRejected(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save(model.NewConversation())
	assert.ErrorIs(t, err, ErrEmptyConversation)
}

func TestLoadMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("nope")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestListSortedByUpdateTime(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save(buildConversation("first", "a"))
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	_, err = store.Save(buildConversation("second", "b"))
	require.NoError(t, err)

	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "second", metas[0].Preview)
	assert.Equal(t, 2, metas[0].MessageCount)
}

func TestRename(t *testing.T) {
	store := newTestStore(t)

	conv := buildConversation("hello", "hi")
	id, err := store.Save(conv)
	require.NoError(t, err)

	require.NoError(t, store.Rename(id, "Greetings"))

	loaded, err := store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, "Greetings", loaded.Title)

	metas, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, "Greetings", metas[0].Title)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Save(buildConversation("hello", "hi"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(id))
	_, err = store.Load(id)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	assert.ErrorIs(t, store.Delete(id), ErrConversationNotFound)
}

func TestSearch(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save(buildConversation("how do I tune the reveal speed", "..."))
	require.NoError(t, err)
	_, err = store.Save(buildConversation("unrelated question", "..."))
	require.NoError(t, err)

	results, err := store.Search("REVEAL")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Preview, "reveal")
}

func TestEnforceLimitPrunesOldest(t *testing.T) {
	store := newTestStore(t)
	store.MaxConversations = 3

	for i := 0; i < 5; i++ {
		conv := buildConversation(fmt.Sprintf("question %d", i), "answer")
		// Spread update times so pruning order is deterministic.
		conv.CreatedAt = time.Now().Add(time.Duration(i-5) * time.Minute)
		_, err := store.Save(conv)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	metas, err := store.List()
	require.NoError(t, err)
	assert.Len(t, metas, 3)
	// The most recent saves survive.
	assert.Equal(t, "question 4", metas[0].Preview)
}

func TestClear(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save(buildConversation("a", "b"))
	require.NoError(t, err)

	require.NoError(t, store.Clear())
	metas, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, metas)
}
