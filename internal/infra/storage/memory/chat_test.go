package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainchat "fleamarket/internal/domain/chat"
)

func mustKey(t *testing.T, a, b domainchat.ParticipantID, listing domainchat.ListingID) domainchat.Key {
	t.Helper()
	key, err := domainchat.NewKey(a, b, listing)
	require.NoError(t, err)
	return key
}

func TestChatStoreGetOrCreateIsIdempotent(t *testing.T) {
	store := NewChatStore()
	ctx := context.Background()
	key := mustKey(t, "alice", "bob", "l1")

	first, err := store.GetOrCreate(ctx, key, "alice", "bob")
	require.NoError(t, err)
	second, err := store.GetOrCreate(ctx, key, "alice", "bob")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	// The reverse orientation resolves to the same thread.
	reversed, err := store.GetOrCreate(ctx, mustKey(t, "bob", "alice", "l1"), "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, reversed.ID)
}

func TestChatStoreConcurrentFirstContact(t *testing.T) {
	store := NewChatStore()
	ctx := context.Background()
	key := mustKey(t, "alice", "bob", "l1")

	const callers = 32
	ids := make([]domainchat.ConversationID, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buyer, seller := domainchat.ParticipantID("alice"), domainchat.ParticipantID("bob")
			if i%2 == 1 {
				buyer, seller = seller, buyer
			}
			conv, err := store.GetOrCreate(ctx, key, buyer, seller)
			if assert.NoError(t, err) {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Equal(t, ids[0], ids[i], "caller %d observed a different conversation", i)
	}
	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestChatStoreFind(t *testing.T) {
	store := NewChatStore()
	ctx := context.Background()
	key := mustKey(t, "alice", "bob", "l1")

	_, err := store.Find(ctx, key)
	assert.ErrorIs(t, err, domainchat.ErrNotFound)

	created, err := store.GetOrCreate(ctx, key, "alice", "bob")
	require.NoError(t, err)

	found, err := store.Find(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestChatStoreByParticipant(t *testing.T) {
	store := NewChatStore()
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx, mustKey(t, "alice", "bob", "l1"), "alice", "bob")
	require.NoError(t, err)
	_, err = store.GetOrCreate(ctx, mustKey(t, "alice", "carol", "l2"), "alice", "carol")
	require.NoError(t, err)

	aliceConvs, err := store.ByParticipant(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, aliceConvs, 2)

	bobConvs, err := store.ByParticipant(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, bobConvs, 1)

	none, err := store.ByParticipant(ctx, "mallory")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestChatStoreHistoryPreservesAppendOrder(t *testing.T) {
	store := NewChatStore()
	ctx := context.Background()
	conv, err := store.GetOrCreate(ctx, mustKey(t, "alice", "bob", "l1"), "alice", "bob")
	require.NoError(t, err)

	const count = 10
	for i := 0; i < count; i++ {
		_, err := store.Append(ctx, conv.ID, "alice", fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}

	history, err := store.History(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, history, count)
	for i, msg := range history {
		assert.Equal(t, fmt.Sprintf("message %d", i), msg.Body)
		assert.False(t, msg.Read)
		if i > 0 {
			assert.False(t, msg.CreatedAt.Before(history[i-1].CreatedAt))
		}
	}
}

func TestChatStoreHistoryEmptyConversation(t *testing.T) {
	store := NewChatStore()
	ctx := context.Background()
	conv, err := store.GetOrCreate(ctx, mustKey(t, "alice", "bob", "l1"), "alice", "bob")
	require.NoError(t, err)

	history, err := store.History(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = store.History(ctx, "missing")
	assert.ErrorIs(t, err, domainchat.ErrNotFound)
}

func TestChatStoreAppendUnknownConversation(t *testing.T) {
	store := NewChatStore()
	_, err := store.Append(context.Background(), "missing", "alice", "hello")
	assert.ErrorIs(t, err, domainchat.ErrNotFound)
}

func TestChatStoreMarkReadIsIdempotent(t *testing.T) {
	store := NewChatStore()
	ctx := context.Background()
	conv, err := store.GetOrCreate(ctx, mustKey(t, "alice", "bob", "l1"), "alice", "bob")
	require.NoError(t, err)
	msg, err := store.Append(ctx, conv.ID, "alice", "hello")
	require.NoError(t, err)

	marked, err := store.MarkRead(ctx, conv.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, marked.Read)

	again, err := store.MarkRead(ctx, conv.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, again.Read)

	_, err = store.MarkRead(ctx, conv.ID, "missing")
	assert.ErrorIs(t, err, domainchat.ErrMessageNotFound)
}
