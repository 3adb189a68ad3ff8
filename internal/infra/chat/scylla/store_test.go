package scylla

import (
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainchat "fleamarket/internal/domain/chat"
)

// The not-applied CAS response carries every column of the existing row keyed
// by name, including the ones the losing insert did not ask about. The loser
// must come away with the winner's conversation, not an unmarshal error.
func TestConversationFromCASRowReturnsSurvivingRow(t *testing.T) {
	key, err := domainchat.NewKey("alice", "bob", "listing-1")
	require.NoError(t, err)
	winner := gocql.TimeUUID()
	createdAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	row := map[string]interface{}{
		"pair_key":        key.PairKey,
		"listing_id":      "listing-1",
		"buyer_id":        "alice",
		"conversation_id": winner,
		"created_at":      createdAt,
		"seller_id":       "bob",
	}

	conv, ok := conversationFromCASRow(key, row)
	require.True(t, ok)
	assert.Equal(t, domainchat.ConversationID(winner.String()), conv.ID)
	assert.Equal(t, domainchat.ParticipantID("alice"), conv.Buyer)
	assert.Equal(t, domainchat.ParticipantID("bob"), conv.Seller)
	assert.Equal(t, domainchat.ListingID("listing-1"), conv.Listing)
	assert.Equal(t, createdAt, conv.CreatedAt)
}

func TestConversationFromCASRowRejectsIncompleteRow(t *testing.T) {
	key, err := domainchat.NewKey("alice", "bob", "listing-1")
	require.NoError(t, err)

	for name, row := range map[string]map[string]interface{}{
		"empty":           {},
		"missing id":      {"buyer_id": "alice", "seller_id": "bob", "created_at": time.Now()},
		"mistyped buyer":  {"conversation_id": gocql.TimeUUID(), "buyer_id": 42, "seller_id": "bob", "created_at": time.Now()},
		"mistyped stamp":  {"conversation_id": gocql.TimeUUID(), "buyer_id": "alice", "seller_id": "bob", "created_at": "yesterday"},
		"id as raw bytes": {"conversation_id": []byte{1, 2}, "buyer_id": "alice", "seller_id": "bob", "created_at": time.Now()},
	} {
		t.Run(name, func(t *testing.T) {
			conv, ok := conversationFromCASRow(key, row)
			assert.False(t, ok)
			assert.Nil(t, conv)
		})
	}
}
