package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeyNormalizesPairOrder(t *testing.T) {
	forward, err := NewKey("alice", "bob", "listing-1")
	require.NoError(t, err)
	reverse, err := NewKey("bob", "alice", "listing-1")
	require.NoError(t, err)

	assert.Equal(t, forward, reverse)
	assert.Equal(t, "alice#bob", forward.PairKey)
	assert.Equal(t, ListingID("listing-1"), forward.Listing)
}

func TestNewKeyDistinctListingsDistinctKeys(t *testing.T) {
	first, err := NewKey("alice", "bob", "listing-1")
	require.NoError(t, err)
	second, err := NewKey("alice", "bob", "listing-2")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestNewKeyValidation(t *testing.T) {
	cases := []struct {
		name    string
		a, b    ParticipantID
		listing ListingID
		wantErr error
	}{
		{"missing first participant", "", "bob", "l1", ErrParticipantRequired},
		{"missing second participant", "alice", "", "l1", ErrParticipantRequired},
		{"whitespace participant", "  ", "bob", "l1", ErrParticipantRequired},
		{"self conversation", "alice", "alice", "l1", ErrSelfConversation},
		{"missing listing", "alice", "bob", "", ErrListingRequired},
		{"whitespace listing", "alice", "bob", "  ", ErrListingRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewKey(tc.a, tc.b, tc.listing)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestValidateBody(t *testing.T) {
	body, err := ValidateBody("  hello there  ")
	require.NoError(t, err)
	assert.Equal(t, "hello there", body)

	_, err = ValidateBody("")
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = ValidateBody("   \t\n ")
	assert.ErrorIs(t, err, ErrEmptyBody)
}

func TestConversationOther(t *testing.T) {
	conv := Conversation{Buyer: "alice", Seller: "bob"}

	assert.Equal(t, ParticipantID("bob"), conv.Other("alice"))
	assert.Equal(t, ParticipantID("alice"), conv.Other("bob"))
}

func TestConversationHasParticipant(t *testing.T) {
	conv := Conversation{Buyer: "alice", Seller: "bob"}

	assert.True(t, conv.HasParticipant("alice"))
	assert.True(t, conv.HasParticipant("bob"))
	assert.False(t, conv.HasParticipant("mallory"))
	assert.False(t, conv.HasParticipant(""))
}
