package chat

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrParticipantRequired = errors.New("chat: participant id is required")
	ErrListingRequired     = errors.New("chat: listing id is required")
	ErrSelfConversation    = errors.New("chat: cannot start a conversation with yourself")
	ErrEmptyBody           = errors.New("chat: message body is empty")
	ErrNotFound            = errors.New("chat: conversation not found")
	ErrMessageNotFound     = errors.New("chat: message not found")
	ErrNotParticipant      = errors.New("chat: not a conversation participant")
)

type ConversationID string
type MessageID string
type ParticipantID string
type ListingID string

// Conversation is the unique thread between a buyer and a seller about one listing.
// Buyer/seller is the orientation at creation time; resolution treats the pair as
// unordered.
type Conversation struct {
	ID        ConversationID
	Buyer     ParticipantID
	Seller    ParticipantID
	Listing   ListingID
	CreatedAt time.Time
}

// Other returns the participant on the far side of the conversation from me.
func (c Conversation) Other(me ParticipantID) ParticipantID {
	if c.Buyer == me {
		return c.Seller
	}
	return c.Buyer
}

func (c Conversation) HasParticipant(p ParticipantID) bool {
	return p != "" && (c.Buyer == p || c.Seller == p)
}

// Message is immutable once stored except for the read flag.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       ParticipantID
	Body           string
	CreatedAt      time.Time
	Read           bool
}

// Key identifies a conversation by its unordered participant pair and listing.
// Both orientations of the same pair normalize to the same key, which is what
// makes lookup order-agnostic and the uniqueness constraint enforceable.
type Key struct {
	PairKey string
	Listing ListingID
}

// NewKey validates and normalizes the participant pair. The pair key is
// min(a,b) + "#" + max(a,b).
func NewKey(a, b ParticipantID, listing ListingID) (Key, error) {
	first := strings.TrimSpace(string(a))
	second := strings.TrimSpace(string(b))
	if first == "" || second == "" {
		return Key{}, ErrParticipantRequired
	}
	if first == second {
		return Key{}, ErrSelfConversation
	}
	listingID := strings.TrimSpace(string(listing))
	if listingID == "" {
		return Key{}, ErrListingRequired
	}
	if first > second {
		first, second = second, first
	}
	return Key{PairKey: first + "#" + second, Listing: ListingID(listingID)}, nil
}

// ValidateBody rejects empty or whitespace-only message bodies before any
// store call. Returns the trimmed body.
func ValidateBody(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return "", ErrEmptyBody
	}
	return trimmed, nil
}

// ConversationStore persists conversations. GetOrCreate must be safe under
// concurrent first-contact from both sides: exactly one row survives and both
// callers observe the same identifier.
type ConversationStore interface {
	// Find locates an existing conversation for the pair in either
	// buyer/seller orientation. Returns ErrNotFound on miss; never creates.
	Find(ctx context.Context, key Key) (*Conversation, error)
	// GetOrCreate resolves the conversation for the key, inserting it with the
	// supplied orientation if absent. The creation race is absorbed by the
	// store, never surfaced to the caller.
	GetOrCreate(ctx context.Context, key Key, buyer, seller ParticipantID) (*Conversation, error)
	ByID(ctx context.Context, id ConversationID) (*Conversation, error)
	// ByParticipant returns every conversation the participant belongs to,
	// most recently created first.
	ByParticipant(ctx context.Context, p ParticipantID) ([]Conversation, error)
	// All returns every conversation, for the admin back office.
	All(ctx context.Context) ([]Conversation, error)
}

// MessageStore appends immutable messages and tracks the per-message read flag.
type MessageStore interface {
	// Append assigns the message id and UTC timestamp at the store layer and
	// persists the message with read=false.
	Append(ctx context.Context, conversationID ConversationID, sender ParticipantID, body string) (*Message, error)
	// History returns all messages ascending by creation time, ties broken by
	// id. An empty conversation yields an empty slice, not an error.
	History(ctx context.Context, conversationID ConversationID) ([]Message, error)
	// MarkRead flips the read flag to true. Idempotent: marking an already
	// read message succeeds.
	MarkRead(ctx context.Context, conversationID ConversationID, messageID MessageID) (*Message, error)
}
