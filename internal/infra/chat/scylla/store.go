package scylla

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/gocql/gocql"

	domainchat "fleamarket/internal/domain/chat"
)

// Store implements the chat conversation and message stores on Scylla.
// The uniqueness invariant on (pair, listing) rests on the lightweight
// transaction in GetOrCreate.
type Store struct {
	session *gocql.Session
	logger  *slog.Logger
}

func NewStore(session *gocql.Session, logger *slog.Logger) *Store {
	return &Store{session: session, logger: logger}
}

func (s *Store) Find(ctx context.Context, key domainchat.Key) (*domainchat.Conversation, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	var (
		id        gocql.UUID
		buyer     string
		seller    string
		createdAt time.Time
	)
	err := s.session.
		Query(`SELECT conversation_id, buyer_id, seller_id, created_at FROM conversations_by_key WHERE pair_key = ? AND listing_id = ?`,
			key.PairKey, string(key.Listing)).
		WithContext(ctx).
		Scan(&id, &buyer, &seller, &createdAt)
	if err == gocql.ErrNotFound {
		return nil, domainchat.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domainchat.Conversation{
		ID:        domainchat.ConversationID(id.String()),
		Buyer:     domainchat.ParticipantID(buyer),
		Seller:    domainchat.ParticipantID(seller),
		Listing:   key.Listing,
		CreatedAt: createdAt.UTC(),
	}, nil
}

// GetOrCreate claims the (pair, listing) slot with INSERT IF NOT EXISTS. When
// the insert is not applied another caller won the race and the CAS response
// carries the surviving row, so both callers return the same identifier.
func (s *Store) GetOrCreate(ctx context.Context, key domainchat.Key, buyer, seller domainchat.ParticipantID) (*domainchat.Conversation, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	if existing, err := s.Find(ctx, key); err == nil {
		return existing, nil
	} else if !errors.Is(err, domainchat.ErrNotFound) {
		return nil, err
	}

	id := gocql.TimeUUID()
	now := time.Now().UTC()
	// The CAS response returns the existing row in SELECT * column order, not
	// the INSERT's column order, so it must be read by name (MapScanCAS), never
	// positionally.
	previous := make(map[string]interface{})
	applied, err := s.session.
		Query(`INSERT INTO conversations_by_key (pair_key, listing_id, conversation_id, buyer_id, seller_id, created_at) VALUES (?, ?, ?, ?, ?, ?) IF NOT EXISTS`,
			key.PairKey, string(key.Listing), id, string(buyer), string(seller), now).
		WithContext(ctx).
		MapScanCAS(previous)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Another caller claimed the slot first; hand back the surviving row.
		if conv, ok := conversationFromCASRow(key, previous); ok {
			return conv, nil
		}
		return s.Find(ctx, key)
	}

	// The key row above is the source of truth; if this lookup-table insert
	// fails, ByID recovers and repairs from conversations_by_key.
	if err := s.session.
		Query(`INSERT INTO conversations (id, pair_key, buyer_id, seller_id, listing_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			id, key.PairKey, string(buyer), string(seller), string(key.Listing), now).
		WithContext(ctx).
		Exec(); err != nil && s.logger != nil {
		s.logger.Warn("conversation lookup row write failed", "id", id.String(), "error", err)
	}
	if s.logger != nil {
		s.logger.Info("conversation created", "id", id.String(), "listing_id", key.Listing)
	}
	return &domainchat.Conversation{
		ID:        domainchat.ConversationID(id.String()),
		Buyer:     buyer,
		Seller:    seller,
		Listing:   key.Listing,
		CreatedAt: now,
	}, nil
}

// conversationFromCASRow reads the not-applied CAS result by column name.
func conversationFromCASRow(key domainchat.Key, row map[string]interface{}) (*domainchat.Conversation, bool) {
	id, okID := row["conversation_id"].(gocql.UUID)
	buyer, okBuyer := row["buyer_id"].(string)
	seller, okSeller := row["seller_id"].(string)
	createdAt, okCreated := row["created_at"].(time.Time)
	if !okID || !okBuyer || !okSeller || !okCreated {
		return nil, false
	}
	return &domainchat.Conversation{
		ID:        domainchat.ConversationID(id.String()),
		Buyer:     domainchat.ParticipantID(buyer),
		Seller:    domainchat.ParticipantID(seller),
		Listing:   key.Listing,
		CreatedAt: createdAt.UTC(),
	}, true
}

func (s *Store) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	uuid, err := gocql.ParseUUID(string(id))
	if err != nil {
		return nil, domainchat.ErrNotFound
	}
	var (
		buyer     string
		seller    string
		listing   string
		createdAt time.Time
	)
	err = s.session.
		Query(`SELECT buyer_id, seller_id, listing_id, created_at FROM conversations WHERE id = ?`, uuid).
		WithContext(ctx).
		Scan(&buyer, &seller, &listing, &createdAt)
	if err == gocql.ErrNotFound {
		// The key row is written first, so a crash between the two inserts can
		// leave a conversation that only conversations_by_key knows about.
		// Recover it from there and repair the lookup table.
		return s.recoverByID(ctx, uuid)
	}
	if err != nil {
		return nil, err
	}
	return &domainchat.Conversation{
		ID:        id,
		Buyer:     domainchat.ParticipantID(buyer),
		Seller:    domainchat.ParticipantID(seller),
		Listing:   domainchat.ListingID(listing),
		CreatedAt: createdAt.UTC(),
	}, nil
}

func (s *Store) recoverByID(ctx context.Context, uuid gocql.UUID) (*domainchat.Conversation, error) {
	var (
		pairKey   string
		listing   string
		buyer     string
		seller    string
		createdAt time.Time
	)
	err := s.session.
		Query(`SELECT pair_key, listing_id, buyer_id, seller_id, created_at FROM conversations_by_key WHERE conversation_id = ? ALLOW FILTERING`, uuid).
		WithContext(ctx).
		Scan(&pairKey, &listing, &buyer, &seller, &createdAt)
	if err == gocql.ErrNotFound {
		return nil, domainchat.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if repairErr := s.session.
		Query(`INSERT INTO conversations (id, pair_key, buyer_id, seller_id, listing_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			uuid, pairKey, buyer, seller, listing, createdAt).
		WithContext(ctx).
		Exec(); repairErr != nil && s.logger != nil {
		s.logger.Warn("conversation repair failed", "id", uuid.String(), "error", repairErr)
	}
	return &domainchat.Conversation{
		ID:        domainchat.ConversationID(uuid.String()),
		Buyer:     domainchat.ParticipantID(buyer),
		Seller:    domainchat.ParticipantID(seller),
		Listing:   domainchat.ListingID(listing),
		CreatedAt: createdAt.UTC(),
	}, nil
}

func (s *Store) ByParticipant(ctx context.Context, p domainchat.ParticipantID) ([]domainchat.Conversation, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	buyerSide, err := s.scanConversations(ctx, `SELECT id, buyer_id, seller_id, listing_id, created_at FROM conversations WHERE buyer_id = ? ALLOW FILTERING`, string(p))
	if err != nil {
		return nil, err
	}
	sellerSide, err := s.scanConversations(ctx, `SELECT id, buyer_id, seller_id, listing_id, created_at FROM conversations WHERE seller_id = ? ALLOW FILTERING`, string(p))
	if err != nil {
		return nil, err
	}
	merged := append(buyerSide, sellerSide...)
	sortNewestFirst(merged)
	return merged, nil
}

func (s *Store) All(ctx context.Context) ([]domainchat.Conversation, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	conversations, err := s.scanConversations(ctx, `SELECT id, buyer_id, seller_id, listing_id, created_at FROM conversations`)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(conversations)
	return conversations, nil
}

func (s *Store) scanConversations(ctx context.Context, cql string, args ...interface{}) ([]domainchat.Conversation, error) {
	iter := s.session.Query(cql, args...).WithContext(ctx).Iter()
	var (
		id        gocql.UUID
		buyer     string
		seller    string
		listing   string
		createdAt time.Time
	)
	conversations := make([]domainchat.Conversation, 0)
	for iter.Scan(&id, &buyer, &seller, &listing, &createdAt) {
		conversations = append(conversations, domainchat.Conversation{
			ID:        domainchat.ConversationID(id.String()),
			Buyer:     domainchat.ParticipantID(buyer),
			Seller:    domainchat.ParticipantID(seller),
			Listing:   domainchat.ListingID(listing),
			CreatedAt: createdAt.UTC(),
		})
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return conversations, nil
}

// Append stores a message with a server-assigned timeuuid. The clustering
// order on message_id keeps history in commit order with ties already broken.
func (s *Store) Append(ctx context.Context, conversationID domainchat.ConversationID, sender domainchat.ParticipantID, body string) (*domainchat.Message, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	convUUID, err := gocql.ParseUUID(string(conversationID))
	if err != nil {
		return nil, domainchat.ErrNotFound
	}
	messageID := gocql.TimeUUID()
	now := time.Now().UTC()
	if err := s.session.
		Query(`INSERT INTO messages (conversation_id, message_id, sender_id, body, created_at, read) VALUES (?, ?, ?, ?, ?, false)`,
			convUUID, messageID, string(sender), body, now).
		WithContext(ctx).
		Exec(); err != nil {
		return nil, err
	}
	return &domainchat.Message{
		ID:             domainchat.MessageID(messageID.String()),
		ConversationID: conversationID,
		SenderID:       sender,
		Body:           body,
		CreatedAt:      now,
		Read:           false,
	}, nil
}

func (s *Store) History(ctx context.Context, conversationID domainchat.ConversationID) ([]domainchat.Message, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	convUUID, err := gocql.ParseUUID(string(conversationID))
	if err != nil {
		return nil, domainchat.ErrNotFound
	}
	iter := s.session.
		Query(`SELECT message_id, sender_id, body, created_at, read FROM messages WHERE conversation_id = ?`, convUUID).
		WithContext(ctx).
		Iter()
	var (
		messageID gocql.UUID
		sender    string
		body      string
		createdAt time.Time
		read      bool
	)
	messages := make([]domainchat.Message, 0)
	for iter.Scan(&messageID, &sender, &body, &createdAt, &read) {
		messages = append(messages, domainchat.Message{
			ID:             domainchat.MessageID(messageID.String()),
			ConversationID: conversationID,
			SenderID:       domainchat.ParticipantID(sender),
			Body:           body,
			CreatedAt:      createdAt.UTC(),
			Read:           read,
		})
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *Store) MarkRead(ctx context.Context, conversationID domainchat.ConversationID, messageID domainchat.MessageID) (*domainchat.Message, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	convUUID, err := gocql.ParseUUID(string(conversationID))
	if err != nil {
		return nil, domainchat.ErrNotFound
	}
	msgUUID, err := gocql.ParseUUID(string(messageID))
	if err != nil {
		return nil, domainchat.ErrMessageNotFound
	}

	var (
		sender    string
		body      string
		createdAt time.Time
		read      bool
	)
	err = s.session.
		Query(`SELECT sender_id, body, created_at, read FROM messages WHERE conversation_id = ? AND message_id = ?`, convUUID, msgUUID).
		WithContext(ctx).
		Scan(&sender, &body, &createdAt, &read)
	if err == gocql.ErrNotFound {
		return nil, domainchat.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	if !read {
		if err := s.session.
			Query(`UPDATE messages SET read = true WHERE conversation_id = ? AND message_id = ?`, convUUID, msgUUID).
			WithContext(ctx).
			Exec(); err != nil {
			return nil, err
		}
	}
	return &domainchat.Message{
		ID:             messageID,
		ConversationID: conversationID,
		SenderID:       domainchat.ParticipantID(sender),
		Body:           body,
		CreatedAt:      createdAt.UTC(),
		Read:           true,
	}, nil
}

func sortNewestFirst(convs []domainchat.Conversation) {
	sort.Slice(convs, func(i, j int) bool {
		if convs[i].CreatedAt.Equal(convs[j].CreatedAt) {
			return convs[i].ID < convs[j].ID
		}
		return convs[i].CreatedAt.After(convs[j].CreatedAt)
	})
}
