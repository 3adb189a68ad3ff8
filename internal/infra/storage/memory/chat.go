package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domainchat "fleamarket/internal/domain/chat"
)

// ChatStore keeps conversations and messages in memory. It backs tests and
// dev mode; the uniqueness invariant on (pair, listing) is enforced under a
// single mutex the way the production store enforces it with an LWT insert.
type ChatStore struct {
	mu       sync.RWMutex
	byKey    map[domainchat.Key]domainchat.ConversationID
	byID     map[domainchat.ConversationID]*domainchat.Conversation
	messages map[domainchat.ConversationID][]*domainchat.Message
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		byKey:    make(map[domainchat.Key]domainchat.ConversationID),
		byID:     make(map[domainchat.ConversationID]*domainchat.Conversation),
		messages: make(map[domainchat.ConversationID][]*domainchat.Message),
	}
}

func (s *ChatStore) Find(ctx context.Context, key domainchat.Key) (*domainchat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[key]
	if !ok {
		return nil, domainchat.ErrNotFound
	}
	return cloneConversation(s.byID[id]), nil
}

func (s *ChatStore) GetOrCreate(ctx context.Context, key domainchat.Key, buyer, seller domainchat.ParticipantID) (*domainchat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byKey[key]; ok {
		return cloneConversation(s.byID[id]), nil
	}
	conv := &domainchat.Conversation{
		ID:        domainchat.ConversationID(uuid.NewString()),
		Buyer:     buyer,
		Seller:    seller,
		Listing:   key.Listing,
		CreatedAt: time.Now().UTC(),
	}
	s.byKey[key] = conv.ID
	s.byID[conv.ID] = conv
	return cloneConversation(conv), nil
}

func (s *ChatStore) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.byID[id]
	if !ok {
		return nil, domainchat.ErrNotFound
	}
	return cloneConversation(conv), nil
}

func (s *ChatStore) ByParticipant(ctx context.Context, p domainchat.ParticipantID) ([]domainchat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domainchat.Conversation, 0)
	for _, conv := range s.byID {
		if conv.HasParticipant(p) {
			result = append(result, *conv)
		}
	}
	sortConversations(result)
	return result, nil
}

func (s *ChatStore) All(ctx context.Context) ([]domainchat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domainchat.Conversation, 0, len(s.byID))
	for _, conv := range s.byID {
		result = append(result, *conv)
	}
	sortConversations(result)
	return result, nil
}

func (s *ChatStore) Append(ctx context.Context, conversationID domainchat.ConversationID, sender domainchat.ParticipantID, body string) (*domainchat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[conversationID]; !ok {
		return nil, domainchat.ErrNotFound
	}
	msg := &domainchat.Message{
		ID:             domainchat.MessageID(uuid.NewString()),
		ConversationID: conversationID,
		SenderID:       sender,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
		Read:           false,
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	return cloneMessage(msg), nil
}

// History returns messages in append order, which is commit order for this
// store and non-decreasing in creation time.
func (s *ChatStore) History(ctx context.Context, conversationID domainchat.ConversationID) ([]domainchat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.byID[conversationID]; !ok {
		return nil, domainchat.ErrNotFound
	}
	stored := s.messages[conversationID]
	result := make([]domainchat.Message, 0, len(stored))
	for _, msg := range stored {
		result = append(result, *msg)
	}
	return result, nil
}

func (s *ChatStore) MarkRead(ctx context.Context, conversationID domainchat.ConversationID, messageID domainchat.MessageID) (*domainchat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages[conversationID] {
		if msg.ID == messageID {
			msg.Read = true
			return cloneMessage(msg), nil
		}
	}
	return nil, domainchat.ErrMessageNotFound
}

func sortConversations(convs []domainchat.Conversation) {
	sort.Slice(convs, func(i, j int) bool {
		if convs[i].CreatedAt.Equal(convs[j].CreatedAt) {
			return convs[i].ID < convs[j].ID
		}
		return convs[i].CreatedAt.After(convs[j].CreatedAt)
	})
}

func cloneConversation(c *domainchat.Conversation) *domainchat.Conversation {
	if c == nil {
		return nil
	}
	copyConv := *c
	return &copyConv
}

func cloneMessage(m *domainchat.Message) *domainchat.Message {
	if m == nil {
		return nil
	}
	copyMsg := *m
	return &copyMsg
}
