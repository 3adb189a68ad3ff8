package chat

import (
	"context"
	"errors"
	"log/slog"

	domainchat "fleamarket/internal/domain/chat"
	domainuser "fleamarket/internal/domain/user"
	"fleamarket/internal/infra/chat/hub"
)

// ConversationRef addresses a conversation that may not exist yet. A thread is
// created lazily on first send, so the UI can hold a Pending ref while the
// user composes and resolve it to Existing through SendMessage.
type ConversationRef struct {
	ID      domainchat.ConversationID
	Other   domainchat.ParticipantID
	Listing domainchat.ListingID
}

// Existing refers to an already created conversation.
func Existing(id domainchat.ConversationID) ConversationRef {
	return ConversationRef{ID: id}
}

// Pending refers to a conversation that will be created on first send.
func Pending(other domainchat.ParticipantID, listing domainchat.ListingID) ConversationRef {
	return ConversationRef{Other: other, Listing: listing}
}

// Summary annotates a conversation with the other participant's display
// identity for the conversation list view. Derived on demand, not persisted.
type Summary struct {
	Conversation domainchat.Conversation
	OtherID      domainchat.ParticipantID
	OtherName    string
}

// EventPublisher pushes message-created events beyond the local process so
// other instances can fan out to their own subscribers.
type EventPublisher interface {
	PublishMessage(ctx context.Context, msg domainchat.Message) error
}

// Service is the chat core: identity resolution, lazy conversation creation,
// message persistence and fan-out. The sender identity is always the
// authenticated principal passed as me, never request payload.
type Service struct {
	Conversations domainchat.ConversationStore
	Messages      domainchat.MessageStore
	Hub           *hub.Hub
	Users         domainuser.Repository
	Events        EventPublisher
	Logger        *slog.Logger
}

// GetOrCreateConversation resolves the thread between me and other about the
// listing, creating it if absent. Concurrent first contact from both sides
// converges on the same identifier.
func (s *Service) GetOrCreateConversation(ctx context.Context, me, other domainchat.ParticipantID, listing domainchat.ListingID) (*domainchat.Conversation, error) {
	if me == "" {
		return nil, domainchat.ErrParticipantRequired
	}
	key, err := domainchat.NewKey(me, other, listing)
	if err != nil {
		return nil, err
	}
	return s.Conversations.GetOrCreate(ctx, key, me, other)
}

// ListConversations returns the caller's conversations annotated with the
// other participant's display name. Names come from one batched lookup keyed
// by id, not a per-row query.
func (s *Service) ListConversations(ctx context.Context, me domainchat.ParticipantID) ([]Summary, error) {
	if me == "" {
		return nil, domainchat.ErrParticipantRequired
	}
	conversations, err := s.Conversations.ByParticipant(ctx, me)
	if err != nil {
		return nil, err
	}

	otherIDs := make([]domainuser.ID, 0, len(conversations))
	for _, conv := range conversations {
		otherIDs = append(otherIDs, domainuser.ID(conv.Other(me)))
	}
	names := make(map[domainuser.ID]*domainuser.User)
	if s.Users != nil && len(otherIDs) > 0 {
		names, err = s.Users.ByIDs(ctx, otherIDs)
		if err != nil {
			return nil, err
		}
	}

	summaries := make([]Summary, 0, len(conversations))
	for _, conv := range conversations {
		otherID := conv.Other(me)
		summary := Summary{Conversation: conv, OtherID: otherID}
		if u, ok := names[domainuser.ID(otherID)]; ok && u != nil {
			summary.OtherName = u.Name
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ListMessages returns the full history of a conversation the caller belongs
// to, in commit order.
func (s *Service) ListMessages(ctx context.Context, me domainchat.ParticipantID, conversationID domainchat.ConversationID) ([]domainchat.Message, error) {
	if _, err := s.requireMember(ctx, me, conversationID); err != nil {
		return nil, err
	}
	return s.Messages.History(ctx, conversationID)
}

// SendMessage validates the body, resolves a Pending ref through lazy
// creation, appends the message and fans it out. The append either fully
// succeeds or fully fails; fan-out failures never undo a persisted message.
func (s *Service) SendMessage(ctx context.Context, me domainchat.ParticipantID, ref ConversationRef, body string) (*domainchat.Message, error) {
	trimmed, err := domainchat.ValidateBody(body)
	if err != nil {
		return nil, err
	}

	var conversation *domainchat.Conversation
	if ref.ID != "" {
		conversation, err = s.requireMember(ctx, me, ref.ID)
	} else {
		conversation, err = s.GetOrCreateConversation(ctx, me, ref.Other, ref.Listing)
	}
	if err != nil {
		return nil, err
	}

	msg, err := s.Messages.Append(ctx, conversation.ID, me, trimmed)
	if err != nil {
		return nil, err
	}

	if s.Hub != nil {
		s.Hub.Publish(*msg)
	}
	if s.Events != nil {
		if err := s.Events.PublishMessage(ctx, *msg); err != nil && s.Logger != nil {
			s.Logger.Warn("chat event publish failed", "error", err, "message_id", msg.ID)
		}
	}
	return msg, nil
}

// Subscribe registers the caller as a live viewer of the conversation. Only
// messages appended after this call are delivered; the caller loads history
// separately and de-duplicates by message id across the boundary.
func (s *Service) Subscribe(ctx context.Context, me domainchat.ParticipantID, conversationID domainchat.ConversationID) (*hub.Subscription, error) {
	if _, err := s.requireMember(ctx, me, conversationID); err != nil {
		return nil, err
	}
	if s.Hub == nil {
		return nil, errors.New("chat: hub not configured")
	}
	return s.Hub.Subscribe(conversationID), nil
}

// MarkRead flips the message's read flag. Calling it on an already read
// message is a no-op success.
func (s *Service) MarkRead(ctx context.Context, me domainchat.ParticipantID, conversationID domainchat.ConversationID, messageID domainchat.MessageID) (*domainchat.Message, error) {
	if _, err := s.requireMember(ctx, me, conversationID); err != nil {
		return nil, err
	}
	if messageID == "" {
		return nil, domainchat.ErrMessageNotFound
	}
	return s.Messages.MarkRead(ctx, conversationID, messageID)
}

// requireMember loads the conversation and verifies the caller is one of its
// two participants. Non-members get ErrNotParticipant, so a conversation's
// messages are never exposed outside its pair.
func (s *Service) requireMember(ctx context.Context, me domainchat.ParticipantID, conversationID domainchat.ConversationID) (*domainchat.Conversation, error) {
	if me == "" {
		return nil, domainchat.ErrParticipantRequired
	}
	if conversationID == "" {
		return nil, domainchat.ErrNotFound
	}
	conversation, err := s.Conversations.ByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(me) {
		return nil, domainchat.ErrNotParticipant
	}
	return conversation, nil
}
