package hub

import (
	"log/slog"
	"sync"

	domainchat "fleamarket/internal/domain/chat"
)

// Hub fans out newly appended messages to every active subscriber of a
// conversation. Subscribers only receive messages published after they
// subscribed; history is loaded separately and reconciled by message id.
type Hub struct {
	mu     sync.RWMutex
	subs   map[domainchat.ConversationID]map[*Subscription]struct{}
	logger *slog.Logger
}

// Subscription is one viewer's feed of a conversation. Cancel is idempotent
// and safe to call before any event has fired.
type Subscription struct {
	hub            *Hub
	conversationID domainchat.ConversationID
	ch             chan domainchat.Message
	once           sync.Once
}

const subscriptionBuffer = 16

func New(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[domainchat.ConversationID]map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscribe registers a new viewer of the conversation.
func (h *Hub) Subscribe(conversationID domainchat.ConversationID) *Subscription {
	sub := &Subscription{
		hub:            h,
		conversationID: conversationID,
		ch:             make(chan domainchat.Message, subscriptionBuffer),
	}
	h.mu.Lock()
	set, ok := h.subs[conversationID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[conversationID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Publish delivers a message to every current subscriber of its conversation,
// in the order Publish is called. A subscriber whose buffer is full is dropped
// instead of blocking the hub; it notices via its closed channel and
// reconciles through the message history.
func (h *Hub) Publish(msg domainchat.Message) {
	h.mu.RLock()
	set := h.subs[msg.ConversationID]
	stale := make([]*Subscription, 0)
	for sub := range set {
		select {
		case sub.ch <- msg:
		default:
			stale = append(stale, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range stale {
		if h.logger != nil {
			h.logger.Warn("dropping slow chat subscriber", "conversation_id", msg.ConversationID)
		}
		sub.Cancel()
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.conversationID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.conversationID)
	}
}

// C is the stream of messages appended after the subscription was established.
// It is closed by Cancel.
func (s *Subscription) C() <-chan domainchat.Message {
	return s.ch
}

// Cancel removes the subscription and closes its channel. After Cancel no
// further messages are delivered. Calling it again is a no-op.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.ch)
	})
}
