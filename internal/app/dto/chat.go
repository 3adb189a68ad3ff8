package dto

import (
	"time"

	chatservice "fleamarket/internal/app/services/chat"
	domainchat "fleamarket/internal/domain/chat"
)

// Conversation describes one buyer/seller thread about a listing.
type Conversation struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	OtherID   string    `json:"other_id"`
	OtherName string    `json:"other_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ConversationList struct {
	Items []Conversation `json:"items"`
}

// ChatMessage contains a single message payload.
type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
	Read           bool      `json:"read"`
}

type ChatMessageList struct {
	Items []ChatMessage `json:"items"`
}

func MapConversation(summary chatservice.Summary) Conversation {
	return Conversation{
		ID:        string(summary.Conversation.ID),
		ListingID: string(summary.Conversation.Listing),
		OtherID:   string(summary.OtherID),
		OtherName: summary.OtherName,
		CreatedAt: summary.Conversation.CreatedAt,
	}
}

func MapChatMessage(msg domainchat.Message) ChatMessage {
	return ChatMessage{
		ID:             string(msg.ID),
		ConversationID: string(msg.ConversationID),
		SenderID:       string(msg.SenderID),
		Body:           msg.Body,
		CreatedAt:      msg.CreatedAt,
		Read:           msg.Read,
	}
}

func MapChatMessages(msgs []domainchat.Message) ChatMessageList {
	items := make([]ChatMessage, 0, len(msgs))
	for _, msg := range msgs {
		items = append(items, MapChatMessage(msg))
	}
	return ChatMessageList{Items: items}
}
