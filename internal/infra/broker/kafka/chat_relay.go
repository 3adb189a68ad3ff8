package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	domainchat "fleamarket/internal/domain/chat"
	"fleamarket/internal/infra/chat/hub"
)

// ChatRelay bridges the chat hub across instances. Every appended message is
// published to the chat topic; each instance consumes the topic and republishes
// into its local hub, skipping events it produced itself so local subscribers
// are not fed duplicates.
type ChatRelay struct {
	Producer *Producer
	Hub      *hub.Hub
	Topic    string
	Origin   string
	Logger   *slog.Logger
}

type messageEvent struct {
	Origin         string    `json:"origin"`
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewChatRelay(producer *Producer, h *hub.Hub, topic string, logger *slog.Logger) *ChatRelay {
	return &ChatRelay{
		Producer: producer,
		Hub:      h,
		Topic:    topic,
		Origin:   uuid.NewString(),
		Logger:   logger,
	}
}

// PublishMessage pushes the appended message onto the chat topic, keyed by
// conversation id so per-conversation order survives partitioning.
func (r *ChatRelay) PublishMessage(ctx context.Context, msg domainchat.Message) error {
	event := messageEvent{
		Origin:         r.Origin,
		MessageID:      string(msg.ID),
		ConversationID: string(msg.ConversationID),
		SenderID:       string(msg.SenderID),
		Body:           msg.Body,
		CreatedAt:      msg.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.Producer.Publish(ctx, r.Topic, event.ConversationID, payload)
}

// Handle republishes a consumed event into the local hub.
func (r *ChatRelay) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event messageEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		if r.Logger != nil {
			r.Logger.Warn("dropping malformed chat event", "error", err, "topic", msg.Topic, "offset", msg.Offset)
		}
		return nil
	}
	if event.Origin == r.Origin {
		return nil
	}
	if r.Hub != nil {
		r.Hub.Publish(domainchat.Message{
			ID:             domainchat.MessageID(event.MessageID),
			ConversationID: domainchat.ConversationID(event.ConversationID),
			SenderID:       domainchat.ParticipantID(event.SenderID),
			Body:           event.Body,
			CreatedAt:      event.CreatedAt,
		})
	}
	return nil
}
