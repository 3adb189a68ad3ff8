package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainchat "fleamarket/internal/domain/chat"
	"fleamarket/internal/infra/chat/hub"
)

func consumedEvent(t *testing.T, origin string) *sarama.ConsumerMessage {
	t.Helper()
	payload, err := json.Marshal(messageEvent{
		Origin:         origin,
		MessageID:      "m1",
		ConversationID: "c1",
		SenderID:       "alice",
		Body:           "hello from afar",
		CreatedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: "chat.messages", Key: []byte("c1"), Value: payload}
}

func TestRelayRepublishesForeignEvents(t *testing.T) {
	h := hub.New(nil)
	relay := NewChatRelay(nil, h, "chat.messages", nil)
	sub := h.Subscribe("c1")
	defer sub.Cancel()

	require.NoError(t, relay.Handle(context.Background(), consumedEvent(t, "another-instance")))

	select {
	case msg := <-sub.C():
		assert.Equal(t, domainchat.MessageID("m1"), msg.ID)
		assert.Equal(t, "hello from afar", msg.Body)
	case <-time.After(time.Second):
		t.Fatal("relayed message not delivered")
	}
}

func TestRelaySkipsOwnEvents(t *testing.T) {
	h := hub.New(nil)
	relay := NewChatRelay(nil, h, "chat.messages", nil)
	sub := h.Subscribe("c1")
	defer sub.Cancel()

	// The sending instance already fanned out locally; consuming its own
	// event again must not double-deliver.
	require.NoError(t, relay.Handle(context.Background(), consumedEvent(t, relay.Origin)))

	select {
	case msg := <-sub.C():
		t.Fatalf("own event was re-delivered: %q", msg.Body)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRelayDropsMalformedPayload(t *testing.T) {
	relay := NewChatRelay(nil, hub.New(nil), "chat.messages", nil)

	// Malformed records are logged and skipped, not retried forever.
	err := relay.Handle(context.Background(), &sarama.ConsumerMessage{Value: []byte("not json")})
	assert.NoError(t, err)
}
