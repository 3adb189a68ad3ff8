package hub

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainchat "fleamarket/internal/domain/chat"
)

func testMessage(conv domainchat.ConversationID, body string) domainchat.Message {
	return domainchat.Message{
		ID:             domainchat.MessageID("msg-" + body),
		ConversationID: conv,
		SenderID:       "alice",
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestHubDeliversToAllSubscribers(t *testing.T) {
	h := New(nil)
	first := h.Subscribe("c1")
	second := h.Subscribe("c1")

	msg := testMessage("c1", "hello")
	h.Publish(msg)

	for _, sub := range []*Subscription{first, second} {
		select {
		case got := <-sub.C():
			assert.Equal(t, msg.ID, got.ID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the message")
		}
	}
}

func TestHubScopesDeliveryToConversation(t *testing.T) {
	h := New(nil)
	other := h.Subscribe("c2")

	h.Publish(testMessage("c1", "hello"))

	select {
	case msg := <-other.C():
		t.Fatalf("subscriber of another conversation received %q", msg.Body)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubNoDeliveryBeforeSubscribe(t *testing.T) {
	h := New(nil)
	h.Publish(testMessage("c1", "early"))

	sub := h.Subscribe("c1")
	h.Publish(testMessage("c1", "late"))

	got := <-sub.C()
	assert.Equal(t, "late", got.Body)
	select {
	case msg := <-sub.C():
		t.Fatalf("unexpected extra message %q", msg.Body)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscriptionCancelStopsDelivery(t *testing.T) {
	h := New(nil)
	sub := h.Subscribe("c1")
	sub.Cancel()

	h.Publish(testMessage("c1", "after cancel"))

	msg, open := <-sub.C()
	assert.False(t, open, "channel should be closed, got %q", msg.Body)
}

func TestSubscriptionCancelIsIdempotent(t *testing.T) {
	h := New(nil)
	sub := h.Subscribe("c1")

	require.NotPanics(t, func() {
		sub.Cancel()
		sub.Cancel()
		sub.Cancel()
	})
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := New(nil)
	slow := h.Subscribe("c1")
	fast := h.Subscribe("c1")

	// Overflow the slow subscriber without draining it.
	for i := 0; i <= subscriptionBuffer; i++ {
		h.Publish(testMessage("c1", fmt.Sprintf("m%d", i)))
		// Keep the fast subscriber drained so only the slow one overflows.
		<-fast.C()
	}

	drained := 0
	for range slow.C() {
		drained++
	}
	assert.Equal(t, subscriptionBuffer, drained, "slow subscriber keeps its buffer but is then closed")

	// The fast subscriber is still live.
	h.Publish(testMessage("c1", "still here"))
	select {
	case got := <-fast.C():
		assert.Equal(t, "still here", got.Body)
	case <-time.After(time.Second):
		t.Fatal("fast subscriber was dropped")
	}
}
