package ginserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleamarket/internal/app/dto"
	authsvc "fleamarket/internal/app/services/auth"
	chatsvc "fleamarket/internal/app/services/chat"
	marketsvc "fleamarket/internal/app/services/market"
	"fleamarket/internal/infra/chat/hub"
	"fleamarket/internal/infra/config"
	"fleamarket/internal/infra/obs"
	"fleamarket/internal/infra/security"
	"fleamarket/internal/infra/storage/memory"
	"fleamarket/internal/infra/storage/s3"
)

type testApp struct {
	server *httptest.Server
	client *http.Client
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	chatStore := memory.NewChatStore()
	users := memory.NewUserRepository()

	authService := &authsvc.Service{
		Users:      users,
		Sessions:   memory.NewSessionStore(),
		Passwords:  security.BcryptHasher{Cost: 4},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: time.Hour,
	}
	chatService := &chatsvc.Service{
		Conversations: chatStore,
		Messages:      chatStore,
		Hub:           hub.New(nil),
		Users:         users,
	}
	marketService := &marketsvc.Service{
		Listings:  memory.NewListingRepository(),
		Purchases: memory.NewPurchaseRepository(),
		Uploader:  s3.NoopUploader{},
	}

	cfg := config.Config{Env: "test", HTTPAddr: ":0"}
	httpServer := NewServer(cfg, obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Auth:           AuthHandler{Service: authService},
		Listing:        ListingHandler{Service: marketService},
		Chat:           ChatHandler{Service: chatService},
		AuthMiddleware: AuthMiddleware{Service: authService}.Handle,
	})

	server := httptest.NewServer(httpServer.Handler)
	t.Cleanup(server.Close)
	return &testApp{server: server, client: server.Client()}
}

func (a *testApp) do(t *testing.T, method, path, token string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, a.server.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.client.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (a *testApp) register(t *testing.T, name string) (userID, token string) {
	t.Helper()
	resp := a.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    strings.ToLower(name) + "@example.com",
		"name":     name,
		"password": "password-" + name,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	auth := decodeBody[dto.AuthResponse](t, resp)
	return auth.User.ID, auth.Token
}

func TestChatFlowOverHTTP(t *testing.T) {
	app := newTestApp(t)
	aliceID, aliceToken := app.register(t, "Alice")
	bobID, bobToken := app.register(t, "Bob")

	// Alice messages Bob about a listing; the thread is created on first send.
	resp := app.do(t, http.MethodPost, "/api/v1/messages", aliceToken, map[string]string{
		"other_id":   bobID,
		"listing_id": "l1",
		"body":       "Is this still available?",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sent := decodeBody[dto.ChatMessage](t, resp)
	assert.Equal(t, aliceID, sent.SenderID)
	assert.False(t, sent.Read)

	// Bob sees the conversation with Alice's display name.
	resp = app.do(t, http.MethodGet, "/api/v1/conversations", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	convs := decodeBody[dto.ConversationList](t, resp)
	require.Len(t, convs.Items, 1)
	assert.Equal(t, sent.ConversationID, convs.Items[0].ID)
	assert.Equal(t, aliceID, convs.Items[0].OtherID)
	assert.Equal(t, "Alice", convs.Items[0].OtherName)

	// Bob replies into the existing thread and reads Alice's message.
	resp = app.do(t, http.MethodPost, "/api/v1/messages", bobToken, map[string]string{
		"conversation_id": sent.ConversationID,
		"body":            "Yes, come pick it up.",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = app.do(t, http.MethodPost, fmt.Sprintf("/api/v1/conversations/%s/messages/%s/read", sent.ConversationID, sent.ID), bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	read := decodeBody[dto.ChatMessage](t, resp)
	assert.True(t, read.Read)

	// History is in send order and reflects the read flag.
	resp = app.do(t, http.MethodGet, "/api/v1/conversations/"+sent.ConversationID+"/messages", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decodeBody[dto.ChatMessageList](t, resp)
	require.Len(t, history.Items, 2)
	assert.Equal(t, "Is this still available?", history.Items[0].Body)
	assert.True(t, history.Items[0].Read)
	assert.Equal(t, "Yes, come pick it up.", history.Items[1].Body)
}

func TestChatSameThreadFromEitherSide(t *testing.T) {
	app := newTestApp(t)
	aliceID, aliceToken := app.register(t, "Alice")
	bobID, bobToken := app.register(t, "Bob")

	resp := app.do(t, http.MethodPost, "/api/v1/conversations", aliceToken, map[string]string{
		"other_id": bobID, "listing_id": "l1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decodeBody[dto.Conversation](t, resp)

	resp = app.do(t, http.MethodPost, "/api/v1/conversations", bobToken, map[string]string{
		"other_id": aliceID, "listing_id": "l1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decodeBody[dto.Conversation](t, resp)

	assert.Equal(t, first.ID, second.ID)
}

func TestChatRejectsBadRequests(t *testing.T) {
	app := newTestApp(t)
	aliceID, aliceToken := app.register(t, "Alice")
	bobID, _ := app.register(t, "Bob")

	// Empty body.
	resp := app.do(t, http.MethodPost, "/api/v1/messages", aliceToken, map[string]string{
		"other_id": bobID, "listing_id": "l1", "body": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Talking to yourself.
	resp = app.do(t, http.MethodPost, "/api/v1/conversations", aliceToken, map[string]string{
		"other_id": aliceID, "listing_id": "l1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// No token at all.
	resp = app.do(t, http.MethodGet, "/api/v1/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestChatMembershipEnforcedOverHTTP(t *testing.T) {
	app := newTestApp(t)
	_, aliceToken := app.register(t, "Alice")
	bobID, _ := app.register(t, "Bob")
	_, malloryToken := app.register(t, "Mallory")

	resp := app.do(t, http.MethodPost, "/api/v1/messages", aliceToken, map[string]string{
		"other_id": bobID, "listing_id": "l1", "body": "hi bob",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sent := decodeBody[dto.ChatMessage](t, resp)

	resp = app.do(t, http.MethodGet, "/api/v1/conversations/"+sent.ConversationID+"/messages", malloryToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = app.do(t, http.MethodPost, "/api/v1/messages", malloryToken, map[string]string{
		"conversation_id": sent.ConversationID, "body": "let me in",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestChatWebSocketDeliversLiveMessages(t *testing.T) {
	app := newTestApp(t)
	_, aliceToken := app.register(t, "Alice")
	bobID, bobToken := app.register(t, "Bob")

	resp := app.do(t, http.MethodPost, "/api/v1/messages", aliceToken, map[string]string{
		"other_id": bobID, "listing_id": "l1", "body": "first",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sent := decodeBody[dto.ChatMessage](t, resp)

	wsURL := "ws" + strings.TrimPrefix(app.server.URL, "http") +
		"/api/v1/conversations/" + sent.ConversationID + "/ws?token=" + bobToken
	conn, wsResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if wsResp != nil {
		wsResp.Body.Close()
	}
	defer conn.Close()

	// Only messages sent after the upgrade arrive on the socket.
	resp = app.do(t, http.MethodPost, "/api/v1/messages", aliceToken, map[string]string{
		"conversation_id": sent.ConversationID, "body": "second",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var live dto.ChatMessage
	require.NoError(t, conn.ReadJSON(&live))
	assert.Equal(t, "second", live.Body)
	assert.Equal(t, sent.ConversationID, live.ConversationID)
}
