package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"fleamarket/internal/app/dto"
	chatsvc "fleamarket/internal/app/services/chat"
	domainchat "fleamarket/internal/domain/chat"
)

type ChatHTTP interface {
	ListConversations(c *gin.Context)
	StartConversation(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	MarkRead(c *gin.Context)
	Subscribe(c *gin.Context)
}

type ChatHandler struct {
	Service *chatsvc.Service
	Logger  *slog.Logger
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (h ChatHandler) ListConversations(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	summaries, err := h.Service.ListConversations(c.Request.Context(), domainchat.ParticipantID(p.ID))
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	items := make([]dto.Conversation, 0, len(summaries))
	for _, summary := range summaries {
		items = append(items, dto.MapConversation(summary))
	}
	c.JSON(http.StatusOK, dto.ConversationList{Items: items})
}

type startConversationRequest struct {
	OtherID   string `json:"other_id"`
	ListingID string `json:"listing_id"`
}

// StartConversation resolves (or lazily creates) the thread with another user
// about a listing. Calling it twice, from either side, yields the same id.
func (h ChatHandler) StartConversation(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	conversation, err := h.Service.GetOrCreateConversation(
		c.Request.Context(),
		domainchat.ParticipantID(p.ID),
		domainchat.ParticipantID(req.OtherID),
		domainchat.ListingID(req.ListingID),
	)
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapConversation(chatsvc.Summary{
		Conversation: *conversation,
		OtherID:      conversation.Other(domainchat.ParticipantID(p.ID)),
	}))
}

func (h ChatHandler) ListMessages(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	conversationID := domainchat.ConversationID(c.Param("id"))
	messages, err := h.Service.ListMessages(c.Request.Context(), domainchat.ParticipantID(p.ID), conversationID)
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapChatMessages(messages))
}

type sendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	OtherID        string `json:"other_id"`
	ListingID      string `json:"listing_id"`
	Body           string `json:"body"`
}

// SendMessage accepts either an existing conversation id or an
// other_id/listing_id pair for a thread that does not exist yet.
func (h ChatHandler) SendMessage(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	var ref chatsvc.ConversationRef
	if req.ConversationID != "" {
		ref = chatsvc.Existing(domainchat.ConversationID(req.ConversationID))
	} else {
		ref = chatsvc.Pending(domainchat.ParticipantID(req.OtherID), domainchat.ListingID(req.ListingID))
	}
	msg, err := h.Service.SendMessage(c.Request.Context(), domainchat.ParticipantID(p.ID), ref, req.Body)
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.MapChatMessage(*msg))
}

func (h ChatHandler) MarkRead(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	conversationID := domainchat.ConversationID(c.Param("id"))
	messageID := domainchat.MessageID(c.Param("messageId"))
	msg, err := h.Service.MarkRead(c.Request.Context(), domainchat.ParticipantID(p.ID), conversationID, messageID)
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapChatMessage(*msg))
}

// Subscribe upgrades to a WebSocket and streams messages appended after the
// upgrade. The client loads history over REST and de-duplicates by message id.
func (h ChatHandler) Subscribe(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	conversationID := domainchat.ConversationID(c.Param("id"))
	sub, err := h.Service.Subscribe(c.Request.Context(), domainchat.ParticipantID(p.ID), conversationID)
	if err != nil {
		h.respondChatError(c, err)
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Cancel()
		if h.Logger != nil {
			h.Logger.Warn("websocket upgrade failed", "error", err)
		}
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		sub.Cancel()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, open := <-sub.C():
			if !open {
				return
			}
			if err := conn.WriteJSON(dto.MapChatMessage(msg)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h ChatHandler) respondChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domainchat.ErrEmptyBody),
		errors.Is(err, domainchat.ErrParticipantRequired),
		errors.Is(err, domainchat.ErrListingRequired),
		errors.Is(err, domainchat.ErrSelfConversation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domainchat.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domainchat.ErrNotFound),
		errors.Is(err, domainchat.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		if h.Logger != nil {
			h.Logger.Error("chat operation failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

var _ ChatHTTP = (*ChatHandler)(nil)
