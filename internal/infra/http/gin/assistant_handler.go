package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	assistantsvc "fleamarket/internal/app/services/assistant"
	domainlistings "fleamarket/internal/domain/listings"
)

type AssistantHTTP interface {
	Ask(c *gin.Context)
}

type AssistantHandler struct {
	Service *assistantsvc.Service
	Logger  *slog.Logger
}

type askRequest struct {
	ListingID string `json:"listing_id"`
	Question  string `json:"question"`
}

type askResponse struct {
	Reply string `json:"reply"`
}

func (h AssistantHandler) Ask(c *gin.Context) {
	if _, ok := requireRole(c, ""); !ok {
		return
	}
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "assistant unavailable"})
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	answer, err := h.Service.Ask(c.Request.Context(), domainlistings.ListingID(req.ListingID), req.Question)
	if err != nil {
		switch {
		case errors.Is(err, assistantsvc.ErrQuestionRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			if h.Logger != nil {
				h.Logger.Error("assistant request failed", "error", err)
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "assistant unavailable"})
		}
		return
	}
	c.JSON(http.StatusOK, askResponse{Reply: answer.Reply})
}

var _ AssistantHTTP = (*AssistantHandler)(nil)
