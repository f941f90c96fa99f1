package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/auth"
	"messenger-service/internal/conversation"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/session"
)

// HistoryHandler serves conversation history over REST, mirroring the
// websocket loadMessages contract (same authorization, same cap).
type HistoryHandler struct {
	guard        session.Authorizer
	messages     repositories.MessageRepository
	historyLimit int
}

// NewHistoryHandler builds a HistoryHandler.
func NewHistoryHandler(guard session.Authorizer, messages repositories.MessageRepository, historyLimit int) *HistoryHandler {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &HistoryHandler{guard: guard, messages: messages, historyLimit: historyLimit}
}

// GetConversationMessages returns the capped recent history with the caller's
// peer, 403 distinguishing not-friends from blocked.
func (h *HistoryHandler) GetConversationMessages(c *gin.Context) {
	userID := c.GetString("userID")
	otherUserID := c.Param("other_user_id")
	if !conversation.ValidUserID(otherUserID) || otherUserID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.guard.Authorize(c.Request.Context(), userID, otherUserID); err != nil {
		switch {
		case errors.Is(err, auth.ErrBlocked):
			c.JSON(http.StatusForbidden, gin.H{"error": "blocked", "isBlocked": true})
		case errors.Is(err, auth.ErrNotFriends):
			c.JSON(http.StatusForbidden, gin.H{"error": "not friends", "notFriends": true})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify relationship"})
		}
		return
	}

	convID := conversation.ID(userID, otherUserID)
	msgs, err := h.messages.ListByConversation(c.Request.Context(), convID, h.historyLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"conversationId": convID, "messages": msgs})
}
