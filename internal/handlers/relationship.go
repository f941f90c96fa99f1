package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/conversation"
	"messenger-service/internal/repositories"
)

// RelationshipHandler manages friendship and block edges. Friendship accept
// writes both directed edges so the single-direction runtime check stays
// correct.
type RelationshipHandler struct {
	relationships repositories.RelationshipRepository
}

// NewRelationshipHandler builds a RelationshipHandler.
func NewRelationshipHandler(relationships repositories.RelationshipRepository) *RelationshipHandler {
	return &RelationshipHandler{relationships: relationships}
}

// AddFriend records an accepted friendship.
func (h *RelationshipHandler) AddFriend(c *gin.Context) {
	var req struct {
		FriendID string `json:"friendId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if !conversation.ValidUserID(req.FriendID) || req.FriendID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid friend id"})
		return
	}

	if err := h.relationships.AddFriendship(c.Request.Context(), userID, req.FriendID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add friendship"})
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveFriend removes a friendship in both directions.
func (h *RelationshipHandler) RemoveFriend(c *gin.Context) {
	userID := c.GetString("userID")
	friendID := c.Param("friend_id")
	if !conversation.ValidUserID(friendID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid friend id"})
		return
	}

	if err := h.relationships.RemoveFriendship(c.Request.Context(), userID, friendID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove friendship"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Block records a one-directional block.
func (h *RelationshipHandler) Block(c *gin.Context) {
	var req struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if !conversation.ValidUserID(req.UserID) || req.UserID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.relationships.Block(c.Request.Context(), userID, req.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not block user"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Unblock removes the caller's block on a user.
func (h *RelationshipHandler) Unblock(c *gin.Context) {
	userID := c.GetString("userID")
	blockedID := c.Param("user_id")
	if !conversation.ValidUserID(blockedID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.relationships.Unblock(c.Request.Context(), userID, blockedID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not unblock user"})
		return
	}
	c.Status(http.StatusNoContent)
}
