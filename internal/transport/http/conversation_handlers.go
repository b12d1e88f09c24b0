package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/chatsphere-server/internal/service/conversations"
)

// MarkReadRequest clears the unread counter of one conversation.
type MarkReadRequest struct {
	ChatType string `json:"chat_type" binding:"required"`
	ChatID   string `json:"chat_id" binding:"required"`
}

// MessagePreviewResponse is the newest message shown in the chat list.
type MessagePreviewResponse struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	FromUserID string `json:"from_user_id"`
	CreatedAt  string `json:"created_at"`
}

// ConversationResponse is one row of the chat list.
type ConversationResponse struct {
	ChatType    string                  `json:"chat_type"`
	ChatID      string                  `json:"chat_id"`
	Name        string                  `json:"name"`
	AvatarURL   string                  `json:"avatar_url"`
	UnreadCount int                     `json:"unread_count"`
	IsOnline    *bool                   `json:"is_online,omitempty"`
	UpdatedAt   string                  `json:"updated_at"`
	LastMessage *MessagePreviewResponse `json:"last_message,omitempty"`
}

func (s *Server) handleListConversations(c *gin.Context) {
	user := currentUser(c)
	summaries, err := s.deps.Conversations.List(c.Request.Context(), user.ID, 100)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("list conversations failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]ConversationResponse, 0, len(summaries))
	for _, summary := range summaries {
		resp := ConversationResponse{
			ChatType:    string(summary.ChatType),
			ChatID:      summary.ChatID,
			Name:        summary.Name,
			AvatarURL:   summary.AvatarURL,
			UnreadCount: summary.UnreadCount,
			IsOnline:    summary.IsOnline,
			UpdatedAt:   summary.UpdatedAt.UTC().Format(time.RFC3339Nano),
		}
		if summary.LastMessage != nil {
			resp.LastMessage = &MessagePreviewResponse{
				ID:         strconv.FormatInt(summary.LastMessage.ID, 10),
				Content:    summary.LastMessage.Content,
				FromUserID: summary.LastMessage.FromUserID,
				CreatedAt:  summary.LastMessage.CreatedAt.UTC().Format(time.RFC3339Nano),
			}
		}
		out = append(out, resp)
	}

	c.JSON(http.StatusOK, gin.H{"conversations": out, "count": len(out)})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user := currentUser(c)
	reset, err := s.deps.Conversations.MarkRead(c.Request.Context(), user.ID, req.ChatType, req.ChatID)
	if err != nil {
		if errors.Is(err, conversations.ErrInvalidChatType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown chat type: " + req.ChatType})
			return
		}
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("mark read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reset": reset})
}
