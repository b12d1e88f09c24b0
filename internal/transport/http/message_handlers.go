package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/chatsphere-server/internal/store"
)

// MessageResponse is the wire shape of a stored message. ID is rendered
// as a decimal string, matching the websocket events.
type MessageResponse struct {
	ID          string `json:"id"`
	FromUserID  string `json:"from_user_id"`
	ChatType    string `json:"chat_type"`
	ChatID      string `json:"chat_id"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	ReplyToID   *int64 `json:"reply_to_id,omitempty"`
	IsEdited    bool   `json:"is_edited"`
	CreatedAt   string `json:"created_at"`
}

func (s *Server) handleListMessages(c *gin.Context) {
	chatType := store.ChatType(c.Param("chat_type"))
	switch chatType {
	case store.ChatTypePrivate, store.ChatTypeGroup, store.ChatTypeRoom:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown chat type: " + c.Param("chat_type")})
		return
	}
	chatID := c.Param("chat_id")

	limit := s.opts.HistoryPageSize
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "")); err == nil && v > 0 {
		limit = v
	}
	if limit > 200 {
		limit = 200
	}
	offset := 0
	if v, err := strconv.Atoi(c.DefaultQuery("offset", "")); err == nil && v > 0 {
		offset = v
	}

	viewer := currentUser(c)
	messages, err := s.deps.Store.ListMessages(c.Request.Context(), chatType, chatID, viewer.ID, limit, offset)
	if err != nil {
		s.log.Error().Err(err).Str("chat_type", string(chatType)).Str("chat_id", chatID).Msg("list messages failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// The store hands back newest-first pages; clients render the page
	// in chronological order.
	out := make([]MessageResponse, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		out = append(out, MessageResponse{
			ID:          strconv.FormatInt(msg.ID, 10),
			FromUserID:  msg.FromUserID,
			ChatType:    string(msg.ChatType),
			ChatID:      msg.TargetID,
			Content:     msg.Content,
			MessageType: string(msg.MessageType),
			ReplyToID:   msg.ReplyToID,
			IsEdited:    msg.IsEdited,
			CreatedAt:   msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	c.JSON(http.StatusOK, gin.H{"messages": out, "count": len(out)})
}
