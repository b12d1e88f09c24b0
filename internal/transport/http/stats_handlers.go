package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StatsResponse is the server activity snapshot.
type StatsResponse struct {
	OnlineUsers   int    `json:"online_users"`
	TotalUsers    int64  `json:"total_users"`
	TotalMessages int64  `json:"total_messages"`
	MessagesToday int64  `json:"messages_today"`
	ServerTime    string `json:"server_time"`
}

func (s *Server) handleStats(c *gin.Context) {
	snapshot, err := s.deps.Stats.Snapshot(c.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("stats snapshot failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, StatsResponse{
		OnlineUsers:   snapshot.OnlineUsers,
		TotalUsers:    snapshot.TotalUsers,
		TotalMessages: snapshot.TotalMessages,
		MessagesToday: snapshot.MessagesToday,
		ServerTime:    time.Now().UTC().Format(time.RFC3339),
	})
}
