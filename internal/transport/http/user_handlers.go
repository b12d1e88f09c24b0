package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OnlineUserResponse is one entry of the online roster.
type OnlineUserResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

func (s *Server) handleMe(c *gin.Context) {
	c.JSON(http.StatusOK, newUserResponse(currentUser(c), true))
}

func (s *Server) handleOnlineUsers(c *gin.Context) {
	online := s.deps.Registry.SnapshotOnlineUsers()
	users := make([]OnlineUserResponse, 0, len(online))
	for _, u := range online {
		users = append(users, OnlineUserResponse{
			ID:          u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			AvatarURL:   u.AvatarURL,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}
