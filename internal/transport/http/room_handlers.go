package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/chatsphere-server/internal/store"
)

// CreateRoomRequest creates a public or unlisted room. ID is a slug.
type CreateRoomRequest struct {
	ID          string `json:"id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPublic    *bool  `json:"is_public"`
}

// RoomResponse is the wire shape of a room.
type RoomResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
	MaxMembers  int    `json:"max_members"`
	OnlineCount int    `json:"online_count"`
	CreatedAt   string `json:"created_at"`
}

func newRoomResponse(r *store.Room) RoomResponse {
	return RoomResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsPublic:    r.IsPublic,
		MaxMembers:  r.MaxMembers,
		CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleListRooms(c *gin.Context) {
	rooms, err := s.deps.Store.ListPublicRooms(c.Request.Context(), 100)
	if err != nil {
		s.log.Error().Err(err).Msg("list rooms failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]RoomResponse, 0, len(rooms))
	for _, r := range rooms {
		resp := newRoomResponse(r)
		members, err := s.deps.Presence.RoomMembers(c.Request.Context(), r.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("room_id", r.ID).Msg("room member count failed")
		} else {
			resp.OnlineCount = len(members)
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, gin.H{"rooms": out, "count": len(out)})
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !validRoomSlug(req.ID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room id must be 2-64 characters: lowercase letters, digits, dash, underscore"})
		return
	}

	room := &store.Room{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    true,
	}
	if req.IsPublic != nil {
		room.IsPublic = *req.IsPublic
	}

	if err := s.deps.Store.CreateRoom(c.Request.Context(), room); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			c.JSON(http.StatusConflict, gin.H{"error": "room already exists"})
			return
		}
		s.log.Error().Err(err).Str("room_id", req.ID).Msg("create room failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	created, err := s.deps.Store.GetRoomByID(c.Request.Context(), room.ID)
	if err != nil {
		s.log.Error().Err(err).Str("room_id", room.ID).Msg("reload room failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, newRoomResponse(created))
}

func validRoomSlug(id string) bool {
	if len(id) < 2 || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}
