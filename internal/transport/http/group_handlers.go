package http

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CreateGroupRequest starts a group chat owned by the caller.
type CreateGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

// AddGroupMemberRequest adds a user to a group.
type AddGroupMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// GroupResponse is the wire shape of a group.
type GroupResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	OwnerID   string   `json:"owner_id"`
	AvatarURL string   `json:"avatar_url"`
	CreatedAt string   `json:"created_at"`
	Members   []string `json:"members"`
}

func (s *Server) handleCreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	owner := currentUser(c)
	group, err := s.deps.Store.CreateGroup(c.Request.Context(), req.Name, owner.ID)
	if err != nil {
		s.log.Error().Err(err).Msg("create group failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, GroupResponse{
		ID:        group.ID,
		Name:      group.Name,
		OwnerID:   group.OwnerID,
		AvatarURL: group.AvatarURL,
		CreatedAt: group.CreatedAt.UTC().Format(time.RFC3339),
		Members:   []string{owner.ID},
	})
}

func (s *Server) handleAddGroupMember(c *gin.Context) {
	var req AddGroupMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	groupID := c.Param("id")
	group, err := s.deps.Store.GetGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		s.log.Error().Err(err).Str("group_id", groupID).Msg("load group failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// Only existing members may grow the roster.
	members, err := s.deps.Store.ListGroupMembers(ctx, group.ID)
	if err != nil {
		s.log.Error().Err(err).Str("group_id", groupID).Msg("list members failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	caller := currentUser(c)
	if !containsString(members, caller.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this group"})
		return
	}

	if _, err := s.deps.Store.GetUserByID(ctx, req.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		s.log.Error().Err(err).Str("user_id", req.UserID).Msg("load user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := s.deps.Store.AddGroupMember(ctx, group.ID, req.UserID); err != nil {
		s.log.Error().Err(err).Str("group_id", groupID).Msg("add member failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "member added"})
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
