package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/chatsphere-server/internal/auth"
	"github.com/vovakirdan/chatsphere-server/internal/store"
)

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Email       string `json:"email" binding:"required"`
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password" binding:"required"`
}

// LoginRequest exchanges credentials for a token pair.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest rotates a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest optionally names the refresh token to revoke along
// with the access token.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UserResponse is the public account shape.
type UserResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email,omitempty"`
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	AvatarURL   string  `json:"avatar_url"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	LastSeen    *string `json:"last_seen,omitempty"`
}

// TokenResponse carries a freshly issued token pair.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LoginResponse is a token pair plus the authenticated account.
type LoginResponse struct {
	TokenResponse
	User UserResponse `json:"user"`
}

func newUserResponse(u *store.User, includeEmail bool) UserResponse {
	resp := UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Status:      string(u.Status),
		CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if includeEmail {
		resp.Email = u.Email
	}
	if u.LastSeen != nil {
		seen := u.LastSeen.UTC().Format(time.RFC3339)
		resp.LastSeen = &seen
	}
	return resp
}

func newTokenResponse(pair *auth.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    pair.ExpiresIn,
	}
}

func (s *Server) handleRegister(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := s.deps.Auth.Register(c.Request.Context(), req.Email, req.Username, req.DisplayName, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusConflict, gin.H{"error": "email or username already taken"})
		case errors.Is(err, auth.ErrInvalidEmail),
			errors.Is(err, auth.ErrInvalidUsername),
			errors.Is(err, auth.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			s.log.Error().Err(err).Msg("register failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusCreated, newUserResponse(user, true))
}

func (s *Server) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, pair, err := s.deps.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
			return
		}
		s.log.Error().Err(err).Msg("login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		TokenResponse: newTokenResponse(pair),
		User:          newUserResponse(user, true),
	})
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	pair, err := s.deps.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
		s.log.Error().Err(err).Msg("refresh failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, newTokenResponse(pair))
}

func (s *Server) handleLogout(c *gin.Context) {
	var req LogoutRequest
	// The body is optional; logout still revokes the access token.
	_ = c.ShouldBindJSON(&req)

	claims := currentClaims(c)
	if err := s.deps.Auth.Logout(c.Request.Context(), req.RefreshToken, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.log.Error().Err(err).Msg("logout failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
