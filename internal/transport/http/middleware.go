package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/chatsphere-server/internal/auth"
	"github.com/vovakirdan/chatsphere-server/internal/store"
)

const (
	ctxKeyUser   = "user"
	ctxKeyClaims = "claims"
)

// requestLogger emits one structured line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

// requireAuth verifies the bearer token and stashes the account and
// claims in the request context.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		user, claims, err := s.deps.Auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ctxKeyUser, user)
		c.Set(ctxKeyClaims, claims)
		c.Next()
	}
}

// rateLimit buckets requests per client IP for one named action.
func (s *Server) rateLimit(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := s.deps.Presence.CheckRateLimit(c.Request.Context(), action, c.ClientIP(), s.opts.RateLimitPerMinute, time.Minute)
		if err != nil {
			// Presence backend trouble must not take the API down.
			s.log.Warn().Err(err).Str("action", action).Msg("rate limit check failed, allowing")
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// currentUser returns the account set by requireAuth.
func currentUser(c *gin.Context) *store.User {
	return c.MustGet(ctxKeyUser).(*store.User)
}

// currentClaims returns the token claims set by requireAuth.
func currentClaims(c *gin.Context) *auth.Claims {
	return c.MustGet(ctxKeyClaims).(*auth.Claims)
}
