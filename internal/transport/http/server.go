// Package http exposes the REST API and the websocket endpoint.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatsphere-server/internal/auth"
	"github.com/vovakirdan/chatsphere-server/internal/core"
	"github.com/vovakirdan/chatsphere-server/internal/presence"
	"github.com/vovakirdan/chatsphere-server/internal/service/conversations"
	"github.com/vovakirdan/chatsphere-server/internal/service/stats"
	"github.com/vovakirdan/chatsphere-server/internal/store"
)

// Options tunes the HTTP layer.
type Options struct {
	Addr               string
	ReadHeaderTimeout  time.Duration
	DefaultRoom        string
	WriteTimeout       time.Duration
	HistoryPageSize    int
	RateLimitPerMinute int
}

// Deps are the collaborators the HTTP layer exposes.
type Deps struct {
	Auth          *auth.Service
	Registry      *core.Registry
	Router        *core.Router
	Conversations *conversations.Service
	Stats         *stats.Service
	Store         store.Store
	Presence      presence.Store
}

// Server serves the REST API and upgrades websocket sessions.
type Server struct {
	opts       Options
	deps       Deps
	log        zerolog.Logger
	engine     *gin.Engine
	handler    http.Handler
	httpServer *http.Server
}

// NewServer builds the gin engine and the route table. The websocket
// endpoint hangs off a plain mux in front of gin: the upgrade hijacks
// the connection, which needs the raw ResponseWriter, not gin's
// buffered one.
func NewServer(opts Options, deps Deps, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		opts:   opts,
		deps:   deps,
		log:    log.With().Str("component", "http").Logger(),
		engine: engine,
	}
	engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/", engine)
	s.handler = mux

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.rateLimit("register"), s.handleRegister)
	authGroup.POST("/login", s.rateLimit("login"), s.handleLogin)
	authGroup.POST("/refresh", s.handleRefresh)
	authGroup.POST("/logout", s.requireAuth(), s.handleLogout)

	protected := api.Group("", s.requireAuth())
	protected.GET("/me", s.handleMe)
	protected.GET("/users/online", s.handleOnlineUsers)
	protected.GET("/rooms", s.handleListRooms)
	protected.POST("/rooms", s.handleCreateRoom)
	protected.POST("/groups", s.handleCreateGroup)
	protected.POST("/groups/:id/members", s.handleAddGroupMember)
	protected.GET("/messages/:chat_type/:chat_id", s.handleListMessages)
	protected.GET("/conversations", s.handleListConversations)
	protected.POST("/conversations/read", s.handleMarkRead)
	protected.GET("/stats", s.handleStats)
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start blocks serving requests until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.opts.Addr).Msg("http server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	overall, db := "ok", "ok"
	status := http.StatusOK
	if err := s.deps.Store.Ping(c.Request.Context()); err != nil {
		overall, db = "degraded", "unavailable"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":       overall,
		"database":     db,
		"online_users": s.deps.Registry.OnlineCount(),
	})
}

// broadcastOnlineUsers pushes the current roster to every connection.
func (s *Server) broadcastOnlineUsers(ctx context.Context) {
	s.deps.Registry.Broadcast(ctx, core.NewOnlineUsersEvent(s.deps.Registry.SnapshotOnlineUsers()))
}
