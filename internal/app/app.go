// Package app wires the store, presence cache, relay core and HTTP
// transport into one runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatsphere-server/internal/auth"
	"github.com/vovakirdan/chatsphere-server/internal/config"
	"github.com/vovakirdan/chatsphere-server/internal/core"
	"github.com/vovakirdan/chatsphere-server/internal/presence"
	"github.com/vovakirdan/chatsphere-server/internal/service/conversations"
	"github.com/vovakirdan/chatsphere-server/internal/service/stats"
	"github.com/vovakirdan/chatsphere-server/internal/store"
	"github.com/vovakirdan/chatsphere-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/chatsphere-server/internal/transport/http"
)

// App owns the server's long-lived resources.
type App struct {
	cfg      config.Config
	log      *zerolog.Logger
	store    *sqlite.SQLiteStore
	presence presence.Store
	registry *core.Registry
	ledger   *core.Ledger
	server   *transporthttp.Server
}

// New builds the full dependency graph from configuration. Nothing is
// listening yet; call Run.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database ready")

	pres, err := newPresenceStore(cfg, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	authSvc := auth.NewService(st, st, pres, auth.Config{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	}, *logger)

	registry := core.NewRegistry(pres, *logger)
	ledger := core.NewLedger(st, cfg.Chat.LedgerQueueSize, *logger)
	router := core.NewRouter(registry, pres, st, st, st, ledger, *logger)
	convSvc := conversations.NewService(st, pres, ledger, *logger)
	statsSvc := stats.NewService(st, registry, *logger)

	server := transporthttp.NewServer(transporthttp.Options{
		Addr:               cfg.Addr,
		ReadHeaderTimeout:  cfg.ReadHeaderTimeout,
		DefaultRoom:        cfg.Chat.DefaultRoom,
		WriteTimeout:       cfg.Chat.WriteTimeout,
		HistoryPageSize:    cfg.Chat.HistoryPageSize,
		RateLimitPerMinute: cfg.Chat.RateLimitPerMinute,
	}, transporthttp.Deps{
		Auth:          authSvc,
		Registry:      registry,
		Router:        router,
		Conversations: convSvc,
		Stats:         statsSvc,
		Store:         st,
		Presence:      pres,
	}, *logger)

	return &App{
		cfg:      cfg,
		log:      logger,
		store:    st,
		presence: pres,
		registry: registry,
		ledger:   ledger,
		server:   server,
	}, nil
}

func newPresenceStore(cfg config.Config, logger *zerolog.Logger) (presence.Store, error) {
	if cfg.Redis.Addr == "" {
		logger.Info().Msg("redis not configured, using in-memory presence store")
		return presence.NewMemoryStore(cfg.Chat.OnlineTTL), nil
	}

	pres, err := presence.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix, cfg.Chat.OnlineTTL)
	if err != nil {
		return nil, fmt.Errorf("init presence store: %w", err)
	}
	logger.Info().Str("redis_addr", cfg.Redis.Addr).Msg("presence store connected")
	return pres, nil
}

// Run starts the server and blocks until ctx is cancelled or the
// listener fails, then tears everything down in reverse order.
func (a *App) Run(ctx context.Context) error {
	if err := a.seedDefaultRoom(ctx); err != nil {
		a.cleanup()
		return err
	}

	ledgerCtx, stopLedger := context.WithCancel(context.Background())
	ledgerDone := make(chan struct{})
	go func() {
		defer close(ledgerDone)
		a.ledger.Run(ledgerCtx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		err := a.server.Start()
		if errors.Is(err, stdhttp.ErrServerClosed) {
			err = nil
		}
		serverErr <- err
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.log.Warn().Err(err).Msg("http shutdown failed")
		}
		runErr = <-serverErr
	}

	a.registry.CloseAll(core.CloseInternalError, "server shutting down")
	stopLedger()
	<-ledgerDone
	a.cleanup()
	return runErr
}

// seedDefaultRoom makes sure the room every session auto-joins exists.
func (a *App) seedDefaultRoom(ctx context.Context) error {
	roomID := a.cfg.Chat.DefaultRoom
	if _, err := a.store.GetRoomByID(ctx, roomID); err == nil {
		return nil
	}

	name := roomID
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	room := &store.Room{
		ID:          roomID,
		Name:        name,
		Description: "Default public room",
		IsPublic:    true,
	}
	if err := a.store.CreateRoom(ctx, room); err != nil {
		return fmt.Errorf("seed default room: %w", err)
	}
	a.log.Info().Str("room_id", roomID).Msg("created default room")
	return nil
}

func (a *App) cleanup() {
	if err := a.presence.Close(); err != nil {
		a.log.Warn().Err(err).Msg("presence store close failed")
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("store close failed")
	} else {
		a.log.Info().Msg("store closed")
	}
}
