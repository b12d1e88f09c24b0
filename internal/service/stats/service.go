// Package stats aggregates server-wide counters for the stats endpoint.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatsphere-server/internal/core"
	"github.com/vovakirdan/chatsphere-server/internal/store"
)

// Stats is a point-in-time view of server activity.
type Stats struct {
	OnlineUsers   int
	TotalUsers    int64
	TotalMessages int64
	MessagesToday int64
}

// Service computes stats from the registry and the store.
type Service struct {
	store    store.Store
	registry *core.Registry
	log      zerolog.Logger
}

// NewService creates a stats service.
func NewService(st store.Store, registry *core.Registry, log zerolog.Logger) *Service {
	return &Service{
		store:    st,
		registry: registry,
		log:      log.With().Str("component", "stats").Logger(),
	}
}

// Snapshot gathers the current counters. Today is measured from UTC
// midnight.
func (s *Service) Snapshot(ctx context.Context) (*Stats, error) {
	totalUsers, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	totalMessages, err := s.store.CountMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	messagesToday, err := s.store.CountMessagesSince(ctx, midnight)
	if err != nil {
		return nil, fmt.Errorf("count messages today: %w", err)
	}

	return &Stats{
		OnlineUsers:   s.registry.OnlineCount(),
		TotalUsers:    totalUsers,
		TotalMessages: totalMessages,
		MessagesToday: messagesToday,
	}, nil
}
