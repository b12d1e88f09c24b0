package core

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatsphere-server/internal/presence"
	"github.com/vovakirdan/chatsphere-server/internal/proto"
)

// Registry tracks the single live connection per user. It is the only
// shared mutable state in the relay; every method takes the lock
// briefly and never holds it across a transport write.
type Registry struct {
	presence presence.Store
	log      zerolog.Logger

	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewRegistry creates an empty connection registry.
func NewRegistry(pres presence.Store, log zerolog.Logger) *Registry {
	return &Registry{
		presence: pres,
		log:      log.With().Str("component", "registry").Logger(),
		conns:    make(map[string]*Connection),
	}
}

// Register installs conn as the user's live connection. An existing
// connection for the same user is force-closed: the newer session wins.
// The user is marked online in the presence store.
func (r *Registry) Register(ctx context.Context, conn *Connection) {
	userID := conn.UserID()

	r.mu.Lock()
	prev := r.conns[userID]
	r.conns[userID] = conn
	r.mu.Unlock()

	if prev != nil {
		prev.Close(CloseSessionReplaced, "session replaced by a new connection")
		r.log.Info().Str("user_id", userID).Msg("replaced existing connection")
	}

	if err := r.presence.SetOnline(ctx, userID); err != nil {
		r.log.Warn().Err(err).Str("user_id", userID).Msg("presence set online failed")
	}
}

// Unregister removes conn from the registry and marks the user offline.
// If the user was already replaced by a newer connection, the newer
// session owns both the map entry and the presence marker, so nothing
// is touched. Unregistering an unknown connection is a no-op.
func (r *Registry) Unregister(ctx context.Context, conn *Connection) {
	userID := conn.UserID()

	r.mu.Lock()
	current, ok := r.conns[userID]
	if !ok || current != conn {
		r.mu.Unlock()
		return
	}
	delete(r.conns, userID)
	r.mu.Unlock()

	if err := r.presence.SetOffline(ctx, userID); err != nil {
		r.log.Warn().Err(err).Str("user_id", userID).Msg("presence set offline failed")
	}
}

// Send delivers one event to userID's connection. A failed write purges
// the connection on the spot so one dead client cannot stall the
// caller's loop. Returns false when the user is offline or the write
// failed.
func (r *Registry) Send(ctx context.Context, userID string, event proto.Outbound) bool {
	r.mu.RLock()
	conn, ok := r.conns[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	if err := conn.Send(event); err != nil {
		r.log.Warn().Err(err).Str("user_id", userID).Str("event", event.Type).Msg("write failed, dropping connection")
		r.purge(ctx, conn)
		return false
	}
	return true
}

// Broadcast sends event to every online user.
func (r *Registry) Broadcast(ctx context.Context, event proto.Outbound) {
	for _, conn := range r.snapshot() {
		if err := conn.Send(event); err != nil {
			r.log.Warn().Err(err).Str("user_id", conn.UserID()).Str("event", event.Type).Msg("write failed, dropping connection")
			r.purge(ctx, conn)
		}
	}
}

// BroadcastExcept sends event to every online user but one. Used for
// join/leave/typing notifications the originator does not need echoed.
func (r *Registry) BroadcastExcept(ctx context.Context, exceptUserID string, event proto.Outbound) {
	for _, conn := range r.snapshot() {
		if conn.UserID() == exceptUserID {
			continue
		}
		if err := conn.Send(event); err != nil {
			r.log.Warn().Err(err).Str("user_id", conn.UserID()).Str("event", event.Type).Msg("write failed, dropping connection")
			r.purge(ctx, conn)
		}
	}
}

// Identity resolves a connected user's identity.
func (r *Registry) Identity(userID string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	if !ok {
		return Identity{}, false
	}
	return conn.Identity(), true
}

// IsConnected reports whether the user has a live connection here.
func (r *Registry) IsConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

// SnapshotOnlineUsers returns the identities of all connected users,
// ordered by username for stable output.
func (r *Registry) SnapshotOnlineUsers() []Identity {
	r.mu.RLock()
	users := make([]Identity, 0, len(r.conns))
	for _, conn := range r.conns {
		users = append(users, conn.Identity())
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}

// OnlineCount returns the number of live connections.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll force-closes every connection. Used during shutdown; the
// read loops observe the close and unregister themselves.
func (r *Registry) CloseAll(code int, reason string) {
	for _, conn := range r.snapshot() {
		conn.Close(code, reason)
	}
}

// purge closes and unregisters a connection after a failed write.
func (r *Registry) purge(ctx context.Context, conn *Connection) {
	conn.Close(CloseInternalError, "write failure")
	r.Unregister(ctx, conn)
}

// snapshot copies the current connections so callers can iterate and
// write without holding the registry lock.
func (r *Registry) snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}
