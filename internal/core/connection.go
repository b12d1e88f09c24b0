// Package core is the chat relay: it tracks live connections, routes
// messages to their recipients and keeps conversation summaries in
// step. It is transport-agnostic; the websocket layer feeds it.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/vovakirdan/chatsphere-server/internal/proto"
	"github.com/vovakirdan/chatsphere-server/internal/store"
)

// Close codes used when the server ends a session. 1011 mirrors the
// RFC 6455 internal-error status; the 4xxx range is application-defined.
const (
	CloseInternalError   = 1011
	CloseSessionReplaced = 4000
	CloseMissingToken    = 4001
	CloseInvalidToken    = 4002
	CloseUnknownUser     = 4003
)

// Identity is the authenticated principal behind a connection.
type Identity struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
}

// IdentityFromUser projects a stored account onto its public identity.
func IdentityFromUser(u *store.User) Identity {
	return Identity{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

// Transport is the write side of a client connection. Close must be
// safe to call more than once and after a failed write.
type Transport interface {
	WriteJSON(ctx context.Context, v any) error
	Close(code int, reason string) error
}

// Connection binds an identity to a live transport. A per-connection
// mutex serializes writes so concurrent broadcasts cannot interleave
// frames on the wire.
type Connection struct {
	identity     Identity
	transport    Transport
	writeTimeout time.Duration

	mu sync.Mutex
}

// NewConnection wraps a transport for the given identity.
func NewConnection(identity Identity, transport Transport, writeTimeout time.Duration) *Connection {
	return &Connection{
		identity:     identity,
		transport:    transport,
		writeTimeout: writeTimeout,
	}
}

// Identity returns the principal behind the connection.
func (c *Connection) Identity() Identity {
	return c.identity
}

// UserID returns the connected user's id.
func (c *Connection) UserID() string {
	return c.identity.ID
}

// Send writes one event to the peer, bounded by the write timeout.
func (c *Connection) Send(event proto.Outbound) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport.WriteJSON(ctx, event)
}

// Close ends the underlying transport with a status code and reason.
func (c *Connection) Close(code int, reason string) error {
	return c.transport.Close(code, reason)
}
