// Package presence tracks online status, room membership, rate-limit
// counters and revoked access tokens. Production deployments back it
// with Redis; the in-memory store covers single-node setups and tests.
package presence

import (
	"context"
	"time"
)

// Store is the presence backend.
//
// Online status is kept with a TTL so a crashed node's users eventually
// drop off; callers refresh it on activity. Room membership is plain
// sets. Rate-limit counters use fixed windows keyed by action.
type Store interface {
	// SetOnline marks the user online, refreshing the TTL.
	SetOnline(ctx context.Context, userID string) error
	// SetOffline removes the online marker.
	SetOffline(ctx context.Context, userID string) error
	// IsOnline reports whether the online marker exists.
	IsOnline(ctx context.Context, userID string) (bool, error)

	// AddToRoom adds the user to a room's member set.
	AddToRoom(ctx context.Context, roomID, userID string) error
	// RemoveFromRoom removes the user from a room's member set.
	RemoveFromRoom(ctx context.Context, roomID, userID string) error
	// RoomMembers returns the ids in a room's member set.
	RoomMembers(ctx context.Context, roomID string) ([]string, error)

	// CheckRateLimit counts a hit against action:key and reports whether
	// the caller is still within limit for the window.
	CheckRateLimit(ctx context.Context, action, key string, limit int, window time.Duration) (bool, error)

	// BlacklistToken revokes an access token id until it would have
	// expired anyway.
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	// IsTokenBlacklisted reports whether the token id was revoked.
	IsTokenBlacklisted(ctx context.Context, jti string) (bool, error)

	// Close releases the backend connection.
	Close() error
}
