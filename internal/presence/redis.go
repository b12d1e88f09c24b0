package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of a Redis instance.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	onlineTTL time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, db int, prefix string, onlineTTL time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{
		client:    client,
		prefix:    prefix,
		onlineTTL: onlineTTL,
	}, nil
}

func (s *RedisStore) onlineKey(userID string) string {
	return s.prefix + "user_online:" + userID
}

func (s *RedisStore) roomKey(roomID string) string {
	return s.prefix + "room_users:" + roomID
}

func (s *RedisStore) rateKey(action, key string) string {
	return s.prefix + "rate_limit:" + action + ":" + key
}

func (s *RedisStore) blacklistKey(jti string) string {
	return s.prefix + "blacklist_token:" + jti
}

func (s *RedisStore) SetOnline(ctx context.Context, userID string) error {
	if err := s.client.Set(ctx, s.onlineKey(userID), "online", s.onlineTTL).Err(); err != nil {
		return fmt.Errorf("set online: %w", err)
	}
	return nil
}

func (s *RedisStore) SetOffline(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.onlineKey(userID)).Err(); err != nil {
		return fmt.Errorf("set offline: %w", err)
	}
	return nil
}

func (s *RedisStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.onlineKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("check online: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) AddToRoom(ctx context.Context, roomID, userID string) error {
	if err := s.client.SAdd(ctx, s.roomKey(roomID), userID).Err(); err != nil {
		return fmt.Errorf("add to room: %w", err)
	}
	return nil
}

func (s *RedisStore) RemoveFromRoom(ctx context.Context, roomID, userID string) error {
	if err := s.client.SRem(ctx, s.roomKey(roomID), userID).Err(); err != nil {
		return fmt.Errorf("remove from room: %w", err)
	}
	return nil
}

func (s *RedisStore) RoomMembers(ctx context.Context, roomID string) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.roomKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("room members: %w", err)
	}
	return members, nil
}

func (s *RedisStore) CheckRateLimit(ctx context.Context, action, key string, limit int, window time.Duration) (bool, error) {
	k := s.rateKey(action, key)
	count, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	// First hit opens the window.
	if count == 1 {
		if err := s.client.Expire(ctx, k, window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return count <= int64(limit), nil
}

func (s *RedisStore) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// Token already expired on its own.
		return nil
	}
	if err := s.client.Set(ctx, s.blacklistKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

func (s *RedisStore) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, s.blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
