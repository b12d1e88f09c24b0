package presence

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with in-process maps. Used when no Redis
// address is configured, and in tests.
type MemoryStore struct {
	mu        sync.Mutex
	online    map[string]time.Time // user id -> marker expiry
	rooms     map[string]map[string]struct{}
	counters  map[string]*rateWindow
	blacklist map[string]time.Time // jti -> expiry
	onlineTTL time.Duration
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

// NewMemoryStore creates an empty in-memory presence store.
func NewMemoryStore(onlineTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		online:    make(map[string]time.Time),
		rooms:     make(map[string]map[string]struct{}),
		counters:  make(map[string]*rateWindow),
		blacklist: make(map[string]time.Time),
		onlineTTL: onlineTTL,
	}
}

func (s *MemoryStore) SetOnline(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online[userID] = time.Now().Add(s.onlineTTL)
	return nil
}

func (s *MemoryStore) SetOffline(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.online, userID)
	return nil
}

func (s *MemoryStore) IsOnline(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.online[userID]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(s.online, userID)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) AddToRoom(_ context.Context, roomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		s.rooms[roomID] = members
	}
	members[userID] = struct{}{}
	return nil
}

func (s *MemoryStore) RemoveFromRoom(_ context.Context, roomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(s.rooms, roomID)
	}
	return nil
}

func (s *MemoryStore) RoomMembers(_ context.Context, roomID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.rooms[roomID]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out, nil
}

func (s *MemoryStore) CheckRateLimit(_ context.Context, action, key string, limit int, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := action + ":" + key
	now := time.Now()
	w, ok := s.counters[k]
	if !ok || now.After(w.resetAt) {
		s.counters[k] = &rateWindow{count: 1, resetAt: now.Add(window)}
		return limit >= 1, nil
	}
	w.count++
	return w.count <= limit, nil
}

func (s *MemoryStore) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[jti] = time.Now().Add(ttl)
	return nil
}

func (s *MemoryStore) IsTokenBlacklisted(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.blacklist[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(s.blacklist, jti)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
