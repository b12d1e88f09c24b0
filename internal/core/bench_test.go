package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatsphere-server/internal/presence"
)

// discardTransport accepts every write. Keeps benchmark memory flat.
type discardTransport struct{}

func (discardTransport) WriteJSON(context.Context, any) error { return nil }
func (discardTransport) Close(int, string) error              { return nil }

func newBenchRegistry(n int) *Registry {
	reg := NewRegistry(presence.NewMemoryStore(time.Minute), zerolog.New(nil))
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("user-%d", i)
		reg.Register(context.Background(), NewConnection(Identity{ID: id, Username: id}, discardTransport{}, time.Second))
	}
	return reg
}

func BenchmarkSend(b *testing.B) {
	reg := newBenchRegistry(100)
	event := NewPongEvent()
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.Send(ctx, "user-50", event)
	}
}

func BenchmarkBroadcast100(b *testing.B) {
	reg := newBenchRegistry(100)
	event := NewOnlineUsersEvent(reg.SnapshotOnlineUsers())
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.Broadcast(ctx, event)
	}
}

func BenchmarkSnapshotOnlineUsers(b *testing.B) {
	reg := newBenchRegistry(1000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if users := reg.SnapshotOnlineUsers(); len(users) != 1000 {
			b.Fatalf("expected 1000 users, got %d", len(users))
		}
	}
}
