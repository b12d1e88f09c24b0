package conversations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatsphere-server/internal/core"
	"github.com/vovakirdan/chatsphere-server/internal/presence"
	"github.com/vovakirdan/chatsphere-server/internal/store"
	"github.com/vovakirdan/chatsphere-server/internal/store/sqlite"
)

type fixture struct {
	svc      *Service
	store    *sqlite.SQLiteStore
	presence *presence.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	pres := presence.NewMemoryStore(time.Minute)
	ledger := core.NewLedger(st, 16, zerolog.New(nil))
	return &fixture{
		svc:      NewService(st, pres, ledger, zerolog.New(nil)),
		store:    st,
		presence: pres,
	}
}

func (f *fixture) createUser(t *testing.T, username string) *store.User {
	t.Helper()
	user, err := f.store.CreateUser(context.Background(), username+"@example.com", username, username, "hash")
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func TestListEnrichesPrivateChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	if err := f.presence.SetOnline(ctx, bob.ID); err != nil {
		t.Fatalf("set online: %v", err)
	}

	msg := &store.Message{FromUserID: bob.ID, ChatType: store.ChatTypePrivate, TargetID: alice.ID, Content: "hey"}
	if err := f.store.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("save message: %v", err)
	}
	if err := f.store.UpsertConversation(ctx, alice.ID, store.ChatTypePrivate, bob.ID, msg.ID, true); err != nil {
		t.Fatalf("upsert conversation: %v", err)
	}

	summaries, err := f.svc.List(ctx, alice.ID, 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}

	got := summaries[0]
	if got.Name != "bob" {
		t.Errorf("expected peer display name, got %q", got.Name)
	}
	if got.UnreadCount != 1 {
		t.Errorf("expected unread 1, got %d", got.UnreadCount)
	}
	if got.IsOnline == nil || !*got.IsOnline {
		t.Error("expected the peer to show as online")
	}
	if got.LastMessage == nil || got.LastMessage.Content != "hey" {
		t.Error("expected last message preview")
	}
}

func TestListEnrichesRoomAndGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")
	if err := f.store.CreateRoom(ctx, &store.Room{ID: "general", Name: "General", IsPublic: true}); err != nil {
		t.Fatalf("create room: %v", err)
	}
	group, err := f.store.CreateGroup(ctx, "weekend", alice.ID)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	if err := f.store.UpsertConversation(ctx, alice.ID, store.ChatTypeRoom, "general", 1, false); err != nil {
		t.Fatalf("upsert room conversation: %v", err)
	}
	if err := f.store.UpsertConversation(ctx, alice.ID, store.ChatTypeGroup, group.ID, 2, false); err != nil {
		t.Fatalf("upsert group conversation: %v", err)
	}

	summaries, err := f.svc.List(ctx, alice.ID, 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}

	names := map[store.ChatType]string{}
	for _, s := range summaries {
		names[s.ChatType] = s.Name
		if s.IsOnline != nil {
			t.Errorf("expected no online flag for %s chats", s.ChatType)
		}
	}
	if names[store.ChatTypeRoom] != "General" {
		t.Errorf("expected room name General, got %q", names[store.ChatTypeRoom])
	}
	if names[store.ChatTypeGroup] != "weekend" {
		t.Errorf("expected group name weekend, got %q", names[store.ChatTypeGroup])
	}
}

func TestListSurvivesMissingPeer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")
	// A conversation with an account that no longer exists.
	if err := f.store.UpsertConversation(ctx, alice.ID, store.ChatTypePrivate, "gone-user", 0, false); err != nil {
		t.Fatalf("upsert conversation: %v", err)
	}

	summaries, err := f.svc.List(ctx, alice.ID, 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected the row to survive, got %d summaries", len(summaries))
	}
	if summaries[0].Name != "gone-user" {
		t.Errorf("expected the chat id as fallback name, got %q", summaries[0].Name)
	}
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")
	if err := f.store.UpsertConversation(ctx, alice.ID, store.ChatTypeRoom, "general", 1, true); err != nil {
		t.Fatalf("upsert conversation: %v", err)
	}

	reset, err := f.svc.MarkRead(ctx, alice.ID, "room", "general")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !reset {
		t.Error("expected mark-read to reset the counter")
	}

	reset, err = f.svc.MarkRead(ctx, alice.ID, "room", "general")
	if err != nil {
		t.Fatalf("mark read again: %v", err)
	}
	if reset {
		t.Error("expected repeated mark-read to report false")
	}

	if _, err := f.svc.MarkRead(ctx, alice.ID, "broadcast", "general"); !errors.Is(err, ErrInvalidChatType) {
		t.Errorf("expected ErrInvalidChatType, got %v", err)
	}
}
