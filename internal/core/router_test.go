package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatsphere-server/internal/presence"
	"github.com/vovakirdan/chatsphere-server/internal/proto"
	"github.com/vovakirdan/chatsphere-server/internal/store"
	"github.com/vovakirdan/chatsphere-server/internal/store/sqlite"
)

// relay bundles a fully wired core over in-memory backends.
type relay struct {
	registry *Registry
	router   *Router
	ledger   *Ledger
	store    *sqlite.SQLiteStore
	presence *presence.MemoryStore
}

func newTestRelay(t *testing.T) *relay {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	pres := presence.NewMemoryStore(time.Minute)
	logger := zerolog.New(nil)
	registry := NewRegistry(pres, logger)
	ledger := NewLedger(st, 64, logger)
	router := NewRouter(registry, pres, st, st, st, ledger, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ledger.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &relay{registry: registry, router: router, ledger: ledger, store: st, presence: pres}
}

func (r *relay) createUser(t *testing.T, username string) *store.User {
	t.Helper()
	user, err := r.store.CreateUser(context.Background(), username+"@example.com", username, username, "hash")
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func (r *relay) connect(t *testing.T, user *store.User) *fakeTransport {
	t.Helper()
	tr := &fakeTransport{}
	conn := NewConnection(IdentityFromUser(user), tr, time.Second)
	r.registry.Register(context.Background(), conn)
	return tr
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (r *relay) waitForConversation(t *testing.T, userID string, chatType store.ChatType, chatID string) *store.Conversation {
	t.Helper()
	var conv *store.Conversation
	waitFor(t, "conversation row for "+userID, func() bool {
		c, err := r.store.GetConversation(context.Background(), userID, chatType, chatID)
		if err != nil {
			return false
		}
		conv = c
		return true
	})
	return conv
}

func TestRouteEmptyMessageDropped(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()

	alice := r.createUser(t, "alice")
	tr := r.connect(t, alice)

	r.router.Route(ctx, alice.ID, proto.SendMessageData{
		Content:  "   \n\t ",
		ChatType: proto.ChatTypeRoom,
		ChatID:   "general",
	})

	if n := len(tr.Events()); n != 0 {
		t.Errorf("expected no events for an empty message, got %d", n)
	}
	count, err := r.store.CountMessages(ctx)
	if err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no stored messages, got %d", count)
	}
}

func TestRouteVanishedSenderAborts(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()

	alice := r.createUser(t, "alice")
	// Alice never connected; her frame is stale.
	r.router.Route(ctx, alice.ID, proto.SendMessageData{
		Content:  "hello",
		ChatType: proto.ChatTypeRoom,
		ChatID:   "general",
	})

	count, err := r.store.CountMessages(ctx)
	if err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no stored messages from a vanished sender, got %d", count)
	}
}

func TestRouteUnknownChatType(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()

	alice := r.createUser(t, "alice")
	tr := r.connect(t, alice)

	r.router.Route(ctx, alice.ID, proto.SendMessageData{
		Content:  "hello",
		ChatType: "broadcast",
		ChatID:   "everyone",
	})

	errs := tr.EventsOfType(proto.OutboundTypeError)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error event, got %d", len(errs))
	}
	data, ok := errs[0].Data.(proto.ErrorData)
	if !ok {
		t.Fatalf("unexpected error payload %T", errs[0].Data)
	}
	if data.Message != "unknown chat type: broadcast" {
		t.Errorf("expected the error to name the type, got %q", data.Message)
	}

	count, err := r.store.CountMessages(ctx)
	if err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no stored messages, got %d", count)
	}
}

func TestRoutePersistFailureStopsBroadcast(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()

	alice := r.createUser(t, "alice")
	bob := r.createUser(t, "bob")
	trAlice := r.connect(t, alice)
	trBob := r.connect(t, bob)

	// Swap in a message store that refuses every write.
	logger := zerolog.New(nil)
	broken := NewRouter(r.registry, r.presence, failingMessageStore{}, r.store, r.store, r.ledger, logger)

	broken.Route(ctx, alice.ID, proto.SendMessageData{
		Content:  "hello",
		ChatType: proto.ChatTypePrivate,
		ChatID:   bob.ID,
	})

	// The sender hears about the failure; nobody else sees anything.
	errs := trAlice.EventsOfType(proto.OutboundTypeError)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error event for the sender, got %d", len(errs))
	}
	if len(trBob.Events()) != 0 {
		t.Errorf("expected no events for the peer, got %d", len(trBob.Events()))
	}
}

type failingMessageStore struct{}

func (failingMessageStore) SaveMessage(context.Context, *store.Message) error {
	return errors.New("disk full")
}

func (failingMessageStore) GetMessageByID(context.Context, int64) (*store.Message, error) {
	return nil, errors.New("disk full")
}

func (failingMessageStore) ListMessages(context.Context, store.ChatType, string, string, int, int) ([]*store.Message, error) {
	return nil, errors.New("disk full")
}

func (failingMessageStore) CountMessages(context.Context) (int64, error) {
	return 0, errors.New("disk full")
}

func (failingMessageStore) CountMessagesSince(context.Context, time.Time) (int64, error) {
	return 0, errors.New("disk full")
}

func TestRoutePrivateMessage(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()

	alice := r.createUser(t, "alice")
	bob := r.createUser(t, "bob")
	carol := r.createUser(t, "carol")
	trAlice := r.connect(t, alice)
	trBob := r.connect(t, bob)
	trCarol := r.connect(t, carol)

	r.router.Route(ctx, alice.ID, proto.SendMessageData{
		Content:  "hi bob",
		ChatType: proto.ChatTypePrivate,
		ChatID:   bob.ID,
	})

	for name, tr := range map[string]*fakeTransport{"alice": trAlice, "bob": trBob} {
		msgs := tr.EventsOfType(proto.OutboundTypeMessage)
		if len(msgs) != 1 {
			t.Fatalf("expected 1 message event for %s, got %d", name, len(msgs))
		}
		data, ok := msgs[0].Data.(proto.MessageData)
		if !ok {
			t.Fatalf("unexpected message payload %T", msgs[0].Data)
		}
		if data.FromUserID != alice.ID || data.Content != "hi bob" {
			t.Errorf("unexpected message for %s: %+v", name, data)
		}
		if data.ToUserID == nil || *data.ToUserID != bob.ID {
			t.Errorf("expected to_user_id %s for %s", bob.ID, name)
		}
		if msgs[0].Timestamp == "" {
			t.Error("expected envelope timestamp")
		}
		if len(tr.EventsOfType(proto.OutboundTypeConversationUpdated)) != 1 {
			t.Errorf("expected a conversation_updated event for %s", name)
		}
	}

	// Bystanders never see private traffic.
	if len(trCarol.Events()) != 0 {
		t.Errorf("expected no events for carol, got %d", len(trCarol.Events()))
	}

	// Each side's conversation points at the other party; only the
	// recipient's unread counter moves.
	convAlice := r.waitForConversation(t, alice.ID, store.ChatTypePrivate, bob.ID)
	if convAlice.UnreadCount != 0 {
		t.Errorf("expected sender unread 0, got %d", convAlice.UnreadCount)
	}
	convBob := r.waitForConversation(t, bob.ID, store.ChatTypePrivate, alice.ID)
	if convBob.UnreadCount != 1 {
		t.Errorf("expected recipient unread 1, got %d", convBob.UnreadCount)
	}
}

func TestRoutePrivateMessageToOfflinePeer(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()

	alice := r.createUser(t, "alice")
	bob := r.createUser(t, "bob")
	trAlice := r.connect(t, alice)
	// Bob stays offline.

	r.router.Route(ctx, alice.ID, proto.SendMessageData{
		Content:  "are you there?",
		ChatType: proto.ChatTypePrivate,
		ChatID:   bob.ID,
	})

	if len(trAlice.EventsOfType(proto.OutboundTypeMessage)) != 1 {
		t.Error("expected the sender to receive the message event")
	}

	// The offline peer still accrues unread state for later.
	convBob := r.waitForConversation(t, bob.ID, store.ChatTypePrivate, alice.ID)
	if convBob.UnreadCount != 1 {
		t.Errorf("expected offline recipient unread 1, got %d", convBob.UnreadCount)
	}

	count, err := r.store.CountMessages(ctx)
	if err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 stored message, got %d", count)
	}
}

func TestRouteRoomMessage(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()

	alice := r.createUser(t, "alice")
	bob := r.createUser(t, "bob")
	carol := r.createUser(t, "carol")
	trAlice := r.connect(t, alice)
	trBob := r.connect(t, bob)
	trCarol := r.connect(t, carol)

	// Alice and bob joined the room; carol is online but elsewhere.
	for _, id := range []string{alice.ID, bob.ID} {
		if err := r.presence.AddToRoom(ctx, "general", id); err != nil {
			t.Fatalf("add to room: %v", err)
		}
	}

	r.router.Route(ctx, alice.ID, proto.SendMessageData{
		Content:  "hello",
		ChatType: proto.ChatTypeRoom,
		ChatID:   "general",
	})

	// Room traffic reaches everyone online, members or not.
	for name, tr := range map[string]*fakeTransport{"alice": trAlice, "bob": trBob, "carol": trCarol} {
		msgs := tr.EventsOfType(proto.OutboundTypeMessage)
		if len(msgs) != 1 {
			t.Fatalf("expected 1 message event for %s, got %d", name, len(msgs))
		}
		data := msgs[0].Data.(proto.MessageData)
		if data.RoomID == nil || *data.RoomID != "general" {
			t.Errorf("expected room_id general for %s", name)
		}
	}

	// Only room members' summaries move.
	if conv := r.waitForConversation(t, bob.ID, store.ChatTypeRoom, "general"); conv.UnreadCount != 1 {
		t.Errorf("expected bob's unread 1, got %d", conv.UnreadCount)
	}
	if conv := r.waitForConversation(t, alice.ID, store.ChatTypeRoom, "general"); conv.UnreadCount != 0 {
		t.Errorf("expected alice's unread 0, got %d", conv.UnreadCount)
	}
	if _, err := r.store.GetConversation(ctx, carol.ID, store.ChatTypeRoom, "general"); err == nil {
		t.Error("expected no conversation row for carol")
	}
}

func TestRouteGroupMessage(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()

	alice := r.createUser(t, "alice")
	bob := r.createUser(t, "bob")
	carol := r.createUser(t, "carol")
	trAlice := r.connect(t, alice)
	trBob := r.connect(t, bob)
	trCarol := r.connect(t, carol)

	group, err := r.store.CreateGroup(ctx, "lunch", alice.ID)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := r.store.AddGroupMember(ctx, group.ID, bob.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}

	r.router.Route(ctx, alice.ID, proto.SendMessageData{
		Content:  "pizza?",
		ChatType: proto.ChatTypeGroup,
		ChatID:   group.ID,
	})

	// Group traffic goes to the roster only.
	if len(trAlice.EventsOfType(proto.OutboundTypeMessage)) != 1 {
		t.Error("expected message event for alice")
	}
	if len(trBob.EventsOfType(proto.OutboundTypeMessage)) != 1 {
		t.Error("expected message event for bob")
	}
	if len(trCarol.Events()) != 0 {
		t.Errorf("expected no events for carol, got %d", len(trCarol.Events()))
	}

	if conv := r.waitForConversation(t, bob.ID, store.ChatTypeGroup, group.ID); conv.UnreadCount != 1 {
		t.Errorf("expected bob's unread 1, got %d", conv.UnreadCount)
	}
}
