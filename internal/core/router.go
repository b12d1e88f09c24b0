package core

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatsphere-server/internal/presence"
	"github.com/vovakirdan/chatsphere-server/internal/proto"
	"github.com/vovakirdan/chatsphere-server/internal/store"
)

// Router carries a send_message frame through validation, persistence,
// the conversation ledger and fan-out, in that order. Failures answer
// the sender on the wire; nothing here ends a session.
type Router struct {
	registry      *Registry
	presence      presence.Store
	messages      store.MessageStore
	groups        store.GroupStore
	conversations store.ConversationStore
	ledger        *Ledger
	log           zerolog.Logger
}

// NewRouter wires a router to its collaborators.
func NewRouter(registry *Registry, pres presence.Store, messages store.MessageStore, groups store.GroupStore, conversations store.ConversationStore, ledger *Ledger, log zerolog.Logger) *Router {
	return &Router{
		registry:      registry,
		presence:      pres,
		messages:      messages,
		groups:        groups,
		conversations: conversations,
		ledger:        ledger,
		log:           log.With().Str("component", "router").Logger(),
	}
}

// Route persists and fans out one chat message from senderID.
//
// Empty bodies are dropped without a reply. A persistence failure is
// reported to the sender only; nothing is broadcast for a message that
// was never stored. Room messages go to every online user, private and
// group messages to their participants.
func (r *Router) Route(ctx context.Context, senderID string, data proto.SendMessageData) {
	content := strings.TrimSpace(data.Content)
	if content == "" {
		return
	}

	if _, ok := r.registry.Identity(senderID); !ok {
		// Sender disconnected while the frame was in flight.
		r.log.Debug().Str("user_id", senderID).Msg("dropping message from vanished sender")
		return
	}

	chatType := store.ChatType(data.ChatType)
	switch chatType {
	case store.ChatTypePrivate, store.ChatTypeGroup, store.ChatTypeRoom:
	default:
		r.registry.Send(ctx, senderID, NewErrorEvent("unknown chat type: "+data.ChatType))
		return
	}
	if data.ChatID == "" {
		r.registry.Send(ctx, senderID, NewErrorEvent("chat_id is required"))
		return
	}

	msg := &store.Message{
		FromUserID:  senderID,
		ChatType:    chatType,
		TargetID:    data.ChatID,
		Content:     content,
		MessageType: store.MessageType(data.MessageType),
		ReplyToID:   data.ReplyToID,
	}
	if err := r.messages.SaveMessage(ctx, msg); err != nil {
		r.log.Error().Err(err).Str("user_id", senderID).Str("chat_type", data.ChatType).Msg("save message failed")
		r.registry.Send(ctx, senderID, NewErrorEvent("failed to send message"))
		return
	}

	participants := r.participants(ctx, senderID, chatType, data.ChatID)
	r.ledger.Enqueue(LedgerUpdate{
		Participants: participants,
		AuthorID:     senderID,
		ChatType:     chatType,
		ChatID:       data.ChatID,
		MessageID:    msg.ID,
	})

	event := NewMessageEvent(msg)
	switch chatType {
	case store.ChatTypeRoom:
		// Rooms are public spaces: everyone online sees the traffic,
		// membership only controls whose summaries the ledger touches.
		r.registry.Broadcast(ctx, event)
		r.registry.Broadcast(ctx, NewConversationUpdatedEvent(chatType, data.ChatID, msg.ID, msg.CreatedAt))
	case store.ChatTypePrivate:
		peerID := data.ChatID
		r.registry.Send(ctx, senderID, event)
		r.registry.Send(ctx, senderID, NewConversationUpdatedEvent(chatType, peerID, msg.ID, msg.CreatedAt))
		if peerID != senderID {
			r.registry.Send(ctx, peerID, event)
			r.registry.Send(ctx, peerID, NewConversationUpdatedEvent(chatType, senderID, msg.ID, msg.CreatedAt))
		}
	case store.ChatTypeGroup:
		conv := NewConversationUpdatedEvent(chatType, data.ChatID, msg.ID, msg.CreatedAt)
		for _, userID := range participants {
			r.registry.Send(ctx, userID, event)
			r.registry.Send(ctx, userID, conv)
		}
	}

	r.log.Debug().
		Int64("message_id", msg.ID).
		Str("chat_type", data.ChatType).
		Str("chat_id", data.ChatID).
		Int("participants", len(participants)).
		Msg("message routed")
}

// participants resolves who a message belongs to: the sender plus the
// peer for private chats, the group roster for groups, or the room's
// present members. The sender is always included exactly once.
func (r *Router) participants(ctx context.Context, senderID string, chatType store.ChatType, chatID string) []string {
	seen := map[string]struct{}{senderID: {}}
	out := []string{senderID}
	add := func(ids ...string) {
		for _, id := range ids {
			if _, dup := seen[id]; dup || id == "" {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}

	switch chatType {
	case store.ChatTypePrivate:
		add(chatID)
	case store.ChatTypeGroup:
		members, err := r.groups.ListGroupMembers(ctx, chatID)
		if err != nil {
			r.log.Error().Err(err).Str("group_id", chatID).Msg("group member lookup failed")
			break
		}
		add(members...)
	case store.ChatTypeRoom:
		members, err := r.presence.RoomMembers(ctx, chatID)
		if err != nil {
			// Presence store trouble: fall back to who ever talked in
			// the room so their summaries still move.
			r.log.Warn().Err(err).Str("room_id", chatID).Msg("presence room lookup failed, using conversation rows")
			members, err = r.conversations.ListRoomConversationUserIDs(ctx, chatID)
			if err != nil {
				r.log.Error().Err(err).Str("room_id", chatID).Msg("room participant fallback failed")
				break
			}
		}
		add(members...)
	}
	return out
}
