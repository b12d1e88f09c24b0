// Package conversations assembles the chat-list view: conversation
// summaries enriched with peer, room or group details and a preview of
// the newest message.
package conversations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatsphere-server/internal/core"
	"github.com/vovakirdan/chatsphere-server/internal/presence"
	"github.com/vovakirdan/chatsphere-server/internal/store"
)

// ErrInvalidChatType is returned for a chat type outside private,
// group, room.
var ErrInvalidChatType = errors.New("invalid chat type")

// MessagePreview is the newest message of a conversation.
type MessagePreview struct {
	ID         int64
	Content    string
	FromUserID string
	CreatedAt  time.Time
}

// Summary is one row of a user's chat list.
type Summary struct {
	ChatType    store.ChatType
	ChatID      string
	Name        string
	AvatarURL   string
	UnreadCount int
	IsOnline    *bool // private chats only
	UpdatedAt   time.Time
	LastMessage *MessagePreview
}

// Service reads conversation state and forwards read receipts to the
// ledger.
type Service struct {
	store    store.Store
	presence presence.Store
	ledger   *core.Ledger
	log      zerolog.Logger
}

// NewService creates a conversations service.
func NewService(st store.Store, pres presence.Store, ledger *core.Ledger, log zerolog.Logger) *Service {
	return &Service{
		store:    st,
		presence: pres,
		ledger:   ledger,
		log:      log.With().Str("component", "conversations").Logger(),
	}
}

// List returns the user's chat list, newest activity first. Enrichment
// is best-effort: a missing peer or room never hides the row.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]Summary, error) {
	convs, err := s.store.ListConversations(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	summaries := make([]Summary, 0, len(convs))
	for _, conv := range convs {
		summary := Summary{
			ChatType:    conv.ChatType,
			ChatID:      conv.ChatID,
			Name:        conv.ChatID,
			UnreadCount: conv.UnreadCount,
			UpdatedAt:   conv.UpdatedAt,
		}
		s.enrich(ctx, &summary)

		if conv.LastMessageID != nil {
			msg, err := s.store.GetMessageByID(ctx, *conv.LastMessageID)
			if err != nil {
				s.log.Debug().Err(err).Int64("message_id", *conv.LastMessageID).Msg("last message lookup failed")
			} else {
				summary.LastMessage = &MessagePreview{
					ID:         msg.ID,
					Content:    msg.Content,
					FromUserID: msg.FromUserID,
					CreatedAt:  msg.CreatedAt,
				}
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// MarkRead resets the unread counter for one conversation. Returns
// true when a positive counter was reset, false when there was nothing
// to do.
func (s *Service) MarkRead(ctx context.Context, userID, chatType, chatID string) (bool, error) {
	ct := store.ChatType(chatType)
	switch ct {
	case store.ChatTypePrivate, store.ChatTypeGroup, store.ChatTypeRoom:
	default:
		return false, ErrInvalidChatType
	}
	return s.ledger.MarkRead(ctx, userID, ct, chatID)
}

func (s *Service) enrich(ctx context.Context, summary *Summary) {
	switch summary.ChatType {
	case store.ChatTypePrivate:
		online, err := s.presence.IsOnline(ctx, summary.ChatID)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", summary.ChatID).Msg("online lookup failed")
		} else {
			summary.IsOnline = &online
		}
		peer, err := s.store.GetUserByID(ctx, summary.ChatID)
		if err != nil {
			s.log.Debug().Err(err).Str("user_id", summary.ChatID).Msg("peer lookup failed")
			return
		}
		summary.Name = peer.DisplayName
		summary.AvatarURL = peer.AvatarURL
	case store.ChatTypeRoom:
		room, err := s.store.GetRoomByID(ctx, summary.ChatID)
		if err != nil {
			s.log.Debug().Err(err).Str("room_id", summary.ChatID).Msg("room lookup failed")
			return
		}
		summary.Name = room.Name
	case store.ChatTypeGroup:
		group, err := s.store.GetGroupByID(ctx, summary.ChatID)
		if err != nil {
			s.log.Debug().Err(err).Str("group_id", summary.ChatID).Msg("group lookup failed")
			return
		}
		summary.Name = group.Name
		summary.AvatarURL = group.AvatarURL
	}
}
