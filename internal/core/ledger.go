package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatsphere-server/internal/store"
)

// LedgerUpdate is one message's effect on its participants'
// conversation summaries. ChatID is the address the message was sent
// to: the peer for private chats, the group or room id otherwise.
type LedgerUpdate struct {
	Participants []string
	AuthorID     string
	ChatType     store.ChatType
	ChatID       string
	MessageID    int64
}

// Ledger applies message effects to conversation summaries off the hot
// path. Updates ride a bounded queue; when it is full the update is
// dropped with a log line rather than stalling the router. Summaries
// are a convenience view, the message store stays the source of truth.
type Ledger struct {
	conversations store.ConversationStore
	log           zerolog.Logger
	queue         chan LedgerUpdate
}

// NewLedger creates a ledger with a queue of the given capacity.
func NewLedger(conversations store.ConversationStore, queueSize int, log zerolog.Logger) *Ledger {
	return &Ledger{
		conversations: conversations,
		log:           log.With().Str("component", "ledger").Logger(),
		queue:         make(chan LedgerUpdate, queueSize),
	}
}

// Enqueue hands an update to the worker. Never blocks.
func (l *Ledger) Enqueue(update LedgerUpdate) {
	select {
	case l.queue <- update:
	default:
		l.log.Warn().Int64("message_id", update.MessageID).Msg("ledger queue full, dropping update")
	}
}

// Run drains the queue until ctx is cancelled, then applies whatever
// is still buffered before returning.
func (l *Ledger) Run(ctx context.Context) {
	for {
		select {
		case update := <-l.queue:
			l.apply(update)
		case <-ctx.Done():
			for {
				select {
				case update := <-l.queue:
					l.apply(update)
				default:
					return
				}
			}
		}
	}
}

// MarkRead resets the unread counter for one conversation. Runs
// synchronously because the caller needs the answer. Returns true only
// when a positive counter was reset.
func (l *Ledger) MarkRead(ctx context.Context, userID string, chatType store.ChatType, chatID string) (bool, error) {
	reset, err := l.conversations.MarkConversationRead(ctx, userID, chatType, chatID)
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	return reset, nil
}

func (l *Ledger) apply(update LedgerUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, userID := range update.Participants {
		increment := userID != update.AuthorID
		err := l.conversations.UpsertConversation(ctx, userID, update.ChatType, conversationChatID(update, userID), update.MessageID, increment)
		if err != nil {
			// Degrade: a lost summary update never blocks the message.
			l.log.Error().Err(err).
				Str("user_id", userID).
				Int64("message_id", update.MessageID).
				Msg("conversation upsert failed")
		}
	}
}

// conversationChatID maps a message address to the id a participant's
// summary row keys on. Private rows point at the other party.
func conversationChatID(update LedgerUpdate, userID string) string {
	if update.ChatType != store.ChatTypePrivate || userID == update.AuthorID {
		return update.ChatID
	}
	return update.AuthorID
}
