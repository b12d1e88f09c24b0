package core

import (
	"strconv"
	"time"

	"github.com/vovakirdan/chatsphere-server/internal/proto"
	"github.com/vovakirdan/chatsphere-server/internal/store"
)

func userInfo(identity Identity) proto.UserInfo {
	return proto.UserInfo{
		ID:          identity.ID,
		Username:    identity.Username,
		DisplayName: identity.DisplayName,
		AvatarURL:   identity.AvatarURL,
	}
}

// NewConnectionEstablishedEvent greets a freshly authenticated session.
func NewConnectionEstablishedEvent(identity Identity) proto.Outbound {
	return proto.NewOutbound(proto.OutboundTypeConnectionEstablished, proto.ConnectionEstablishedData{
		Message: "Connected to chat server",
		User:    userInfo(identity),
	})
}

// NewMessageEvent renders a persisted message as a wire event. The
// same payload goes to every recipient; the address fields are filled
// from the message's chat type.
func NewMessageEvent(msg *store.Message) proto.Outbound {
	data := proto.MessageData{
		ID:          strconv.FormatInt(msg.ID, 10),
		FromUserID:  msg.FromUserID,
		Content:     msg.Content,
		MessageType: string(msg.MessageType),
		CreatedAt:   msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		IsEdited:    msg.IsEdited,
		ReplyToID:   msg.ReplyToID,
		ChatType:    string(msg.ChatType),
		ChatID:      msg.TargetID,
	}

	target := msg.TargetID
	switch msg.ChatType {
	case store.ChatTypePrivate:
		data.ToUserID = &target
	case store.ChatTypeGroup:
		data.GroupID = &target
	case store.ChatTypeRoom:
		data.RoomID = &target
	}
	return proto.NewOutbound(proto.OutboundTypeMessage, data)
}

// NewConversationUpdatedEvent tells one client that a conversation
// summary changed. chatID is recipient-relative: for private chats it
// names the peer.
func NewConversationUpdatedEvent(chatType store.ChatType, chatID string, messageID int64, at time.Time) proto.Outbound {
	return proto.NewOutbound(proto.OutboundTypeConversationUpdated, proto.ConversationUpdatedData{
		ChatType:  string(chatType),
		ChatID:    chatID,
		MessageID: strconv.FormatInt(messageID, 10),
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	})
}

// NewOnlineUsersEvent carries the full online roster.
func NewOnlineUsersEvent(users []Identity) proto.Outbound {
	infos := make([]proto.UserInfo, 0, len(users))
	for _, u := range users {
		infos = append(infos, userInfo(u))
	}
	return proto.NewOutbound(proto.OutboundTypeOnlineUsers, infos)
}

// NewUserJoinedEvent announces a user entering a room.
func NewUserJoinedEvent(identity Identity, roomID string) proto.Outbound {
	return proto.NewOutbound(proto.OutboundTypeUserJoined, proto.UserRoomData{
		UserID:      identity.ID,
		Username:    identity.Username,
		DisplayName: identity.DisplayName,
		RoomID:      roomID,
	})
}

// NewUserLeftEvent announces a user leaving a room.
func NewUserLeftEvent(identity Identity, roomID string) proto.Outbound {
	return proto.NewOutbound(proto.OutboundTypeUserLeft, proto.UserRoomData{
		UserID:      identity.ID,
		Username:    identity.Username,
		DisplayName: identity.DisplayName,
		RoomID:      roomID,
	})
}

// NewTypingEvent relays a typing indicator.
func NewTypingEvent(identity Identity, chatID string, isTyping bool) proto.Outbound {
	return proto.NewOutbound(proto.OutboundTypeTyping, proto.TypingStatusData{
		UserID:      identity.ID,
		Username:    identity.Username,
		DisplayName: identity.DisplayName,
		IsTyping:    isTyping,
		ChatID:      chatID,
	})
}

// NewPongEvent answers a client ping.
func NewPongEvent() proto.Outbound {
	return proto.NewOutbound(proto.OutboundTypePong, nil)
}

// NewErrorEvent reports a recoverable protocol error to one client.
func NewErrorEvent(message string) proto.Outbound {
	return proto.NewOutbound(proto.OutboundTypeError, proto.ErrorData{Message: message})
}
