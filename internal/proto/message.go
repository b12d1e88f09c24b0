package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeSendMessage = "send_message"
	InboundTypeJoinRoom    = "join_room"
	InboundTypeLeaveRoom   = "leave_room"
	InboundTypeTyping      = "typing"
	InboundTypePing        = "ping"

	OutboundTypeConnectionEstablished = "connection_established"
	OutboundTypeMessage               = "message"
	OutboundTypeConversationUpdated   = "conversation_updated"
	OutboundTypeUserJoined            = "user_joined"
	OutboundTypeUserLeft              = "user_left"
	OutboundTypeTyping                = "typing"
	OutboundTypeOnlineUsers           = "online_users"
	OutboundTypePong                  = "pong"
	OutboundTypeError                 = "error"
)

// Chat address kinds carried in send_message frames and message events.
const (
	ChatTypePrivate = "private"
	ChatTypeGroup   = "group"
	ChatTypeRoom    = "room"
)

// SendMessageData asks the server to persist and fan out a chat message.
type SendMessageData struct {
	Content     string `json:"content"`
	ChatType    string `json:"chat_type"`
	ChatID      string `json:"chat_id"`
	MessageType string `json:"message_type"`
	ReplyToID   *int64 `json:"reply_to_id,omitempty"`
}

// RoomData targets a room for join_room / leave_room frames.
type RoomData struct {
	RoomID string `json:"room_id"`
}

// TypingData reports the sender's typing state for a chat.
type TypingData struct {
	ChatID   string `json:"chat_id"`
	IsTyping bool   `json:"is_typing"`
}

// Outbound is the envelope for events pushed to clients.
// Timestamp is server-assigned, ISO-8601.
type Outbound struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

// NewOutbound stamps an event envelope with the current server time.
func NewOutbound(eventType string, data any) Outbound {
	return Outbound{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// UserInfo is the public identity shape embedded in events.
type UserInfo struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// ConnectionEstablishedData greets a freshly authenticated connection.
type ConnectionEstablishedData struct {
	Message string   `json:"message"`
	User    UserInfo `json:"user"`
}

// MessageData is a chat message event. ID is the persisted message id
// rendered as a decimal string.
type MessageData struct {
	ID          string  `json:"id"`
	FromUserID  string  `json:"from_user_id"`
	Content     string  `json:"content"`
	MessageType string  `json:"message_type"`
	CreatedAt   string  `json:"created_at"`
	IsEdited    bool    `json:"is_edited"`
	ReplyToID   *int64  `json:"reply_to_id,omitempty"`
	ChatType    string  `json:"chat_type"`
	ChatID      string  `json:"chat_id"`
	RoomID      *string `json:"room_id,omitempty"`
	ToUserID    *string `json:"to_user_id,omitempty"`
	GroupID     *string `json:"group_id,omitempty"`
}

// ConversationUpdatedData tells clients to refresh a conversation summary
// without re-fetching message bodies.
type ConversationUpdatedData struct {
	ChatType  string `json:"chat_type"`
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	Timestamp string `json:"timestamp"`
}

// UserRoomData announces a user joining or leaving a room.
type UserRoomData struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	RoomID      string `json:"room_id"`
}

// TypingStatusData relays a typing indicator to other participants.
type TypingStatusData struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	IsTyping    bool   `json:"is_typing"`
	ChatID      string `json:"chat_id"`
}

// ErrorData carries a human-readable protocol error. The connection
// stays open; only handshake failures close it.
type ErrorData struct {
	Message string `json:"message"`
}
