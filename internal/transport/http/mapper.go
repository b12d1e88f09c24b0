package http

import (
	"context"
	"encoding/json"

	"github.com/vovakirdan/chatsphere-server/internal/core"
	"github.com/vovakirdan/chatsphere-server/internal/proto"
)

// dispatch maps one inbound frame to its handler. Unknown types and
// bad payloads answer with an error event; the session stays up.
// Omitted addressing falls back to the default room: a bare
// send_message goes to it, a bare join_room/leave_room targets it.
func (sess *session) dispatch(ctx context.Context, frame proto.Inbound) {
	switch frame.Type {
	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, &data); err != nil {
				sess.conn.Send(core.NewErrorEvent("invalid message format"))
				return
			}
		}
		if data.ChatType == "" {
			data.ChatType = proto.ChatTypeRoom
		}
		if data.ChatID == "" {
			data.ChatID = sess.srv.opts.DefaultRoom
		}
		sess.srv.deps.Router.Route(ctx, sess.user.ID, data)

	case proto.InboundTypeJoinRoom:
		roomID, ok := sess.roomTarget(frame)
		if !ok {
			return
		}
		sess.joinRoom(ctx, roomID, true)

	case proto.InboundTypeLeaveRoom:
		roomID, ok := sess.roomTarget(frame)
		if !ok {
			return
		}
		sess.leaveRoom(ctx, roomID, true)

	case proto.InboundTypeTyping:
		var data proto.TypingData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			sess.conn.Send(core.NewErrorEvent("invalid message format"))
			return
		}
		sess.srv.deps.Registry.BroadcastExcept(ctx, sess.user.ID, core.NewTypingEvent(sess.conn.Identity(), data.ChatID, data.IsTyping))

	case proto.InboundTypePing:
		// Pings double as presence keepalives.
		if err := sess.srv.deps.Presence.SetOnline(ctx, sess.user.ID); err != nil {
			sess.srv.log.Warn().Err(err).Str("user_id", sess.user.ID).Msg("presence refresh failed")
		}
		sess.conn.Send(core.NewPongEvent())

	default:
		sess.conn.Send(core.NewErrorEvent("unknown message type: " + frame.Type))
	}
}

// roomTarget resolves the room a join/leave frame addresses, defaulting
// to the server's default room when the payload omits room_id.
func (sess *session) roomTarget(frame proto.Inbound) (string, bool) {
	var data proto.RoomData
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			sess.conn.Send(core.NewErrorEvent("invalid message format"))
			return "", false
		}
	}
	if data.RoomID == "" {
		data.RoomID = sess.srv.opts.DefaultRoom
	}
	return data.RoomID, true
}
