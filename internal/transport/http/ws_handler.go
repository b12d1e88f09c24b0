package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/chatsphere-server/internal/auth"
	"github.com/vovakirdan/chatsphere-server/internal/core"
	"github.com/vovakirdan/chatsphere-server/internal/proto"
	"github.com/vovakirdan/chatsphere-server/internal/store"
)

// wsTransport adapts a websocket connection to core.Transport.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) WriteJSON(ctx context.Context, v any) error {
	return wsjson.Write(ctx, t.conn, v)
}

func (t *wsTransport) Close(code int, reason string) error {
	return t.conn.Close(websocket.StatusCode(code), reason)
}

// session is one authenticated websocket connection's lifecycle, from
// handshake to teardown. The read loop is the only goroutine touching
// the websocket's read side.
type session struct {
	srv   *Server
	ws    *websocket.Conn
	conn  *core.Connection
	user  *store.User
	rooms map[string]struct{} // rooms joined on this connection
}

// handleWebSocket authenticates the upgrade request and runs the
// session. The socket is accepted before credential checks because a
// close code can only be delivered over an upgraded connection. It is
// a plain http.HandlerFunc: the upgrade hijacks the connection and
// must see the raw ResponseWriter.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Browser clients connect from app origins; checks belong to
		// the proxy in front.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket accept failed")
		return
	}

	if token == "" {
		ws.Close(websocket.StatusCode(core.CloseMissingToken), "authentication required")
		return
	}

	user, _, err := s.deps.Auth.Authenticate(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			ws.Close(websocket.StatusCode(core.CloseUnknownUser), "user not found")
		} else {
			ws.Close(websocket.StatusCode(core.CloseInvalidToken), "invalid authentication token")
		}
		return
	}

	sess := &session{
		srv:   s,
		ws:    ws,
		conn:  core.NewConnection(core.IdentityFromUser(user), &wsTransport{conn: ws}, s.opts.WriteTimeout),
		user:  user,
		rooms: make(map[string]struct{}),
	}
	sess.run(r.Context())
}

// run registers the connection, greets the client and pumps frames
// until the socket dies. Teardown happens exactly once, on the way out.
func (sess *session) run(ctx context.Context) {
	srv := sess.srv
	userID := sess.user.ID

	srv.deps.Registry.Register(ctx, sess.conn)
	defer sess.teardown()

	srv.log.Info().Str("user_id", userID).Str("username", sess.user.Username).Msg("websocket session started")

	sess.conn.Send(core.NewConnectionEstablishedEvent(sess.conn.Identity()))
	sess.joinRoom(ctx, srv.opts.DefaultRoom, false)
	srv.broadcastOnlineUsers(ctx)

	if err := srv.deps.Store.TouchLastSeen(ctx, userID, time.Now().UTC()); err != nil {
		srv.log.Warn().Err(err).Str("user_id", userID).Msg("touch last_seen failed")
	}

	sess.readLoop(ctx)
}

// readLoop decodes inbound frames. A malformed frame earns an error
// event and the loop keeps going; only a dead socket ends it.
func (sess *session) readLoop(ctx context.Context) {
	for {
		_, data, err := sess.ws.Read(ctx)
		if err != nil {
			sess.srv.log.Debug().
				Err(err).
				Str("user_id", sess.user.ID).
				Msg("websocket read ended")
			return
		}

		var frame proto.Inbound
		if err := json.Unmarshal(data, &frame); err != nil {
			sess.conn.Send(core.NewErrorEvent("invalid message format"))
			continue
		}
		sess.dispatch(ctx, frame)
	}
}

// teardown is the single exit path for a session: unregister, drop
// room membership, stamp last_seen, refresh the roster. When a newer
// connection replaced this one, the registry ignores the stale
// unregister and the replacement keeps the default room it just joined.
func (sess *session) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := sess.srv
	userID := sess.user.ID

	srv.deps.Registry.Unregister(ctx, sess.conn)
	replaced := srv.deps.Registry.IsConnected(userID)

	for roomID := range sess.rooms {
		if replaced && roomID == srv.opts.DefaultRoom {
			continue
		}
		if err := srv.deps.Presence.RemoveFromRoom(ctx, roomID, userID); err != nil {
			srv.log.Warn().Err(err).Str("room_id", roomID).Str("user_id", userID).Msg("room removal failed")
		}
	}

	if err := srv.deps.Store.TouchLastSeen(ctx, userID, time.Now().UTC()); err != nil {
		srv.log.Warn().Err(err).Str("user_id", userID).Msg("touch last_seen failed")
	}

	srv.broadcastOnlineUsers(ctx)
	srv.log.Info().Str("user_id", userID).Bool("replaced", replaced).Msg("websocket session closed")
}

// joinRoom records room membership and optionally announces it to the
// rest of the server. Presence failures degrade to the local set.
func (sess *session) joinRoom(ctx context.Context, roomID string, announce bool) {
	srv := sess.srv
	if _, already := sess.rooms[roomID]; already {
		return
	}

	if err := srv.deps.Presence.AddToRoom(ctx, roomID, sess.user.ID); err != nil {
		srv.log.Warn().Err(err).Str("room_id", roomID).Str("user_id", sess.user.ID).Msg("presence room join failed")
	}
	sess.rooms[roomID] = struct{}{}

	if announce {
		srv.deps.Registry.BroadcastExcept(ctx, sess.user.ID, core.NewUserJoinedEvent(sess.conn.Identity(), roomID))
	}
}

// leaveRoom drops room membership and optionally announces it.
func (sess *session) leaveRoom(ctx context.Context, roomID string, announce bool) {
	srv := sess.srv
	if _, member := sess.rooms[roomID]; !member {
		return
	}

	if err := srv.deps.Presence.RemoveFromRoom(ctx, roomID, sess.user.ID); err != nil {
		srv.log.Warn().Err(err).Str("room_id", roomID).Str("user_id", sess.user.ID).Msg("presence room leave failed")
	}
	delete(sess.rooms, roomID)

	if announce {
		srv.deps.Registry.BroadcastExcept(ctx, sess.user.ID, core.NewUserLeftEvent(sess.conn.Identity(), roomID))
	}
}
