package http

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/vovakirdan/chatsphere-server/internal/store"
)

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	status, body := s.request(t, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("health status = %d", status)
	}
	if body["status"] != "ok" {
		t.Fatalf("health body = %v", body)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing fields", map[string]any{"username": "alice"}, http.StatusBadRequest},
		{"short password", map[string]any{"email": "a@example.com", "username": "alice", "password": "short"}, http.StatusBadRequest},
		{"bad email", map[string]any{"email": "nope", "username": "alice", "password": "secret1"}, http.StatusBadRequest},
		{"short username", map[string]any{"email": "a@example.com", "username": "ab", "password": "secret1"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := s.request(t, http.MethodPost, "/api/auth/register", "", tc.body)
			if status != tc.want {
				t.Fatalf("status = %d, want %d", status, tc.want)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	s := newTestServer(t)
	s.registerAndLogin(t, "alice")

	status, _ := s.request(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    "alice@example.com",
		"username": "alice",
		"password": "secret1",
	})
	if status != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", status)
	}
}

func TestLoginAndMe(t *testing.T) {
	s := newTestServer(t)
	userID, token := s.registerAndLogin(t, "alice")

	status, body := s.request(t, http.MethodGet, "/api/me", token, nil)
	if status != http.StatusOK {
		t.Fatalf("me status = %d", status)
	}
	if body["id"] != userID || body["username"] != "alice" {
		t.Fatalf("me body = %v", body)
	}

	status, _ = s.request(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"username": "alice",
		"password": "wrong-password",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", status)
	}

	status, _ = s.request(t, http.MethodGet, "/api/me", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("unauthenticated me status = %d, want 401", status)
	}
}

func TestRefreshRotation(t *testing.T) {
	s := newTestServer(t)
	s.registerAndLogin(t, "alice")

	status, body := s.request(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"username": "alice",
		"password": "secret1",
	})
	if status != http.StatusOK {
		t.Fatalf("login status = %d", status)
	}
	oldRefresh := body["refresh_token"].(string)

	status, body = s.request(t, http.MethodPost, "/api/auth/refresh", "", map[string]any{
		"refresh_token": oldRefresh,
	})
	if status != http.StatusOK {
		t.Fatalf("refresh status = %d", status)
	}
	newRefresh := body["refresh_token"].(string)
	if newRefresh == oldRefresh {
		t.Fatal("refresh token was not rotated")
	}

	// The used token is revoked; replaying it fails.
	status, _ = s.request(t, http.MethodPost, "/api/auth/refresh", "", map[string]any{
		"refresh_token": oldRefresh,
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("replayed refresh status = %d, want 401", status)
	}

	status, _ = s.request(t, http.MethodPost, "/api/auth/refresh", "", map[string]any{
		"refresh_token": newRefresh,
	})
	if status != http.StatusOK {
		t.Fatalf("rotated refresh status = %d", status)
	}
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	s := newTestServer(t)
	_, token := s.registerAndLogin(t, "alice")

	status, _ := s.request(t, http.MethodPost, "/api/auth/logout", token, nil)
	if status != http.StatusOK {
		t.Fatalf("logout status = %d", status)
	}

	status, _ = s.request(t, http.MethodGet, "/api/me", token, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("me after logout status = %d, want 401", status)
	}
}

func TestRegisterRateLimit(t *testing.T) {
	s := newTestServerWithLimit(t, 2)

	for i := 0; i < 2; i++ {
		status, _ := s.request(t, http.MethodPost, "/api/auth/register", "", map[string]any{
			"email":    fmt.Sprintf("user%d@example.com", i),
			"username": fmt.Sprintf("user%d_name", i),
			"password": "secret1",
		})
		if status != http.StatusCreated {
			t.Fatalf("register %d status = %d", i, status)
		}
	}

	status, _ := s.request(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    "late@example.com",
		"username": "latecomer",
		"password": "secret1",
	})
	if status != http.StatusTooManyRequests {
		t.Fatalf("over-limit register status = %d, want 429", status)
	}
}

func TestMessageHistory(t *testing.T) {
	s := newTestServer(t)
	aliceID, aliceToken := s.registerAndLogin(t, "alice")
	bobID, bobToken := s.registerAndLogin(t, "bob")

	ctx := context.Background()
	seed := []struct {
		from, to, content string
	}{
		{aliceID, bobID, "one"},
		{bobID, aliceID, "two"},
		{aliceID, bobID, "three"},
	}
	for _, m := range seed {
		msg := &store.Message{
			FromUserID: m.from,
			ChatType:   store.ChatTypePrivate,
			TargetID:   m.to,
			Content:    m.content,
		}
		if err := s.store.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("seed message %q: %v", m.content, err)
		}
	}

	// Both participants see the same two-way history, oldest first.
	for _, viewer := range []struct {
		token string
		peer  string
	}{
		{aliceToken, bobID},
		{bobToken, aliceID},
	} {
		status, body := s.request(t, http.MethodGet, "/api/messages/private/"+viewer.peer, viewer.token, nil)
		if status != http.StatusOK {
			t.Fatalf("history status = %d", status)
		}
		messages := body["messages"].([]any)
		if len(messages) != 3 {
			t.Fatalf("history length = %d, want 3", len(messages))
		}
		for i, want := range []string{"one", "two", "three"} {
			got := messages[i].(map[string]any)["content"]
			if got != want {
				t.Fatalf("messages[%d] = %v, want %q", i, got, want)
			}
		}
	}

	// limit/offset pages from the newest end.
	status, body := s.request(t, http.MethodGet, "/api/messages/private/"+bobID+"?limit=1&offset=1", aliceToken, nil)
	if status != http.StatusOK {
		t.Fatalf("paged history status = %d", status)
	}
	messages := body["messages"].([]any)
	if len(messages) != 1 || messages[0].(map[string]any)["content"] != "two" {
		t.Fatalf("paged history = %v, want just \"two\"", messages)
	}

	status, _ = s.request(t, http.MethodGet, "/api/messages/carrier-pigeon/x", aliceToken, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("bad chat type status = %d, want 400", status)
	}
}

func TestRoomEndpoints(t *testing.T) {
	s := newTestServer(t)
	userID, token := s.registerAndLogin(t, "alice")

	if err := s.presence.AddToRoom(context.Background(), "general", userID); err != nil {
		t.Fatalf("seed room presence: %v", err)
	}

	status, body := s.request(t, http.MethodGet, "/api/rooms", token, nil)
	if status != http.StatusOK {
		t.Fatalf("list rooms status = %d", status)
	}
	if int(body["count"].(float64)) != 1 {
		t.Fatalf("room count = %v, want the seeded general room", body["count"])
	}
	general := body["rooms"].([]any)[0].(map[string]any)
	if general["id"] != "general" {
		t.Fatalf("first room = %v, want general", general["id"])
	}
	if int(general["online_count"].(float64)) != 1 {
		t.Fatalf("online_count = %v, want 1", general["online_count"])
	}

	status, body = s.request(t, http.MethodPost, "/api/rooms", token, map[string]any{
		"id":   "random",
		"name": "Random",
	})
	if status != http.StatusCreated {
		t.Fatalf("create room status = %d body %v", status, body)
	}
	if body["id"] != "random" || body["is_public"] != true {
		t.Fatalf("created room = %v", body)
	}

	status, _ = s.request(t, http.MethodPost, "/api/rooms", token, map[string]any{
		"id":   "random",
		"name": "Random again",
	})
	if status != http.StatusConflict {
		t.Fatalf("duplicate room status = %d, want 409", status)
	}

	status, _ = s.request(t, http.MethodPost, "/api/rooms", token, map[string]any{
		"id":   "Bad Slug!",
		"name": "Nope",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("bad slug status = %d, want 400", status)
	}
}

func TestGroupEndpoints(t *testing.T) {
	s := newTestServer(t)
	aliceID, aliceToken := s.registerAndLogin(t, "alice")
	bobID, bobToken := s.registerAndLogin(t, "bob")
	carolID, _ := s.registerAndLogin(t, "carol")

	status, body := s.request(t, http.MethodPost, "/api/groups", aliceToken, map[string]any{
		"name": "team",
	})
	if status != http.StatusCreated {
		t.Fatalf("create group status = %d", status)
	}
	groupID := body["id"].(string)
	if body["owner_id"] != aliceID {
		t.Fatalf("group owner = %v, want %s", body["owner_id"], aliceID)
	}

	// Non-members cannot grow the roster.
	status, _ = s.request(t, http.MethodPost, "/api/groups/"+groupID+"/members", bobToken, map[string]any{
		"user_id": carolID,
	})
	if status != http.StatusForbidden {
		t.Fatalf("non-member add status = %d, want 403", status)
	}

	status, _ = s.request(t, http.MethodPost, "/api/groups/"+groupID+"/members", aliceToken, map[string]any{
		"user_id": bobID,
	})
	if status != http.StatusOK {
		t.Fatalf("owner add status = %d", status)
	}

	status, _ = s.request(t, http.MethodPost, "/api/groups/"+groupID+"/members", aliceToken, map[string]any{
		"user_id": "no-such-user",
	})
	if status != http.StatusNotFound {
		t.Fatalf("unknown user add status = %d, want 404", status)
	}

	status, _ = s.request(t, http.MethodPost, "/api/groups/no-such-group/members", aliceToken, map[string]any{
		"user_id": bobID,
	})
	if status != http.StatusNotFound {
		t.Fatalf("unknown group status = %d, want 404", status)
	}

	members, err := s.store.ListGroupMembers(context.Background(), groupID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("member count = %d, want 2", len(members))
	}
}

func TestConversationsEndpoint(t *testing.T) {
	s := newTestServer(t)
	aliceID, _ := s.registerAndLogin(t, "alice")
	bobID, bobToken := s.registerAndLogin(t, "bob")

	ctx := context.Background()
	msg := &store.Message{
		FromUserID: aliceID,
		ChatType:   store.ChatTypePrivate,
		TargetID:   bobID,
		Content:    "hello bob",
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	if err := s.store.UpsertConversation(ctx, bobID, store.ChatTypePrivate, aliceID, msg.ID, true); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}

	status, body := s.request(t, http.MethodGet, "/api/conversations", bobToken, nil)
	if status != http.StatusOK {
		t.Fatalf("conversations status = %d", status)
	}
	convs := body["conversations"].([]any)
	if len(convs) != 1 {
		t.Fatalf("conversation count = %d, want 1", len(convs))
	}
	conv := convs[0].(map[string]any)
	if conv["chat_type"] != "private" || conv["chat_id"] != aliceID {
		t.Fatalf("conversation = %v", conv)
	}
	if int(conv["unread_count"].(float64)) != 1 {
		t.Fatalf("unread = %v, want 1", conv["unread_count"])
	}
	// Enriched with the peer's name and the last message body.
	if conv["name"] != "alice" {
		t.Fatalf("conversation name = %v, want alice", conv["name"])
	}
	last := conv["last_message"].(map[string]any)
	if last["content"] != "hello bob" {
		t.Fatalf("last message = %v", last)
	}

	status, _ = s.request(t, http.MethodPost, "/api/conversations/read", bobToken, map[string]any{
		"chat_type": "smoke-signal",
		"chat_id":   aliceID,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("bad chat type mark read status = %d, want 400", status)
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t)
	aliceID, token := s.registerAndLogin(t, "alice")

	msg := &store.Message{
		FromUserID: aliceID,
		ChatType:   store.ChatTypeRoom,
		TargetID:   "general",
		Content:    "stat me",
	}
	if err := s.store.SaveMessage(context.Background(), msg); err != nil {
		t.Fatalf("seed message: %v", err)
	}

	status, body := s.request(t, http.MethodGet, "/api/stats", token, nil)
	if status != http.StatusOK {
		t.Fatalf("stats status = %d", status)
	}
	if int(body["total_users"].(float64)) != 1 {
		t.Fatalf("total_users = %v, want 1", body["total_users"])
	}
	if int(body["total_messages"].(float64)) != 1 {
		t.Fatalf("total_messages = %v, want 1", body["total_messages"])
	}
	if int(body["messages_today"].(float64)) != 1 {
		t.Fatalf("messages_today = %v, want 1", body["messages_today"])
	}
	if int(body["online_users"].(float64)) != 0 {
		t.Fatalf("online_users = %v, want 0", body["online_users"])
	}
	serverTime, ok := body["server_time"].(string)
	if !ok || serverTime == "" {
		t.Fatalf("server_time = %v, want RFC3339 timestamp", body["server_time"])
	}
	if _, err := time.Parse(time.RFC3339, serverTime); err != nil {
		t.Fatalf("parse server_time %q: %v", serverTime, err)
	}
}

func TestOnlineUsersEndpoint(t *testing.T) {
	s := newTestServer(t)
	userID, token := s.registerAndLogin(t, "alice")

	status, body := s.request(t, http.MethodGet, "/api/users/online", token, nil)
	if status != http.StatusOK {
		t.Fatalf("online users status = %d", status)
	}
	if int(body["count"].(float64)) != 0 {
		t.Fatalf("count = %v, want 0", body["count"])
	}

	conn := s.connect(t, token)
	defer conn.Close(1000, "")

	status, body = s.request(t, http.MethodGet, "/api/users/online", token, nil)
	if status != http.StatusOK {
		t.Fatalf("online users status = %d", status)
	}
	if int(body["count"].(float64)) != 1 {
		t.Fatalf("count = %v, want 1", body["count"])
	}
	users := body["users"].([]any)
	if users[0].(map[string]any)["id"] != userID {
		t.Fatalf("online users = %v", users)
	}
}
