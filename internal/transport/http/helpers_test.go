package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatsphere-server/internal/auth"
	"github.com/vovakirdan/chatsphere-server/internal/core"
	"github.com/vovakirdan/chatsphere-server/internal/presence"
	"github.com/vovakirdan/chatsphere-server/internal/service/conversations"
	"github.com/vovakirdan/chatsphere-server/internal/service/stats"
	"github.com/vovakirdan/chatsphere-server/internal/store"
	"github.com/vovakirdan/chatsphere-server/internal/store/sqlite"
)

const (
	testSecret   = "test-secret"
	testIssuer   = "chatsphere"
	testAudience = "chatsphere-clients"
)

type testServer struct {
	ts       *httptest.Server
	srv      *Server
	store    *sqlite.SQLiteStore
	presence *presence.MemoryStore
	auth     *auth.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithLimit(t, 1000)
}

func newTestServerWithLimit(t *testing.T, rateLimit int) *testServer {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	pres := presence.NewMemoryStore(time.Minute)
	logger := zerolog.New(nil)

	authSvc := auth.NewService(st, st, pres, auth.Config{
		Secret:     testSecret,
		Issuer:     testIssuer,
		Audience:   testAudience,
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}, logger)

	registry := core.NewRegistry(pres, logger)
	ledger := core.NewLedger(st, 64, logger)
	router := core.NewRouter(registry, pres, st, st, st, ledger, logger)
	convSvc := conversations.NewService(st, pres, ledger, logger)
	statsSvc := stats.NewService(st, registry, logger)

	if err := st.CreateRoom(context.Background(), &store.Room{ID: "general", Name: "General", IsPublic: true}); err != nil {
		t.Fatalf("seed general room: %v", err)
	}

	ledgerCtx, cancel := context.WithCancel(context.Background())
	ledgerDone := make(chan struct{})
	go func() {
		defer close(ledgerDone)
		ledger.Run(ledgerCtx)
	}()

	srv := NewServer(Options{
		Addr:               ":0",
		ReadHeaderTimeout:  time.Second,
		DefaultRoom:        "general",
		WriteTimeout:       time.Second,
		HistoryPageSize:    50,
		RateLimitPerMinute: rateLimit,
	}, Deps{
		Auth:          authSvc,
		Registry:      registry,
		Router:        router,
		Conversations: convSvc,
		Stats:         statsSvc,
		Store:         st,
		Presence:      pres,
	}, logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-ledgerDone
	})

	return &testServer{ts: ts, srv: srv, store: st, presence: pres, auth: authSvc}
}

// request performs one JSON API call and decodes the response body.
func (s *testServer) request(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.ts.URL+path, reqBody)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var decoded map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode response %q: %v", raw, err)
		}
	}
	return resp.StatusCode, decoded
}

// registerAndLogin creates an account and returns its id and a live
// access token.
func (s *testServer) registerAndLogin(t *testing.T, username string) (string, string) {
	t.Helper()

	status, body := s.request(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    username + "@example.com",
		"username": username,
		"password": "secret1",
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d body %v", username, status, body)
	}

	status, body = s.request(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"username": username,
		"password": "secret1",
	})
	if status != http.StatusOK {
		t.Fatalf("login %s: status %d body %v", username, status, body)
	}

	user := body["user"].(map[string]any)
	return user["id"].(string), body["access_token"].(string)
}

func (s *testServer) wsURL(token string) string {
	url := strings.Replace(s.ts.URL, "http", "ws", 1) + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	return url
}

// dialWS opens a websocket session with the given access token.
func (s *testServer) dialWS(t *testing.T, token string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, s.wsURL(token), nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

type wireEvent struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// mustEvent reads frames until one of the wanted type arrives.
func mustEvent(t *testing.T, conn *websocket.Conn, eventType string) wireEvent {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		var event wireEvent
		if err := wsjson.Read(ctx, conn, &event); err != nil {
			t.Fatalf("waiting for %s: %v", eventType, err)
		}
		if event.Type == eventType {
			return event
		}
	}
}

// sendFrame writes one inbound frame.
func sendFrame(t *testing.T, conn *websocket.Conn, frameType string, data any) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, map[string]any{"type": frameType, "data": data}); err != nil {
		t.Fatalf("send %s: %v", frameType, err)
	}
}

// mustCloseStatus reads until the connection dies and returns the
// close status.
func mustCloseStatus(t *testing.T, conn *websocket.Conn) websocket.StatusCode {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			status := websocket.CloseStatus(err)
			if status == -1 {
				t.Fatalf("connection ended without close status: %v", err)
			}
			return status
		}
	}
}

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, what string, cond func() bool) {
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
