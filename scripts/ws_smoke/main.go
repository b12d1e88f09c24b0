// Command ws_smoke connects to a running server with an access token,
// joins a room, sends one message and prints every event it gets back
// until the timeout. Quick end-to-end check for the websocket path.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/chatsphere-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "access token (see `chatsphere-server token`)")
	room := flag.String("room", "general", "room to join")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *token == "" {
		return errors.New("-token is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	u, err := url.Parse(*addr)
	if err != nil {
		return fmt.Errorf("parse addr: %w", err)
	}
	q := u.Query()
	q.Set("token", *token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(frameType string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", frameType, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: frameType, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", frameType, err)
		}
		return nil
	}

	if err := send(proto.InboundTypeJoinRoom, proto.RoomData{RoomID: *room}); err != nil {
		return err
	}
	if err := send(proto.InboundTypeSendMessage, proto.SendMessageData{
		Content:  *text,
		ChatType: proto.ChatTypeRoom,
		ChatID:   *room,
	}); err != nil {
		return err
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypePing}); err != nil {
		return fmt.Errorf("send ping: %w", err)
	}

	for {
		var event proto.Outbound
		if err := wsjson.Read(ctx, conn, &event); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		raw, _ := json.Marshal(event.Data)
		fmt.Printf("[%s] %s %s\n", event.Timestamp, event.Type, raw)
	}
}
