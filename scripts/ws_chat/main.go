// Command ws_chat is a terminal chat client for development. Lines
// typed at the prompt are sent to the chosen room; incoming events are
// printed as they arrive.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/chatsphere-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "access token (see `chatsphere-server token`)")
	room := flag.String("room", "general", "room to join")
	flag.Parse()

	if *token == "" {
		return errors.New("-token is required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
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

	send := func(frameType string, data any) {
		payload, marshalErr := json.Marshal(data)
		if marshalErr != nil {
			log.Printf("marshal %s: %v", frameType, marshalErr)
			return
		}
		if writeErr := wsjson.Write(ctx, conn, proto.Inbound{Type: frameType, Data: payload}); writeErr != nil {
			log.Printf("send: %v", writeErr)
			cancel()
		}
	}

	send(proto.InboundTypeJoinRoom, proto.RoomData{RoomID: *room})

	fmt.Printf("Connected to %s, room %s\n", *addr, *room)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		send(proto.InboundTypeSendMessage, proto.SendMessageData{
			Content:  text,
			ChatType: proto.ChatTypeRoom,
			ChatID:   *room,
		})
	}
	return scanner.Err()
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var event proto.Outbound
		if err := wsjson.Read(ctx, conn, &event); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		switch event.Type {
		case proto.OutboundTypeMessage:
			var msg proto.MessageData
			if remarshal(event.Data, &msg) == nil {
				fmt.Printf("[%s] %s: %s\n", msg.CreatedAt, msg.FromUserID, msg.Content)
				continue
			}
		case proto.OutboundTypeError:
			var errData proto.ErrorData
			if remarshal(event.Data, &errData) == nil {
				fmt.Printf("server error: %s\n", errData.Message)
				continue
			}
		}
		raw, _ := json.Marshal(event.Data)
		fmt.Printf("* %s %s\n", event.Type, raw)
	}
}

// remarshal decodes the loosely typed event data into a payload struct.
func remarshal(data any, out any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
