package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/amity-server/internal/proto"
)

// Minimal end-to-end check: authenticate, join a chat, send a message and
// print whatever comes back. Expects a token from /api/login.
func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "JWT from /api/login")
	chatID := flag.String("chat", "", "chat id to join")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *token == "" || *chatID == "" {
		log.Fatal("both -token and -chat are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	mustSend := func(v interface{}) {
		if err := wsjson.Write(ctx, conn, v); err != nil {
			log.Fatalf("send: %v", err)
		}
	}

	authPayload, _ := json.Marshal(proto.AuthenticateData{Token: *token})
	mustSend(proto.Inbound{Type: proto.InboundTypeAuthenticate, Data: authPayload})

	joinPayload, _ := json.Marshal(proto.ChatData{ChatID: *chatID})
	mustSend(proto.Inbound{Type: proto.InboundTypeJoin, Data: joinPayload})

	sendPayload, _ := json.Marshal(proto.SendData{ChatID: *chatID, Content: *text})
	mustSend(proto.Inbound{Type: proto.InboundTypeSend, Data: sendPayload})

	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			log.Fatalf("read: %v", err)
		}

		fmt.Printf("received: type=%s", outbound.Type)
		if outbound.Event != "" {
			fmt.Printf(" event=%s", outbound.Event)
		}
		fmt.Println()
		if outbound.Error != nil {
			fmt.Printf("error: %s (%s)\n", outbound.Error.Msg, outbound.Error.Code)
			return
		}

		if outbound.Event == proto.EventNameNewMessage {
			var evt proto.EventNewMessage
			if err := json.Unmarshal(outbound.Data, &evt); err == nil {
				fmt.Printf("message: chat=%s sender=%s seq=%d text=%q\n", evt.ChatID, evt.SenderName, evt.Seq, evt.Content)
			}
			return
		}
		if len(outbound.Data) > 0 {
			fmt.Printf("data: %s\n", string(outbound.Data))
		}
	}
}
