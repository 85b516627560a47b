package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

func benchmarkChatFanout(b *testing.B, recipients int) {
	logger := zerolog.Nop()
	st := newFakeStore()
	registry := NewSessionRegistry()
	chats := NewMembershipIndex(st, registry)
	typing := NewTypingTracker()
	router := NewMessageRouter(st, chats, typing, &logger, 0)

	sender := Identity{ID: "sender", Name: "sender"}
	userIDs := []string{"sender"}

	clients := make([]*Client, 0, recipients)
	for i := 0; i < recipients; i++ {
		uid := fmt.Sprintf("user-%d", i)
		userIDs = append(userIDs, uid)

		c := NewClient(fmt.Sprintf("conn-%d", i), b.N+recipients)
		c.bind(Identity{ID: uid, Name: uid})
		if err := registry.Register(c); err != nil {
			b.Fatalf("register: %v", err)
		}
		clients = append(clients, c)
	}
	st.addChat("bench", userIDs...)

	ctx := context.Background()

	// Drain all but the first recipient to keep outboxes from filling.
	target := clients[0]
	drainCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for {
				if _, err := cl.Next(drainCtx); err != nil {
					return
				}
			}
		}(c)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, coreErr := router.Submit(ctx, sender, "bench", "payload", "", nil); coreErr != nil {
			b.Fatalf("submit: %+v", coreErr)
		}
		if _, err := target.Next(ctx); err != nil {
			b.Fatalf("next: %v", err)
		}
	}
}

func BenchmarkChatFanout_10(b *testing.B)  { benchmarkChatFanout(b, 10) }
func BenchmarkChatFanout_100(b *testing.B) { benchmarkChatFanout(b, 100) }
func BenchmarkChatFanout_500(b *testing.B) { benchmarkChatFanout(b, 500) }
