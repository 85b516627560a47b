package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRouterRejectsNonParticipant(t *testing.T) {
	rig := newTestRig(nil)
	rig.store.addChat("chat-1", "u1")

	_, coreErr := rig.router.Submit(context.Background(), Identity{ID: "intruder"}, "chat-1", "hi", "", nil)
	if coreErr == nil || coreErr.Code != ErrCodeForbidden {
		t.Fatalf("expected forbidden, got %+v", coreErr)
	}
}

func TestRouterValidation(t *testing.T) {
	rig := newTestRig(nil)
	rig.store.addChat("chat-1", "u1")
	alice := Identity{ID: "u1", Name: "alice"}
	ctx := context.Background()

	cases := []struct {
		name    string
		content string
		msgType string
		replyTo *string
	}{
		{name: "empty content", content: ""},
		{name: "oversized content", content: string(make([]byte, 2048))},
		{name: "unknown type", content: "hi", msgType: "sticker"},
		{name: "reply target in another chat", content: "hi", replyTo: strPtr("foreign-msg")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, coreErr := rig.router.Submit(ctx, alice, "chat-1", tc.content, tc.msgType, tc.replyTo)
			if coreErr == nil || coreErr.Code != ErrCodeInvalidMessage {
				t.Fatalf("expected invalid_message, got %+v", coreErr)
			}
		})
	}
}

func TestRouterPersistFailureProducesNoFanout(t *testing.T) {
	rig := newTestRig(nil)
	rig.store.addChat("chat-1", "u1", "u2")
	bob := rig.connect(t, "bob-1", Identity{ID: "u2", Name: "bob"})

	rig.store.insertErr = errors.New("disk full")
	_, coreErr := rig.router.Submit(context.Background(), Identity{ID: "u1", Name: "alice"}, "chat-1", "hi", "", nil)
	if coreErr == nil || coreErr.Code != ErrCodePersistence {
		t.Fatalf("expected persistence_error, got %+v", coreErr)
	}

	noEvent(t, bob)
}

func TestRouterFanoutIncludesSender(t *testing.T) {
	rig := newTestRig(nil)
	rig.store.addChat("chat-1", "u1", "u2")
	alice := Identity{ID: "u1", Name: "alice"}

	alicePhone := rig.connect(t, "alice-1", alice)
	aliceLaptop := rig.connect(t, "alice-2", alice)
	bob := rig.connect(t, "bob-1", Identity{ID: "u2", Name: "bob"})

	envelope, coreErr := rig.router.Submit(context.Background(), alice, "chat-1", "hello", "", nil)
	if coreErr != nil {
		t.Fatalf("submit: %+v", coreErr)
	}
	if envelope.Seq == 0 || envelope.ID == "" {
		t.Fatalf("envelope missing persistence fields: %+v", envelope)
	}
	if envelope.SenderName != "alice" {
		t.Fatalf("expected sender name alice, got %q", envelope.SenderName)
	}

	// Every connection of every participant gets the envelope, the
	// originating one included.
	for _, c := range []*Client{alicePhone, aliceLaptop, bob} {
		ev := mustEvent(t, c, EventNewMessage)
		if ev.Message.ID != envelope.ID || ev.Message.Seq != envelope.Seq {
			t.Fatalf("conn %s got wrong envelope: %+v", c.ConnID, ev.Message)
		}
	}
}

func TestRouterNotJoinGated(t *testing.T) {
	rig := newTestRig(nil)
	rig.store.addChat("chat-1", "u1", "u2")

	// Bob is connected but never issued a join intent; delivery only
	// depends on membership and liveness.
	bob := rig.connect(t, "bob-1", Identity{ID: "u2", Name: "bob"})

	if _, coreErr := rig.router.Submit(context.Background(), Identity{ID: "u1", Name: "alice"}, "chat-1", "hello", "", nil); coreErr != nil {
		t.Fatalf("submit: %+v", coreErr)
	}
	mustEvent(t, bob, EventNewMessage)
}

func TestRouterSequencesAscendPerChat(t *testing.T) {
	rig := newTestRig(nil)
	rig.store.addChat("chat-1", "u1", "u2")
	alice := Identity{ID: "u1", Name: "alice"}
	bob := rig.connect(t, "bob-1", Identity{ID: "u2", Name: "bob"})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, coreErr := rig.router.Submit(ctx, alice, "chat-1", "msg", "", nil); coreErr != nil {
			t.Fatalf("submit %d: %+v", i, coreErr)
		}
	}

	var last int64
	for i := 0; i < 5; i++ {
		ev := mustEvent(t, bob, EventNewMessage)
		if ev.Message.Seq <= last {
			t.Fatalf("sequence regressed: %d after %d", ev.Message.Seq, last)
		}
		last = ev.Message.Seq
	}
}

func TestRouterReplyToSameChat(t *testing.T) {
	rig := newTestRig(nil)
	rig.store.addChat("chat-1", "u1")
	rig.store.replyTargets["msg-0"] = "chat-1"
	alice := Identity{ID: "u1", Name: "alice"}

	envelope, coreErr := rig.router.Submit(context.Background(), alice, "chat-1", "re: hi", "", strPtr("msg-0"))
	if coreErr != nil {
		t.Fatalf("submit: %+v", coreErr)
	}
	if envelope.ReplyTo == nil || *envelope.ReplyTo != "msg-0" {
		t.Fatalf("reply_to not carried: %+v", envelope)
	}
}

func TestRouterSlowRecipientDoesNotBlockOthers(t *testing.T) {
	rig := newTestRig(nil)
	rig.store.addChat("chat-1", "u1", "u2", "u3")
	alice := Identity{ID: "u1", Name: "alice"}

	carol := rig.connect(t, "carol-1", Identity{ID: "u3", Name: "carol"})

	// Bob's connection has a single-slot outbox already holding a durable
	// event, so the fan-out cannot make room for him.
	slow := NewClient("bob-1", 1)
	slow.bind(Identity{ID: "u2", Name: "bob"})
	if err := rig.registry.Register(slow); err != nil {
		t.Fatalf("register slow client: %v", err)
	}
	slow.Send(&Event{Kind: EventNewMessage, Message: Message{ID: "backlog"}})

	envelope, coreErr := rig.router.Submit(context.Background(), alice, "chat-1", "hello", "", nil)
	if coreErr != nil {
		t.Fatalf("submit: %+v", coreErr)
	}

	// The healthy recipient still gets the envelope.
	ev := mustEvent(t, carol, EventNewMessage)
	if ev.Message.ID != envelope.ID {
		t.Fatalf("carol got wrong envelope: %+v", ev.Message)
	}

	// The saturated one is closed for backpressure.
	select {
	case <-slow.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("slow client was not closed")
	}
	if reason := slow.CloseReason(); reason == nil || reason.Code != ErrCodeSlowConsumer {
		t.Fatalf("expected slow_consumer close, got %+v", reason)
	}
}

func TestRouterClearsSenderTyping(t *testing.T) {
	rig := newTestRig(nil)
	rig.store.addChat("chat-1", "u1", "u2")
	alice := Identity{ID: "u1", Name: "alice"}

	aliceConn := rig.connect(t, "alice-1", alice)
	bob := rig.connect(t, "bob-1", Identity{ID: "u2", Name: "bob"})

	rig.typing.Start("chat-1", "u1", aliceConn.ConnID)

	if _, coreErr := rig.router.Submit(context.Background(), alice, "chat-1", "done typing", "", nil); coreErr != nil {
		t.Fatalf("submit: %+v", coreErr)
	}

	// Bob sees the implicit stop; the typist herself does not.
	ev := mustEvent(t, bob, EventTypingStopped)
	if ev.ChatID != "chat-1" || ev.User.ID != "u1" {
		t.Fatalf("unexpected stop event: %+v", ev)
	}
	mustEvent(t, aliceConn, EventNewMessage)
	noEvent(t, aliceConn)
}

func strPtr(s string) *string { return &s }
