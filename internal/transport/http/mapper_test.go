package http

import (
	"encoding/json"
	"testing"

	"github.com/vovakirdan/amity-server/internal/core"
	"github.com/vovakirdan/amity-server/internal/proto"
)

func TestInboundToIntentMapping(t *testing.T) {
	cases := []struct {
		inType string
		data   string
		kind   core.IntentKind
	}{
		{proto.InboundTypeAuthenticate, `{"token":"abc"}`, core.IntentAuthenticate},
		{proto.InboundTypeJoin, `{"chat_id":"c1"}`, core.IntentJoinChat},
		{proto.InboundTypeLeave, `{"chat_id":"c1"}`, core.IntentLeaveChat},
		{proto.InboundTypeTyping, `{"chat_id":"c1"}`, core.IntentStartTyping},
		{proto.InboundTypeStopTyping, `{"chat_id":"c1"}`, core.IntentStopTyping},
		{proto.InboundTypeSend, `{"chat_id":"c1","content":"hi"}`, core.IntentSendMessage},
	}

	for _, tc := range cases {
		intent, protoErr := inboundToIntent(proto.Inbound{Type: tc.inType, Data: json.RawMessage(tc.data)})
		if protoErr != nil {
			t.Fatalf("%s: unexpected error: %+v", tc.inType, protoErr)
		}
		if intent.Kind != tc.kind {
			t.Fatalf("%s: expected kind %v, got %v", tc.inType, tc.kind, intent.Kind)
		}
	}
}

func TestInboundToIntentBadRequest(t *testing.T) {
	cases := []struct {
		name   string
		inType string
		data   string
	}{
		{"empty token", proto.InboundTypeAuthenticate, `{}`},
		{"empty chat on join", proto.InboundTypeJoin, `{}`},
		{"empty chat on send", proto.InboundTypeSend, `{"content":"hi"}`},
		{"unknown type", "warp", `{}`},
		{"truncated payload", proto.InboundTypeSend, `{`},
		{"wrong payload shape", proto.InboundTypeJoin, `"not-an-object"`},
		{"absent payload", proto.InboundTypeJoin, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			intent, protoErr := inboundToIntent(proto.Inbound{Type: tc.inType, Data: json.RawMessage(tc.data)})
			if intent != nil {
				t.Fatalf("expected no intent, got %+v", intent)
			}
			if protoErr == nil || protoErr.Code != core.ErrCodeBadRequest {
				t.Fatalf("expected bad_request, got %+v", protoErr)
			}
		})
	}
}

func TestOutboundFromEventErrorEnvelope(t *testing.T) {
	out := outboundFromEvent(&core.Event{Kind: core.EventError, Error: &core.CoreError{Code: core.ErrCodeForbidden, Message: "nope"}})
	if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != core.ErrCodeForbidden {
		t.Fatalf("unexpected envelope: %+v", out)
	}
}

func TestOutboundFromEventAuthFailure(t *testing.T) {
	out := outboundFromEvent(&core.Event{
		Kind:  core.EventAuthenticated,
		Error: &core.CoreError{Code: core.ErrCodeAuthFailure, Message: "invalid token"},
	})
	data, ok := out.Data.(proto.EventAuthenticated)
	if !ok {
		t.Fatalf("unexpected data type %T", out.Data)
	}
	if data.Success || data.Error == "" {
		t.Fatalf("auth failure should carry error: %+v", data)
	}
}
