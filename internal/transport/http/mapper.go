package http

import (
	"encoding/json"

	"github.com/vovakirdan/amity-server/internal/core"
	"github.com/vovakirdan/amity-server/internal/proto"
)

// inboundToIntent maps a wire frame to a core intent. Any malformed frame,
// whether an unknown type, a missing field, or an undecodable data payload,
// yields a bad_request error for the caller to send back on the same
// connection; the connection itself stays open.
func inboundToIntent(inbound proto.Inbound) (*core.Intent, *proto.Error) {
	badRequest := func(msg string) (*core.Intent, *proto.Error) {
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
	}

	switch inbound.Type {
	case proto.InboundTypeAuthenticate:
		var data proto.AuthenticateData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return badRequest("malformed data payload")
		}
		if data.Token == "" {
			return badRequest("token is required")
		}
		return &core.Intent{Kind: core.IntentAuthenticate, Token: data.Token}, nil
	case proto.InboundTypeJoin, proto.InboundTypeLeave, proto.InboundTypeTyping, proto.InboundTypeStopTyping:
		var data proto.ChatData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return badRequest("malformed data payload")
		}
		if data.ChatID == "" {
			return badRequest("chat_id is required")
		}
		kind := map[string]core.IntentKind{
			proto.InboundTypeJoin:       core.IntentJoinChat,
			proto.InboundTypeLeave:      core.IntentLeaveChat,
			proto.InboundTypeTyping:     core.IntentStartTyping,
			proto.InboundTypeStopTyping: core.IntentStopTyping,
		}[inbound.Type]
		return &core.Intent{Kind: kind, ChatID: data.ChatID}, nil
	case proto.InboundTypeSend:
		var data proto.SendData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return badRequest("malformed data payload")
		}
		if data.ChatID == "" {
			return badRequest("chat_id is required")
		}
		return &core.Intent{
			Kind:    core.IntentSendMessage,
			ChatID:  data.ChatID,
			Content: data.Content,
			Type:    data.Type,
			ReplyTo: data.ReplyTo,
		}, nil
	default:
		return badRequest("unknown intent type")
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventAuthenticated:
		data := proto.EventAuthenticated{
			Success:  event.Error == nil,
			UserID:   event.User.ID,
			Username: event.User.Name,
		}
		if event.Error != nil {
			data.Error = event.Error.Message
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameAuthenticated,
			Data:  data,
		}
	case core.EventNewMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameNewMessage,
			Data: proto.EventNewMessage{
				ID:         event.Message.ID,
				Seq:        event.Message.Seq,
				ChatID:     event.Message.ChatID,
				SenderID:   event.Message.SenderID,
				SenderName: event.Message.SenderName,
				Content:    event.Message.Content,
				MsgType:    event.Message.Type,
				ReplyTo:    event.Message.ReplyTo,
				TS:         event.Message.CreatedAt.Unix(),
			},
		}
	case core.EventPresenceChanged:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameUserStatusChange,
			Data: proto.EventUserStatusChange{
				UserID:   event.User.ID,
				Status:   string(event.Status),
				LastSeen: event.LastSeen.Unix(),
			},
		}
	case core.EventTypingStarted:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameUserTyping,
			Data: proto.EventUserTyping{
				ChatID:   event.ChatID,
				UserID:   event.User.ID,
				Username: event.User.Name,
			},
		}
	case core.EventTypingStopped:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameUserStopTyping,
			Data: proto.EventUserStopTyping{
				ChatID: event.ChatID,
				UserID: event.User.ID,
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
