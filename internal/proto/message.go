package proto

import "encoding/json"

// Inbound is the envelope for intents coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeAuthenticate = "authenticate"
	InboundTypeJoin         = "join"
	InboundTypeLeave        = "leave"
	InboundTypeSend         = "send"
	InboundTypeTyping       = "typing"
	InboundTypeStopTyping   = "stop_typing"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNameAuthenticated    = "authenticated"
	EventNameNewMessage       = "new_message"
	EventNameUserStatusChange = "user_status_change"
	EventNameUserTyping       = "user_typing"
	EventNameUserStopTyping   = "user_stop_typing"
)

// AuthenticateData presents a bearer token to bind the connection.
type AuthenticateData struct {
	Token string `json:"token"`
}

// ChatData addresses a chat-scoped intent (join, leave, typing).
type ChatData struct {
	ChatID string `json:"chat_id"`
}

// SendData is a chat message from the client.
type SendData struct {
	ChatID  string  `json:"chat_id"`
	Content string  `json:"content"`
	Type    string  `json:"type,omitempty"`
	ReplyTo *string `json:"reply_to,omitempty"`
}

// Outbound is the envelope for events sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventAuthenticated reports the authentication outcome.
type EventAuthenticated struct {
	Success  bool   `json:"success"`
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Error    string `json:"error,omitempty"`
}

// EventNewMessage delivers a persisted message to a chat participant.
type EventNewMessage struct {
	ID         string  `json:"id"`
	Seq        int64   `json:"seq"`
	ChatID     string  `json:"chat_id"`
	SenderID   string  `json:"sender_id"`
	SenderName string  `json:"sender_name"`
	Content    string  `json:"content"`
	MsgType    string  `json:"type"`
	ReplyTo    *string `json:"reply_to,omitempty"`
	TS         int64   `json:"ts"`
}

// EventUserStatusChange notifies that a user's presence changed.
type EventUserStatusChange struct {
	UserID   string `json:"user_id"`
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

// EventUserTyping notifies that a user started typing in a chat.
type EventUserTyping struct {
	ChatID   string `json:"chat_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// EventUserStopTyping notifies that a user stopped typing in a chat.
type EventUserStopTyping struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
