package core

// IntentKind describes what the client wants to do.
type IntentKind int

const (
	// IntentAuthenticate presents a token to bind the connection to an identity.
	IntentAuthenticate IntentKind = iota
	// IntentJoinChat subscribes the connection to live updates for a chat.
	IntentJoinChat
	// IntentLeaveChat unsubscribes the connection from a chat.
	IntentLeaveChat
	// IntentSendMessage submits a chat message for persistence and fan-out.
	IntentSendMessage
	// IntentStartTyping announces the user is composing a message.
	IntentStartTyping
	// IntentStopTyping clears the typing indicator.
	IntentStopTyping
)

// Intent represents an action requested by a client connection.
type Intent struct {
	Kind    IntentKind
	Token   string  // IntentAuthenticate
	ChatID  string  // all chat-scoped intents
	Content string  // IntentSendMessage
	Type    string  // IntentSendMessage: text, image or file
	ReplyTo *string // IntentSendMessage, optional
}
