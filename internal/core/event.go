package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventAuthenticated reports the outcome of an authenticate intent.
	EventAuthenticated EventKind = iota
	// EventNewMessage delivers a persisted chat message.
	EventNewMessage
	// EventPresenceChanged notifies about a user's status transition.
	EventPresenceChanged
	// EventTypingStarted notifies that a user started typing in a chat.
	EventTypingStarted
	// EventTypingStopped notifies that a user stopped typing in a chat.
	EventTypingStopped
	// EventError notifies the client about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	ChatID   string
	User     Identity
	Status   Status    // for EventPresenceChanged
	LastSeen time.Time // for EventPresenceChanged
	Message  Message   // for EventNewMessage
	Error    *CoreError
}

// droppable reports whether the event may be discarded under backpressure.
// Durable message envelopes and the authentication ack are never dropped;
// typing, presence and error notices are best effort.
func (e *Event) droppable() bool {
	switch e.Kind {
	case EventNewMessage, EventAuthenticated:
		return false
	default:
		return true
	}
}
