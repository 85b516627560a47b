package core

import "time"

// Identity is an authenticated user as seen by the realtime core.
type Identity struct {
	ID   string
	Name string
}

// Message is the envelope fanned out to live connections. Seq is the
// persistence-assigned order; envelopes reach every connection of a chat
// in ascending Seq order.
type Message struct {
	Seq        int64
	ID         string
	ChatID     string
	SenderID   string
	SenderName string
	Content    string
	Type       string
	ReplyTo    *string
	CreatedAt  time.Time
}
