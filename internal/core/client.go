package core

import (
	"context"
	"errors"
	"sync"
)

var errOutboxClosed = errors.New("outbox closed")

// Client is a live connection as seen by the realtime core. The connection
// handler owns the client; the session registry only holds references to it
// for fan-out. Identity is empty until the connection authenticates.
type Client struct {
	ConnID string

	mu       sync.RWMutex
	identity Identity
	authed   bool

	// chats is the joined-subscription set. It is touched only by the
	// connection's own handler goroutine.
	chats map[string]struct{}

	out *outbox
}

// NewClient constructs a client with a bounded outbox of the given capacity.
func NewClient(connID string, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Client{
		ConnID: connID,
		chats:  make(map[string]struct{}),
		out:    newOutbox(queueSize),
	}
}

// Identity returns the bound identity and whether the client is authenticated.
func (c *Client) Identity() (Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity, c.authed
}

// Authenticated reports whether an identity is bound to this connection.
func (c *Client) Authenticated() bool {
	_, ok := c.Identity()
	return ok
}

func (c *Client) bind(id Identity) {
	c.mu.Lock()
	c.identity = id
	c.authed = true
	c.mu.Unlock()
}

// Send queues an event for delivery. Delivery is best-effort and never
// blocks: under backpressure droppable events are discarded, and a client
// whose outbox cannot make room for a non-droppable event is closed with
// a slow_consumer reason.
func (c *Client) Send(ev *Event) {
	if err := c.out.push(ev); err != nil {
		c.Close(coreError(ErrCodeSlowConsumer, "outbound queue overflow"))
	}
}

// Next blocks until an event is available, the client is closed, or the
// context is cancelled. The transport write loop drains events through it.
func (c *Client) Next(ctx context.Context) (*Event, error) {
	return c.out.pop(ctx)
}

// Close shuts the outbox; subsequent sends are ignored. The first reason wins.
func (c *Client) Close(reason *CoreError) {
	c.out.close(reason)
}

// Done is closed when the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.out.doneCh
}

// CloseReason returns the reason the client was closed, if any.
func (c *Client) CloseReason() *CoreError {
	return c.out.closeReason()
}

// outbox is a bounded event queue with an eviction policy: when full, the
// oldest droppable event is evicted to make room. If nothing can be evicted,
// a droppable incoming event is discarded and a non-droppable one reports
// overflow so the caller can close the connection.
type outbox struct {
	mu     sync.Mutex
	buf    []*Event
	limit  int
	closed bool
	reason *CoreError

	notify chan struct{}
	doneCh chan struct{}
}

var errOutboxFull = errors.New("outbox full")

func newOutbox(limit int) *outbox {
	return &outbox{
		buf:    make([]*Event, 0, limit),
		limit:  limit,
		notify: make(chan struct{}, 1),
		doneCh: make(chan struct{}),
	}
}

func (o *outbox) push(ev *Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}

	if len(o.buf) >= o.limit {
		evicted := false
		for i, queued := range o.buf {
			if queued.droppable() {
				o.buf = append(o.buf[:i], o.buf[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			if ev.droppable() {
				return nil
			}
			return errOutboxFull
		}
	}

	o.buf = append(o.buf, ev)
	select {
	case o.notify <- struct{}{}:
	default:
	}
	return nil
}

func (o *outbox) pop(ctx context.Context) (*Event, error) {
	for {
		o.mu.Lock()
		if len(o.buf) > 0 {
			ev := o.buf[0]
			o.buf = o.buf[1:]
			o.mu.Unlock()
			return ev, nil
		}
		if o.closed {
			o.mu.Unlock()
			return nil, errOutboxClosed
		}
		o.mu.Unlock()

		select {
		case <-o.notify:
		case <-o.doneCh:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (o *outbox) close(reason *CoreError) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.reason = reason
	close(o.doneCh)
}

func (o *outbox) closeReason() *CoreError {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reason
}
