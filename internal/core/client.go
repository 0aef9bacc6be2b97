package core

import (
	"context"
	"errors"
	"sync"
)

// ErrUnresolved is returned when authentication completed without producing
// a principal. The connection stays up but room-scoped events no-op.
var ErrUnresolved = errors.New("principal unresolved")

// Principal is the resolved identity of a connected party.
type Principal struct {
	UserID   string
	Username string
}

// Client is one live transport connection as seen by the core layer.
// Authentication runs in the background; the principal is a one-shot future
// that handlers await before any room-scoped effect.
type Client struct {
	ID     string
	Events chan *Event

	authDone chan struct{}
	authOnce sync.Once
	// principal is written once before authDone closes, read only after.
	principal *Principal
}

// NewClient constructs a client with an unresolved principal.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Events:   make(chan *Event, 16),
		authDone: make(chan struct{}),
	}
}

// Resolve completes authentication with the given principal. Only the first
// of Resolve/FailAuth takes effect.
func (c *Client) Resolve(p Principal) {
	c.authOnce.Do(func() {
		c.principal = &p
		close(c.authDone)
	})
}

// FailAuth completes authentication without a principal. The connection is
// permanently unresolved; waiters get ErrUnresolved.
func (c *Client) FailAuth() {
	c.authOnce.Do(func() {
		close(c.authDone)
	})
}

// Principal waits for the in-flight authentication outcome and returns the
// resolved identity. Blocks until auth completes or ctx is done; a
// connection whose auth never completes simply never processes room-scoped
// events.
func (c *Client) Principal(ctx context.Context) (Principal, error) {
	select {
	case <-c.authDone:
		if c.principal == nil {
			return Principal{}, ErrUnresolved
		}
		return *c.principal, nil
	case <-ctx.Done():
		return Principal{}, ctx.Err()
	}
}

// Resolved returns the principal without waiting, or false if authentication
// has not (successfully) completed yet.
func (c *Client) Resolved() (Principal, bool) {
	select {
	case <-c.authDone:
		if c.principal == nil {
			return Principal{}, false
		}
		return *c.principal, true
	default:
		return Principal{}, false
	}
}

// send delivers an event without blocking. Slow consumers drop.
func (c *Client) send(ev *Event) {
	select {
	case c.Events <- ev:
	default:
	}
}
