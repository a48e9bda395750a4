package core

import "sync"

// Identity is the authenticated user bound to a connection. It is set once
// by the gateway and never changes for the connection's lifetime.
type Identity struct {
	UserID   int64
	Username string
}

// Client is one live connection as seen by the core layer. A user may hold
// several clients at once; presence deduplicates them by user id.
type Client struct {
	ID       string
	Identity Identity
	Commands chan *Command
	Events   chan *Event

	closeOnce sync.Once
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, userID int64, username string) *Client {
	return &Client{
		ID:       id,
		Identity: Identity{UserID: userID, Username: username},
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 32),
	}
}

// Close shuts the command channel. Safe to call more than once; the
// transport calls it when the connection is torn down.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.Commands)
	})
}
