// Package runtime holds the live state of the chat: who is online, who sits in which room,
// and the per-connection state machine that drives them.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"sync"

	"github.com/google/uuid"
)

// Connection is the server side of one live transport session.
// The transport owns it; registry and rooms only keep references.
type Connection struct {
	ID   uuid.UUID
	sink contract.EventSink

	mu       sync.Mutex
	username string
	room     domain.RoomID
	closed   bool
}

func NewConnection(sink contract.EventSink) *Connection {
	return &Connection{ID: uuid.New(), sink: sink}
}

func (c *Connection) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

func (c *Connection) Room() domain.RoomID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// bind records the username and returns the one it replaces.
func (c *Connection) bind(username string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous := c.username
	c.username = username
	return previous
}

// swapRoom sets the current room and returns the previous one.
func (c *Connection) swapRoom(room domain.RoomID) domain.RoomID {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous := c.room
	c.room = room
	return previous
}

// markClosed reports false when the connection was already closed.
func (c *Connection) markClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	return true
}
