// Package domain contains core concepts of the chat system.
// This file defines the persisted message records.
// Records are immutable once the store has assigned their timestamp.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// GroupMessage is a message posted to a room.
type GroupMessage struct {
	ID      uuid.UUID
	Room    RoomID
	From    string
	Content string
	At      time.Time // server assigned
	Seq     uint64    // tie-breaker for identical timestamps
}

// DirectMessage is a one-to-one message between two users.
type DirectMessage struct {
	ID      uuid.UUID
	From    string
	To      string
	Content string
	At      time.Time
	Seq     uint64
}

// Before reports whether m was recorded before other.
func (m GroupMessage) Before(other GroupMessage) bool {
	if m.At.Equal(other.At) {
		return m.Seq < other.Seq
	}
	return m.At.Before(other.At)
}

func (m DirectMessage) Before(other DirectMessage) bool {
	if m.At.Equal(other.At) {
		return m.Seq < other.Seq
	}
	return m.At.Before(other.At)
}
