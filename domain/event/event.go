package event

import "chat-relay/domain"

// DomainEvent is an outbound event delivered to one or more connections.
type DomainEvent interface {
	Name() string
}

// RoomHistory is the chronological backlog sent to a joining connection.
type RoomHistory struct {
	Room     domain.RoomID
	Messages []domain.GroupMessage
}

// SystemNotice is a room-wide informational text.
type SystemNotice struct {
	Room domain.RoomID
	Text string
}

type GroupMessagePosted struct {
	Message domain.GroupMessage
}

// UserTyping is ephemeral, never persisted.
type UserTyping struct {
	Room     domain.RoomID
	Username string
	IsTyping bool
}

type PrivateMessageSent struct {
	Message domain.DirectMessage
}

type PrivateTyping struct {
	FromUser string
	IsTyping bool
}

type PrivateHistory struct {
	Messages []domain.DirectMessage
}

func (RoomHistory) Name() string        { return "roomHistory" }
func (SystemNotice) Name() string       { return "system" }
func (GroupMessagePosted) Name() string { return "groupMessage" }
func (UserTyping) Name() string         { return "typing" }
func (PrivateMessageSent) Name() string { return "privateMessage" }
func (PrivateTyping) Name() string      { return "typingPrivate" }
func (PrivateHistory) Name() string     { return "privateHistory" }
