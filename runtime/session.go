package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

// SessionHandler is the state machine of one connection:
// Anonymous -> Identified (registerUser) -> InRoom (joinRoom) -> Closed (disconnect).
//
// Handle never surfaces errors to the peer. The returned error only says why an
// event was dropped, the transport logs it and moves on.
type SessionHandler struct {
	hub  *Hub
	conn *Connection
	log  *slog.Logger
	mu   sync.Mutex
}

func (s *SessionHandler) Connection() *Connection {
	return s.conn
}

// Handle applies one inbound command. Commands of a session are applied one at a time.
func (s *SessionHandler) Handle(ctx context.Context, cmd domain.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := cmd.(domain.DisconnectCommand); ok {
		s.disconnect(ctx)
		return nil
	}
	if s.conn.Closed() {
		return errors.ErrConnectionClosed
	}
	if err := domain.Validate(cmd); err != nil {
		s.log.Debug("Malformed event dropped", "error", err)
		return err
	}

	var err error
	switch c := cmd.(type) {
	case domain.RegisterUserCommand:
		err = s.registerUser(c)
	case domain.JoinRoomCommand:
		err = s.joinRoom(ctx, c)
	case domain.LeaveRoomCommand:
		err = s.leaveRoom(ctx, c)
	case domain.GroupMessageCommand:
		err = s.groupMessage(ctx, c)
	case domain.TypingCommand:
		err = s.typing(ctx, c)
	case domain.PrivateMessageCommand:
		err = s.privateMessage(ctx, c)
	case domain.TypingPrivateCommand:
		err = s.typingPrivate(ctx, c)
	case domain.PrivateHistoryCommand:
		err = s.privateHistory(ctx, c)
	default:
		err = fmt.Errorf("%w: %s", errors.ErrUnknownEvent, cmd.Name())
	}
	if err != nil {
		s.log.Debug("Event dropped", "event", cmd.Name(), "error", err)
	}
	return err
}

func (s *SessionHandler) registerUser(c domain.RegisterUserCommand) error {
	if s.hub.strictUsers {
		exists, err := s.hub.users.Exists(c.Username)
		if err != nil {
			s.log.Error("User directory unavailable", "username", c.Username, "error", err)
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", errors.ErrUnknownUser, c.Username)
		}
	}
	s.hub.presence.Register(c.Username, s.conn)
	s.log = s.hub.log.With("conn_id", s.conn.ID, "username", c.Username)
	s.log.Info("User registered")
	return nil
}

func (s *SessionHandler) joinRoom(ctx context.Context, c domain.JoinRoomCommand) error {
	username, err := s.sender(c.Username)
	if err != nil {
		return err
	}
	previous, ok := s.hub.rooms.Join(s.conn, c.Room)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrInvalidRoom, c.Room)
	}
	if previous != "" && previous != c.Room {
		s.hub.broadcaster.ToRoom(ctx, previous, leftNotice(username, previous), nil)
	}

	// History goes to the joiner before the notice so that it renders first.
	messages, err := s.hub.store.RecentGroup(c.Room, s.hub.historyLimit)
	if err != nil {
		s.log.Error("History replay failed", "room", c.Room, "error", err)
	} else {
		history := event.RoomHistory{Room: c.Room, Messages: lo.Reverse(messages)}
		_ = s.hub.broadcaster.ToConnection(ctx, s.conn, history)
	}

	s.hub.broadcaster.ToRoom(ctx, c.Room, event.SystemNotice{
		Room: c.Room,
		Text: fmt.Sprintf("%s joined %s", username, c.Room),
	}, nil)
	s.log.Info("Room joined", "room", c.Room, "history", len(messages))
	return nil
}

func (s *SessionHandler) leaveRoom(ctx context.Context, c domain.LeaveRoomCommand) error {
	username, err := s.sender(c.Username)
	if err != nil {
		return err
	}
	current := s.conn.Room()
	if current == "" {
		return errors.ErrNotInRoom
	}
	if c.Room != "" && c.Room != current {
		return fmt.Errorf("%w: not in %s", errors.ErrInvalidRoom, c.Room)
	}
	room, ok := s.hub.rooms.Leave(s.conn)
	if !ok {
		return errors.ErrNotInRoom
	}
	s.hub.broadcaster.ToRoom(ctx, room, leftNotice(username, room), nil)
	s.log.Info("Room left", "room", room)
	return nil
}

func (s *SessionHandler) groupMessage(ctx context.Context, c domain.GroupMessageCommand) error {
	username, err := s.sender(c.FromUser)
	if err != nil {
		return err
	}
	content, err := s.hub.prepareContent(c.Message)
	if err != nil {
		return err
	}
	message, err := s.hub.store.AppendGroup(c.Room, username, content)
	if err != nil {
		s.log.Error("Group message not persisted, dropped", "room", c.Room, "error", err)
		return err
	}
	s.hub.broadcaster.ToRoom(ctx, c.Room, event.GroupMessagePosted{Message: message}, nil)
	return nil
}

func (s *SessionHandler) typing(ctx context.Context, c domain.TypingCommand) error {
	username, err := s.sender(c.Username)
	if err != nil {
		return err
	}
	room := s.conn.Room()
	if room == "" {
		return errors.ErrNotInRoom
	}
	if c.Room != "" && c.Room != room {
		return fmt.Errorf("%w: not in %s", errors.ErrInvalidRoom, c.Room)
	}
	s.hub.broadcaster.ToRoom(ctx, room, event.UserTyping{
		Room:     room,
		Username: username,
		IsTyping: c.IsTyping,
	}, s.conn)
	return nil
}

func (s *SessionHandler) privateMessage(ctx context.Context, c domain.PrivateMessageCommand) error {
	username, err := s.sender(c.FromUser)
	if err != nil {
		return err
	}
	content, err := s.hub.prepareContent(c.Message)
	if err != nil {
		return err
	}
	message, err := s.hub.store.AppendDirect(username, c.ToUser, content)
	if err != nil {
		s.log.Error("Private message not persisted, dropped", "to_user", c.ToUser, "error", err)
		return err
	}

	sent := event.PrivateMessageSent{Message: message}
	_ = s.hub.broadcaster.ToConnection(ctx, s.conn, sent)
	if recipient, ok := s.hub.presence.Lookup(c.ToUser); ok && recipient != s.conn {
		_ = s.hub.broadcaster.ToConnection(ctx, recipient, sent)
	}
	return nil
}

func (s *SessionHandler) typingPrivate(ctx context.Context, c domain.TypingPrivateCommand) error {
	username, err := s.sender(c.FromUser)
	if err != nil {
		return err
	}
	recipient, ok := s.hub.presence.Lookup(c.ToUser)
	if !ok || recipient == s.conn {
		return nil
	}
	_ = s.hub.broadcaster.ToConnection(ctx, recipient, event.PrivateTyping{FromUser: username, IsTyping: c.IsTyping})
	return nil
}

func (s *SessionHandler) privateHistory(ctx context.Context, c domain.PrivateHistoryCommand) error {
	username, err := s.sender(c.FromUser)
	if err != nil {
		return err
	}
	messages, err := s.hub.store.RecentDirect(username, c.ToUser, s.hub.historyLimit)
	if err != nil {
		s.log.Error("Private history failed", "to_user", c.ToUser, "error", err)
		return err
	}
	return s.hub.broadcaster.ToConnection(ctx, s.conn, event.PrivateHistory{Messages: lo.Reverse(messages)})
}

// disconnect is idempotent.
func (s *SessionHandler) disconnect(ctx context.Context) {
	if !s.conn.markClosed() {
		return
	}
	s.hub.presence.Unregister(s.conn)
	if room, ok := s.hub.rooms.Leave(s.conn); ok {
		s.hub.broadcaster.ToRoom(ctx, room, leftNotice(s.displayName(), room), nil)
	}
	s.log.Info("Connection closed")
}

// sender resolves the username bound to the connection.
// A username carried by the payload must be the bound one.
func (s *SessionHandler) sender(claimed string) (string, error) {
	username := s.conn.Username()
	if username == "" {
		return "", errors.ErrNotRegistered
	}
	if claimed != "" && claimed != username {
		return "", fmt.Errorf("%w: %s", errors.ErrSenderMismatch, claimed)
	}
	return username, nil
}

func (s *SessionHandler) displayName() string {
	if username := s.conn.Username(); username != "" {
		return username
	}
	return "User"
}

func leftNotice(username string, room domain.RoomID) event.SystemNotice {
	return event.SystemNotice{Room: room, Text: fmt.Sprintf("%s left %s", username, room)}
}
