package ws

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type groupMessageDTO struct {
	ID       string    `json:"id"`
	FromUser string    `json:"from_user"`
	Room     string    `json:"room"`
	Message  string    `json:"message"`
	DateSent time.Time `json:"date_sent"`
	Seq      uint64    `json:"seq"`
}

type directMessageDTO struct {
	ID       string    `json:"id"`
	FromUser string    `json:"from_user"`
	ToUser   string    `json:"to_user"`
	Message  string    `json:"message"`
	DateSent time.Time `json:"date_sent"`
	Seq      uint64    `json:"seq"`
}

type typingDTO struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type typingPrivateDTO struct {
	FromUser string `json:"from_user"`
	IsTyping bool   `json:"isTyping"`
}

// DecodeCommand turns an inbound frame into a command.
// The disconnect command is never decoded, only the transport emits it.
func DecodeCommand(frame []byte) (domain.Command, error) {
	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	switch envelope.Event {
	case "registerUser":
		return decodeData[domain.RegisterUserCommand](envelope)
	case "joinRoom":
		return decodeData[domain.JoinRoomCommand](envelope)
	case "leaveRoom":
		return decodeData[domain.LeaveRoomCommand](envelope)
	case "groupMessage":
		return decodeData[domain.GroupMessageCommand](envelope)
	case "typing":
		return decodeData[domain.TypingCommand](envelope)
	case "privateMessage":
		return decodeData[domain.PrivateMessageCommand](envelope)
	case "typingPrivate":
		return decodeData[domain.TypingPrivateCommand](envelope)
	case "privateHistory":
		return decodeData[domain.PrivateHistoryCommand](envelope)
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, envelope.Event)
	}
}

func decodeData[T domain.Command](envelope Envelope) (domain.Command, error) {
	var cmd T
	if len(envelope.Data) == 0 {
		return nil, fmt.Errorf("%w: %s without data", errors.ErrInvalidPayload, envelope.Event)
	}
	if err := json.Unmarshal(envelope.Data, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrInvalidPayload, envelope.Event, err)
	}
	return cmd, nil
}

// EncodeEvent renders an outbound event as a frame.
func EncodeEvent(evt event.DomainEvent) ([]byte, error) {
	var data any
	switch e := evt.(type) {
	case event.RoomHistory:
		data = lo.Map(e.Messages, func(m domain.GroupMessage, _ int) groupMessageDTO { return toGroupMessageDTO(m) })
	case event.SystemNotice:
		data = e.Text
	case event.GroupMessagePosted:
		data = toGroupMessageDTO(e.Message)
	case event.UserTyping:
		data = typingDTO{Username: e.Username, IsTyping: e.IsTyping}
	case event.PrivateMessageSent:
		data = toDirectMessageDTO(e.Message)
	case event.PrivateTyping:
		data = typingPrivateDTO{FromUser: e.FromUser, IsTyping: e.IsTyping}
	case event.PrivateHistory:
		data = lo.Map(e.Messages, func(m domain.DirectMessage, _ int) directMessageDTO { return toDirectMessageDTO(m) })
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrUnknownEvent, evt)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: evt.Name(), Data: raw})
}

func toGroupMessageDTO(m domain.GroupMessage) groupMessageDTO {
	return groupMessageDTO{
		ID:       m.ID.String(),
		FromUser: m.From,
		Room:     m.Room.String(),
		Message:  m.Content,
		DateSent: m.At,
		Seq:      m.Seq,
	}
}

func toDirectMessageDTO(m domain.DirectMessage) directMessageDTO {
	return directMessageDTO{
		ID:       m.ID.String(),
		FromUser: m.From,
		ToUser:   m.To,
		Message:  m.Content,
		DateSent: m.At,
		Seq:      m.Seq,
	}
}
