package domain

import (
	"chat-relay/errors"
	goerrors "errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("room", func(fl validator.FieldLevel) bool {
		return IsValidRoom(RoomID(fl.Field().String()))
	})
	return v
}

// Command is an inbound transport event.
type Command interface {
	Name() string
}

type RegisterUserCommand struct {
	Username string `json:"username" validate:"required"`
}

type JoinRoomCommand struct {
	Username string `json:"username"`
	Room     RoomID `json:"room" validate:"required,room"`
}

type LeaveRoomCommand struct {
	Username string `json:"username"`
	Room     RoomID `json:"room"`
}

type GroupMessageCommand struct {
	FromUser string `json:"from_user" validate:"required"`
	Room     RoomID `json:"room" validate:"required,room"`
	Message  string `json:"message" validate:"required"`
}

type TypingCommand struct {
	Username string `json:"username"`
	Room     RoomID `json:"room"`
	IsTyping bool   `json:"isTyping"`
}

type PrivateMessageCommand struct {
	FromUser string `json:"from_user" validate:"required"`
	ToUser   string `json:"to_user" validate:"required"`
	Message  string `json:"message" validate:"required"`
}

type TypingPrivateCommand struct {
	FromUser string `json:"from_user" validate:"required"`
	ToUser   string `json:"to_user" validate:"required"`
	IsTyping bool   `json:"isTyping"`
}

// PrivateHistoryCommand asks for the recent conversation between two users.
type PrivateHistoryCommand struct {
	FromUser string `json:"from_user" validate:"required"`
	ToUser   string `json:"to_user" validate:"required"`
}

// DisconnectCommand is emitted by the transport, never decoded from a frame.
type DisconnectCommand struct{}

func (RegisterUserCommand) Name() string   { return "registerUser" }
func (JoinRoomCommand) Name() string       { return "joinRoom" }
func (LeaveRoomCommand) Name() string      { return "leaveRoom" }
func (GroupMessageCommand) Name() string   { return "groupMessage" }
func (TypingCommand) Name() string         { return "typing" }
func (PrivateMessageCommand) Name() string { return "privateMessage" }
func (TypingPrivateCommand) Name() string  { return "typingPrivate" }
func (PrivateHistoryCommand) Name() string { return "privateHistory" }
func (DisconnectCommand) Name() string     { return "disconnect" }

// Validate checks the required fields of a command.
func Validate(cmd Command) error {
	if cmd == nil {
		return errors.ErrInvalidPayload
	}
	if _, ok := cmd.(DisconnectCommand); ok {
		return nil
	}
	if err := validate.Struct(cmd); err != nil {
		var fieldErrors validator.ValidationErrors
		if goerrors.As(err, &fieldErrors) && lo.ContainsBy(fieldErrors, func(fe validator.FieldError) bool {
			return fe.Tag() == "room"
		}) {
			return fmt.Errorf("%w: %s: %v", errors.ErrInvalidRoom, cmd.Name(), err)
		}
		return fmt.Errorf("%w: %s: %v", errors.ErrInvalidPayload, cmd.Name(), err)
	}
	return nil
}

// ValidateContent bounds a message body, counted in runes.
func ValidateContent(content string, maxLength int) error {
	if err := validate.Var(content, fmt.Sprintf("required,max=%d", maxLength)); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return nil
}
