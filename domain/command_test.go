package domain

import (
	"chat-relay/errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		wantErr error
	}{
		{name: "register with username", cmd: RegisterUserCommand{Username: "alice"}},
		{name: "register without username", cmd: RegisterUserCommand{}, wantErr: errors.ErrInvalidPayload},
		{name: "join a known room", cmd: JoinRoomCommand{Username: "alice", Room: RoomDevOps}},
		{name: "join an unknown room", cmd: JoinRoomCommand{Username: "alice", Room: "cooking"}, wantErr: errors.ErrInvalidRoom},
		{name: "join without room", cmd: JoinRoomCommand{Username: "alice"}, wantErr: errors.ErrInvalidPayload},
		{name: "leave without room", cmd: LeaveRoomCommand{}},
		{name: "group message", cmd: GroupMessageCommand{FromUser: "alice", Room: RoomSports, Message: "hi"}},
		{name: "group message without body", cmd: GroupMessageCommand{FromUser: "alice", Room: RoomSports}, wantErr: errors.ErrInvalidPayload},
		{name: "group message to unknown room", cmd: GroupMessageCommand{FromUser: "alice", Room: "x", Message: "hi"}, wantErr: errors.ErrInvalidRoom},
		{name: "typing without room", cmd: TypingCommand{Username: "alice", IsTyping: true}},
		{name: "private message", cmd: PrivateMessageCommand{FromUser: "alice", ToUser: "bob", Message: "hi"}},
		{name: "private message without recipient", cmd: PrivateMessageCommand{FromUser: "alice", Message: "hi"}, wantErr: errors.ErrInvalidPayload},
		{name: "private typing without sender", cmd: TypingPrivateCommand{ToUser: "bob"}, wantErr: errors.ErrInvalidPayload},
		{name: "private history", cmd: PrivateHistoryCommand{FromUser: "alice", ToUser: "bob"}},
		{name: "disconnect", cmd: DisconnectCommand{}},
		{name: "nil command", cmd: nil, wantErr: errors.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := Validate(tt.cmd)
			if tt.wantErr != nil {
				req.ErrorIs(err, tt.wantErr)
				return
			}
			req.NoError(err)
		})
	}
}

func TestValidateContent(t *testing.T) {
	req := require.New(t)

	req.NoError(ValidateContent("hello", 5))
	// Runes are counted, not bytes
	req.NoError(ValidateContent("été!!", 5))
	req.ErrorIs(ValidateContent("", 5), errors.ErrInvalidPayload)
	req.ErrorIs(ValidateContent(strings.Repeat("a", 6), 5), errors.ErrInvalidPayload)
}
