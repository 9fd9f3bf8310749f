package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrInvalidConfig    = fmt.Errorf("invalid configuration")
	ErrInvalidRoom      = fmt.Errorf("invalid room")
	ErrInvalidPayload   = fmt.Errorf("invalid payload")
	ErrUnknownEvent     = fmt.Errorf("unknown event")
	ErrUnknownUser      = fmt.Errorf("unknown user")
	ErrSenderMismatch   = fmt.Errorf("sender does not match the registered username")
	ErrConnectionClosed = fmt.Errorf("connection closed")
	ErrSinkFull         = fmt.Errorf("connection buffer full")
	ErrCorruptedRecord  = fmt.Errorf("corrupted record")
	ErrUserNotFound     = fmt.Errorf("user not found")
	ErrNotRegistered    = fmt.Errorf("connection has no registered username")
	ErrNotInRoom        = fmt.Errorf("connection is not in a room")
	ErrReadOnly         = fmt.Errorf("store opened read-only")
)
