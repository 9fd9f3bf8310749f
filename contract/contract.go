//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the outbound side of one connection.
// Consume must not block longer than ctx allows.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// MessageStore durably records messages and assigns their timestamp.
// Recent reads return at most limit records, newest first.
type MessageStore interface {
	AppendGroup(room domain.RoomID, sender, text string) (domain.GroupMessage, error)
	RecentGroup(room domain.RoomID, limit int) ([]domain.GroupMessage, error)
	AppendDirect(sender, recipient, text string) (domain.DirectMessage, error)
	RecentDirect(userA, userB string, limit int) ([]domain.DirectMessage, error)
}

// UserDirectory validates that a username exists.
type UserDirectory interface {
	Exists(username string) (bool, error)
}

// Moderator rewrites a message body before it is persisted.
type Moderator interface {
	Censor(text string) (string, []string)
}
