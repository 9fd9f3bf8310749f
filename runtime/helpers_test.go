package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/storage"
	"chat-relay/runtime/workers"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// recordingSink keeps every event it accepts.
type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
	err    error
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Events() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.DomainEvent(nil), s.events...)
}

func (s *recordingSink) Names() []string {
	var names []string
	for _, e := range s.Events() {
		names = append(names, e.Name())
	}
	return names
}

func (s *recordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func testSettings() Settings {
	return Settings{
		HistoryLimit:     50,
		MaxContentLength: 2000,
		SinkTimeout:      50 * time.Millisecond,
	}
}

func newBadgerStore(t *testing.T) (*storage.MessageRepository, *storage.UserRepository) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	store, err := storage.NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
		_ = db.Close()
	})
	return store, storage.NewUserRepository(db)
}

func newTestHub(t *testing.T) (*Hub, *storage.MessageRepository) {
	t.Helper()
	store, users := newBadgerStore(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	hub := NewHub(log, workers.NewSupervisor(log, time.Millisecond), store, users, nil, testSettings())
	return hub, store
}

// connect opens a session, registers username and joins room when they are not empty.
func connect(t *testing.T, hub *Hub, username string, room domain.RoomID) (*SessionHandler, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	session := hub.NewSession(sink)
	ctx := context.Background()
	if username != "" {
		require.NoError(t, session.Handle(ctx, domain.RegisterUserCommand{Username: username}))
	}
	if room != "" {
		require.NoError(t, session.Handle(ctx, domain.JoinRoomCommand{Username: username, Room: room}))
	}
	return session, sink
}
