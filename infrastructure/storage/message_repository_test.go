package storage

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu   sync.Mutex
	at   time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.at
	c.at = c.at.Add(c.step)
	return now
}

func openDB(t *testing.T, dir string) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	return db
}

func newRepository(t *testing.T, clock *fakeClock) *MessageRepository {
	t.Helper()
	db := openDB(t, t.TempDir())
	repository, err := NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = repository.Close()
		_ = db.Close()
	})
	if clock != nil {
		repository.WithClock(clock.Now)
	}
	return repository
}

func Test_Record_And_Get_Recent_Group_Messages(t *testing.T) {
	req := require.New(t)
	clock := &fakeClock{at: time.Now().UTC(), step: time.Minute}
	repository := newRepository(t, clock)

	// Given three messages posted in a room
	for _, author := range []string{"Alice", "Bob", "Clara"} {
		_, err := repository.AppendGroup(domain.RoomDevOps, author, "this message will self destruct in 5 seconds")
		req.NoError(err)
	}

	// When fetching the recent messages
	messages, err := repository.RecentGroup(domain.RoomDevOps, 50)
	req.NoError(err)

	// Then they come newest first
	req.Len(messages, 3)
	req.Equal("Clara", messages[0].From)
	req.Equal("Bob", messages[1].From)
	req.Equal("Alice", messages[2].From)
	req.True(messages[1].Before(messages[0]))
	req.True(messages[2].Before(messages[1]))
	for _, message := range messages {
		req.Equal(domain.RoomDevOps, message.Room)
	}
}

func Test_Append_Returns_The_Stored_Record(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t, nil)

	stored, err := repository.AppendGroup(domain.RoomSports, "Alice", "goal!")
	req.NoError(err)
	req.NotZero(stored.ID)
	req.False(stored.At.IsZero())

	messages, err := repository.RecentGroup(domain.RoomSports, 1)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal(stored.ID, messages[0].ID)
	req.Equal(stored.Seq, messages[0].Seq)
	req.True(stored.At.Equal(messages[0].At))
	req.Equal("goal!", messages[0].Content)
}

func Test_Recent_Group_Messages_Are_Bounded(t *testing.T) {
	req := require.New(t)
	clock := &fakeClock{at: time.Now().UTC(), step: time.Second}
	repository := newRepository(t, clock)

	for i := 1; i <= 60; i++ {
		_, err := repository.AppendGroup(domain.RoomCovid19, fmt.Sprintf("user_%d", i), fmt.Sprintf("Message %d", i))
		req.NoError(err)
	}

	messages, err := repository.RecentGroup(domain.RoomCovid19, 50)
	req.NoError(err)
	req.Len(messages, 50)
	req.Equal("user_60", messages[0].From)
	req.Equal("user_11", messages[49].From)

	empty, err := repository.RecentGroup(domain.RoomCovid19, 0)
	req.NoError(err)
	req.Empty(empty)
}

func Test_Rooms_Do_Not_Share_History(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t, nil)

	_, err := repository.AppendGroup(domain.RoomDevOps, "Alice", "in devops")
	req.NoError(err)
	_, err = repository.AppendGroup(domain.RoomNodeJS, "Bob", "in nodeJS")
	req.NoError(err)

	devops, err := repository.RecentGroup(domain.RoomDevOps, 50)
	req.NoError(err)
	req.Len(devops, 1)
	req.Equal("in devops", devops[0].Content)

	sports, err := repository.RecentGroup(domain.RoomSports, 50)
	req.NoError(err)
	req.Empty(sports)
}

func Test_Identical_Timestamps_Are_Ordered_By_Sequence(t *testing.T) {
	req := require.New(t)
	// Given a clock that never moves
	clock := &fakeClock{at: time.Now().UTC()}
	repository := newRepository(t, clock)

	for i := 1; i <= 5; i++ {
		_, err := repository.AppendGroup(domain.RoomSports, fmt.Sprintf("user_%d", i), "same instant")
		req.NoError(err)
	}

	messages, err := repository.RecentGroup(domain.RoomSports, 50)
	req.NoError(err)

	// Then insertion order still decides
	req.Len(messages, 5)
	for i, message := range messages {
		req.Equal(fmt.Sprintf("user_%d", 5-i), message.From)
	}
	for i := 1; i < len(messages); i++ {
		req.True(messages[i].At.Equal(messages[i-1].At))
		req.Less(messages[i].Seq, messages[i-1].Seq)
	}
}

func Test_Clock_Going_Backwards_Keeps_Call_Order(t *testing.T) {
	req := require.New(t)
	clock := &fakeClock{at: time.Now().UTC(), step: -time.Second}
	repository := newRepository(t, clock)

	first, err := repository.AppendGroup(domain.RoomDevOps, "Alice", "first")
	req.NoError(err)
	second, err := repository.AppendGroup(domain.RoomDevOps, "Bob", "second")
	req.NoError(err)

	req.False(second.At.Before(first.At))
	req.True(first.Before(second))

	messages, err := repository.RecentGroup(domain.RoomDevOps, 50)
	req.NoError(err)
	req.Equal([]string{"second", "first"}, []string{messages[0].Content, messages[1].Content})
}

func Test_Concurrent_Appends_Get_Distinct_Ordered_Records(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t, nil)

	var wg sync.WaitGroup
	for w := 0; w < 20; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, err := repository.AppendGroup(domain.RoomCloudComputing, fmt.Sprintf("user_%d", w), fmt.Sprintf("%d", i))
				if err != nil {
					t.Error(err)
				}
			}
		}(w)
	}
	wg.Wait()

	messages, err := repository.RecentGroup(domain.RoomCloudComputing, 500)
	req.NoError(err)
	req.Len(messages, 200)

	seen := make(map[uint64]struct{})
	for i, message := range messages {
		seen[message.Seq] = struct{}{}
		if i > 0 {
			req.True(message.Before(messages[i-1]), "index=%d", i)
		}
	}
	req.Len(seen, 200)
}

func Test_Concurrent_Appends_Across_Rooms_And_Pairs(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t, nil)

	// Given writers on every room and on distinct pairs at the same time
	var wg sync.WaitGroup
	for _, room := range domain.Rooms {
		wg.Add(2)
		go func(room domain.RoomID) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if _, err := repository.AppendGroup(room, "alice", fmt.Sprintf("%s %d", room, i)); err != nil {
					t.Error(err)
				}
			}
		}(room)
		go func(peer string) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if _, err := repository.AppendDirect("alice", peer, fmt.Sprintf("%s %d", peer, i)); err != nil {
					t.Error(err)
				}
			}
		}("peer-" + room.String())
	}
	wg.Wait()

	// Then every room and pair holds its own records in call order
	for _, room := range domain.Rooms {
		messages, err := repository.RecentGroup(room, 50)
		req.NoError(err)
		req.Len(messages, 20)
		for i, message := range messages {
			req.Equal(fmt.Sprintf("%s %d", room, 19-i), message.Content)
		}

		peer := "peer-" + room.String()
		direct, err := repository.RecentDirect(peer, "alice", 50)
		req.NoError(err)
		req.Len(direct, 20)
		for i, message := range direct {
			req.Equal(fmt.Sprintf("%s %d", peer, 19-i), message.Content)
		}
	}
}

func Test_Direct_Messages_Are_Queried_By_Unordered_Pair(t *testing.T) {
	req := require.New(t)
	clock := &fakeClock{at: time.Now().UTC(), step: time.Second}
	repository := newRepository(t, clock)

	_, err := repository.AppendDirect("alice", "bob", "hi bob")
	req.NoError(err)
	_, err = repository.AppendDirect("bob", "alice", "hi alice")
	req.NoError(err)
	_, err = repository.AppendDirect("alice", "carol", "hi carol")
	req.NoError(err)

	messages, err := repository.RecentDirect("bob", "alice", 50)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("hi alice", messages[0].Content)
	req.Equal("bob", messages[0].From)
	req.Equal("alice", messages[0].To)
	req.Equal("hi bob", messages[1].Content)

	same, err := repository.RecentDirect("alice", "bob", 1)
	req.NoError(err)
	req.Len(same, 1)
	req.Equal(messages[0].ID, same[0].ID)
}

func Test_Pair_Prefix_Cannot_Be_Forged(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t, nil)

	// "a:b" + "c" must not collide with "a" + "b:c"
	_, err := repository.AppendDirect("a:b", "c", "first pair")
	req.NoError(err)

	messages, err := repository.RecentDirect("a", "b:c", 50)
	req.NoError(err)
	req.Empty(messages)
}

func Test_Sequence_Survives_Restart(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	log := slog.Default()

	db := openDB(t, dir)
	repository, err := NewMessageRepository(db, log)
	req.NoError(err)
	before, err := repository.AppendGroup(domain.RoomDevOps, "Alice", "before restart")
	req.NoError(err)
	req.NoError(repository.Close())
	req.NoError(db.Close())

	db = openDB(t, dir)
	defer db.Close()
	repository, err = NewMessageRepository(db, log)
	req.NoError(err)
	defer repository.Close()

	after, err := repository.AppendGroup(domain.RoomDevOps, "Bob", "after restart")
	req.NoError(err)
	req.Greater(after.Seq, before.Seq)

	messages, err := repository.RecentGroup(domain.RoomDevOps, 50)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("after restart", messages[0].Content)
}

func Test_Read_Only_Store_Serves_History(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	log := slog.Default()

	db := openDB(t, dir)
	repository, err := NewMessageRepository(db, log)
	req.NoError(err)
	_, err = repository.AppendGroup(domain.RoomSports, "Alice", "goal")
	req.NoError(err)
	req.NoError(repository.Close())
	req.NoError(db.Close())

	readOnly, err := badger.Open(badger.DefaultOptions(dir).WithReadOnly(true).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer readOnly.Close()
	repository, err = NewMessageRepository(readOnly, log)
	req.NoError(err)
	defer repository.Close()

	messages, err := repository.RecentGroup(domain.RoomSports, 50)
	req.NoError(err)
	req.Len(messages, 1)
	_, err = repository.AppendGroup(domain.RoomSports, "Bob", "offside")
	req.ErrorIs(err, errors.ErrReadOnly)
}

func Test_Clock_Set_Back_Across_Restart_Keeps_Order(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	log := slog.Default()
	now := time.Now().UTC()

	// Given a record written at now
	db := openDB(t, dir)
	repository, err := NewMessageRepository(db, log)
	req.NoError(err)
	repository.WithClock(func() time.Time { return now })
	before, err := repository.AppendGroup(domain.RoomCovid19, "Alice", "before restart")
	req.NoError(err)
	_, err = repository.AppendDirect("Alice", "Bob", "unrelated")
	req.NoError(err)
	req.NoError(repository.Close())
	req.NoError(db.Close())

	// When the process restarts with a clock one hour behind
	db = openDB(t, dir)
	defer db.Close()
	repository, err = NewMessageRepository(db, log)
	req.NoError(err)
	defer repository.Close()
	repository.WithClock(func() time.Time { return now.Add(-time.Hour) })

	after, err := repository.AppendGroup(domain.RoomCovid19, "Bob", "after restart")
	req.NoError(err)

	// Then the new record still sorts after the existing history
	req.False(after.At.Before(before.At))
	messages, err := repository.RecentGroup(domain.RoomCovid19, 50)
	req.NoError(err)
	req.Equal([]string{"after restart", "before restart"}, []string{messages[0].Content, messages[1].Content})
}

func Test_Key_Timestamp(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC)
	parsed, ok := keyTimestamp(recordKey(pairPrefix("a", "b"), at, 42))
	require.True(t, ok)
	require.Equal(t, at.UnixNano(), parsed)

	_, ok = keyTimestamp([]byte("group:6:devops:"))
	require.False(t, ok)
}
