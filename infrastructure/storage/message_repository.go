package storage

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

var _ contract.MessageStore = (*MessageRepository)(nil)

const (
	sequenceKey       = "seq:message"
	sequenceBandwidth = 1000
)

// MessageRepository stores group and direct messages in BadgerDB.
// Keys are "{prefix}{timestamp_padded}:{seq_padded}" so a prefix scan
// yields records in send order and a reverse scan the newest first.
type MessageRepository struct {
	db       *badger.DB
	log      *slog.Logger
	sequence *badger.Sequence
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewMessageRepository leases the message sequence. On a read-only DB the
// repository can only be queried and every append fails with ErrReadOnly.
func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	if db.Opts().ReadOnly {
		return &MessageRepository{db: db, log: log, now: time.Now}, nil
	}
	last, err := newestTimestamp(db)
	if err != nil {
		return nil, fmt.Errorf("newest message timestamp: %w", err)
	}
	sequence, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, log: log, sequence: sequence, now: time.Now, last: last}, nil
}

// WithClock replaces the time source, mostly for tests.
func (m *MessageRepository) WithClock(now func() time.Time) *MessageRepository {
	m.now = now
	return m
}

// Close releases the leased sequence range. The DB stays open.
func (m *MessageRepository) Close() error {
	if m.sequence == nil {
		return nil
	}
	return m.sequence.Release()
}

// AppendGroup persists a room message and returns the stored record.
func (m *MessageRepository) AppendGroup(room domain.RoomID, sender, text string) (domain.GroupMessage, error) {
	at, seq, err := m.stamp()
	if err != nil {
		return domain.GroupMessage{}, err
	}
	message := domain.GroupMessage{
		ID:      uuid.New(),
		Room:    room,
		From:    sender,
		Content: text,
		At:      at,
		Seq:     seq,
	}
	key := recordKey(groupPrefix(room), at, seq)
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, encodeGroupMessage(message))
	})
	if err != nil {
		return domain.GroupMessage{}, fmt.Errorf("store group message: %w", err)
	}
	return message, nil
}

// AppendDirect persists a one-to-one message and returns the stored record.
func (m *MessageRepository) AppendDirect(sender, recipient, text string) (domain.DirectMessage, error) {
	at, seq, err := m.stamp()
	if err != nil {
		return domain.DirectMessage{}, err
	}
	message := domain.DirectMessage{
		ID:      uuid.New(),
		From:    sender,
		To:      recipient,
		Content: text,
		At:      at,
		Seq:     seq,
	}
	key := recordKey(pairPrefix(sender, recipient), at, seq)
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, encodeDirectMessage(message))
	})
	if err != nil {
		return domain.DirectMessage{}, fmt.Errorf("store direct message: %w", err)
	}
	return message, nil
}

// RecentGroup returns the latest messages of a room, newest first.
func (m *MessageRepository) RecentGroup(room domain.RoomID, limit int) ([]domain.GroupMessage, error) {
	var messages []domain.GroupMessage
	err := m.scanNewest(groupPrefix(room), limit, func(value []byte) error {
		message, err := decodeGroupMessage(value)
		if err != nil {
			return err
		}
		messages = append(messages, message)
		return nil
	})
	return messages, err
}

// RecentDirect returns the latest messages exchanged between two users in
// either direction, newest first.
func (m *MessageRepository) RecentDirect(userA, userB string, limit int) ([]domain.DirectMessage, error) {
	var messages []domain.DirectMessage
	err := m.scanNewest(pairPrefix(userA, userB), limit, func(value []byte) error {
		message, err := decodeDirectMessage(value)
		if err != nil {
			return err
		}
		messages = append(messages, message)
		return nil
	})
	return messages, err
}

// stamp assigns a non-decreasing timestamp and a strictly increasing sequence.
// Only stamping is serialised: the writes themselves run concurrently, so a
// reader may briefly see a record before an older one of the same room lands.
func (m *MessageRepository) stamp() (time.Time, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	at := m.now().UTC().Round(0)
	if at.Before(m.last) {
		m.log.Debug("Clock went backwards, reusing last timestamp", "last", m.last, "now", at)
		at = m.last
	}
	if m.sequence == nil {
		return time.Time{}, 0, errors.ErrReadOnly
	}
	m.last = at
	seq, err := m.sequence.Next()
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("next message sequence: %w", err)
	}
	return at, seq, nil
}

// newestTimestamp returns the latest timestamp already stored, so that a clock
// set back across a restart cannot order new records before the existing ones.
func newestTimestamp(db *badger.DB) (time.Time, error) {
	var newest int64
	err := db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for _, prefix := range [][]byte{[]byte("group:"), []byte("dm:")} {
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if at, ok := keyTimestamp(it.Item().Key()); ok && at > newest {
					newest = at
				}
			}
		}
		return nil
	})
	if err != nil || newest == 0 {
		return time.Time{}, err
	}
	return time.Unix(0, newest).UTC(), nil
}

// keyTimestamp reads the {ts19} part of a "{prefix}{ts19}:{seq20}" key.
func keyTimestamp(key []byte) (int64, bool) {
	const suffix = 19 + 1 + 20
	if len(key) < suffix {
		return 0, false
	}
	at, err := strconv.ParseInt(string(key[len(key)-suffix:len(key)-suffix+19]), 10, 64)
	return at, err == nil
}

func (m *MessageRepository) scanNewest(prefix []byte, limit int, fn func(value []byte) error) error {
	if limit <= 0 {
		return nil
	}
	return m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		// Reverse iteration starts from the greatest key of the prefix
		seekKey := append(append([]byte{}, prefix...), 0xFF)
		count := 0
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if count == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", limit))
				break
			}
			if err := it.Item().Value(fn); err != nil {
				return err
			}
			count++
		}
		return nil
	})
}

func groupPrefix(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("group:%d:%s:", len(room), room))
}

// pairPrefix is independent of the direction of the conversation.
// Lengths are part of the prefix so that no username can forge another pair.
func pairPrefix(userA, userB string) []byte {
	if userB < userA {
		userA, userB = userB, userA
	}
	return []byte(fmt.Sprintf("dm:%d:%s:%d:%s:", len(userA), userA, len(userB), userB))
}

func recordKey(prefix []byte, at time.Time, seq uint64) []byte {
	return append(append([]byte{}, prefix...), fmt.Sprintf("%019d:%020d", at.UnixNano(), seq)...)
}
