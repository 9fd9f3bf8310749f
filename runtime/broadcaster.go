package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"time"
)

// Broadcaster delivers events to the members of a room or to a single connection.
//
// Delivery is best effort: every connection gets at most sinkTimeout to accept the
// event and a failed delivery never stops the others. There is no retry and no ack.
type Broadcaster struct {
	log         *slog.Logger
	rooms       *RoomTable
	sinkTimeout time.Duration
}

func NewBroadcaster(log *slog.Logger, rooms *RoomTable, sinkTimeout time.Duration) *Broadcaster {
	return &Broadcaster{log: log, rooms: rooms, sinkTimeout: sinkTimeout}
}

// ToRoom delivers evt to the members of room at the time of the call, except exclude.
// It returns the number of successful deliveries.
func (b *Broadcaster) ToRoom(ctx context.Context, room domain.RoomID, evt event.DomainEvent, exclude *Connection) int {
	delivered := 0
	for _, conn := range b.rooms.MembersOf(room) {
		if conn == exclude {
			continue
		}
		if err := b.ToConnection(ctx, conn, evt); err == nil {
			delivered++
		}
	}
	return delivered
}

// ToConnection delivers evt to one connection.
func (b *Broadcaster) ToConnection(ctx context.Context, conn *Connection, evt event.DomainEvent) error {
	ctx, cancel := context.WithTimeout(ctx, b.sinkTimeout)
	defer cancel()

	if err := conn.sink.Consume(ctx, evt); err != nil {
		b.log.Debug("Delivery skipped",
			"conn_id", conn.ID,
			"username", conn.Username(),
			"event", evt.Name(),
			"error", err)
		return err
	}
	return nil
}
