package sink

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"sync"
)

var _ contract.EventSink = (*ConnectionSink)(nil)

// ConnectionSink buffers the events addressed to one connection.
// The transport drains Events and calls Close once the peer is gone.
type ConnectionSink struct {
	events    chan event.DomainEvent
	done      chan struct{}
	closeOnce sync.Once
}

func NewConnectionSink(bufferSize int) *ConnectionSink {
	return &ConnectionSink{
		events: make(chan event.DomainEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

// Consume is called by the broadcaster.
// It waits for room in the buffer until ctx expires, so a slow reader only ever costs one sink timeout.
func (s *ConnectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-s.done:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case s.events <- e:
		return nil
	case <-s.done:
		return errors.ErrConnectionClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errors.ErrSinkFull, ctx.Err())
	}
}

func (s *ConnectionSink) Events() <-chan event.DomainEvent {
	return s.events
}

func (s *ConnectionSink) Done() <-chan struct{} {
	return s.done
}

// Close is idempotent. Events already buffered stay readable.
func (s *ConnectionSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Len and Cap expose the buffer usage for the stats worker.
func (s *ConnectionSink) Len() int { return len(s.events) }

func (s *ConnectionSink) Cap() int { return cap(s.events) }
