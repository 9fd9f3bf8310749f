package runtime

import (
	"bytes"
	"chat-relay/domain"
	"chat-relay/runtime/workers"
	"chat-relay/sink"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestHub_Saturation(t *testing.T) {
	req := require.New(t)
	hub, _ := newTestHub(t)
	ctx := context.Background()

	// A buffer of one is full after the history replay
	tiny := hub.NewSession(sink.NewConnectionSink(1))
	req.NoError(tiny.Handle(ctx, domain.RegisterUserCommand{Username: "alice"}))
	req.NoError(tiny.Handle(ctx, domain.JoinRoomCommand{Username: "alice", Room: domain.RoomDevOps}))

	roomy := hub.NewSession(sink.NewConnectionSink(64))
	req.NoError(roomy.Handle(ctx, domain.RegisterUserCommand{Username: "bob"}))

	// Recording sinks have no buffer and are not counted
	connect(t, hub, "carol", "")

	saturated, total := hub.Saturation()
	req.Equal(1, saturated)
	req.Equal(2, total)
}

func TestHub_Occupancy(t *testing.T) {
	req := require.New(t)
	hub, _ := newTestHub(t)
	connect(t, hub, "alice", domain.RoomDevOps)
	connect(t, hub, "bob", domain.RoomDevOps)
	connect(t, hub, "carol", domain.RoomSports)
	connect(t, hub, "dave", "")

	req.Equal(4, hub.Online())
	req.Equal(2, hub.Occupancy()[domain.RoomDevOps])
	req.Equal(1, hub.Occupancy()[domain.RoomSports])
	req.Zero(hub.Occupancy()[domain.RoomNodeJS])
}

func TestHub_Start_Reports_Stats_Until_Stopped(t *testing.T) {
	req := require.New(t)
	store, users := newBadgerStore(t)
	output := &syncBuffer{}
	log := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: slog.LevelDebug}))
	settings := testSettings()
	settings.MetricInterval = 10 * time.Millisecond
	hub := NewHub(log, workers.NewSupervisor(log, time.Millisecond), store, users, nil, settings)
	connect(t, hub, "alice", domain.RoomDevOps)

	done := make(chan struct{})
	go func() {
		hub.Start(context.Background())
		close(done)
	}()

	req.Eventually(func() bool {
		return strings.Contains(output.String(), "Chat stats")
	}, 2*time.Second, 10*time.Millisecond)
	req.Contains(output.String(), "online=1")

	hub.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
}

func TestHub_Start_Returns_When_Context_Is_Canceled(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
}
