package workers

import (
	"bytes"
	"chat-relay/domain"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedStats struct{}

func (fixedStats) Online() int { return 3 }

func (fixedStats) Occupancy() map[domain.RoomID]int {
	return map[domain.RoomID]int{domain.RoomDevOps: 2, domain.RoomSports: 1}
}

func (fixedStats) Saturation() (int, int) { return 1, 3 }

func (fixedStats) Censored() uint64 { return 7 }

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

func TestStatsWorker_Reports_Until_Canceled(t *testing.T) {
	req := require.New(t)
	out := &syncBuffer{}
	log := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	worker := NewStatsWorker(log, fixedStats{}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// Given a few ticks
	req.Eventually(func() bool {
		return strings.Contains(out.String(), "Chat stats")
	}, time.Second, 5*time.Millisecond)

	// When the context is canceled
	cancel()

	// Then the worker returns without error
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("stats worker did not stop")
	}

	logged := out.String()
	req.Contains(logged, "online=3")
	req.Contains(logged, "in_rooms=3")
	req.Contains(logged, "rooms.devops=2")
	req.Contains(logged, "censored=7")
	req.Contains(logged, "saturated=1")
}
