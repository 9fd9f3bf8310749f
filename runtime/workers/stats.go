package workers

import (
	"chat-relay/domain"
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

// StatsSource exposes the live counters of the chat.
type StatsSource interface {
	Online() int
	Occupancy() map[domain.RoomID]int
	Saturation() (saturated, total int)
	Censored() uint64
}

// StatsWorker periodically logs presence, room occupancy, censorship hits and buffer saturation.
// Counters are sampled without locking the whole hub, so a report may mix two instants.
type StatsWorker struct {
	log            *slog.Logger
	source         StatsSource
	metricInterval time.Duration
}

func NewStatsWorker(log *slog.Logger, source StatsSource, metricInterval time.Duration) *StatsWorker {
	return &StatsWorker{log: log, source: source, metricInterval: metricInterval}
}

func (w StatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping stats report")
			return nil
		case <-ticker.C:
			w.report()
		}
	}
}

func (w StatsWorker) report() {
	occupancy := w.source.Occupancy()
	saturated, buffered := w.source.Saturation()

	rooms := make([]any, 0, 2*len(occupancy))
	for _, id := range domain.Rooms {
		rooms = append(rooms, id.String(), occupancy[id])
	}
	w.log.Info("Chat stats",
		"online", w.source.Online(),
		"in_rooms", lo.Sum(lo.Values(occupancy)),
		"censored", w.source.Censored(),
		slog.Group("rooms", rooms...))

	if saturated > 0 {
		w.log.Warn("Connections with a full outbound buffer", "saturated", saturated, "total", buffered)
	}
}
