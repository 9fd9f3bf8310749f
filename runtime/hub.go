package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/runtime/workers"
	"context"
	"log/slog"
	"time"
)

type Settings struct {
	HistoryLimit     int
	MaxContentLength int
	SinkTimeout      time.Duration
	MetricInterval   time.Duration
	StrictUsers      bool
}

// Hub owns the state shared by every session and hands out one SessionHandler per connection.
// It holds no lock of its own: presence and rooms protect themselves.
type Hub struct {
	log         *slog.Logger
	presence    *PresenceRegistry
	rooms       *RoomTable
	broadcaster *Broadcaster
	store       contract.MessageStore
	users       contract.UserDirectory
	moderator   contract.Moderator
	supervisor  contract.ISupervisor
	censorship  *censorship

	historyLimit     int
	maxContentLength int
	strictUsers      bool
	metricInterval   time.Duration
}

// NewHub wires the shared state. moderator and users may be nil,
// users is only consulted when StrictUsers is set.
func NewHub(log *slog.Logger, supervisor contract.ISupervisor,
	store contract.MessageStore, users contract.UserDirectory,
	moderator contract.Moderator, settings Settings) *Hub {
	rooms := NewRoomTable()
	return &Hub{
		log:              log,
		presence:         NewPresenceRegistry(),
		rooms:            rooms,
		broadcaster:      NewBroadcaster(log, rooms, settings.SinkTimeout),
		store:            store,
		users:            users,
		moderator:        moderator,
		supervisor:       supervisor,
		censorship:       newCensorship(),
		historyLimit:     settings.HistoryLimit,
		maxContentLength: settings.MaxContentLength,
		strictUsers:      settings.StrictUsers && users != nil,
		metricInterval:   settings.MetricInterval,
	}
}

// NewSession creates the connection and its state machine for a freshly connected peer.
func (h *Hub) NewSession(sink contract.EventSink) *SessionHandler {
	conn := NewConnection(sink)
	return &SessionHandler{
		hub:  h,
		conn: conn,
		log:  h.log.With("conn_id", conn.ID),
	}
}

func (h *Hub) Presence() *PresenceRegistry { return h.presence }

func (h *Hub) Rooms() *RoomTable { return h.rooms }

func (h *Hub) Online() int { return h.presence.Count() }

func (h *Hub) Occupancy() map[domain.RoomID]int { return h.rooms.Occupancy() }

// Censored is the number of messages the moderator rewrote since start.
func (h *Hub) Censored() uint64 { return h.censorship.total() }

// CensorshipHits counts the matched words since start.
func (h *Hub) CensorshipHits() map[string]uint64 { return h.censorship.hits() }

// Saturation counts the online connections whose outbound buffer is full.
func (h *Hub) Saturation() (saturated, total int) {
	type buffered interface {
		Len() int
		Cap() int
	}
	for _, conn := range h.presence.Connections() {
		b, ok := conn.sink.(buffered)
		if !ok {
			continue
		}
		total++
		if b.Cap() > 0 && b.Len() == b.Cap() {
			saturated++
		}
	}
	return saturated, total
}

// Start registers the background workers and blocks until ctx is done.
func (h *Hub) Start(ctx context.Context) {
	if h.metricInterval > 0 {
		h.supervisor.Add(workers.NewStatsWorker(h.log, h, h.metricInterval))
	}
	h.log.Info("Starting hub and all supervised workers")
	h.supervisor.Run(ctx)
}

// Stop cancels the supervised workers. Sessions are closed by the transport.
func (h *Hub) Stop() {
	h.log.Info("Requesting hub shutdown")
	h.supervisor.Stop()
}

// prepareContent bounds and censors a message body before it is persisted.
// A non-positive maxContentLength disables the bound.
func (h *Hub) prepareContent(content string) (string, error) {
	if h.maxContentLength > 0 {
		if err := domain.ValidateContent(content, h.maxContentLength); err != nil {
			return "", err
		}
	}
	if h.moderator == nil {
		return content, nil
	}
	censored, words := h.moderator.Censor(content)
	if len(words) > 0 {
		h.censorship.record(words)
		h.log.Debug("Message censored", "words", words)
	}
	return censored, nil
}
