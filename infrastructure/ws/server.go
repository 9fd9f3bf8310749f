// Package ws exposes the chat over websocket: one JSON frame per event in each direction.
package ws

import (
	"chat-relay/runtime"
	"chat-relay/sink"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

type Options struct {
	MaxFrameSize         int64
	RateLimitBurst       int
	RateLimitInterval    time.Duration
	ConnectionBufferSize int
	AllowedOrigins       []string
}

// Server upgrades /ws requests and runs one client per connection.
type Server struct {
	log        *slog.Logger
	hub        *runtime.Hub
	options    Options
	upgrader   websocket.Upgrader
	router     *mux.Router
	httpServer *http.Server

	// clients are bound to this context, not to the request one
	ctx     context.Context
	cancel  context.CancelFunc
	clients sync.WaitGroup

	// mu guards closed so that no client is added once Shutdown waits
	mu     sync.Mutex
	closed bool
}

func NewServer(log *slog.Logger, hub *runtime.Hub, address string, options Options) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		log:     log,
		hub:     hub,
		options: options,
		ctx:     ctx,
		cancel:  cancel,
	}
	policy := newOriginPolicy(log, options.AllowedOrigins)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     policy.check,
	}

	s.router = mux.NewRouter()
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:              address,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info("Starting websocket server", "address", s.httpServer.Addr, "at", time.Now().UTC())
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes every websocket and waits for the
// sessions to process their disconnect, or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.clients.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("All websocket clients closed")
	case <-ctx.Done():
		s.log.Warn("Shutdown timeout reached with clients still open")
		return ctx.Err()
	}
	return err
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the peer
		s.log.Debug("Websocket upgrade failed", "error", err)
		return
	}

	// Hijacked connections are not tracked by http.Server.Shutdown
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log.Debug("Websocket refused, server shutting down")
		message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")
		_ = conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	s.clients.Add(2)
	s.mu.Unlock()

	connectionSink := sink.NewConnectionSink(s.options.ConnectionBufferSize)
	session := s.hub.NewSession(connectionSink)
	c := newClient(conn, session, connectionSink, s.options, s.log)
	c.log.Debug("Websocket connected")

	go func() {
		defer s.clients.Done()
		c.writePump(s.ctx)
	}()
	go func() {
		defer s.clients.Done()
		c.readPump(s.ctx)
	}()
}

type healthResponse struct {
	Status string `json:"status"`
	Online int    `json:"online"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", Online: s.hub.Online()})
}
