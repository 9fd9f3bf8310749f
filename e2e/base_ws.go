package e2e

import (
	"chat-relay/infrastructure/storage"
	"chat-relay/infrastructure/ws"
	"chat-relay/moderation"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

type BaseWsSuite struct {
	suite.Suite
	Config Config

	url     string
	cleanup []func()
}

// SetupSuite loads the environment configuration and starts a relay when none is given.
func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.RelayAddr != "" {
		s.url = fmt.Sprintf("ws://%s/ws", s.Config.RelayAddr)
		return
	}
	s.url = s.startRelay()
}

func (s *BaseWsSuite) TearDownSuite() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
}

func (s *BaseWsSuite) startRelay() string {
	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)
	log := logs.GetLoggerFromLevel(slog.LevelInfo)

	store, err := storage.NewMessageRepository(db, log)
	s.Require().NoError(err)
	dictionary, err := moderation.LoadDictionary(nil)
	s.Require().NoError(err)
	moderator, err := moderation.NewModerator(dictionary.Words, '*', log)
	s.Require().NoError(err)

	supervisor := workers.NewSupervisor(log, 100*time.Millisecond)
	hub := runtime.NewHub(log, supervisor, store, storage.NewUserRepository(db), moderator, runtime.Settings{
		HistoryLimit:     50,
		MaxContentLength: 2000,
		SinkTimeout:      100 * time.Millisecond,
		MetricInterval:   time.Second,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Start(ctx)

	server := ws.NewServer(log, hub, "", ws.Options{
		MaxFrameSize:         8192,
		RateLimitBurst:       100,
		RateLimitInterval:    time.Second,
		ConnectionBufferSize: 256,
	})
	httpServer := httptest.NewServer(server.Handler())

	s.cleanup = append(s.cleanup, func() {
		httpServer.Close()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = server.Shutdown(shutdownCtx)
		cancel()
		_ = store.Close()
		_ = db.Close()
	})
	return "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
}

// Peer is one websocket client driven by a scenario.
type Peer struct {
	suite *BaseWsSuite
	name  string
	conn  *websocket.Conn
}

// Connect opens a websocket as name, with a colorized header in the logs.
func (s *BaseWsSuite) Connect(name string) *Peer {
	header := fmt.Sprintf("  ====== %s connects ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	s.Require().NoError(err, "Failed to connect to relay at "+s.url)
	peer := &Peer{suite: s, name: name, conn: conn}
	s.cleanup = append(s.cleanup, func() { _ = conn.Close() })
	return peer
}

func (p *Peer) Send(event string, data any) {
	raw, err := json.Marshal(data)
	p.suite.Require().NoError(err)
	frame, err := json.Marshal(ws.Envelope{Event: event, Data: raw})
	p.suite.Require().NoError(err)
	if p.suite.Config.DebugJSON {
		p.suite.T().Logf("%s >> %s", p.name, frame)
	}
	p.suite.Require().NoError(p.conn.WriteMessage(websocket.TextMessage, frame))
}

// Expect reads the next frame and requires it to carry event. data, when not nil, receives the payload.
func (p *Peer) Expect(event string, data any) {
	p.suite.Require().NoError(p.conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, frame, err := p.conn.ReadMessage()
	p.suite.Require().NoError(err, "%s waited for %s", p.name, event)
	if p.suite.Config.DebugJSON {
		p.suite.T().Logf("%s << %s", p.name, frame)
	}
	var envelope ws.Envelope
	p.suite.Require().NoError(json.Unmarshal(frame, &envelope))
	p.suite.Require().Equal(event, envelope.Event, "%s received %s", p.name, frame)
	if data != nil {
		p.suite.Require().NoError(json.Unmarshal(envelope.Data, data))
	}
}

func (p *Peer) Close() {
	_ = p.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	_ = p.conn.Close()
}
