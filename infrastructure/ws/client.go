package ws

import (
	"chat-relay/domain"
	"chat-relay/runtime"
	"chat-relay/sink"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// client pumps frames between one websocket and its session.
// The read pump is the only caller of session.Handle, disconnect included.
type client struct {
	conn    *websocket.Conn
	session *runtime.SessionHandler
	sink    *sink.ConnectionSink
	limiter *rate.Limiter
	log     *slog.Logger
}

func newClient(conn *websocket.Conn, session *runtime.SessionHandler, sink *sink.ConnectionSink,
	options Options, log *slog.Logger) *client {
	conn.SetReadLimit(options.MaxFrameSize)
	limit := rate.Limit(float64(options.RateLimitBurst) / options.RateLimitInterval.Seconds())
	return &client{
		conn:    conn,
		session: session,
		sink:    sink,
		limiter: rate.NewLimiter(limit, options.RateLimitBurst),
		log:     log.With("conn_id", session.Connection().ID, "remote", conn.RemoteAddr().String()),
	}
}

// readPump decodes frames until the peer goes away, then drives the disconnect transition.
func (c *client) readPump(ctx context.Context) {
	defer func() {
		// The left notices must go out even when the server is shutting down
		_ = c.session.Handle(context.WithoutCancel(ctx), domain.DisconnectCommand{})
		c.sink.Close()
		c.closeConnection()
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Debug("Setting initial read deadline failed", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if !c.limiter.Allow() {
			c.log.Debug("Rate limit exceeded, frame discarded")
			continue
		}
		cmd, err := DecodeCommand(frame)
		if err != nil {
			c.log.Debug("Malformed frame dropped", "error", err)
			continue
		}
		_ = c.session.Handle(ctx, cmd)
	}
}

// writePump writes buffered events and keeps the connection alive with pings.
// It returns when the sink is closed or the server shuts down.
func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case evt := <-c.sink.Events():
			frame, err := EncodeEvent(evt)
			if err != nil {
				c.log.Warn("Event not encodable, skipped", "event", evt.Name(), "error", err)
				continue
			}
			if err := c.write(websocket.TextMessage, frame); err != nil {
				c.log.Debug("Write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.log.Debug("Ping failed", "error", err)
				return
			}
		case <-c.sink.Done():
			return
		case <-ctx.Done():
			message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")
			_ = c.write(websocket.CloseMessage, message)
			return
		}
	}
}

func (c *client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func (c *client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Debug("Closing websocket failed", "error", err)
	}
}

func (c *client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Frame exceeded the maximum size, closing")
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway),
		errors.Is(err, io.EOF), isExpectedCloseError(err):
		c.log.Debug("Peer disconnected", "error", err)
	default:
		c.log.Info("Websocket read error", "error", err)
	}
}

func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close sent") ||
		strings.Contains(msg, "broken pipe")
}
