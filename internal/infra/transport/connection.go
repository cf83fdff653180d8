package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"chat-image-sync/internal/config"
	"chat-image-sync/internal/domain"
	"chat-image-sync/internal/domain/ports/adapter"
	"chat-image-sync/internal/infra/metrics"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

// ProgressHandler receives image_progress frames in arrival order.
type ProgressHandler interface {
	HandleProgress(ctx context.Context, ev ProgressEvent)
}

// Connection maintains one realtime channel to the backend for the life of
// the process. It reconnects forever with capped exponential backoff;
// malformed frames are dropped, never fatal.
type Connection struct {
	cfg      config.TransportConfig
	progress ProgressHandler
	notify   adapter.NotificationSink
	log      *zerolog.Logger

	mu    sync.Mutex
	ws    *websocket.Conn
	state State

	// onOpen hooks run after every successful (re)connect, e.g. a backfill
	// pass to cover frames lost during the outage.
	onOpen []func(ctx context.Context)

	dial func(ctx context.Context) (*websocket.Conn, error)
}

func NewConnection(cfg config.TransportConfig, progress ProgressHandler, notify adapter.NotificationSink, logger *zerolog.Logger) *Connection {
	c := &Connection{
		cfg:      cfg,
		progress: progress,
		notify:   notify,
		log:      logger,
		state:    StateClosed,
	}
	c.dial = c.dialWebsocket
	return c
}

func (c *Connection) dialWebsocket(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	return ws, err
}

// OnOpen registers a hook invoked after each successful connect. Must be
// called before Run.
func (c *Connection) OnOpen(fn func(ctx context.Context)) {
	c.onOpen = append(c.onOpen, fn)
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run connects and keeps the channel alive until ctx is cancelled. Retries
// are unbounded: backoff starts at the configured initial value, doubles per
// failed attempt, caps at the max, and resets on a successful open.
func (c *Connection) Run(ctx context.Context) {
	backoff := c.cfg.InitialBackoff
	for {
		if ctx.Err() != nil {
			c.setState(StateClosed)
			return
		}

		c.setState(StateConnecting)
		ws, err := c.dial(ctx)
		if err != nil {
			metrics.IncReconnect()
			c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("transport: connect failed")
			select {
			case <-ctx.Done():
				c.setState(StateClosed)
				return
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff, c.cfg.MaxBackoff)
			continue
		}

		backoff = c.cfg.InitialBackoff
		c.mu.Lock()
		c.ws = ws
		c.state = StateOpen
		c.mu.Unlock()
		c.log.Info().Str("url", c.cfg.URL).Msg("transport: connected")

		for _, fn := range c.onOpen {
			fn(ctx)
		}

		c.readLoop(ctx, ws)

		c.mu.Lock()
		c.ws = nil
		c.state = StateClosed
		c.mu.Unlock()
		ws.Close()
	}
}

// nextBackoff doubles the delay up to the cap.
func nextBackoff(cur, max time.Duration) time.Duration {
	cur *= 2
	if cur > max {
		cur = max
	}
	return cur
}

// readLoop pumps frames until the connection drops or ctx ends.
func (c *Connection) readLoop(ctx context.Context, ws *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				ws.Close()
				return
			case <-ticker.C:
				c.mu.Lock()
				err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				c.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warn().Err(err).Msg("transport: read failed, reconnecting")
			}
			return
		}
		c.dispatch(ctx, data)
	}
}

// dispatch decodes one frame and routes it. Malformed or unknown frames are
// logged and dropped; this loop never closes the connection over payload
// contents.
func (c *Connection) dispatch(ctx context.Context, data []byte) {
	frameType, err := decodeEnvelope(data)
	if err != nil {
		metrics.IncFrameDropped("malformed")
		c.log.Warn().Err(err).Msg("transport: dropping malformed frame")
		return
	}
	metrics.IncFrame(frameType)

	switch frameType {
	case FrameImageProgress:
		var ev ProgressEvent
		if err := json.Unmarshal(data, &ev); err != nil || ev.JobID == "" {
			metrics.IncFrameDropped("malformed")
			c.log.Warn().Err(err).Msg("transport: dropping bad image_progress frame")
			return
		}
		c.progress.HandleProgress(ctx, ev)
	case FrameNotification:
		var ev NotificationEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			metrics.IncFrameDropped("malformed")
			c.log.Warn().Err(err).Msg("transport: dropping bad notification frame")
			return
		}
		if c.notify != nil {
			c.notify.Notify(ctx, adapter.Notification{Title: ev.Title, Body: ev.Body, Level: ev.Level})
		}
	default:
		metrics.IncFrameDropped("unknown_type")
		c.log.Debug().Str("type", frameType).Msg("transport: ignoring frame")
	}
}

// Send writes a JSON message. There is no outbound buffering: when the
// connection is not open the message is discarded with a warning.
func (c *Connection) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen || c.ws == nil {
		c.log.Warn().Str("state", string(c.state)).Msg("transport: send while not open, message dropped")
		return fmt.Errorf("send: %w", domain.ErrTransportClosed)
	}
	return c.ws.WriteJSON(v)
}
