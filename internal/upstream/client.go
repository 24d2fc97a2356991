// Package upstream maintains the WebSocket connection to the real-time
// messaging server. It feeds normalized events into the router's intake
// channel and offers a fire-and-forget Emit for outbound publishes.
// Reconnection is bounded; exhaustion is terminal for this client.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nmorales/voicedesk/internal/event"
)

var ErrNotConnected = errors.New("upstream not connected")

const (
	// DefaultMaxReconnectAttempts bounds the retry loop after a drop.
	DefaultMaxReconnectAttempts = 5
	defaultBackoff              = 2 * time.Second
	writeTimeout                = 10 * time.Second
)

// Config describes the upstream endpoint and retry policy.
type Config struct {
	URL         string
	MaxAttempts int
	Backoff     time.Duration
}

// Client is the messaging-channel transport.
type Client struct {
	cfg    Config
	events chan<- event.Upstream
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient wires a client that delivers events into the given channel.
func NewClient(cfg Config, events chan<- event.Upstream) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxReconnectAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	return &Client{
		cfg:    cfg,
		events: events,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// envelope is the wire frame exchanged with the messaging server.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// transcriptPayload mirrors the server's transcript frame.
type transcriptPayload struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// historyPayload mirrors the server's history frame.
type historyPayload struct {
	Data []event.HistoryItem `json:"data"`
}

// Run dials, reads, and reconnects until ctx is canceled or the retry
// budget is exhausted.
func (c *Client) Run(ctx context.Context) {
	attempt := 0
	connectedOnce := false

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[upstream] dial %s failed: %v", c.cfg.URL, err)
			c.deliver(ctx, event.Upstream{Type: event.UpstreamConnectError, Err: err.Error()})

			attempt++
			if attempt >= c.cfg.MaxAttempts {
				c.deliver(ctx, event.Upstream{Type: event.UpstreamReconnectFailed})
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.cfg.Backoff):
			}
			continue
		}

		c.setConn(conn)
		if connectedOnce {
			c.deliver(ctx, event.Upstream{Type: event.UpstreamReconnect, Attempt: attempt})
		} else {
			connectedOnce = true
		}
		c.deliver(ctx, event.Upstream{Type: event.UpstreamConnect})
		attempt = 0

		// Unblock the read loop when ctx is canceled.
		stop := context.AfterFunc(ctx, func() { conn.Close() })
		reason := c.readLoop(ctx, conn)
		stop()
		c.setConn(nil)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		c.deliver(ctx, event.Upstream{Type: event.UpstreamDisconnect, Reason: reason})
	}
}

// readLoop consumes frames until the connection breaks, returning the
// close reason.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) string {
	for {
		var frame envelope
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[upstream] read error: %v", err)
			}
			return err.Error()
		}

		ev, ok := c.normalize(frame)
		if !ok {
			continue
		}
		c.deliver(ctx, ev)
	}
}

func (c *Client) normalize(frame envelope) (event.Upstream, bool) {
	switch frame.Event {
	case event.UpstreamTranscript:
		var payload transcriptPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			log.Printf("[upstream] invalid transcript frame: %v", err)
			return event.Upstream{}, false
		}
		return event.Upstream{
			Type:        event.UpstreamTranscript,
			SpeakerType: payload.Type,
			Text:        payload.Text,
		}, true
	case event.UpstreamHistory:
		var payload historyPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			log.Printf("[upstream] invalid history frame: %v", err)
			return event.Upstream{}, false
		}
		return event.Upstream{Type: event.UpstreamHistory, History: payload.Data}, true
	case event.UpstreamStatusUpdate:
		return event.Upstream{Type: event.UpstreamStatusUpdate}, true
	case event.UpstreamError:
		return event.Upstream{Type: event.UpstreamError, Err: string(frame.Data)}, true
	default:
		log.Printf("[upstream] ignoring frame event %q", frame.Event)
		return event.Upstream{}, false
	}
}

func (c *Client) deliver(ctx context.Context, ev event.Upstream) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// Emit publishes one event to the server. Callers treat failures as
// log-only; nothing is queued or retried.
func (c *Client) Emit(eventName string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventName, err)
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(envelope{Event: eventName, Data: data}); err != nil {
		return fmt.Errorf("emit %s: %w", eventName, err)
	}
	return nil
}
