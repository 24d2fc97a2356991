// Package voice ingests the browser widget's voice-SDK event relay over
// WebSocket and normalizes it into router events. While a relay is
// connected the SDK counts as ready; start/stop requests before that are
// rejected by the call tracker.
package voice

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nmorales/voicedesk/internal/event"
)

const (
	readDeadline = 60 * time.Second
	pingInterval = 54 * time.Second
)

// Readiness is satisfied by the call tracker's SDK-ready gate.
type Readiness interface {
	SetReady(bool)
}

// Handler upgrades relay connections and forwards normalized events.
type Handler struct {
	events    chan<- event.Voice
	readiness Readiness
	upgrader  websocket.Upgrader
}

// New creates the voice ingest handler.
func New(events chan<- event.Voice, readiness Readiness) *Handler {
	return &Handler{
		events:    events,
		readiness: readiness,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the relay endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/voice/ws", h.handleRelay)
}

// inboundEvent is the relay wire format, one frame per SDK callback.
type inboundEvent struct {
	Type    string          `json:"type"`
	Level   float64         `json:"level,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
}

// messagePayload carries the SDK's message callback body.
type messagePayload struct {
	Type       string         `json:"type"`
	Role       string         `json:"role,omitempty"`
	Transcript string         `json:"transcript,omitempty"`
	Name       string         `json:"name,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

func (h *Handler) handleRelay(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[voice] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[voice] relay connected from %s", r.RemoteAddr)
	h.readiness.SetReady(true)
	defer func() {
		h.readiness.SetReady(false)
		log.Printf("[voice] relay disconnected")
	}()

	ctx := r.Context()

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	go h.pingLoop(ctx, conn)

	for {
		var raw inboundEvent
		if err := conn.ReadJSON(&raw); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[voice] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))

		ev, ok := normalize(raw)
		if !ok {
			continue
		}

		select {
		case h.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func normalize(raw inboundEvent) (event.Voice, bool) {
	switch raw.Type {
	case event.VoiceCallStart, event.VoiceCallEnd, event.VoiceSpeechStart, event.VoiceSpeechEnd:
		return event.Voice{Type: raw.Type}, true
	case event.VoiceVolumeLevel:
		return event.Voice{Type: raw.Type, Level: raw.Level}, true
	case event.VoiceError:
		return event.Voice{Type: raw.Type, Message: raw.Error}, true
	case event.VoiceMessage:
		var payload messagePayload
		if err := json.Unmarshal(raw.Message, &payload); err != nil {
			log.Printf("[voice] invalid message payload: %v", err)
			return event.Voice{}, false
		}
		return event.Voice{
			Type:       event.VoiceMessage,
			Subtype:    payload.Type,
			Role:       payload.Role,
			Transcript: payload.Transcript,
			Name:       payload.Name,
			Parameters: payload.Parameters,
		}, true
	default:
		log.Printf("[voice] ignoring relay event type %q", raw.Type)
		return event.Voice{}, false
	}
}

func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
