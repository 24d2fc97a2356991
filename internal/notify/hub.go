package notify

import (
	"sync"

	"github.com/nmorales/voicedesk/internal/model/call"
)

// Frame is one event on the dashboard view feed.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Hub fans presentation events out to every subscribed view feed. Slow
// subscribers are dropped rather than allowed to stall the core.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Frame]struct{}
	buffer      int
}

// NewHub creates a hub whose subscriber channels buffer the given number
// of frames.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{
		subscribers: make(map[chan Frame]struct{}),
		buffer:      buffer,
	}
}

// Subscribe registers a new view feed. The returned cancel function must be
// called when the subscriber goes away.
func (h *Hub) Subscribe() (<-chan Frame, func()) {
	ch := make(chan Frame, h.buffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// SubscriberCount reports how many view feeds are attached.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) broadcast(frame Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subscribers {
		select {
		case ch <- frame:
		default:
			delete(h.subscribers, ch)
			close(ch)
		}
	}
}

func (h *Hub) MessageAppended(ev MessageEvent) {
	h.broadcast(Frame{Event: "message", Data: ev})
}

func (h *Hub) TranscriptCleared() {
	h.broadcast(Frame{Event: "cleared"})
}

func (h *Hub) CallStateChanged(state call.State) {
	h.broadcast(Frame{Event: "call_state", Data: map[string]string{
		"state": string(state),
		"text":  state.StatusText(),
		"color": state.StatusColor(),
	}})
}

func (h *Hub) VolumeLevel(level float64) {
	h.broadcast(Frame{Event: "volume", Data: map[string]float64{"level": level}})
}

func (h *Hub) AgentSpeaking(on bool) {
	h.broadcast(Frame{Event: "agent_speaking", Data: map[string]bool{"on": on}})
}

func (h *Hub) Typing(on bool) {
	h.broadcast(Frame{Event: "typing", Data: map[string]bool{"on": on}})
}

func (h *Hub) Status(ev StatusEvent) {
	h.broadcast(Frame{Event: "status", Data: ev})
}

func (h *Hub) ExportProduced(filename, content string) {
	h.broadcast(Frame{Event: "export", Data: map[string]string{
		"filename": filename,
		"content":  content,
	}})
}

func (h *Hub) ScrollRequested() {
	h.broadcast(Frame{Event: "scroll"})
}

func (h *Hub) Notice(kind, message string) {
	h.broadcast(Frame{Event: "notice", Data: map[string]string{
		"kind":    kind,
		"message": message,
	}})
}
