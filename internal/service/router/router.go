// Package router merges the two independent event sources (voice SDK
// relay, upstream messaging channel) into transcript and call-state
// mutations. All mutations happen on one consumer goroutine; ordering
// follows arrival into the loop, never a logical conversation order.
package router

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/nmorales/voicedesk/internal/event"
	"github.com/nmorales/voicedesk/internal/model/conversation"
	"github.com/nmorales/voicedesk/internal/notify"
	callsvc "github.com/nmorales/voicedesk/internal/service/call"
	"github.com/nmorales/voicedesk/internal/service/stats"
	"github.com/nmorales/voicedesk/internal/service/transcript"
	"github.com/nmorales/voicedesk/internal/webhook"
)

var ErrStopped = errors.New("event router stopped")

// DefaultAgentPacing is how long an agent-originated upstream message is
// held while the typing indicator shows. UX pacing, not a network
// artifact; override via config.
const DefaultAgentPacing = time.Second

// DefaultBookingIntent is the function-call name the voice agent emits
// when an appointment is confirmed.
const DefaultBookingIntent = "Your appointment is confirmed"

// Publisher sends events back over the messaging channel.
type Publisher interface {
	Emit(eventName string, payload any) error
}

// Config tunes router policy.
type Config struct {
	AgentPacing   time.Duration
	BookingIntent string
}

// Router owns the reconciliation core: transcript store, call tracker
// and counters are mutated only from its Run loop.
type Router struct {
	cfg      Config
	store    *transcript.Store
	tracker  *callsvc.Tracker
	counters *stats.Counters
	pub      Publisher
	bookings webhook.Sender
	sink     notify.Sink

	voice    chan event.Voice
	upstream chan event.Upstream
	commands chan command
	paced    chan pacedAppend
	done     chan struct{}
}

type pacedAppend struct {
	speaker conversation.Speaker
	text    string
}

// New wires the router around its collaborators.
func New(cfg Config, store *transcript.Store, tracker *callsvc.Tracker, counters *stats.Counters, pub Publisher, bookings webhook.Sender, sink notify.Sink) *Router {
	if cfg.AgentPacing <= 0 {
		cfg.AgentPacing = DefaultAgentPacing
	}
	if cfg.BookingIntent == "" {
		cfg.BookingIntent = DefaultBookingIntent
	}
	return &Router{
		cfg:      cfg,
		store:    store,
		tracker:  tracker,
		counters: counters,
		pub:      pub,
		bookings: bookings,
		sink:     sink,
		voice:    make(chan event.Voice, 64),
		upstream: make(chan event.Upstream, 64),
		commands: make(chan command, 16),
		paced:    make(chan pacedAppend, 16),
		done:     make(chan struct{}),
	}
}

// SetPublisher installs the outbound messaging publisher. The upstream
// client needs the router's intake channel to exist first, so the
// publisher is wired after construction and before Run.
func (r *Router) SetPublisher(pub Publisher) {
	r.pub = pub
}

// VoiceEvents is the intake channel for the voice SDK relay.
func (r *Router) VoiceEvents() chan<- event.Voice { return r.voice }

// UpstreamEvents is the intake channel for the messaging channel client.
func (r *Router) UpstreamEvents() chan<- event.Upstream { return r.upstream }

// Run consumes events until ctx is canceled. Single consumer: no two
// handlers ever execute concurrently.
func (r *Router) Run(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.voice:
			r.handleVoice(ctx, ev)
		case ev := <-r.upstream:
			r.handleUpstream(ctx, ev)
		case pending := <-r.paced:
			r.sink.Typing(false)
			r.store.Append(pending.speaker, pending.text)
		case cmd := <-r.commands:
			r.handleCommand(cmd)
		}
	}
}

func (r *Router) handleVoice(ctx context.Context, ev event.Voice) {
	switch ev.Type {
	case event.VoiceCallStart:
		r.tracker.HandleCallStart()
	case event.VoiceCallEnd:
		r.tracker.HandleCallEnd()
	case event.VoiceError:
		r.tracker.HandleError(ev.Message)
	case event.VoiceVolumeLevel:
		r.sink.VolumeLevel(ev.Level)
	case event.VoiceSpeechStart:
		r.sink.AgentSpeaking(true)
	case event.VoiceSpeechEnd:
		r.sink.AgentSpeaking(false)
	case event.VoiceMessage:
		r.handleVoiceMessage(ctx, ev)
	default:
		log.Printf("[router] ignoring voice event type %q", ev.Type)
	}
}

func (r *Router) handleVoiceMessage(ctx context.Context, ev event.Voice) {
	switch ev.Subtype {
	case event.MessageTranscript:
		if ev.Transcript == "" {
			return
		}
		speaker := conversation.SpeakerUser
		if ev.Role == "assistant" {
			speaker = conversation.SpeakerAgent
		}
		if _, ok := r.store.Append(speaker, ev.Transcript); !ok {
			return
		}
		r.republish(speaker, ev.Transcript)
	case event.MessageFunctionCall:
		if ev.Name != r.cfg.BookingIntent {
			return
		}
		r.dispatchBooking(ctx, ev.Parameters)
	}
}

// republish mirrors a voice-originated transcript onto the messaging
// channel. Fire-and-forget: delivery failure is logged, never retried.
func (r *Router) republish(speaker conversation.Speaker, text string) {
	pub := r.pub
	if pub == nil {
		return
	}
	payload := map[string]string{
		"type":   string(speaker),
		"text":   text,
		"source": "vapi",
	}
	go func() {
		if err := pub.Emit(event.UpstreamTranscript, payload); err != nil {
			log.Printf("[router] transcript republish failed: %v", err)
		}
	}()
}

// dispatchBooking builds the booking from the event's structured
// parameters and forwards it. The voice agent does not always populate
// every field, so absent ones fall back to placeholder values.
func (r *Router) dispatchBooking(ctx context.Context, params map[string]any) {
	booking := webhook.Booking{
		Name:      stringParam(params, "name", "User Name"),
		Email:     stringParam(params, "email", "user@email.com"),
		Date:      stringParam(params, "date", ""),
		StartTime: stringParam(params, "start_time", ""),
		EndTime:   stringParam(params, "end_time", ""),
		Location:  stringParam(params, "location", "Main Office"),
		Summary:   stringParam(params, "summary", "Confirmed via transcript"),
	}

	go func() {
		if err := r.bookings.Send(ctx, booking); err != nil {
			log.Printf("[router] booking webhook failed: %v", err)
			r.sink.Notice("error", "Booking failed: "+err.Error())
			return
		}
		r.sink.Notice("success", "Booking successful! Check your email/calendar.")
	}()
}

func stringParam(params map[string]any, key, fallback string) string {
	if raw, ok := params[key]; ok {
		if s, ok := raw.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func (r *Router) handleUpstream(ctx context.Context, ev event.Upstream) {
	switch ev.Type {
	case event.UpstreamConnect:
		r.counters.Connected()
		r.sink.Status(notify.StatusEvent{Text: "Connected", Color: "#10b981"})
	case event.UpstreamDisconnect:
		log.Printf("[router] upstream disconnected: %s", ev.Reason)
		r.sink.Status(notify.StatusEvent{Text: "Disconnected", Color: "#ef4444"})
	case event.UpstreamConnectError:
		log.Printf("[router] upstream connect error: %s", ev.Err)
		r.sink.Status(notify.StatusEvent{Text: "Connection Error", Color: "#f59e0b"})
	case event.UpstreamReconnect:
		// The client also emits connect after a successful re-dial, and
		// only connect counts a conversation.
		log.Printf("[router] upstream reconnected after %d attempts", ev.Attempt)
		r.sink.Status(notify.StatusEvent{Text: "Connected", Color: "#10b981"})
	case event.UpstreamReconnectFailed:
		log.Printf("[router] upstream reconnection exhausted")
		r.sink.Status(notify.StatusEvent{Text: "Connection Failed", Color: "#ef4444"})
	case event.UpstreamError:
		log.Printf("[router] upstream error: %s", ev.Err)
	case event.UpstreamTranscript:
		r.handleUpstreamTranscript(ctx, ev)
	case event.UpstreamHistory:
		r.handleHistory(ev.History)
	case event.UpstreamStatusUpdate:
		log.Printf("[router] status update received")
	default:
		log.Printf("[router] ignoring upstream event type %q", ev.Type)
	}
}

// handleUpstreamTranscript paces agent-originated messages: the typing
// indicator shows for the configured delay before the append lands. The
// delay defers only this append; the loop keeps processing.
func (r *Router) handleUpstreamTranscript(ctx context.Context, ev event.Upstream) {
	if ev.SpeakerType == "" || ev.Text == "" {
		log.Printf("[router] dropping invalid transcript payload: type=%q", ev.SpeakerType)
		return
	}

	speaker, _ := conversation.ParseSpeaker(ev.SpeakerType)
	if speaker != conversation.SpeakerAgent {
		r.store.Append(speaker, ev.Text)
		return
	}

	r.sink.Typing(true)
	pending := pacedAppend{speaker: speaker, text: ev.Text}
	time.AfterFunc(r.cfg.AgentPacing, func() {
		select {
		case r.paced <- pending:
		case <-ctx.Done():
			// Torn down mid-delay; the pending append is dropped.
		}
	})
}

// handleHistory replays a bulk transcript in order with no pacing.
func (r *Router) handleHistory(items []event.HistoryItem) {
	if len(items) == 0 {
		return
	}
	for _, item := range items {
		if item.Type == "" || item.Text == "" {
			log.Printf("[router] skipping invalid history item")
			continue
		}
		speaker, _ := conversation.ParseSpeaker(item.Type)
		r.store.Append(speaker, item.Text)
	}
}
