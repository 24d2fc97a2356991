package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nmorales/voicedesk/internal/event"
	"github.com/nmorales/voicedesk/internal/notify"
	callsvc "github.com/nmorales/voicedesk/internal/service/call"
	"github.com/nmorales/voicedesk/internal/service/stats"
	"github.com/nmorales/voicedesk/internal/service/transcript"
	"github.com/nmorales/voicedesk/internal/webhook"
)

type syncSink struct {
	notify.LogSink
	messages chan notify.MessageEvent
	typing   chan bool
	statuses chan notify.StatusEvent
	notices  chan string
}

func newSyncSink() *syncSink {
	return &syncSink{
		messages: make(chan notify.MessageEvent, 16),
		typing:   make(chan bool, 16),
		statuses: make(chan notify.StatusEvent, 16),
		notices:  make(chan string, 16),
	}
}

func (s *syncSink) MessageAppended(ev notify.MessageEvent) { s.messages <- ev }
func (s *syncSink) Typing(on bool)                         { s.typing <- on }
func (s *syncSink) Status(ev notify.StatusEvent)           { s.statuses <- ev }
func (s *syncSink) Notice(kind, message string)            { s.notices <- kind + ": " + message }

type fakePublisher struct {
	emitted chan map[string]string
}

func (f *fakePublisher) Emit(eventName string, payload any) error {
	m, _ := payload.(map[string]string)
	f.emitted <- m
	return nil
}

type fakeSender struct {
	bookings chan webhook.Booking
}

func (f *fakeSender) Send(_ context.Context, booking webhook.Booking) error {
	f.bookings <- booking
	return nil
}

type fixture struct {
	router   *Router
	store    *transcript.Store
	tracker  *callsvc.Tracker
	counters *stats.Counters
	sink     *syncSink
	pub      *fakePublisher
	sender   *fakeSender
	cancel   context.CancelFunc
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	sink := newSyncSink()
	store := transcript.NewStore(sink, "")
	tracker := callsvc.NewTracker(sink)
	counters := stats.NewCounters()
	pub := &fakePublisher{emitted: make(chan map[string]string, 16)}
	sender := &fakeSender{bookings: make(chan webhook.Booking, 16)}

	r := New(cfg, store, tracker, counters, pub, sender, sink)
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	t.Cleanup(cancel)

	return &fixture{
		router:   r,
		store:    store,
		tracker:  tracker,
		counters: counters,
		sink:     sink,
		pub:      pub,
		sender:   sender,
		cancel:   cancel,
	}
}

func waitMessage(t *testing.T, ch chan notify.MessageEvent) notify.MessageEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message notification")
		return notify.MessageEvent{}
	}
}

func TestVoiceTranscriptRoleMapping(t *testing.T) {
	f := newFixture(t, Config{})

	f.router.VoiceEvents() <- event.Voice{
		Type: event.VoiceMessage, Subtype: event.MessageTranscript,
		Role: "assistant", Transcript: "Hello, how can I help?",
	}
	f.router.VoiceEvents() <- event.Voice{
		Type: event.VoiceMessage, Subtype: event.MessageTranscript,
		Role: "user", Transcript: "I need an appointment",
	}

	first := waitMessage(t, f.sink.messages)
	if first.Speaker != "ai" || first.Label != "Sarah" {
		t.Fatalf("expected assistant mapped to agent, got %+v", first)
	}
	second := waitMessage(t, f.sink.messages)
	if second.Speaker != "user" {
		t.Fatalf("expected user speaker, got %+v", second)
	}
}

func TestVoiceTranscriptRepublishedUpstream(t *testing.T) {
	f := newFixture(t, Config{})

	f.router.VoiceEvents() <- event.Voice{
		Type: event.VoiceMessage, Subtype: event.MessageTranscript,
		Role: "assistant", Transcript: "Good morning",
	}

	select {
	case payload := <-f.pub.emitted:
		if payload["type"] != "ai" || payload["text"] != "Good morning" || payload["source"] != "vapi" {
			t.Fatalf("unexpected republish payload: %v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for republish")
	}
}

func TestBookingFunctionCallForwardsParameters(t *testing.T) {
	f := newFixture(t, Config{})

	f.router.VoiceEvents() <- event.Voice{
		Type:    event.VoiceMessage,
		Subtype: event.MessageFunctionCall,
		Name:    DefaultBookingIntent,
		Parameters: map[string]any{
			"name":       "Jordan Lee",
			"email":      "jordan@example.com",
			"date":       "2026-03-20",
			"start_time": "13:30",
			"end_time":   "16:30",
		},
	}

	select {
	case booking := <-f.sender.bookings:
		if booking.Name != "Jordan Lee" || booking.Date != "2026-03-20" {
			t.Fatalf("structured parameters not forwarded: %+v", booking)
		}
		// Absent fields fall back to placeholders.
		if booking.Location != "Main Office" {
			t.Fatalf("expected location fallback, got %q", booking.Location)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for booking")
	}
}

func TestUnknownFunctionCallIgnored(t *testing.T) {
	f := newFixture(t, Config{})

	f.router.VoiceEvents() <- event.Voice{
		Type: event.VoiceMessage, Subtype: event.MessageFunctionCall, Name: "something else",
	}
	f.router.VoiceEvents() <- event.Voice{
		Type: event.VoiceMessage, Subtype: event.MessageTranscript, Role: "user", Transcript: "marker",
	}

	waitMessage(t, f.sink.messages)
	select {
	case booking := <-f.sender.bookings:
		t.Fatalf("unexpected booking dispatched: %+v", booking)
	default:
	}
}

func TestAgentUpstreamTranscriptIsPaced(t *testing.T) {
	pacing := 80 * time.Millisecond
	f := newFixture(t, Config{AgentPacing: pacing})

	start := time.Now()
	f.router.UpstreamEvents() <- event.Upstream{
		Type: event.UpstreamTranscript, SpeakerType: "ai", Text: "One moment please",
	}

	select {
	case on := <-f.sink.typing:
		if !on {
			t.Fatal("expected typing indicator on before the message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for typing indicator")
	}

	ev := waitMessage(t, f.sink.messages)
	if elapsed := time.Since(start); elapsed < pacing {
		t.Fatalf("message appeared after %v, before pacing delay %v", elapsed, pacing)
	}
	if ev.Speaker != "ai" {
		t.Fatalf("unexpected speaker: %+v", ev)
	}

	select {
	case on := <-f.sink.typing:
		if on {
			t.Fatal("expected typing indicator off after append")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for typing off")
	}
}

func TestUserUpstreamTranscriptAppendsImmediately(t *testing.T) {
	f := newFixture(t, Config{AgentPacing: 5 * time.Second})

	start := time.Now()
	f.router.UpstreamEvents() <- event.Upstream{
		Type: event.UpstreamTranscript, SpeakerType: "user", Text: "Hi",
	}

	waitMessage(t, f.sink.messages)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("user message took %v, expected immediate append", elapsed)
	}
	select {
	case <-f.sink.typing:
		t.Fatal("user messages must not trigger the typing indicator")
	default:
	}
}

func TestMalformedUpstreamTranscriptDropped(t *testing.T) {
	f := newFixture(t, Config{})

	f.router.UpstreamEvents() <- event.Upstream{Type: event.UpstreamTranscript, SpeakerType: "user"}
	f.router.UpstreamEvents() <- event.Upstream{Type: event.UpstreamTranscript, Text: "no type"}
	f.router.UpstreamEvents() <- event.Upstream{
		Type: event.UpstreamTranscript, SpeakerType: "user", Text: "valid",
	}

	ev := waitMessage(t, f.sink.messages)
	if ev.Text != "valid" {
		t.Fatalf("expected only the valid message, got %+v", ev)
	}
	if f.store.Len() != 1 || f.store.MessageCount() != 1 {
		t.Fatalf("malformed payloads mutated the store: len=%d count=%d", f.store.Len(), f.store.MessageCount())
	}
}

func TestHistoryReplayNoDelay(t *testing.T) {
	f := newFixture(t, Config{AgentPacing: 5 * time.Second})

	start := time.Now()
	f.router.UpstreamEvents() <- event.Upstream{
		Type: event.UpstreamHistory,
		History: []event.HistoryItem{
			{Type: "user", Text: "Hi"},
			{Type: "ai", Text: "Hello, how can I help?"},
		},
	}

	first := waitMessage(t, f.sink.messages)
	second := waitMessage(t, f.sink.messages)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("history replay took %v, bulk replay must not be paced", elapsed)
	}
	if first.Text != "Hi" || second.Text != "Hello, how can I help?" {
		t.Fatalf("history out of order: %q then %q", first.Text, second.Text)
	}
	if !first.First {
		t.Fatal("expected empty-state clear on first history item")
	}
	if f.store.MessageCount() != 2 {
		t.Fatalf("expected 2 messages, got %d", f.store.MessageCount())
	}
}

func TestConnectUpdatesCountersAndStatus(t *testing.T) {
	f := newFixture(t, Config{})

	f.router.UpstreamEvents() <- event.Upstream{Type: event.UpstreamConnect}

	select {
	case status := <-f.sink.statuses:
		if status.Text != "Connected" {
			t.Fatalf("expected Connected status, got %+v", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for status")
	}
	if got := f.counters.ConversationCount(); got != 2 {
		t.Fatalf("expected conversation count 2 after first connect, got %d", got)
	}
	if f.store.Len() != 0 {
		t.Fatal("connection events must not touch the transcript")
	}

	// A re-dial surfaces reconnect then connect; only connect counts.
	f.router.UpstreamEvents() <- event.Upstream{Type: event.UpstreamReconnect, Attempt: 2}
	f.router.UpstreamEvents() <- event.Upstream{Type: event.UpstreamConnect}
	<-f.sink.statuses
	<-f.sink.statuses
	if got := f.counters.ConversationCount(); got != 3 {
		t.Fatalf("expected conversation count 3 after reconnect cycle, got %d", got)
	}
}

func TestReconnectExhaustionIsTerminalStatus(t *testing.T) {
	f := newFixture(t, Config{})

	f.router.UpstreamEvents() <- event.Upstream{Type: event.UpstreamReconnectFailed}

	select {
	case status := <-f.sink.statuses:
		if status.Text != "Connection Failed" {
			t.Fatalf("expected Connection Failed, got %+v", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for status")
	}
}

func TestCommandsRunThroughLoop(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if err := f.router.StartCall(ctx); !errors.Is(err, callsvc.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	f.tracker.SetReady(true)
	if err := f.router.StartCall(ctx); err != nil {
		t.Fatalf("StartCall err: %v", err)
	}

	f.router.UpstreamEvents() <- event.Upstream{
		Type: event.UpstreamTranscript, SpeakerType: "user", Text: "Hi",
	}
	waitMessage(t, f.sink.messages)

	filename, content, err := f.router.Export(ctx)
	if err != nil {
		t.Fatalf("Export err: %v", err)
	}
	if filename == "" || content == "" {
		t.Fatalf("expected export output, got filename=%q content=%q", filename, content)
	}

	snap, err := f.router.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats err: %v", err)
	}
	if snap.TotalMessages != 1 {
		t.Fatalf("expected 1 message in stats, got %d", snap.TotalMessages)
	}

	if err := f.router.ClearTranscript(ctx); err != nil {
		t.Fatalf("ClearTranscript err: %v", err)
	}
	if f.store.Len() != 0 {
		t.Fatal("expected empty store after clear")
	}
}

func TestDispatchAfterStop(t *testing.T) {
	f := newFixture(t, Config{})
	f.cancel()

	// Give the loop a moment to exit.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := f.router.StartCall(context.Background()); errors.Is(err, ErrStopped) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected ErrStopped after router shutdown")
}
