// Package notify is the boundary between the reconciliation core and
// whatever renders it. The core publishes presentation events through a
// Sink; rendering (SSE feed, logs) lives behind the interface so the core
// stays independently testable.
package notify

import (
	"log"

	"github.com/nmorales/voicedesk/internal/model/call"
)

// MessageEvent describes one appended transcript message, ready to render.
type MessageEvent struct {
	Speaker     string `json:"speaker"`
	Label       string `json:"label"`
	Text        string `json:"text"`
	Time        string `json:"time"`
	DayBoundary bool   `json:"dayBoundary"`
	Day         string `json:"day,omitempty"`
	First       bool   `json:"first"`
}

// StatusEvent carries the connection-status badge text and color.
type StatusEvent struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

// Sink receives presentation events from the core.
type Sink interface {
	MessageAppended(MessageEvent)
	TranscriptCleared()
	CallStateChanged(call.State)
	VolumeLevel(level float64)
	AgentSpeaking(on bool)
	Typing(on bool)
	Status(StatusEvent)
	ExportProduced(filename, content string)
	ScrollRequested()
	Notice(kind, message string)
}

// LogSink writes every presentation event to the process log.
type LogSink struct{}

func (LogSink) MessageAppended(ev MessageEvent) {
	log.Printf("[notify] message label=%s time=%s boundary=%v", ev.Label, ev.Time, ev.DayBoundary)
}

func (LogSink) TranscriptCleared() {
	log.Printf("[notify] transcript cleared")
}

func (LogSink) CallStateChanged(state call.State) {
	log.Printf("[notify] call state=%s", state)
}

func (LogSink) VolumeLevel(level float64) {}

func (LogSink) AgentSpeaking(on bool) {
	log.Printf("[notify] agent speaking=%v", on)
}

func (LogSink) Typing(on bool) {
	log.Printf("[notify] typing=%v", on)
}

func (LogSink) Status(ev StatusEvent) {
	log.Printf("[notify] status=%q color=%s", ev.Text, ev.Color)
}

func (LogSink) ExportProduced(filename, _ string) {
	log.Printf("[notify] export produced file=%s", filename)
}

func (LogSink) ScrollRequested() {}

func (LogSink) Notice(kind, message string) {
	log.Printf("[%s] %s", kind, message)
}

// Tee fans every event out to each sink in order.
type Tee []Sink

func (t Tee) MessageAppended(ev MessageEvent) {
	for _, s := range t {
		s.MessageAppended(ev)
	}
}

func (t Tee) TranscriptCleared() {
	for _, s := range t {
		s.TranscriptCleared()
	}
}

func (t Tee) CallStateChanged(state call.State) {
	for _, s := range t {
		s.CallStateChanged(state)
	}
}

func (t Tee) VolumeLevel(level float64) {
	for _, s := range t {
		s.VolumeLevel(level)
	}
}

func (t Tee) AgentSpeaking(on bool) {
	for _, s := range t {
		s.AgentSpeaking(on)
	}
}

func (t Tee) Typing(on bool) {
	for _, s := range t {
		s.Typing(on)
	}
}

func (t Tee) Status(ev StatusEvent) {
	for _, s := range t {
		s.Status(ev)
	}
}

func (t Tee) ExportProduced(filename, content string) {
	for _, s := range t {
		s.ExportProduced(filename, content)
	}
}

func (t Tee) ScrollRequested() {
	for _, s := range t {
		s.ScrollRequested()
	}
}

func (t Tee) Notice(kind, message string) {
	for _, s := range t {
		s.Notice(kind, message)
	}
}
