// Package transcript owns the ordered conversation log: append with
// day-boundary detection, clear, and plain-text export. It does not
// deduplicate across sources; that seam belongs to the event router.
package transcript

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nmorales/voicedesk/internal/model/conversation"
	"github.com/nmorales/voicedesk/internal/notify"
)

// DefaultAgentLabel is the display name used for agent turns when no
// override is configured.
const DefaultAgentLabel = "Sarah"

const userLabel = "User"

// Store holds the in-memory transcript log. Mutations happen only on the
// router loop; reads may come from HTTP handlers, hence the lock.
type Store struct {
	mu         sync.RWMutex
	messages   []conversation.Message
	count      int
	lastDay    string
	agentLabel string
	sink       notify.Sink
	now        func() time.Time
}

// NewStore creates an empty transcript store publishing to sink.
func NewStore(sink notify.Sink, agentLabel string) *Store {
	if agentLabel == "" {
		agentLabel = DefaultAgentLabel
	}
	return &Store{
		agentLabel: agentLabel,
		sink:       sink,
		now:        time.Now,
	}
}

// Append records one utterance and notifies the render collaborator.
// Empty text is rejected as a no-op.
func (s *Store) Append(speaker conversation.Speaker, text string) (conversation.Message, bool) {
	if strings.TrimSpace(text) == "" {
		return conversation.Message{}, false
	}

	s.mu.Lock()

	msg := conversation.Message{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Text:      text,
		Timestamp: s.now(),
	}

	first := len(s.messages) == 0
	day := msg.Day()
	boundary := s.lastDay != "" && s.lastDay != day
	s.lastDay = day

	s.messages = append(s.messages, msg)
	s.count++

	ev := notify.MessageEvent{
		Speaker:     string(speaker),
		Label:       s.label(speaker),
		Text:        text,
		Time:        msg.ClockTime(),
		DayBoundary: boundary,
		First:       first,
	}
	if boundary {
		ev.Day = day
	}

	s.mu.Unlock()

	s.sink.MessageAppended(ev)
	return msg, true
}

// Clear empties the log and resets the day marker. Idempotent.
func (s *Store) Clear() {
	s.mu.Lock()
	s.messages = nil
	s.count = 0
	s.lastDay = ""
	s.mu.Unlock()

	s.sink.TranscriptCleared()
}

// Export renders the full log, one "[time] Speaker: text" line per
// message in append order. Built purely from in-memory state.
func (s *Store) Export() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := make([]string, 0, len(s.messages))
	for _, msg := range s.messages {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", msg.ClockTime(), s.label(msg.Speaker), msg.Text))
	}
	return strings.Join(lines, "\n")
}

// ExportFilename returns the download name for today's export.
func (s *Store) ExportFilename() string {
	return fmt.Sprintf("ai-receptionist-%s.txt", s.now().Format("2006-01-02"))
}

// Messages returns a copy of the log.
func (s *Store) Messages() []conversation.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]conversation.Message, len(s.messages))
	copy(copied, s.messages)
	return copied
}

// Len reports the number of appended messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// MessageCount reports the running message counter. Always equals Len;
// kept separate because clear resets both explicitly.
func (s *Store) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *Store) label(speaker conversation.Speaker) string {
	if speaker == conversation.SpeakerAgent {
		return s.agentLabel
	}
	return userLabel
}
