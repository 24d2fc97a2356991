package conversation

import "time"

// Speaker identifies which side of the call produced an utterance.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "ai"
)

// ParseSpeaker maps wire values onto a known speaker, defaulting to the user.
func ParseSpeaker(raw string) (Speaker, bool) {
	switch raw {
	case string(SpeakerUser):
		return SpeakerUser, true
	case string(SpeakerAgent):
		return SpeakerAgent, true
	default:
		return SpeakerUser, false
	}
}

// Message is a single transcript turn. Immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ClockTime renders the timestamp the way the dashboard displays it.
func (m Message) ClockTime() string {
	return m.Timestamp.Format("03:04 PM")
}

// Day returns the calendar-day key used for date separators.
func (m Message) Day() string {
	return m.Timestamp.Format("2006-01-02")
}
