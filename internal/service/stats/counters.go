// Package stats derives session statistics purely from in-memory state,
// never from the presentation layer.
package stats

import (
	"fmt"
	"sync"
	"time"

	"github.com/nmorales/voicedesk/internal/model/conversation"
	"github.com/nmorales/voicedesk/internal/service/transcript"
)

// Snapshot is a point-in-time view of the session statistics.
type Snapshot struct {
	TotalMessages     int    `json:"totalMessages"`
	UserMessages      int    `json:"userMessages"`
	AgentMessages     int    `json:"agentMessages"`
	ConversationCount int    `json:"conversationCount"`
	CallActive        bool   `json:"callActive"`
	SessionDuration   string `json:"sessionDuration"`
	Timestamp         string `json:"timestamp"`
}

// Counters accumulates connection statistics for the process lifetime.
type Counters struct {
	mu            sync.RWMutex
	conversations int
	firstConnect  time.Time
	now           func() time.Time
}

// NewCounters starts from a baseline of one conversation: the session in
// progress before any connect event arrives.
func NewCounters() *Counters {
	return &Counters{
		conversations: 1,
		now:           time.Now,
	}
}

// Connected records one successful connect (or reconnect) to the
// messaging channel.
func (c *Counters) Connected() {
	c.mu.Lock()
	c.conversations++
	if c.firstConnect.IsZero() {
		c.firstConnect = c.now()
	}
	c.mu.Unlock()
}

// ConversationCount reports the number of conversations this session.
func (c *Counters) ConversationCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conversations
}

// SessionDuration formats the elapsed time since the first successful
// connection as whole minutes and seconds.
func (c *Counters) SessionDuration() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.firstConnect.IsZero() {
		return "0m 0s"
	}
	elapsed := c.now().Sub(c.firstConnect)
	return fmt.Sprintf("%dm %ds", int(elapsed.Minutes()), int(elapsed.Seconds())%60)
}

// Collect assembles a snapshot from the transcript store and call state.
func (c *Counters) Collect(store *transcript.Store, callActive bool) Snapshot {
	var user, agent int
	for _, msg := range store.Messages() {
		if msg.Speaker == conversation.SpeakerAgent {
			agent++
		} else {
			user++
		}
	}

	return Snapshot{
		TotalMessages:     store.Len(),
		UserMessages:      user,
		AgentMessages:     agent,
		ConversationCount: c.ConversationCount(),
		CallActive:        callActive,
		SessionDuration:   c.SessionDuration(),
		Timestamp:         c.now().UTC().Format(time.RFC3339),
	}
}
