// Package call tracks the lifecycle of the single voice call session.
// Transitions are driven only by voice-SDK events; user start/stop
// requests are guarded and never change state by themselves.
package call

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/nmorales/voicedesk/internal/model/call"
	"github.com/nmorales/voicedesk/internal/notify"
)

var (
	ErrNotReady      = errors.New("voice SDK not ready")
	ErrAlreadyActive = errors.New("call already active")
	ErrNoActiveCall  = errors.New("no active call to stop")
)

// Tracker is the finite-state view of call status.
type Tracker struct {
	mu      sync.RWMutex
	session call.Session
	ready   bool
	sink    notify.Sink
	now     func() time.Time
}

// NewTracker starts in Idle with the SDK not yet ready.
func NewTracker(sink notify.Sink) *Tracker {
	return &Tracker{
		session: call.Session{State: call.StateIdle},
		sink:    sink,
		now:     time.Now,
	}
}

// SetReady marks whether the voice SDK has finished initializing.
func (t *Tracker) SetReady(ready bool) {
	t.mu.Lock()
	t.ready = ready
	t.mu.Unlock()
}

// Session returns the current session snapshot.
func (t *Tracker) Session() call.Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.session
}

// Active reports whether voice input is currently being captured.
func (t *Tracker) Active() bool {
	return t.Session().Active()
}

// HandleCallStart transitions into Active on the SDK's call-start event.
// StartedAt is stamped only on the first call of the session.
func (t *Tracker) HandleCallStart() {
	t.mu.Lock()
	t.session.State = call.StateActive
	if t.session.StartedAt.IsZero() {
		t.session.StartedAt = t.now()
	}
	t.mu.Unlock()

	log.Printf("[call] call started")
	t.sink.CallStateChanged(call.StateActive)
	t.sink.Notice("success", "Call started - agent is listening")
}

// HandleCallEnd transitions Active into Disconnected.
func (t *Tracker) HandleCallEnd() {
	t.mu.Lock()
	if t.session.State != call.StateActive {
		t.mu.Unlock()
		return
	}
	t.session.State = call.StateDisconnected
	t.mu.Unlock()

	log.Printf("[call] call ended")
	t.sink.CallStateChanged(call.StateDisconnected)
	t.sink.Notice("info", "Call ended")
}

// HandleError moves any state into Error. The status surface still
// presents "Connected" for this state; see call.State.StatusText.
func (t *Tracker) HandleError(message string) {
	t.mu.Lock()
	t.session.State = call.StateError
	t.mu.Unlock()

	log.Printf("[call] sdk error: %s", message)
	t.sink.CallStateChanged(call.StateError)
	t.sink.Notice("error", "Call error: "+message)
}

// RequestStart validates a user start-call request. On success the state
// shows Connecting until the SDK confirms with call-start.
func (t *Tracker) RequestStart() error {
	t.mu.Lock()
	if !t.ready {
		t.mu.Unlock()
		log.Printf("[call] start rejected: sdk not ready")
		t.sink.Notice("error", "Voice widget not ready - please wait")
		return ErrNotReady
	}
	if t.session.State == call.StateActive {
		t.mu.Unlock()
		log.Printf("[call] start rejected: call already active")
		return ErrAlreadyActive
	}
	t.session.State = call.StateConnecting
	t.mu.Unlock()

	t.sink.CallStateChanged(call.StateConnecting)
	t.sink.Notice("info", "Starting call...")
	return nil
}

// RequestStop validates a user stop-call request.
func (t *Tracker) RequestStop() error {
	t.mu.RLock()
	ready, state := t.ready, t.session.State
	t.mu.RUnlock()

	if !ready {
		log.Printf("[call] stop rejected: sdk not ready")
		return ErrNotReady
	}
	if state != call.StateActive {
		log.Printf("[call] stop rejected: no active call")
		return ErrNoActiveCall
	}

	t.sink.Notice("info", "Ending call...")
	return nil
}
