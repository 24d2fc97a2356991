package call

import (
	"errors"
	"testing"
	"time"

	callmodel "github.com/nmorales/voicedesk/internal/model/call"
	"github.com/nmorales/voicedesk/internal/notify"
)

func newTestTracker() *Tracker {
	return NewTracker(notify.Tee{})
}

func TestCallStartFromIdle(t *testing.T) {
	tracker := newTestTracker()

	tracker.HandleCallStart()

	session := tracker.Session()
	if session.State != callmodel.StateActive {
		t.Fatalf("expected active, got %s", session.State)
	}
	if session.StartedAt.IsZero() {
		t.Fatal("expected startedAt to be stamped")
	}
}

func TestCallStartKeepsOriginalStartedAt(t *testing.T) {
	tracker := newTestTracker()
	first := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	times := []time.Time{first, first.Add(time.Hour)}
	tracker.now = func() time.Time {
		next := times[0]
		if len(times) > 1 {
			times = times[1:]
		}
		return next
	}

	tracker.HandleCallStart()
	tracker.HandleCallEnd()
	tracker.HandleCallStart()

	if got := tracker.Session().StartedAt; !got.Equal(first) {
		t.Fatalf("expected startedAt %v to be preserved, got %v", first, got)
	}
}

func TestCallEndOnlyFromActive(t *testing.T) {
	tracker := newTestTracker()

	tracker.HandleCallEnd()
	if got := tracker.Session().State; got != callmodel.StateIdle {
		t.Fatalf("expected idle, got %s", got)
	}

	tracker.HandleCallStart()
	tracker.HandleCallEnd()
	if got := tracker.Session().State; got != callmodel.StateDisconnected {
		t.Fatalf("expected disconnected, got %s", got)
	}
}

func TestErrorFromAnyState(t *testing.T) {
	tracker := newTestTracker()

	tracker.HandleCallStart()
	tracker.HandleError("boom")

	if got := tracker.Session().State; got != callmodel.StateError {
		t.Fatalf("expected error state, got %s", got)
	}
	// Error still presents as connected; deliberate product choice.
	if text := callmodel.StateError.StatusText(); text != "Connected" {
		t.Fatalf("expected non-alarming status, got %q", text)
	}

	// Recoverable: a new call-start leaves the error state.
	tracker.HandleCallStart()
	if got := tracker.Session().State; got != callmodel.StateActive {
		t.Fatalf("expected active after recovery, got %s", got)
	}
}

func TestRequestStartGuards(t *testing.T) {
	tracker := newTestTracker()

	if err := tracker.RequestStart(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	tracker.SetReady(true)
	tracker.HandleCallStart()
	if err := tracker.RequestStart(); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
	if got := tracker.Session().State; got != callmodel.StateActive {
		t.Fatalf("rejected start must not change state, got %s", got)
	}
}

func TestRequestStartSetsConnecting(t *testing.T) {
	tracker := newTestTracker()
	tracker.SetReady(true)

	if err := tracker.RequestStart(); err != nil {
		t.Fatalf("RequestStart err: %v", err)
	}
	if got := tracker.Session().State; got != callmodel.StateConnecting {
		t.Fatalf("expected connecting, got %s", got)
	}
}

func TestRequestStopGuards(t *testing.T) {
	tracker := newTestTracker()

	if err := tracker.RequestStop(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	tracker.SetReady(true)
	if err := tracker.RequestStop(); !errors.Is(err, ErrNoActiveCall) {
		t.Fatalf("expected ErrNoActiveCall, got %v", err)
	}
	if got := tracker.Session().State; got != callmodel.StateIdle {
		t.Fatalf("rejected stop must not change state, got %s", got)
	}

	tracker.HandleCallStart()
	if err := tracker.RequestStop(); err != nil {
		t.Fatalf("RequestStop err: %v", err)
	}
}
