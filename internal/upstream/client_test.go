package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nmorales/voicedesk/internal/event"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitEvent(t *testing.T, ch chan event.Upstream, wanted string) event.Upstream {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == wanted {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", wanted)
			return event.Upstream{}
		}
	}
}

func TestClientDeliversTranscriptAndHistory(t *testing.T) {
	frames := []string{
		`{"event":"transcript","data":{"type":"ai","text":"Hello"}}`,
		`{"event":"history","data":{"data":[{"type":"user","text":"Hi"},{"type":"ai","text":"Hey"}]}}`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	events := make(chan event.Upstream, 16)
	client := NewClient(Config{URL: wsURL(server)}, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	waitEvent(t, events, event.UpstreamConnect)

	transcript := waitEvent(t, events, event.UpstreamTranscript)
	if transcript.SpeakerType != "ai" || transcript.Text != "Hello" {
		t.Fatalf("unexpected transcript event: %+v", transcript)
	}

	history := waitEvent(t, events, event.UpstreamHistory)
	if len(history.History) != 2 || history.History[0].Text != "Hi" {
		t.Fatalf("unexpected history event: %+v", history)
	}
}

func TestClientEmitWritesEnvelope(t *testing.T) {
	received := make(chan envelope, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var frame envelope
		if err := conn.ReadJSON(&frame); err == nil {
			received <- frame
		}
	}))
	defer server.Close()

	events := make(chan event.Upstream, 16)
	client := NewClient(Config{URL: wsURL(server)}, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	waitEvent(t, events, event.UpstreamConnect)

	err := client.Emit("transcript", map[string]string{"type": "user", "text": "hi", "source": "vapi"})
	if err != nil {
		t.Fatalf("Emit err: %v", err)
	}

	select {
	case frame := <-received:
		if frame.Event != "transcript" {
			t.Fatalf("unexpected frame: %+v", frame)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for emitted frame")
	}
}

func TestClientEmitWithoutConnection(t *testing.T) {
	events := make(chan event.Upstream, 1)
	client := NewClient(Config{URL: "ws://127.0.0.1:0"}, events)

	if err := client.Emit("transcript", map[string]string{}); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestClientReconnectExhaustion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening: every dial fails

	events := make(chan event.Upstream, 32)
	client := NewClient(Config{
		URL:         wsURL(server),
		MaxAttempts: 3,
		Backoff:     10 * time.Millisecond,
	}, events)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		client.Run(ctx)
		close(done)
	}()

	errorsSeen := 0
	for {
		ev := <-events
		switch ev.Type {
		case event.UpstreamConnectError:
			errorsSeen++
		case event.UpstreamReconnectFailed:
			if errorsSeen != 3 {
				t.Fatalf("expected 3 connect errors before exhaustion, got %d", errorsSeen)
			}
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("Run did not return after exhaustion")
			}
			return
		default:
			t.Fatalf("unexpected event %s", ev.Type)
		}
	}
}
