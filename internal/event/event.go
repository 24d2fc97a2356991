// Package event defines the normalized events the router consumes from its
// two independent sources: the voice SDK relay and the upstream messaging
// channel. Handlers translate wire payloads into these types so the core
// never parses JSON itself.
package event

// Voice event types, mirroring the voice SDK's callback surface.
const (
	VoiceCallStart   = "call-start"
	VoiceCallEnd     = "call-end"
	VoiceMessage     = "message"
	VoiceVolumeLevel = "volume-level"
	VoiceSpeechStart = "speech-start"
	VoiceSpeechEnd   = "speech-end"
	VoiceError       = "error"
)

// Voice message subtypes carried inside a VoiceMessage event.
const (
	MessageTranscript   = "transcript"
	MessageFunctionCall = "function-call"
)

// Voice is a normalized voice-SDK event.
type Voice struct {
	Type string `json:"type"`

	// Message fields, set when Type == VoiceMessage.
	Subtype    string         `json:"subtype,omitempty"`
	Role       string         `json:"role,omitempty"`
	Transcript string         `json:"transcript,omitempty"`
	Name       string         `json:"name,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`

	// Volume level, set when Type == VoiceVolumeLevel. Range 0..1.
	Level float64 `json:"level,omitempty"`

	// Error description, set when Type == VoiceError.
	Message string `json:"message,omitempty"`
}

// Upstream event types, mirroring the messaging channel's event surface.
const (
	UpstreamConnect         = "connect"
	UpstreamDisconnect      = "disconnect"
	UpstreamConnectError    = "connect_error"
	UpstreamReconnect       = "reconnect"
	UpstreamReconnectFailed = "reconnect_failed"
	UpstreamError           = "error"
	UpstreamTranscript      = "transcript"
	UpstreamHistory         = "history"
	UpstreamStatusUpdate    = "status_update"
)

// HistoryItem is one replayed turn in an upstream history payload.
type HistoryItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Upstream is a normalized messaging-channel event.
type Upstream struct {
	Type string `json:"type"`

	// Transcript fields, set when Type == UpstreamTranscript.
	SpeakerType string `json:"speakerType,omitempty"`
	Text        string `json:"text,omitempty"`

	// History payload, set when Type == UpstreamHistory.
	History []HistoryItem `json:"history,omitempty"`

	// Connection details.
	Reason  string `json:"reason,omitempty"`
	Attempt int    `json:"attempt,omitempty"`
	Err     string `json:"error,omitempty"`
}
