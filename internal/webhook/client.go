// Package webhook posts booking requests to the external automation
// endpoint. Fire-and-forget: no retry, no idempotency key.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Booking is the structured appointment payload forwarded verbatim.
type Booking struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Location  string `json:"location"`
	Summary   string `json:"summary"`
}

// Sender hands a booking to the external collaborator.
type Sender interface {
	Send(ctx context.Context, booking Booking) error
}

// Client posts bookings as JSON over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a webhook client for the given endpoint URL.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send posts the booking and logs the endpoint's JSON response. Any
// non-2xx status or transport error is returned; callers do not retry.
func (c *Client) Send(ctx context.Context, booking Booking) error {
	payload, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("marshal booking: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build booking request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post booking: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("booking webhook returned %d: %s", resp.StatusCode, body)
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err == nil {
		log.Printf("[webhook] booking response: %v", result)
	} else {
		log.Printf("[webhook] booking accepted, non-JSON response (%d bytes)", len(body))
	}
	return nil
}
