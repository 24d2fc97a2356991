package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting for the dashboard service.
type Config struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	Webhook   WebhookConfig
	Dashboard DashboardConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	upstream, err := loadUpstreamConfig()
	if err != nil {
		return nil, err
	}

	webhook, err := loadWebhookConfig()
	if err != nil {
		return nil, err
	}

	dashboard, err := loadDashboardConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Upstream:  upstream,
		Webhook:   webhook,
		Dashboard: dashboard,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// UpstreamConfig describes the messaging-channel connection.
type UpstreamConfig struct {
	URL         string
	MaxAttempts int
	Backoff     time.Duration
}

// Enabled reports whether an upstream endpoint was configured.
func (c UpstreamConfig) Enabled() bool {
	return c.URL != ""
}

func loadUpstreamConfig() (UpstreamConfig, error) {
	attempts := 5
	if override, err := parseOptionalIntEnv("UPSTREAM_MAX_RECONNECTS"); err != nil {
		return UpstreamConfig{}, err
	} else if override != nil {
		if *override < 1 {
			attempts = 1
		} else {
			attempts = *override
		}
	}

	backoffMs := 2000
	if override, err := parseOptionalIntEnv("UPSTREAM_BACKOFF_MS"); err != nil {
		return UpstreamConfig{}, err
	} else if override != nil && *override > 0 {
		backoffMs = *override
	}

	return UpstreamConfig{
		URL:         strings.TrimSpace(os.Getenv("UPSTREAM_URL")),
		MaxAttempts: attempts,
		Backoff:     time.Duration(backoffMs) * time.Millisecond,
	}, nil
}

// WebhookConfig describes the booking automation endpoint.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// Enabled reports whether a booking endpoint was configured.
func (c WebhookConfig) Enabled() bool {
	return c.URL != ""
}

func loadWebhookConfig() (WebhookConfig, error) {
	timeoutSeconds := 10
	if override, err := parseOptionalIntEnv("BOOKING_WEBHOOK_TIMEOUT"); err != nil {
		return WebhookConfig{}, err
	} else if override != nil && *override > 0 {
		timeoutSeconds = *override
	}

	return WebhookConfig{
		URL:     strings.TrimSpace(os.Getenv("BOOKING_WEBHOOK_URL")),
		Timeout: time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// DashboardConfig tunes presentation policy.
type DashboardConfig struct {
	AgentLabel    string
	AgentPacing   time.Duration
	BookingIntent string
}

func loadDashboardConfig() (DashboardConfig, error) {
	// Agent-originated upstream messages are held this long while the
	// typing indicator shows. UX pacing, deliberately overridable.
	pacingMs := 1000
	if override, err := parseOptionalIntEnv("AGENT_PACING_MS"); err != nil {
		return DashboardConfig{}, err
	} else if override != nil && *override >= 0 {
		pacingMs = *override
	}

	return DashboardConfig{
		AgentLabel:    getEnvOrDefault("AGENT_DISPLAY_NAME", "Sarah"),
		AgentPacing:   time.Duration(pacingMs) * time.Millisecond,
		BookingIntent: getEnvOrDefault("BOOKING_INTENT_NAME", "Your appointment is confirmed"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
