package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nmorales/voicedesk/internal/config"
	"github.com/nmorales/voicedesk/internal/handler"
	"github.com/nmorales/voicedesk/internal/notify"
	callsvc "github.com/nmorales/voicedesk/internal/service/call"
	routersvc "github.com/nmorales/voicedesk/internal/service/router"
	"github.com/nmorales/voicedesk/internal/service/stats"
	"github.com/nmorales/voicedesk/internal/service/transcript"
	"github.com/nmorales/voicedesk/internal/upstream"
	"github.com/nmorales/voicedesk/internal/webhook"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	hub := notify.NewHub(64)
	sink := notify.Tee{notify.LogSink{}, hub}

	store := transcript.NewStore(sink, cfg.Dashboard.AgentLabel)
	tracker := callsvc.NewTracker(sink)
	counters := stats.NewCounters()

	var bookings webhook.Sender = noopSender{}
	if cfg.Webhook.Enabled() {
		bookings = webhook.NewClient(cfg.Webhook.URL, cfg.Webhook.Timeout)
		log.Println("Booking webhook configured")
	} else {
		log.Println("BOOKING_WEBHOOK_URL not set, bookings will be dropped")
	}

	core := routersvc.New(routersvc.Config{
		AgentPacing:   cfg.Dashboard.AgentPacing,
		BookingIntent: cfg.Dashboard.BookingIntent,
	}, store, tracker, counters, nil, bookings, sink)

	var channel *upstream.Client
	if cfg.Upstream.Enabled() {
		channel = upstream.NewClient(upstream.Config{
			URL:         cfg.Upstream.URL,
			MaxAttempts: cfg.Upstream.MaxAttempts,
			Backoff:     cfg.Upstream.Backoff,
		}, core.UpstreamEvents())
		log.Printf("Messaging channel configured: %s", cfg.Upstream.URL)
	} else {
		log.Println("UPSTREAM_URL not set, running without a messaging channel")
	}
	core.SetPublisher(publisherOrNoop(channel))

	go core.Run(ctx)
	if channel != nil {
		go channel.Run(ctx)
	}

	router := handler.NewRouter(core, tracker, hub)

	startServer(ctx, cfg.Server, router)
}

// noopSender stands in when no booking endpoint is configured.
type noopSender struct{}

func (noopSender) Send(_ context.Context, booking webhook.Booking) error {
	log.Printf("[webhook] dropping booking for %s: no endpoint configured", booking.Name)
	return nil
}

// noopPublisher stands in when no messaging channel is configured.
type noopPublisher struct{}

func (noopPublisher) Emit(eventName string, _ any) error {
	log.Printf("[upstream] dropping %s emit: no channel configured", eventName)
	return nil
}

func publisherOrNoop(channel *upstream.Client) routersvc.Publisher {
	if channel == nil {
		return noopPublisher{}
	}
	return channel
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Voicedesk dashboard listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
