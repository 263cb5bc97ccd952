package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/otl-fi/assistant/internal/anthropic"
	"github.com/otl-fi/assistant/internal/api"
	"github.com/otl-fi/assistant/internal/calcom"
	"github.com/otl-fi/assistant/internal/config"
	"github.com/otl-fi/assistant/internal/conversation"
	"github.com/otl-fi/assistant/internal/hermes"
	"github.com/otl-fi/assistant/internal/language"
	"github.com/otl-fi/assistant/internal/llm"
	"github.com/otl-fi/assistant/internal/processor"
	"github.com/otl-fi/assistant/internal/slack"
	"github.com/otl-fi/assistant/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("assistant starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// Anthropic client
	if cfg.AnthropicAPIKey == "" {
		slog.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}
	claude := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	slog.Info("anthropic client ready", "model", cfg.AnthropicModel)

	// Language oracle
	oracle := llm.New(claude, cfg.BookingConfidence, cfg.WebsiteInfo, slog.Default())

	// Cal.com calendar
	if cfg.CalAPIKey == "" {
		slog.Error("CAL_COM_API_KEY is required")
		os.Exit(1)
	}
	calendar := calcom.NewClient(cfg.CalAPIKey, cfg.CalUsername, slog.Default())

	// Conversation engine
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Error("invalid timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}
	selector := conversation.NewSelector(loc)
	booking := conversation.NewCoordinator(oracle, calendar, cfg.BookingConfidence, cfg.BookingRetries, cfg.Timezone, slog.Default())
	orchestrator := conversation.NewOrchestrator(oracle, calendar, selector, booking, language.Detect,
		conversation.Options{
			EventTypeSlug: cfg.CalEventTypeSlug,
			CalUsername:   cfg.CalUsername,
			HorizonDays:   cfg.HorizonDays,
			Timezone:      cfg.Timezone,
			Signature:     cfg.AssistantSignature,
		}, slog.Default())

	// NATS/Hermes
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer hermesClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Slack poster (optional — bookings complete without the owner notice)
	var notifier processor.Notifier
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		notifier = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		slog.Warn("slack not configured — running without booking notices")
	}

	// Processor — the main pipeline
	proc := processor.New(db, orchestrator, hermesClient, notifier, slog.Default())

	// Subscribe to inbound mail events
	if err := hermesClient.Subscribe(hermes.SubjectInboundMessage, proc.HandleInboundMessage); err != nil {
		slog.Error("failed to subscribe to inbound messages", "error", err)
		os.Exit(1)
	}

	// Retention cleanup
	go runRetention(ctx, db, cfg.RetentionDays)

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, db)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if err := hermesClient.Publish("swarm.agent.assistant.registered", map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("assistant ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("assistant stopped")
}

func runRetention(ctx context.Context, db *store.Store, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := db.CleanupIdle(ctx, time.Duration(retentionDays)*24*time.Hour)
			if err != nil {
				slog.Error("retention cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("retention cleanup", "threads_removed", removed)
			}
		}
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
