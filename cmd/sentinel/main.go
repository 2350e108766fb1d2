// Package main is the entry point for alert-sentinel.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nugget/alert-sentinel/internal/admin"
	"github.com/nugget/alert-sentinel/internal/anomaly"
	"github.com/nugget/alert-sentinel/internal/buildinfo"
	"github.com/nugget/alert-sentinel/internal/config"
	"github.com/nugget/alert-sentinel/internal/dedup"
	"github.com/nugget/alert-sentinel/internal/events"
	"github.com/nugget/alert-sentinel/internal/feed"
	"github.com/nugget/alert-sentinel/internal/incident"
	"github.com/nugget/alert-sentinel/internal/notifier"
	"github.com/nugget/alert-sentinel/internal/poller"
	"github.com/nugget/alert-sentinel/internal/source"
	"github.com/nugget/alert-sentinel/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println(buildinfo.String())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid LOG_LEVEL", "error", err)
		os.Exit(1)
	}
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))

	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "error", err)
		os.Exit(1)
	}

	logger.Info("starting alert-sentinel",
		"version", buildinfo.Version,
		"env", cfg.Env,
		"team_id", cfg.TeamID,
		"feed1_channel_id", cfg.Feed1ChannelID,
		"feed2_channel_id", cfg.Feed2ChannelID,
		"poll_interval", cfg.PollInterval.String(),
		"fetch_top", cfg.FetchTop,
		"admin_address", fmt.Sprintf("%s:%d", cfg.AdminAddress, cfg.AdminPort),
		"telemetry_enabled", cfg.TelemetryEnabled(),
		"uptime_at_boot", humanize.Time(time.Now()),
	)

	bus := events.New()

	var n notifier.Notifier
	if cfg.ForwardWebhookURL == "" && cfg.IncidentWebhookURL == "" && cfg.Env != config.EnvProduction {
		logger.Warn("no webhook urls configured, using no-op notifier")
		n = notifier.NoopNotifier{Logger: logger}
	} else {
		webhookNotifier := notifier.NewWebhookNotifier(cfg.ForwardWebhookURL, cfg.IncidentWebhookURL, cfg.WebhookTLSInsecure, logger)
		webhookNotifier.SetEventBus(bus)
		n = webhookNotifier
	}

	detector := anomaly.New()
	incidentSvc := incident.New(detector, n, logger)
	incidentSvc.SetEventBus(bus)

	if cfg.TelemetryEnabled() {
		pub := telemetry.New(telemetry.Config{
			BrokerURL: cfg.MQTTBrokerURL,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Topic:     cfg.MQTTTopic,
		}, logger)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := pub.Start(ctx); err != nil {
			logger.Warn("telemetry: failed to start, continuing without it", "error", err)
		} else {
			incidentSvc.SetTelemetry(pub)
		}
		cancel()
	}

	alertHandler := feed.NewAlertHandler(n, incidentSvc, logger)
	alertHandler.SetEventBus(bus)
	monitorHandler := feed.NewMonitoringHandler(incidentSvc, logger)
	tracker := dedup.New(dedup.DefaultMaxSize, dedup.DefaultCleanupSize)

	msgSource := source.NewGraphSource(cfg.GraphBaseURL, cfg.TenantID, cfg.ClientID, cfg.ClientSecret, logger)

	p := poller.New(poller.Config{
		TeamID:         cfg.TeamID,
		Feed1ChannelID: cfg.Feed1ChannelID,
		Feed2ChannelID: cfg.Feed2ChannelID,
		PollInterval:   cfg.PollInterval,
		Top:            cfg.FetchTop,
	}, msgSource, alertHandler, monitorHandler, tracker, logger)
	p.SetEventBus(bus)

	adminServer := admin.NewServer(cfg.AdminAddress, cfg.AdminPort, p, detector, bus, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		p.Stop()
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = adminServer.Shutdown(shutdownCtx)
	}()

	p.Start(ctx)

	if err := adminServer.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Error("admin server failed", "error", err)
		p.Stop()
		os.Exit(1)
	}

	logger.Info("alert-sentinel stopped")
}
