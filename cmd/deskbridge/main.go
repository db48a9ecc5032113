// Deskbridge server — receives helpdesk webhooks, runs the integration
// pipeline against the tracker, chat and LLM services, and serves the
// operator API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jumpdesk/deskbridge/pkg/api"
	"github.com/jumpdesk/deskbridge/pkg/config"
	"github.com/jumpdesk/deskbridge/pkg/coordinator"
	"github.com/jumpdesk/deskbridge/pkg/events"
	"github.com/jumpdesk/deskbridge/pkg/helpdesk"
	"github.com/jumpdesk/deskbridge/pkg/llm"
	"github.com/jumpdesk/deskbridge/pkg/models"
	"github.com/jumpdesk/deskbridge/pkg/notifier"
	"github.com/jumpdesk/deskbridge/pkg/observability"
	"github.com/jumpdesk/deskbridge/pkg/pipeline"
	"github.com/jumpdesk/deskbridge/pkg/slack"
	"github.com/jumpdesk/deskbridge/pkg/tracker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	envPath := flag.String("env-file", ".env", "Path to the .env file")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", *envPath, "error", err)
	}

	// 1. Configuration and logging
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))
	slog.Info("Starting deskbridge", "http_port", cfg.HTTPPort)

	// 2. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	// 3. External service adapters
	helpdeskClient := helpdesk.NewClient(cfg.HelpdeskBaseURL, cfg.HelpdeskAPIToken, cfg.HelpdeskAdminID, cfg.AdapterTimeout)
	trackerClient := tracker.NewClient(cfg.TrackerBaseURL, cfg.TrackerAPIToken, cfg.TrackerDatabaseID, cfg.AdapterTimeout)
	llmClient := llm.NewClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, cfg.AdapterTimeout)

	slackClient := slack.NewClient(cfg.SlackBotToken, cfg.SlackWorkspaceURL, cfg.AdapterTimeout)
	if cfg.SlackAPIURL != "" {
		slackClient = slack.NewClientWithAPIURL(cfg.SlackBotToken, cfg.SlackWorkspaceURL, cfg.SlackAPIURL, cfg.AdapterTimeout)
	}
	slog.Info("External adapters initialized",
		"helpdesk", cfg.HelpdeskBaseURL, "tracker", cfg.TrackerBaseURL, "llm_model", cfg.LLMModel)

	// 4. Pipeline engine and coordinator. The engine publishes through the
	// coordinator, which is constructed after it, so the publisher closure
	// dereferences lazily.
	var coord *coordinator.Coordinator
	engine := pipeline.NewEngine(pipeline.Adapters{
		Helpdesk:      helpdeskClient,
		KnowledgeBase: trackerClient,
		Chat:          slackClient,
		LLM:           llmClient,
	}, pipeline.PublisherFunc(func(req *models.Request) {
		coord.BroadcastUpdate(req)
	}), metrics)

	// 5. WebSocket event delivery. The connection manager reads catch-up
	// snapshots from the coordinator, which is constructed last; the lazy
	// registry closes that cycle.
	connManager := events.NewConnectionManager(lazyRegistry{&coord}, metrics, cfg.WSWriteTimeout)
	coord = coordinator.New(engine, events.NewPublisher(connManager), metrics, cfg.MaxConcurrentRequests)
	slog.Info("Coordinator started", "max_concurrent", cfg.MaxConcurrentRequests)

	// 6. Retention sweeper
	sweeper := coordinator.NewSweeper(coord, cfg.RequestRetention, cfg.SweepInterval)
	sweeper.Start(context.Background())
	defer sweeper.Stop()

	// 7. Done notifier
	doneNotifier := notifier.New(slackClient, helpdeskClient, cfg.DoneChannelID, metrics)

	// 8. HTTP server
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	server := api.NewServer(coord, trackerClient, doneNotifier, connManager, metricsHandler, cfg.TrackerDonePropertyID)

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: stop accepting HTTP first, then drain runs.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	coord.Stop(shutdownCtx)

	slog.Info("Shutdown complete")
}

// lazyRegistry defers the coordinator dereference to call time, so the
// connection manager can be built before the coordinator exists.
type lazyRegistry struct {
	coord **coordinator.Coordinator
}

func (l lazyRegistry) Get(id string) (*models.Request, error) { return (*l.coord).Get(id) }
func (l lazyRegistry) List() []*models.Request                { return (*l.coord).List() }
