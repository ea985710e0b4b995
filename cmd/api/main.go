package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dvloznov/expense-bot/internal/api"
	"github.com/dvloznov/expense-bot/internal/api/handlers"
	"github.com/dvloznov/expense-bot/internal/api/middleware"
	"github.com/dvloznov/expense-bot/internal/app"
	"github.com/dvloznov/expense-bot/internal/config"
	"github.com/dvloznov/expense-bot/internal/gateway"
	"github.com/dvloznov/expense-bot/internal/jobs"
	"github.com/dvloznov/expense-bot/internal/jobs/inmemory"
	"github.com/dvloznov/expense-bot/internal/llm"
	"github.com/dvloznov/expense-bot/internal/metrics"
)

// maxStoredJobs bounds the job history kept for /api/jobs.
const maxStoredJobs = 1000

func main() {
	configPath := flag.String("config", os.Getenv("EXPENSEBOT_CONFIG"), "path to a YAML/JSON/TOML config file (or set EXPENSEBOT_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := app.NewLogger(cfg, "api")
	ctx := context.Background()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewPrometheusCollector("expensebot")
	if err := collector.Register(registry); err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}

	ledgerSvc, err := app.OpenLedger(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}
	defer ledgerSvc.Close()

	store, err := app.OpenKV(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open key-value store")
	}
	defer store.Close()

	genaiClient, err := app.NewGenAI(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	assistantSvc, err := app.NewAssistant(cfg, app.IntentModel(cfg, genaiClient, collector, log), ledgerSvc, store, collector, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build assistant")
	}

	processorOpts := []gateway.ProcessorOption{gateway.WithMetrics(collector)}
	if cfg.Assistant.TranscribeAudio {
		processorOpts = append(processorOpts, gateway.WithTranscriber(llm.NewGeminiTranscriber(genaiClient, cfg.Gemini.TranscriptionModel)))
	}
	if cfg.Quota.MaxMessagesPerChat > 0 {
		processorOpts = append(processorOpts, gateway.WithQuota(gateway.NewQuota(store, cfg.Quota.MaxMessagesPerChat, cfg.Quota.Window)))
	}
	archive, err := app.OpenMedia(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open media archive")
	}
	if archive != nil {
		defer archive.Close()
		processorOpts = append(processorOpts, gateway.WithArchive(archive))
	}
	if cfg.WhatsAppMockMode() {
		log.Warn().Msg("WhatsApp credentials not configured - outbound messages will only be logged")
	}
	processor := gateway.NewProcessor(assistantSvc, log, app.Transports(cfg, log), processorOpts...)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore(maxStoredJobs)
	jobQueue := inmemory.NewQueue(cfg.Jobs.QueueSize, cfg.Jobs.Workers, jobStore, log)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, jobs.ProcessMessagesHandler(processor)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	routes := api.Routes{
		Chat:         handlers.NewChatHandler(assistantSvc, log),
		Transactions: handlers.NewTransactionsHandler(ledgerSvc, cfg.Assistant.DefaultCurrency, log),
		Reports:      handlers.NewReportsHandler(ledgerSvc, log),
		Webhooks:     handlers.NewWebhooksHandler(jobQueue, cfg.WhatsApp.VerifyToken, cfg.Telegram.SecretToken, log),
		Jobs:         handlers.NewJobsHandler(jobStore, log),
		Metrics:      metrics.Handler(registry),
	}
	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if auth == nil {
		log.Warn().Msg("No JWT secret configured - /api routes are unauthenticated")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(routes, auth, collector, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop accepting webhooks before draining the queue they feed.
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
