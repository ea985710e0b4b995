package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dvloznov/expense-bot/internal/api/middleware"
	"github.com/dvloznov/expense-bot/internal/app"
	"github.com/dvloznov/expense-bot/internal/chatbot"
	"github.com/dvloznov/expense-bot/internal/config"
	"github.com/dvloznov/expense-bot/internal/gateway"
	"github.com/dvloznov/expense-bot/internal/gateway/telegram"
	"github.com/dvloznov/expense-bot/internal/llm"
	"github.com/dvloznov/expense-bot/internal/logger"
	"github.com/dvloznov/expense-bot/internal/metrics"
)

func main() {
	configPath := flag.String("config", os.Getenv("EXPENSEBOT_CONFIG"), "path to a config file (or set EXPENSEBOT_CONFIG)")
	dropPending := flag.Bool("drop-pending", false, "discard updates queued while the bot was offline")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := app.NewLogger(cfg, "chatbot")

	tg := app.TelegramClient(cfg, log)
	if tg == nil {
		log.Fatal().Msg("Telegram bot token is required (telegram.bot_token)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	registry := prometheus.NewRegistry()
	collector := metrics.NewPrometheusCollector("chatbot")
	if err := collector.Register(registry); err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}

	store, err := app.OpenKV(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open key-value store")
	}
	defer store.Close()

	genaiClient, err := app.NewGenAI(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	persona := chatbot.PersonaFromConfig(cfg.Chatbot)
	opts := []chatbot.Option{chatbot.WithMetrics(collector)}
	if persona.Name == "sales" {
		opts = append(opts, chatbot.WithFunctions(chatbot.SalesFunctions(time.Now)))
	}
	if persona.Features.AudioInput {
		opts = append(opts, chatbot.WithTranscriber(llm.NewGeminiTranscriber(genaiClient, cfg.Gemini.TranscriptionModel)))
	}
	if persona.Features.AudioOutput {
		opts = append(opts, chatbot.WithSynthesizer(llm.NewGeminiSynthesizer(genaiClient, cfg.Gemini.SpeechModel, cfg.Gemini.Voice)))
	}
	bot := chatbot.New(persona, chatbot.NewGeminiGenerator(genaiClient), store, []gateway.Transport{tg}, log, opts...)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler(registry))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"persona": persona.Name,
		})
	})
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics server stopped")
		}
	}()

	poller := telegram.NewPoller(tg, bot.HandleBatch, log,
		telegram.WithPollTimeout(cfg.Telegram.PollTimeout),
		telegram.WithDropPending(*dropPending),
	)

	me, err := tg.GetMe(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Telegram token rejected")
	}

	log.Info().Str("persona", persona.Name).Str("bot", me.Username).Msg("Starting Telegram chatbot")
	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Poller stopped with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Metrics server forced to shutdown")
	}

	log.Info().Msg("Chatbot exited")
}
