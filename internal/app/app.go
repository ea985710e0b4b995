// Package app builds the long-lived components shared by the binaries from
// a loaded configuration.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/expense-bot/internal/assistant"
	"github.com/dvloznov/expense-bot/internal/config"
	"github.com/dvloznov/expense-bot/internal/gateway"
	"github.com/dvloznov/expense-bot/internal/gateway/telegram"
	"github.com/dvloznov/expense-bot/internal/gateway/whatsapp"
	infraBQ "github.com/dvloznov/expense-bot/internal/infra/bigquery"
	"github.com/dvloznov/expense-bot/internal/infra/sqlstore"
	"github.com/dvloznov/expense-bot/internal/kv"
	"github.com/dvloznov/expense-bot/internal/ledger"
	"github.com/dvloznov/expense-bot/internal/llm"
	"github.com/dvloznov/expense-bot/internal/logger"
	"github.com/dvloznov/expense-bot/internal/media"
	"github.com/dvloznov/expense-bot/internal/metrics"
)

// NewLogger builds the process logger from the log section.
func NewLogger(cfg *config.Config, service string) zerolog.Logger {
	return logger.NewWithOptions(os.Stdout, logger.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: service,
	})
}

// OpenRepository connects the configured ledger backend.
func OpenRepository(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ledger.Repository, error) {
	switch cfg.Database.Driver {
	case "memory":
		return ledger.NewMemoryRepository(), nil
	case sqlstore.DriverSQLite, sqlstore.DriverPostgres:
		store, err := sqlstore.Open(cfg.Database.Driver, cfg.Database.DSN, log)
		if err != nil {
			return nil, fmt.Errorf("OpenRepository: %w", err)
		}
		return store, nil
	case "bigquery":
		repo, err := infraBQ.NewRepository(ctx, infraBQ.Config{
			Project: cfg.BigQuery.Project,
			Dataset: cfg.BigQuery.Dataset,
			Table:   cfg.BigQuery.Table,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("OpenRepository: %w", err)
		}
		return repo, nil
	}
	return nil, fmt.Errorf("OpenRepository: unknown driver %q", cfg.Database.Driver)
}

// OpenLedger wraps the configured backend in a ledger service using the
// configured timezone for day boundaries.
func OpenLedger(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*ledger.Service, error) {
	repo, err := OpenRepository(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("Ledger backend ready")
	return ledger.NewService(repo, ledger.WithLocation(cfg.Location())), nil
}

// memoryCleanupInterval sweeps expired keys from the in-process store.
const memoryCleanupInterval = time.Minute

// OpenKV returns Redis when an address is configured, otherwise an
// in-process store.
func OpenKV(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	if cfg.Redis.Addr == "" {
		return kv.NewMemoryStore(memoryCleanupInterval), nil
	}
	store, err := kv.NewRedisStore(ctx, kv.RedisConfig{
		Addr:      cfg.Redis.Addr,
		Username:  cfg.Redis.Username,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenKV: %w", err)
	}
	return store, nil
}

// OpenMedia returns the inbound media archive, or nil when archiving is off.
func OpenMedia(ctx context.Context, cfg *config.Config) (media.Store, error) {
	switch {
	case cfg.Media.Bucket != "":
		store, err := media.NewGCSStore(ctx, cfg.Media.Bucket)
		if err != nil {
			return nil, fmt.Errorf("OpenMedia: %w", err)
		}
		return store, nil
	case cfg.Media.Dir != "":
		store, err := media.NewLocalStore(cfg.Media.Dir)
		if err != nil {
			return nil, fmt.Errorf("OpenMedia: %w", err)
		}
		return store, nil
	}
	return nil, nil
}

// NewGenAI connects the model client from the gemini section.
func NewGenAI(ctx context.Context, cfg *config.Config) (*genai.Client, error) {
	client, err := llm.NewClient(ctx, llm.Config{
		APIKey:     cfg.Gemini.APIKey,
		APIVersion: cfg.Gemini.APIVersion,
		Project:    cfg.Gemini.Project,
		Location:   cfg.Gemini.Location,
		UseVertex:  cfg.Gemini.UseVertex,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGenAI: %w", err)
	}
	return client, nil
}

// IntentModel wraps the Gemini client in the circuit breaker.
func IntentModel(cfg *config.Config, client *genai.Client, collector metrics.Collector, log zerolog.Logger) assistant.Model {
	return assistant.NewBreakerModel(assistant.NewGeminiModel(client, cfg.Gemini.Temperature), assistant.BreakerConfig{
		Name:             "gemini",
		Timeout:          cfg.Gemini.Timeout,
		FailureThreshold: cfg.Gemini.FailureThreshold,
		OpenTimeout:      cfg.Gemini.OpenTimeout,
	}, log, collector)
}

// NewRegistry registers the ten ledger operations over l.
func NewRegistry(cfg *config.Config, l ledger.Ledger) (*assistant.Registry, error) {
	registry, err := assistant.NewLedgerRegistry(l, assistant.LedgerConfig{
		Currency: cfg.Assistant.DefaultCurrency,
		Location: cfg.Location(),
	})
	if err != nil {
		return nil, fmt.Errorf("NewRegistry: %w", err)
	}
	return registry, nil
}

// NewDispatcher builds a dispatcher over registry. store may be nil, which
// disables write idempotency.
func NewDispatcher(cfg *config.Config, registry *assistant.Registry, store kv.Store, collector metrics.Collector, log zerolog.Logger) *assistant.Dispatcher {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	opts := []assistant.DispatcherOption{
		assistant.WithMetrics(collector),
		assistant.WithDefaultCurrency(cfg.Assistant.DefaultCurrency),
	}
	if store != nil {
		opts = append(opts, assistant.WithIdempotency(store, cfg.Assistant.IdempotencyTTL))
	}
	return assistant.NewDispatcher(registry, log, opts...)
}

// NewAssistant wires resolver and dispatcher over l.
func NewAssistant(cfg *config.Config, model assistant.Model, l ledger.Ledger, store kv.Store, collector metrics.Collector, log zerolog.Logger) (*assistant.Assistant, error) {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	registry, err := NewRegistry(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("NewAssistant: %w", err)
	}

	resolver := assistant.NewResolver(model, registry, assistant.ResolverConfig{
		ShortModel:           cfg.Gemini.Model,
		LongModel:            cfg.Gemini.LongModel,
		LongMessageThreshold: cfg.Gemini.LongMessageThreshold,
		MaxMessageLength:     cfg.Assistant.MaxMessageLength,
		DefaultCurrency:      cfg.Assistant.DefaultCurrency,
	}, log, collector)

	return assistant.New(resolver, NewDispatcher(cfg, registry, store, collector, log)), nil
}

// WhatsAppClient runs in mock mode until real credentials are configured.
func WhatsAppClient(cfg *config.Config, log zerolog.Logger) *whatsapp.Client {
	return whatsapp.NewClient(whatsapp.Config{
		BaseURL:       cfg.WhatsApp.BaseURL,
		APIVersion:    cfg.WhatsApp.APIVersion,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		AccessToken:   cfg.WhatsApp.AccessToken,
		Mock:          cfg.WhatsAppMockMode(),
		Timeout:       cfg.WhatsApp.Timeout,
	}, log)
}

// TelegramClient returns nil when no bot token is configured.
func TelegramClient(cfg *config.Config, log zerolog.Logger) *telegram.Client {
	if cfg.Telegram.BotToken == "" {
		return nil
	}
	// Long polls hold the connection for PollTimeout, so the client timeout sits above it.
	httpClient := &http.Client{Timeout: cfg.Telegram.Timeout + cfg.Telegram.PollTimeout}
	return telegram.NewClient(httpClient, cfg.Telegram.BaseURL, cfg.Telegram.BotToken, log)
}

// Transports lists every configured outbound channel.
func Transports(cfg *config.Config, log zerolog.Logger) []gateway.Transport {
	transports := []gateway.Transport{WhatsAppClient(cfg, log)}
	if tg := TelegramClient(cfg, log); tg != nil {
		transports = append(transports, tg)
	}
	return transports
}
