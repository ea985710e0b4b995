package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/expense-bot/internal/assistant"
	"github.com/dvloznov/expense-bot/internal/config"
	"github.com/dvloznov/expense-bot/internal/gateway"
	"github.com/dvloznov/expense-bot/internal/kv"
	"github.com/dvloznov/expense-bot/internal/ledger"
	"github.com/dvloznov/expense-bot/internal/media"
)

type cannedModel struct {
	raw   string
	calls int
}

func (m *cannedModel) Generate(ctx context.Context, req assistant.ModelRequest) (string, error) {
	m.calls++
	return m.raw, nil
}

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Database.Driver = "memory"
	return cfg
}

func TestOpenRepository_Drivers(t *testing.T) {
	ctx := context.Background()
	cfg := loadConfig(t)

	repo, err := OpenRepository(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &ledger.MemoryRepository{}, repo)
	require.NoError(t, repo.Close())

	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = filepath.Join(t.TempDir(), "expenses.db")
	repo, err = OpenRepository(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	cfg.Database.Driver = "mongo"
	_, err = OpenRepository(ctx, cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestOpenKV_MemoryWithoutAddr(t *testing.T) {
	store, err := OpenKV(context.Background(), loadConfig(t))
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &kv.MemoryStore{}, store)
}

func TestOpenMedia(t *testing.T) {
	ctx := context.Background()
	cfg := loadConfig(t)

	store, err := OpenMedia(ctx, cfg)
	require.NoError(t, err)
	assert.Nil(t, store)

	cfg.Media.Dir = t.TempDir()
	store, err = OpenMedia(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.IsType(t, &media.LocalStore{}, store)
	require.NoError(t, store.Close())
}

func TestTransports(t *testing.T) {
	cfg := loadConfig(t)

	transports := Transports(cfg, zerolog.Nop())
	require.Len(t, transports, 1)
	assert.Equal(t, gateway.ChannelWhatsApp, transports[0].Channel())

	cfg.Telegram.BotToken = "123:abc"
	transports = Transports(cfg, zerolog.Nop())
	require.Len(t, transports, 2)
	assert.Equal(t, gateway.ChannelTelegram, transports[1].Channel())
}

func TestNewAssistant_CreatesExpenseOnce(t *testing.T) {
	ctx := context.Background()
	cfg := loadConfig(t)

	l, err := OpenLedger(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer l.Close()
	store, err := OpenKV(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()

	model := &cannedModel{raw: `{"tool": "create_expense", "arguments": {"amount": 30, "currency": "USD", "category": "food"}, "error": null}`}
	a, err := NewAssistant(cfg, model, l, store, nil, zerolog.Nop())
	require.NoError(t, err)

	msg := assistant.Message{Text: "I spent 30 dollars on food", UserID: "u1", ID: "wamid.1"}
	first := a.Reply(ctx, msg)
	second := a.Reply(ctx, msg)

	assert.Equal(t, "✅ Created expense: 30.0 USD (food)", first)
	assert.Equal(t, first, second)
	txs, err := l.Transactions(ctx, "u1", 10, nil)
	require.NoError(t, err)
	assert.Len(t, txs, 1, "a redelivered message must not write twice")
}
