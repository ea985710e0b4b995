package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/expense-bot/internal/api/middleware"
	"github.com/dvloznov/expense-bot/internal/assistant"
	"github.com/dvloznov/expense-bot/internal/ledger"
)

type cannedModel struct {
	raw string
}

func (m cannedModel) Generate(ctx context.Context, req assistant.ModelRequest) (string, error) {
	return m.raw, nil
}

func newTestEnv(t *testing.T) (*cliEnv, *ledger.MemoryRepository) {
	t.Helper()
	t.Setenv("EXPENSEBOT_DATABASE_DRIVER", "memory")
	repo := ledger.NewMemoryRepository()
	env := &cliEnv{
		openRepo: func(ctx context.Context) (ledger.Repository, error) {
			return repo, nil
		},
	}
	return env, repo
}

func run(t *testing.T, env *cliEnv, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(env)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAddAndBalance(t *testing.T) {
	env, repo := newTestEnv(t)

	out, err := run(t, env, "", "--user", "u1", "add", "expense", "30", "--currency", "USD", "--category", "food")
	require.NoError(t, err)
	assert.Equal(t, "✅ Created expense: 30.0 USD (food)\n", out)

	_, err = run(t, env, "", "--user", "u1", "add", "income", "2000")
	require.NoError(t, err)

	out, err = run(t, env, "", "--user", "u1", "balance")
	require.NoError(t, err)
	assert.Equal(t, "Balance: 1970.00 CAD\n", out)

	txs, err := repo.List(context.Background(), ledger.Query{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	out, err = run(t, env, "", "--user", "someone-else", "balance")
	require.NoError(t, err)
	assert.Equal(t, "Balance: 0.00 CAD\n", out)
}

func TestReportCommands_ValidationReplies(t *testing.T) {
	env, _ := newTestEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad type filter", []string{"transactions", "--type", "refund"}, "Error executing get_transactions"},
		{"bad month", []string{"summary", "monthly", "--month", "13"}, "Error executing get_monthly_summary"},
		{"bad date", []string{"summary", "daily", "--date", "yesterday"}, "Error executing get_daily_summary"},
		{"trend window too long", []string{"trends", "--days", "400"}, "Error executing get_spending_trends"},
		{"bad amount", []string{"add", "expense", "lots"}, "Error executing create_expense"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, env, "", append([]string{"--user", "u1"}, tt.args...)...)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(out, tt.want), "got %q", out)
		})
	}
}

func TestReportCommands_Succeed(t *testing.T) {
	env, _ := newTestEnv(t)
	_, err := run(t, env, "", "--user", "u1", "add", "expense", "12.5", "--category", "coffee")
	require.NoError(t, err)

	for _, args := range [][]string{
		{"transactions", "--limit", "5", "--type", "expense"},
		{"summary", "daily"},
		{"summary", "weekly"},
		{"summary", "monthly"},
		{"breakdown", "--category", "COFFEE"},
		{"trends", "--days", "7"},
		{"stats"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			out, err := run(t, env, "", append([]string{"--user", "u1"}, args...)...)
			require.NoError(t, err)
			assert.NotEmpty(t, strings.TrimSpace(out))
			assert.NotContains(t, out, "Error executing")
		})
	}
}

func TestChat(t *testing.T) {
	env, _ := newTestEnv(t)
	env.openModel = func(ctx context.Context) (assistant.Model, error) {
		return cannedModel{raw: `{"tool": "get_balance", "arguments": {}, "error": null}`}, nil
	}

	out, err := run(t, env, "", "--user", "u1", "chat", "what's", "my", "balance?")
	require.NoError(t, err)
	assert.Equal(t, "Balance: 0.00 CAD\n", out)

	out, err = run(t, env, "balance?\n\nand now?\n", "--user", "u1", "chat")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "Balance: 0.00 CAD"))
}

func TestMigrate(t *testing.T) {
	env, _ := newTestEnv(t)

	out, err := run(t, env, "", "migrate")
	require.NoError(t, err)
	assert.Equal(t, "Schema for memory is up to date.\n", out)
}

func TestSyncNotion_RequiresCredentials(t *testing.T) {
	env, _ := newTestEnv(t)
	t.Setenv("NOTION_TOKEN", "")
	t.Setenv("EXPENSEBOT_NOTION_TOKEN", "")

	_, err := run(t, env, "", "--user", "u1", "sync-notion")
	assert.ErrorContains(t, err, "notion token and database id are required")

	_, err = run(t, env, "", "--user", "u1", "sync-notion", "--notion-token", "t", "--notion-db-id", "db", "--start-date", "2025-03-10", "--end-date", "2025-03-01")
	assert.ErrorContains(t, err, "--end-date must not be before --start-date")
}

func TestToken(t *testing.T) {
	env, _ := newTestEnv(t)

	_, err := run(t, env, "", "--user", "u1", "token")
	assert.ErrorContains(t, err, "auth.jwt_secret is not configured")

	t.Setenv("EXPENSEBOT_AUTH_JWT_SECRET", "s3cret")
	out, err := run(t, env, "", "--user", "u1", "token", "--ttl", "1h")
	require.NoError(t, err)

	subject, err := middleware.NewAuthenticator("s3cret", "expense-bot").Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u1", subject)
}
