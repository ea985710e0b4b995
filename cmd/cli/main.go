package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/expense-bot/internal/app"
	"github.com/dvloznov/expense-bot/internal/assistant"
	"github.com/dvloznov/expense-bot/internal/config"
	"github.com/dvloznov/expense-bot/internal/ledger"
	"github.com/dvloznov/expense-bot/internal/logger"
)

func main() {
	if err := newRootCmd(&cliEnv{}).Execute(); err != nil {
		os.Exit(1)
	}
}

// cliEnv carries what every command needs once flags are parsed. The open
// hooks default to the configured backends.
type cliEnv struct {
	configPath string
	userID     string

	cfg *config.Config
	log zerolog.Logger

	openRepo  func(ctx context.Context) (ledger.Repository, error)
	openModel func(ctx context.Context) (assistant.Model, error)
}

func newRootCmd(env *cliEnv) *cobra.Command {
	root := &cobra.Command{
		Use:           "cli",
		Short:         "Expense tracker command line",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&env.configPath, "config", os.Getenv("EXPENSEBOT_CONFIG"), "path to a config file (or set EXPENSEBOT_CONFIG)")
	root.PersistentFlags().StringVar(&env.userID, "user", envOr("EXPENSEBOT_USER", "cli"), "ledger user id (or set EXPENSEBOT_USER)")

	root.AddCommand(
		newChatCmd(env),
		newAddCmd(env),
		newBalanceCmd(env),
		newTransactionsCmd(env),
		newSummaryCmd(env),
		newBreakdownCmd(env),
		newTrendsCmd(env),
		newStatsCmd(env),
		newMigrateCmd(env),
		newSyncNotionCmd(env),
		newTokenCmd(env),
	)
	return root
}

func (e *cliEnv) load(cmd *cobra.Command) error {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	e.cfg = cfg
	// Logs go to stderr so command output stays pipeable.
	e.log = logger.NewWithOptions(cmd.ErrOrStderr(), logger.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: "cli",
	})
	if e.openRepo == nil {
		e.openRepo = func(ctx context.Context) (ledger.Repository, error) {
			return app.OpenRepository(ctx, e.cfg, e.log)
		}
	}
	if e.openModel == nil {
		e.openModel = func(ctx context.Context) (assistant.Model, error) {
			client, err := app.NewGenAI(ctx, e.cfg)
			if err != nil {
				return nil, err
			}
			return app.IntentModel(e.cfg, client, nil, e.log), nil
		}
	}
	return nil
}

func (e *cliEnv) context(cmd *cobra.Command) context.Context {
	return logger.WithContext(cmd.Context(), e.log)
}

// openLedger wraps the configured repository; callers Close the service.
func (e *cliEnv) openLedger(ctx context.Context) (*ledger.Service, error) {
	repo, err := e.openRepo(ctx)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return ledger.NewService(repo, ledger.WithLocation(e.cfg.Location())), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
