package main

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/dvloznov/expense-bot/internal/api/middleware"
	"github.com/dvloznov/expense-bot/internal/notionsync"
)

func newMigrateCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the ledger schema for the configured driver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening a SQL or BigQuery backend migrates it.
			repo, err := env.openRepo(env.context(cmd))
			if err != nil {
				return err
			}
			if err := repo.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema for %s is up to date.\n", env.cfg.Database.Driver)
			return nil
		},
	}
}

func newSyncNotionCmd(env *cliEnv) *cobra.Command {
	var (
		startDate string
		endDate   string
		token     string
		dbID      string
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "sync-notion",
		Short: "Export the user's transactions to a Notion database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = env.cfg.Notion.Token
			}
			if dbID == "" {
				dbID = env.cfg.Notion.DatabaseID
			}
			if token == "" || dbID == "" {
				return errors.New("notion token and database id are required (flags or notion.* config)")
			}

			opts := notionsync.SyncOptions{UserID: env.userID, DryRun: dryRun}
			loc := env.cfg.Location()
			if startDate != "" {
				d, err := civil.ParseDate(startDate)
				if err != nil {
					return fmt.Errorf("invalid --start-date, expected YYYY-MM-DD: %w", err)
				}
				opts.From = d.In(loc)
			}
			if endDate != "" {
				d, err := civil.ParseDate(endDate)
				if err != nil {
					return fmt.Errorf("invalid --end-date, expected YYYY-MM-DD: %w", err)
				}
				// The end date is inclusive.
				opts.To = d.AddDays(1).In(loc)
			}
			if !opts.From.IsZero() && !opts.To.IsZero() && !opts.From.Before(opts.To) {
				return errors.New("--end-date must not be before --start-date")
			}

			ctx := env.context(cmd)
			repo, err := env.openRepo(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			result, err := notionsync.SyncTransactions(ctx, repo, notionsync.NewNotionClient(token), dbID, opts)
			if err != nil {
				return err
			}

			prefix := ""
			if dryRun {
				prefix = "[DRY RUN] "
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%sCreated: %d, Skipped: %d, Failed: %d, Total: %d\n",
				prefix, result.Created, result.Skipped, result.Failed, result.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&startDate, "start-date", "", "first day to export, YYYY-MM-DD")
	cmd.Flags().StringVar(&endDate, "end-date", "", "last day to export, YYYY-MM-DD")
	cmd.Flags().StringVar(&token, "notion-token", "", "Notion API token (default notion.token)")
	cmd.Flags().StringVar(&dbID, "notion-db-id", "", "Notion database ID (default notion.database_id)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count what would be created without writing")
	return cmd
}

func newTokenCmd(env *cliEnv) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for --user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			auth := middleware.NewAuthenticator(env.cfg.Auth.JWTSecret, env.cfg.Auth.Issuer)
			if auth == nil {
				return errors.New("auth.jwt_secret is not configured")
			}
			signed, err := auth.Issue(env.userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
