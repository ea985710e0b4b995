package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/expense-bot/internal/app"
	"github.com/dvloznov/expense-bot/internal/assistant"
)

// dispatch runs op directly against the ledger and prints the same reply a
// chat user would get.
func (e *cliEnv) dispatch(cmd *cobra.Command, op assistant.Operation, args map[string]interface{}) error {
	ctx := e.context(cmd)
	l, err := e.openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	registry, err := app.NewRegistry(e.cfg, l)
	if err != nil {
		return err
	}
	args["user_id"] = e.userID
	reply := app.NewDispatcher(e.cfg, registry, nil, nil, e.log).Dispatch(ctx, assistant.ResolvedIntent{
		Operation: op,
		Arguments: args,
	})
	fmt.Fprintln(cmd.OutOrStdout(), reply)
	return nil
}

// changedArgs copies the named flags that were set on the command line.
func changedArgs(cmd *cobra.Command, names ...string) (map[string]interface{}, error) {
	args := map[string]interface{}{}
	for _, name := range names {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		key := flagKey(name)
		switch f.Value.Type() {
		case "int":
			v, err := cmd.Flags().GetInt(name)
			if err != nil {
				return nil, err
			}
			args[key] = v
		default:
			args[key] = f.Value.String()
		}
	}
	return args, nil
}

// flagKey maps kebab-case flags to operation argument names.
func flagKey(name string) string {
	switch name {
	case "start-date":
		return "start_date"
	case "end-date":
		return "end_date"
	case "type":
		return "type_filter"
	}
	return name
}

func newAddCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an expense or income",
	}
	for _, kind := range []struct {
		use string
		op  assistant.Operation
	}{
		{"expense", assistant.OpCreateExpense},
		{"income", assistant.OpCreateIncome},
	} {
		op := kind.op
		sub := &cobra.Command{
			Use:   kind.use + " AMOUNT",
			Short: "Record a " + kind.use,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				opArgs, err := changedArgs(cmd, "currency", "category", "description")
				if err != nil {
					return err
				}
				opArgs["amount"] = args[0]
				return env.dispatch(cmd, op, opArgs)
			},
		}
		sub.Flags().String("currency", "", "3-letter currency code (default from config)")
		sub.Flags().String("category", "", "category")
		sub.Flags().String("description", "", "free-text description")
		cmd.AddCommand(sub)
	}
	return cmd
}

func newBalanceCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show income minus expenses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.dispatch(cmd, assistant.OpGetBalance, map[string]interface{}{})
		},
	}
}

func newTransactionsCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List recent transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opArgs, err := changedArgs(cmd, "limit", "type")
			if err != nil {
				return err
			}
			return env.dispatch(cmd, assistant.OpGetTransactions, opArgs)
		},
	}
	cmd.Flags().Int("limit", 0, "how many to show (default 20, max 100)")
	cmd.Flags().String("type", "", "income or expense")
	return cmd
}

func newSummaryCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Income, expenses and net for a period",
	}

	daily := &cobra.Command{
		Use:   "daily",
		Short: "One day (default today)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opArgs, err := changedArgs(cmd, "date")
			if err != nil {
				return err
			}
			return env.dispatch(cmd, assistant.OpGetDailySummary, opArgs)
		},
	}
	daily.Flags().String("date", "", "YYYY-MM-DD")

	weekly := &cobra.Command{
		Use:   "weekly",
		Short: "Seven days from a start date (default this Monday)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opArgs, err := changedArgs(cmd, "start-date")
			if err != nil {
				return err
			}
			return env.dispatch(cmd, assistant.OpGetWeeklySummary, opArgs)
		},
	}
	weekly.Flags().String("start-date", "", "YYYY-MM-DD")

	monthly := &cobra.Command{
		Use:   "monthly",
		Short: "A calendar month (default current)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opArgs, err := changedArgs(cmd, "year", "month")
			if err != nil {
				return err
			}
			return env.dispatch(cmd, assistant.OpGetMonthlySummary, opArgs)
		},
	}
	monthly.Flags().Int("year", 0, "year")
	monthly.Flags().Int("month", 0, "month 1-12")

	cmd.AddCommand(daily, weekly, monthly)
	return cmd
}

func newBreakdownCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Totals per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opArgs, err := changedArgs(cmd, "start-date", "end-date", "category")
			if err != nil {
				return err
			}
			return env.dispatch(cmd, assistant.OpGetCategoryBreakdown, opArgs)
		},
	}
	cmd.Flags().String("start-date", "", "YYYY-MM-DD (default 30 days before end)")
	cmd.Flags().String("end-date", "", "YYYY-MM-DD (default today)")
	cmd.Flags().String("category", "", "only this category")
	return cmd
}

func newTrendsCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Daily income and expenses over recent days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opArgs, err := changedArgs(cmd, "days")
			if err != nil {
				return err
			}
			return env.dispatch(cmd, assistant.OpGetSpendingTrends, opArgs)
		},
	}
	cmd.Flags().Int("days", 0, "1-365 (default 30)")
	return cmd
}

func newStatsCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Counts, averages and maxima per kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.dispatch(cmd, assistant.OpGetTransactionStats, map[string]interface{}{})
		},
	}
}
