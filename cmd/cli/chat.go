package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvloznov/expense-bot/internal/app"
	"github.com/dvloznov/expense-bot/internal/assistant"
)

func newChatCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [MESSAGE...]",
		Short: "Talk to the assistant; reads lines from stdin when no message is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := env.context(cmd)

			model, err := env.openModel(ctx)
			if err != nil {
				return err
			}
			l, err := env.openLedger(ctx)
			if err != nil {
				return err
			}
			defer l.Close()

			a, err := app.NewAssistant(env.cfg, model, l, nil, nil, env.log)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) > 0 {
				fmt.Fprintln(out, a.Reply(ctx, assistant.Message{Text: strings.Join(args, " "), UserID: env.userID}))
				return nil
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			fmt.Fprint(out, "> ")
			for scanner.Scan() {
				if text := strings.TrimSpace(scanner.Text()); text != "" {
					fmt.Fprintln(out, a.Reply(ctx, assistant.Message{Text: text, UserID: env.userID}))
				}
				fmt.Fprint(out, "> ")
			}
			fmt.Fprintln(out)
			return scanner.Err()
		},
	}
}
