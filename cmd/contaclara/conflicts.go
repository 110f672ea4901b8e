package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmatosp/contaclara/internal/cli"
	"github.com/jmatosp/contaclara/internal/engine"
	"github.com/jmatosp/contaclara/internal/service"
)

func conflictsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "List transactions with ambiguous rule matches",
		Long: `List every transaction where two or more rules matched at equal top
priority, with the full candidate list and the keyword text of each competing
rule. Conflicts are never resolved silently; adjust rule priorities or edit
the rules, then re-run 'contaclara classify'.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			user, err := requireUser()
			if err != nil {
				return err
			}

			store, cleanup, err := openStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			limit, _ := cmd.Flags().GetInt("limit")

			eng := engine.New(store)
			conflicts, err := eng.GetConflictTransactions(ctx, user, service.TransactionFilter{Limit: limit})
			if err != nil {
				return fmt.Errorf("failed to list conflicts: %w", err)
			}

			fmt.Println(cli.FormatTitle(fmt.Sprintf("Conflicts (%d)", len(conflicts))))
			fmt.Print(cli.RenderConflicts(conflicts))
			return nil
		},
	}

	cmd.Flags().Int("limit", service.MaxResultLimit, "maximum conflicts to show")
	return cmd
}
