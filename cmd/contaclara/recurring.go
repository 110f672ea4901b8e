package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmatosp/contaclara/internal/cli"
	"github.com/jmatosp/contaclara/internal/recurring"
	"github.com/jmatosp/contaclara/internal/service"
)

func recurringCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Detect recurring payment patterns",
		Long: `Scan classified transactions for groups that repeat with a stable amount
and merchant, and infer their cadence (weekly, monthly, quarterly, yearly)
with a confidence score.`,
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

			var filter service.RecurringFilter
			from, _ := cmd.Flags().GetString("from")
			if filter.DateFrom, err = parseDateFlag(from); err != nil {
				return err
			}
			to, _ := cmd.Flags().GetString("to")
			if filter.DateTo, err = parseDateFlag(to); err != nil {
				return err
			}
			filter.MinOccurrences, _ = cmd.Flags().GetInt("min-occurrences")
			filter.SortBy, _ = cmd.Flags().GetString("sort")
			filter.SortDir, _ = cmd.Flags().GetString("dir")
			filter.Limit, _ = cmd.Flags().GetInt("limit")

			eng := recurring.New(store, store)
			suggestions, err := eng.Detect(ctx, user, filter)
			if err != nil {
				return fmt.Errorf("recurring detection failed: %w", err)
			}

			fmt.Println(cli.FormatTitle(fmt.Sprintf("Recurring suggestions (%d)", len(suggestions))))
			fmt.Print(cli.RenderRecurringTable(suggestions))
			return nil
		},
	}

	cmd.Flags().String("from", "", "only consider transactions on or after this date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "only consider transactions on or before this date (YYYY-MM-DD)")
	cmd.Flags().Int("min-occurrences", service.MinOccurrencesFloor, "minimum occurrences per group (3-24)")
	cmd.Flags().String("sort", service.SortByOccurrences, "sort key: occurrences, absAmount")
	cmd.Flags().String("dir", service.SortDesc, "sort direction: asc, desc")
	cmd.Flags().Int("limit", 20, "maximum suggestions to show")
	return cmd
}
