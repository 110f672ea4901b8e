package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmatosp/contaclara/internal/cli"
	"github.com/jmatosp/contaclara/internal/discovery"
	"github.com/jmatosp/contaclara/internal/service"
)

func discoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Group unclassified transactions into rule candidates",
		Long: `Group the transactions still on the OPEN leaf by normalized description
and rank the groups, so one new rule created from the top group resolves many
transactions at once.`,
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

			filter, err := discoveryFilterFromFlags(cmd)
			if err != nil {
				return err
			}

			eng := discovery.New(store, store)
			candidates, err := eng.Discover(ctx, user, filter)
			if err != nil {
				return fmt.Errorf("discovery failed: %w", err)
			}

			fmt.Println(cli.FormatTitle(fmt.Sprintf("Discovery candidates (%d)", len(candidates))))
			fmt.Print(cli.RenderDiscoveryTable(candidates))
			return nil
		},
	}

	cmd.Flags().String("from", "", "only consider transactions on or after this date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "only consider transactions on or before this date (YYYY-MM-DD)")
	cmd.Flags().Float64("min-amount", 0, "minimum absolute amount")
	cmd.Flags().Float64("max-amount", 0, "maximum absolute amount")
	cmd.Flags().String("sort", service.SortByCount, "sort key: count, totalAbsAmount, lastSeen")
	cmd.Flags().String("dir", service.SortDesc, "sort direction: asc, desc")
	cmd.Flags().Int("limit", 20, "maximum groups to show")
	return cmd
}

func discoveryFilterFromFlags(cmd *cobra.Command) (service.DiscoveryFilter, error) {
	var filter service.DiscoveryFilter
	var err error

	from, _ := cmd.Flags().GetString("from")
	if filter.DateFrom, err = parseDateFlag(from); err != nil {
		return filter, err
	}
	to, _ := cmd.Flags().GetString("to")
	if filter.DateTo, err = parseDateFlag(to); err != nil {
		return filter, err
	}

	if minAmount, _ := cmd.Flags().GetFloat64("min-amount"); minAmount > 0 {
		filter.MinAbsAmount = &minAmount
	}
	if maxAmount, _ := cmd.Flags().GetFloat64("max-amount"); maxAmount > 0 {
		filter.MaxAbsAmount = &maxAmount
	}

	filter.SortBy, _ = cmd.Flags().GetString("sort")
	filter.SortDir, _ = cmd.Flags().GetString("dir")
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	return filter, nil
}
