package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jmatosp/contaclara/internal/cli"
	"github.com/jmatosp/contaclara/internal/engine"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Re-run rule matching over transactions",
		Long: `Re-run the user's classification rules over all transactions, or only the
ids passed with --id. Transactions matched by a unique top-priority rule are
classified; ambiguous matches are flagged as conflicts for review.`,
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

			txIDs, _ := cmd.Flags().GetStringSlice("id")

			eng := engine.New(store)

			var bar *progressbar.ProgressBar
			eng.Progress = func(done, total int) {
				if bar == nil {
					bar = progressbar.Default(int64(total), "classifying")
				}
				_ = bar.Set(done)
			}

			result, err := eng.ApplyClassification(ctx, user, txIDs)
			if err != nil {
				return fmt.Errorf("classification failed: %w", err)
			}
			if bar != nil {
				_ = bar.Finish()
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("classified %d transaction(s)", result.Updated)))
			if result.Conflicts > 0 {
				fmt.Println(cli.FormatWarning(fmt.Sprintf("%d conflict(s) need review — run 'contaclara conflicts'", result.Conflicts)))
			}
			return nil
		},
	}

	cmd.Flags().StringSlice("id", nil, "only reclassify these transaction ids")
	return cmd
}
