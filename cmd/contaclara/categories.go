package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmatosp/contaclara/internal/cli"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Browse and extend the category taxonomy",
	}

	cmd.AddCommand(categoriesListCmd())
	cmd.AddCommand(categoriesAddCmd())
	return cmd
}

func categoriesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List taxonomy leaves with their ids",
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

			leaves, err := store.ListLeaves(ctx, user)
			if err != nil {
				return fmt.Errorf("failed to list categories: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tCATEGORY")
			for _, l := range leaves {
				scope := ""
				if l.UserID != "" {
					scope = " (reserved)"
				}
				_, _ = fmt.Fprintf(w, "%d\t%s > %s > %s%s\n", l.LeafID, l.Level1Name, l.Level2Name, l.LeafName, scope)
			}
			return w.Flush()
		},
	}
}

func categoriesAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <level1> <level2> <leaf>",
		Short: "Add a taxonomy leaf, creating missing ancestors",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, cleanup, err := openStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			id, err := store.EnsureLeaf(ctx, args[0], args[1], args[2])
			if err != nil {
				return fmt.Errorf("failed to add category: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("category %s > %s > %s ready (leaf id %d)", args[0], args[1], args[2], id)))
			return nil
		},
	}
}
