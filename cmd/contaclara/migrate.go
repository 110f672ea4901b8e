package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmatosp/contaclara/internal/cli"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cleanup, err := openStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Println(cli.FormatSuccess("database schema is up to date"))
			return nil
		},
	}
}
