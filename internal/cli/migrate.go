package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			pool, repo, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := repo.Migrate(ctx); err != nil {
				return err
			}
			fmt.Println(color.New(color.FgGreen).Sprint("Schema is up to date."))
			return nil
		},
	}
}
