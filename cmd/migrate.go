package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger-backend/database"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the ledger schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap("migrate")
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := database.Migrate(rt.db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			rt.log.Info().Str("driver", rt.cfg.DBDriver).Msg("schema up to date")
			return nil
		},
	}
}
