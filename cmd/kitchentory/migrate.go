package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jburchel/kitchentory/internal/config"
	"github.com/jburchel/kitchentory/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.ValidateDB(); err != nil {
			return err
		}
		if err := database.Migrate(cfg.DBPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrated %s\n", cfg.DBPath)
		return nil
	},
}
