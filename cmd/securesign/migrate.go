package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"securesign/internal/app"
	"securesign/internal/config"
)

func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("path", configFile).Wrap(err)
	}
	if cfg.Database.DSN == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required for migrate")
	}

	cmd.Println("Running migrations...")
	if err := app.Migrate(cmd.Context(), cfg); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}
