package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobchat/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  `Create or update the PostgreSQL documents table. Migrations are idempotent and safe to re-run.`,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.DatabaseURL == "" {
		return fmt.Errorf("database_url is required (set DATABASE_URL or JOBCHAT_DATABASE_URL)")
	}
	conn, err := db.Connect(cmd.Context(), a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	applied, err := conn.Migrate(cmd.Context())
	for _, name := range applied {
		fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
