package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/andburman/graphkeep/internal/config"
	"github.com/andburman/graphkeep/internal/storage/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Open a database and run pending migrations, then exit",
	Long: `migrate opens the database at --db-path (or the auto-discovered
project database) and runs every idempotent additive migration sqlite.New
applies on open, without starting the serve loop. Useful for ops scripting
that wants migrations applied ahead of a deploy.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.Load(cmd, cwd)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("migrate: no database path resolved; pass --db-path or run inside a %s project", config.ProjectDirName)
	}

	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _ = store.Close() }()

	fmt.Fprintf(cmd.OutOrStdout(), "migrated %s\n", cfg.DBPath)
	return nil
}
