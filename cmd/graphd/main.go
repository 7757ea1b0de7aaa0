// Command graphd hosts the graph engine for agent-driven task tracking.
// It exposes a cobra CLI with two subcommands: serve, which accepts tool
// calls over a line-delimited JSON loop, and migrate, which opens a
// database file and runs pending migrations without starting the loop.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/andburman/graphkeep/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "graphd",
	Short: "Agent-facing task graph engine",
	Long: `graphd tracks hierarchical, dependency-aware task graphs for
autonomous coding agents: actionable-task ranking, soft claims, auto-resolve
cascades, and a project-scoped knowledge store.`,
}

func init() {
	config.RegisterFlags(rootCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
