// Package config resolves graphd's effective settings from, in priority
// order, explicit flags, the project's config.yaml (via viper, which also
// reads the matching GRAPH_* environment variables), and the checked-in
// .graph.toml override, falling back to hardcoded defaults when none of
// those speak. It also watches both files for edits and reports them
// through a callback; the watcher does not re-apply settings, so a running
// server still needs a restart to use a changed claim TTL.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andburman/graphkeep/internal/graph"
)

// Config is graphd's resolved runtime configuration.
type Config struct {
	ProjectDir      string
	RepoRoot        string
	DBPath          string
	Agent           string
	ClaimTTL        time.Duration
	StrictByDefault bool
}

// RegisterFlags adds the persistent flags graphd serve/migrate read
// configuration from. Call once against the root command before Execute.
func RegisterFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("db-path", "", "database path (default: auto-discover .graph/*.db)")
	cmd.PersistentFlags().String("agent", "", "default agent identity for audit trail")
	cmd.PersistentFlags().Int("claim-ttl-minutes", 0, "soft-claim visibility window in minutes (default 60)")
	cmd.PersistentFlags().Bool("strict", false, "strict-mode default recorded in the resolved config (not applied to nodes by serve)")
}

// Load resolves Config from cmd's flags, viper (config.yaml + GRAPH_* env
// vars), and the project's .graph.toml override, in that priority order.
// workDir is the directory to start the .graph discovery walk from.
func Load(cmd *cobra.Command, workDir string) (*Config, error) {
	projectDir, err := FindProjectDir(workDir)
	if err != nil {
		// Not every invocation runs inside an initialized project (e.g.
		// `graphd migrate` against an explicit --db-path); config.yaml
		// and .graph.toml are both optional in that case.
		projectDir = ""
	}
	repoRoot := workDir
	if projectDir != "" {
		repoRoot = filepath.Dir(projectDir)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if projectDir != "" {
		v.AddConfigPath(projectDir)
	}
	v.SetEnvPrefix("GRAPH")
	v.AutomaticEnv()
	_ = v.ReadInConfig() // missing config.yaml is not an error

	override, err := LoadProjectOverride(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg := &Config{
		ProjectDir:      projectDir,
		RepoRoot:        repoRoot,
		ClaimTTL:        graph.DefaultClaimTTL,
		StrictByDefault: override.StrictByDefault,
	}

	cfg.DBPath = resolveString(cmd, "db-path", v.GetString("db_path"), "")
	cfg.Agent = resolveString(cmd, "agent", v.GetString("agent"), override.DefaultAgent)

	if cmd.Flags().Changed("claim-ttl-minutes") {
		if minutes, err := cmd.Flags().GetInt("claim-ttl-minutes"); err == nil && minutes > 0 {
			cfg.ClaimTTL = time.Duration(minutes) * time.Minute
		}
	} else if envMinutes := v.GetInt("claim_ttl_minutes"); envMinutes > 0 {
		cfg.ClaimTTL = time.Duration(envMinutes) * time.Minute
	} else {
		cfg.ClaimTTL = override.ClaimTTL(graph.DefaultClaimTTL)
	}

	if cmd.Flags().Changed("strict") {
		if strict, err := cmd.Flags().GetBool("strict"); err == nil {
			cfg.StrictByDefault = strict
		}
	}

	if cfg.DBPath == "" && cfg.ProjectDir != "" {
		cfg.DBPath = defaultDBPath(cfg.ProjectDir)
	}

	return cfg, nil
}

// resolveString applies flag > viper > fallback precedence for a single
// string setting, matching the priority order the teacher's root command
// PersistentPreRun applies per-key.
func resolveString(cmd *cobra.Command, flagName, viperValue, fallback string) string {
	if cmd.Flags().Changed(flagName) {
		if val, err := cmd.Flags().GetString(flagName); err == nil {
			return val
		}
	}
	if viperValue != "" {
		return viperValue
	}
	return fallback
}

func defaultDBPath(projectDir string) string {
	return filepath.Join(projectDir, "graph.db")
}
