package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// OverrideFileName is the optional project-level override file, checked
// into version control alongside the rest of a project — unlike
// config.yaml, which carries per-machine settings and typically isn't.
const OverrideFileName = ".graph.toml"

// ProjectOverride is the decoded shape of .graph.toml. Every field is
// optional; a zero value means "use the process default".
type ProjectOverride struct {
	ClaimTTLMinutes int    `toml:"claim_ttl_minutes"`
	StrictByDefault bool   `toml:"strict_by_default"`
	DefaultAgent    string `toml:"default_agent"`
}

// ClaimTTL returns the override's claim TTL, or fallback when unset.
func (o *ProjectOverride) ClaimTTL(fallback time.Duration) time.Duration {
	if o == nil || o.ClaimTTLMinutes <= 0 {
		return fallback
	}
	return time.Duration(o.ClaimTTLMinutes) * time.Minute
}

// LoadProjectOverride reads .graph.toml from repoRoot (the directory
// containing the .graph project directory, not .graph itself — the
// override travels with the repo, config.yaml travels with the machine).
// A missing file is not an error: it returns a zero-valued override.
func LoadProjectOverride(repoRoot string) (*ProjectOverride, error) {
	path := filepath.Join(repoRoot, OverrideFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &ProjectOverride{}, nil
	}

	var o ProjectOverride
	if _, err := toml.DecodeFile(path, &o); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &o, nil
}
