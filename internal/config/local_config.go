package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfig is the subset of config.yaml read directly from disk rather
// than through the viper singleton. Needed when the working directory has
// changed since initialization, or when a caller wants project settings
// before a server process has stood up its own viper instance.
type LocalConfig struct {
	Agent        string `yaml:"agent"`
	ClaimTTL     string `yaml:"claim-ttl"`
	StrictByDefault bool `yaml:"strict-by-default"`
	DBPath       string `yaml:"db-path"`
}

// LoadLocalConfig reads and parses config.yaml directly from projectDir.
// Returns an empty LocalConfig (not nil) if the file doesn't exist or
// can't be parsed, so callers never need a nil check before reading
// fields.
func LoadLocalConfig(projectDir string) *LocalConfig {
	data, err := os.ReadFile(filepath.Join(projectDir, "config.yaml")) // #nosec G304 - projectDir is caller-resolved
	if err != nil {
		return &LocalConfig{}
	}
	var cfg LocalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &LocalConfig{}
	}
	return &cfg
}

// LoadLocalConfigWithEnv reads config.yaml and applies environment
// variable overrides, which take precedence over the file.
func LoadLocalConfigWithEnv(projectDir string) *LocalConfig {
	cfg := LoadLocalConfig(projectDir)
	if agent := os.Getenv("GRAPH_AGENT"); agent != "" {
		cfg.Agent = agent
	}
	if ttl := os.Getenv("GRAPH_CLAIM_TTL_MINUTES"); ttl != "" {
		cfg.ClaimTTL = ttl + "m"
	}
	if db := os.Getenv("GRAPH_DB_PATH"); db != "" {
		cfg.DBPath = db
	}
	return cfg
}
