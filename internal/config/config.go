// Package config loads planner configuration from an optional YAML file
// with environment-variable overrides. The resolved Config is threaded
// through explicitly; nothing in this package mutates process-global state
// beyond the optional .env load.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds configuration for the planner CLI and server.
type Config struct {
	Addr      string `yaml:"addr"`       // listen address (default ":8080")
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json
	DBPath    string `yaml:"db_path"`    // SQLite run store path (":memory:" for testing)
	RunDir    string `yaml:"run_dir"`    // root directory for per-run workspaces
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// searchPaths lists the config file locations in priority order. The first
// file that exists wins.
func searchPaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "pipeweave", "config.yml"))
	}
	paths = append(paths, "/usr/local/etc/pipeweave/config.yml")
	return paths
}

// Load resolves the effective configuration: defaults, then the first
// config file found on the search path (or the explicit path if given),
// then a .env file in the working directory, then PIPEWEAVE_* environment
// variables.
func Load(explicitPath string) (Config, error) {
	cfg := Default()

	path := explicitPath
	if path == "" {
		for _, candidate := range searchPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// A .env file is a convenience for development; absence is normal.
	_ = godotenv.Load()
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PIPEWEAVE_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("PIPEWEAVE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PIPEWEAVE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("PIPEWEAVE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("PIPEWEAVE_RUN_DIR"); v != "" {
		cfg.RunDir = v
	}
}
