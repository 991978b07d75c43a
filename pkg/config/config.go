// Package config loads tool configuration from a YAML file with
// environment variable overrides for the paths and endpoints.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-lineage/pkg/snapshot"
)

// Config is the full tool configuration.
type Config struct {
	// DataDir anchors relative paths below.
	DataDir string `yaml:"data_dir"`
	// GraphFile is the snapshot the CLI loads and saves each session.
	GraphFile string `yaml:"graph_file"`
	// EventLog is the append-only JSONL audit log.
	EventLog string `yaml:"event_log"`
	// LogLevel is DEBUG, INFO, WARN or ERROR.
	LogLevel string `yaml:"log_level"`
	// Guarded enables the optimistic version check on save.
	Guarded bool `yaml:"guarded"`

	Archive  ArchiveConfig  `yaml:"archive"`
	Postgres PostgresConfig `yaml:"postgres"`
	Arbiter  ArbiterConfig  `yaml:"arbiter"`
}

// ArchiveConfig controls the compressed history dumps.
type ArchiveConfig struct {
	Dir  string            `yaml:"dir"`
	Keep int               `yaml:"keep"`
	S3   snapshot.S3Config `yaml:"s3"`
}

// PostgresConfig enables the optional Postgres event sink when URL is set.
type PostgresConfig struct {
	URL string `yaml:"url"`
}

// ArbiterConfig points claim traffic at a long-lived arbiter process.
type ArbiterConfig struct {
	// Addr is a mangos listen/dial address, e.g. tcp://127.0.0.1:47400.
	Addr string `yaml:"addr"`
	// MetricsAddr is the arbiter's /metrics listen address.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DataDir:   "./data",
		GraphFile: "graph.json",
		EventLog:  "events.jsonl",
		LogLevel:  "INFO",
		Guarded:   true,
		Archive: ArchiveConfig{
			Dir:  "archive",
			Keep: 30,
		},
		Arbiter: ArbiterConfig{
			Addr:        "tcp://127.0.0.1:47400",
			MetricsAddr: "127.0.0.1:47401",
		},
	}
}

// Load reads the config file if it exists, then applies environment
// overrides. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LINEAGE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("LINEAGE_GRAPH_FILE"); v != "" {
		c.GraphFile = v
	}
	if v := os.Getenv("LINEAGE_EVENT_LOG"); v != "" {
		c.EventLog = v
	}
	if v := os.Getenv("LINEAGE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LINEAGE_GUARDED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Guarded = b
		}
	}
	if v := os.Getenv("LINEAGE_POSTGRES_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("LINEAGE_ARBITER_ADDR"); v != "" {
		c.Arbiter.Addr = v
	}
}

// GraphPath returns the snapshot path anchored at DataDir.
func (c *Config) GraphPath() string {
	return c.anchor(c.GraphFile)
}

// EventLogPath returns the event log path anchored at DataDir.
func (c *Config) EventLogPath() string {
	return c.anchor(c.EventLog)
}

// ArchiveDir returns the archive directory anchored at DataDir.
func (c *Config) ArchiveDir() string {
	return c.anchor(c.Archive.Dir)
}

func (c *Config) anchor(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}
