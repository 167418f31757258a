// Package config provides unified configuration loading for ember.
// Settings come from a YAML file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/zackbrooks84/Ember/internal/sim"
)

// #region types

// Config contains all ember configuration settings.
type Config struct {
	// DBPath is the SQLite run-store location.
	DBPath string `yaml:"db_path"`

	// Sim holds the default simulator parameters.
	Sim sim.Params `yaml:"sim"`

	// Harness configures the transcript-to-arms pipeline.
	Harness HarnessConfig `yaml:"harness"`

	// Logging configures operational and event logging.
	Logging LoggingConfig `yaml:"logging"`
}

// HarnessConfig holds the run-pair thresholds carried through to the
// evaluation summary as provenance.
type HarnessConfig struct {
	// Dim is the embedding dimensionality.
	Dim int `yaml:"dim"`

	// Stride subsamples the transcript for the topic-drift null arm.
	Stride int `yaml:"stride"`

	// K is the consecutive-turn window for the ξ lock criterion.
	K int `yaml:"k"`

	// M is the consecutive-turn window for the lvs lock criterion.
	M int `yaml:"m"`

	// EpsXi is the ξ threshold under which a turn counts as settled.
	EpsXi float64 `yaml:"eps_xi"`

	// EpsLVS is the max allowed 1-lvs for a turn to count as stable.
	EpsLVS float64 `yaml:"eps_lvs"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level sets log verbosity: "info" (default) or "debug".
	Level string `yaml:"level"`

	// EventLog is the JSONL telemetry file path; empty disables it.
	EventLog string `yaml:"event_log"`
}

// #endregion types

// #region defaults

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath: "ember.db",
		Sim:    sim.DefaultParams(),
		Harness: HarnessConfig{
			Dim:    384,
			Stride: 3,
			K:      5,
			M:      5,
			EpsXi:  0.02,
			EpsLVS: 0.015,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// #endregion defaults

// #region load

// Load reads configuration from path, layered over defaults, then applies
// environment overrides. An empty path skips the file entirely.
//
// Environment overrides: EMBER_DB, EMBER_LOG_LEVEL, EMBER_EVENT_LOG,
// EMBER_SEED.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("EMBER_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("EMBER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EMBER_EVENT_LOG"); v != "" {
		cfg.Logging.EventLog = v
	}
	if v := os.Getenv("EMBER_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Sim.Seed = seed
		}
	}
}

// Validate checks ranges that would otherwise fail deep inside the
// pipeline.
func (c *Config) Validate() error {
	if c.Harness.Dim < 1 {
		return fmt.Errorf("harness dim must be positive, got %d", c.Harness.Dim)
	}
	if c.Harness.Stride < 1 {
		return fmt.Errorf("harness stride must be positive, got %d", c.Harness.Stride)
	}
	if c.Harness.K < 1 || c.Harness.M < 1 {
		return fmt.Errorf("harness k and m must be positive, got k=%d m=%d", c.Harness.K, c.Harness.M)
	}
	if c.Harness.EpsXi < 0 || c.Harness.EpsLVS < 0 {
		return fmt.Errorf("harness epsilons must be non-negative, got eps_xi=%g eps_lvs=%g", c.Harness.EpsXi, c.Harness.EpsLVS)
	}
	return c.Sim.Validate()
}

// #endregion load
