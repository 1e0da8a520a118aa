// Package config loads the optional YAML runtime configuration. Flags
// always win over the file; the file exists so deployments can pin the
// database path and policy directory without long command lines.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration.
type Config struct {
	// Database is the SQLite database path.
	Database string

	// PolicyDir points at a directory of policy .cue files. Empty means
	// the embedded default policy.
	PolicyDir string

	// SweepEvery is the cadence of the lifecycle sweep loop.
	SweepEvery time.Duration

	// AuditKeep caps how many audit entries the audit command shows by
	// default.
	AuditKeep int
}

// fileConfig is the raw YAML shape. Durations are strings in the file
// ("1h", "30m") and parsed after decoding.
type fileConfig struct {
	Database   string `yaml:"database"`
	PolicyDir  string `yaml:"policy_dir"`
	SweepEvery string `yaml:"sweep_every"`
	AuditKeep  *int   `yaml:"audit_keep"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		SweepEvery: time.Hour,
		AuditKeep:  50,
	}
}

// Load reads and validates a YAML config file, layered over Default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if raw.Database != "" {
		cfg.Database = raw.Database
	}
	if raw.PolicyDir != "" {
		cfg.PolicyDir = raw.PolicyDir
	}
	if raw.SweepEvery != "" {
		d, err := time.ParseDuration(raw.SweepEvery)
		if err != nil {
			return cfg, fmt.Errorf("config %s: sweep_every: %w", path, err)
		}
		cfg.SweepEvery = d
	}
	if raw.AuditKeep != nil {
		cfg.AuditKeep = *raw.AuditKeep
	}

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.SweepEvery <= 0 {
		return fmt.Errorf("sweep_every must be positive, got %s", c.SweepEvery)
	}
	if c.AuditKeep < 0 {
		return fmt.Errorf("audit_keep must not be negative, got %d", c.AuditKeep)
	}
	return nil
}
