// Package config loads the service configuration from a YAML file, with
// sensible defaults when no file exists.
package config

import "time"

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig holds the database settings.
type StorageConfig struct {
	DSN string `yaml:"dsn"`
}

// ModerationConfig holds the crowd-voting threshold policy. Thresholds are
// percentages; both must be above 50 so that a single tally can never satisfy
// approval and rejection at once.
type ModerationConfig struct {
	MinVotes         int     `yaml:"min_votes"`
	ApproveThreshold float64 `yaml:"approve_threshold"`
	RejectThreshold  float64 `yaml:"reject_threshold"`
}

// IngestConfig holds the feed ingestion settings. Intervals are duration
// strings like "1h" or "90s".
type IngestConfig struct {
	Feeds        []string `yaml:"feeds"`
	PollInterval string   `yaml:"poll_interval"`
	Concurrency  int      `yaml:"concurrency"`
	FetchTimeout string   `yaml:"fetch_timeout"`
}

// PollIntervalDuration parses the poll interval, falling back to the default
// when unset or unparsable.
func (c IngestConfig) PollIntervalDuration() time.Duration {
	if d, err := time.ParseDuration(c.PollInterval); err == nil && d > 0 {
		return d
	}
	return 1 * time.Hour
}

// FetchTimeoutDuration parses the per-feed fetch timeout, falling back to the
// default when unset or unparsable.
func (c IngestConfig) FetchTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(c.FetchTimeout); err == nil && d > 0 {
		return d
	}
	return 60 * time.Second
}

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Moderation ModerationConfig `yaml:"moderation"`
	Ingest     IngestConfig     `yaml:"ingest"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Addr: "localhost:8080"},
		Storage: StorageConfig{DSN: "newsvote.db"},
		Moderation: ModerationConfig{
			MinVotes:         3,
			ApproveThreshold: 75,
			RejectThreshold:  75,
		},
		Ingest: IngestConfig{
			PollInterval: "1h",
			Concurrency:  5,
			FetchTimeout: "60s",
		},
	}
}
