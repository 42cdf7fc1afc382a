// Package config defines the onboard configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level onboard configuration.
type Config struct {
	Database  string        `json:"database" yaml:"database"`   // SQLite file path
	Partition string        `json:"partition" yaml:"partition"` // e.g. "dev", "prod"
	Catalog   CatalogConfig `json:"catalog" yaml:"catalog"`
	Notify    NotifyConfig  `json:"notify" yaml:"notify"`
	LogLevel  string        `json:"log_level" yaml:"log_level"`
}

// CatalogConfig says where task templates come from.
type CatalogConfig struct {
	// Path is a catalog file (.yaml, .yml, .cue) or a directory of .cue
	// files. Empty means templates are read from the database only.
	Path string `json:"path,omitempty" yaml:"path"`

	// Builtin falls back to the built-in templates when neither the file nor
	// the database defines any for a partition.
	Builtin bool `json:"builtin" yaml:"builtin"`
}

// NotifyConfig controls how notifications leave the process.
type NotifyConfig struct {
	// Sink is "outbox" (persist to the database), "log" or "none".
	Sink string `json:"sink" yaml:"sink"`
}

// Notification sinks.
const (
	SinkOutbox = "outbox"
	SinkLog    = "log"
	SinkNone   = "none"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database:  "./onboard.db",
		Partition: "dev",
		Catalog: CatalogConfig{
			Builtin: true,
		},
		Notify: NotifyConfig{
			Sink: SinkOutbox,
		},
		LogLevel: "info",
	}
}

// Load reads a YAML config file on top of DefaultConfig and validates it.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database) == "" {
		errs = append(errs, errors.New("database is required"))
	}
	if strings.TrimSpace(c.Partition) == "" {
		errs = append(errs, errors.New("partition is required"))
	}
	switch c.Notify.Sink {
	case SinkOutbox, SinkLog, SinkNone:
	default:
		errs = append(errs, fmt.Errorf("notify.sink: unknown sink %q", c.Notify.Sink))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps a log_level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level: unknown level %q", s)
}
