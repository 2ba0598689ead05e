// Package config loads the abrechnung configuration file.
//
// Configuration comes from exactly one YAML file, named by the --config flag
// or the ABRECHNUNG_CONFIG environment variable. When neither is given the
// built-in defaults apply. Unknown keys are rejected so that typos surface
// instead of silently falling back to defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/OlfillasOdikno/abrechnung/internal/attachment"
	"github.com/OlfillasOdikno/abrechnung/internal/store"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "ABRECHNUNG_CONFIG"

// Config is the top-level configuration.
type Config struct {
	// Database configures the SQLite ledger store.
	Database DatabaseConfig `yaml:"database"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// Attachments configures upload validation.
	Attachments AttachmentsConfig `yaml:"attachments"`
}

// DatabaseConfig configures the ledger store.
type DatabaseConfig struct {
	// Path is the SQLite database file.
	// Default: abrechnung.db
	Path string `yaml:"path"`

	// BusyTimeoutMS is how long a writer waits on a locked database.
	// Default: 0 (store default of 5000ms)
	BusyTimeoutMS int `yaml:"busy_timeout_ms"`
}

// LoggingConfig configures log/slog output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is text or json.
	// Default: text
	Format string `yaml:"format"`
}

// AttachmentsConfig configures which uploads are accepted.
type AttachmentsConfig struct {
	// AllowedTypes lists accepted MIME types.
	// Default: image/jpeg, image/png, image/bmp
	AllowedTypes []string `yaml:"allowed_types"`

	// MaxBytes caps the size of a single upload.
	// Default: 10 MiB
	MaxBytes int64 `yaml:"max_bytes"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "abrechnung.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Attachments: AttachmentsConfig{
			AllowedTypes: append([]string(nil), attachment.DefaultAllowedTypes...),
			MaxBytes:     attachment.DefaultMaxBytes,
		},
	}
}

// Load resolves the config file from path, then ABRECHNUNG_CONFIG.
// With neither set it returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads and validates a single config file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Database.BusyTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("database.busy_timeout_ms must not be negative, got %d", c.Database.BusyTimeoutMS))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	if len(c.Attachments.AllowedTypes) == 0 {
		errs = append(errs, errors.New("attachments.allowed_types must not be empty"))
	}
	if c.Attachments.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("attachments.max_bytes must be positive, got %d", c.Attachments.MaxBytes))
	}

	return errors.Join(errs...)
}

// StoreConfig converts the database section for store.OpenConfig.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Path:        c.Database.Path,
		BusyTimeout: time.Duration(c.Database.BusyTimeoutMS) * time.Millisecond,
	}
}

// AttachmentConfig converts the attachments section for attachment.New.
func (c *Config) AttachmentConfig() attachment.Config {
	return attachment.Config{
		AllowedTypes: append([]string(nil), c.Attachments.AllowedTypes...),
		MaxBytes:     c.Attachments.MaxBytes,
	}
}

// Logger builds a slog.Logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging.level: unknown level %q", name)
}
