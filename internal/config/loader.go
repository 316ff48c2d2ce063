package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over [Default] and validates
// the result. Unknown keys are rejected. An empty document yields the
// defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %s must not be negative", cfg.Server.ShutdownTimeout))
	}

	// Cursor
	if cfg.Cursor.BackslideWords < 0 {
		errs = append(errs, fmt.Errorf("cursor.backslide_words %d must not be negative", cfg.Cursor.BackslideWords))
	}

	// Matcher
	if cfg.Matcher.Workers < 0 {
		errs = append(errs, fmt.Errorf("matcher.workers %d must not be negative", cfg.Matcher.Workers))
	} else if err := cfg.Matcher.MatchConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("matcher: %w", err))
	}

	// Frequency
	for name, v := range map[string]float64{
		"frequency.general_threshold": cfg.Frequency.GeneralThreshold,
		"frequency.curated_threshold": cfg.Frequency.CuratedThreshold,
	} {
		if v <= 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s %v is out of range (0, 1]", name, v))
		}
	}

	// Catalog
	if cfg.Catalog.Debounce < 0 {
		errs = append(errs, fmt.Errorf("catalog.debounce %s must not be negative", cfg.Catalog.Debounce))
	}

	// Session
	for name, d := range map[string]int64{
		"session.idle_timeout":   int64(cfg.Session.IdleTimeout),
		"session.transcript_ttl": int64(cfg.Session.TranscriptTTL),
		"session.sweep_interval": int64(cfg.Session.SweepInterval),
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	// Events
	if cfg.Events.Enabled && len(cfg.Events.Brokers) == 0 {
		errs = append(errs, errors.New("events.brokers is required when events.enabled is true"))
	}

	// Storage
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; transcripts and catalogs are kept in memory only")
	}

	return errors.Join(errs...)
}
