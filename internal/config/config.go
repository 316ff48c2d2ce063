// Package config provides the configuration schema, loader and file watcher
// for the Convoscope service.
package config

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/AugmentOS-Community/convoscope/internal/events"
	"github.com/AugmentOS-Community/convoscope/internal/frequency"
	"github.com/AugmentOS-Community/convoscope/internal/match"
	"github.com/AugmentOS-Community/convoscope/internal/session"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to a [slog.Level]. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader]; fields missing from the file
// keep the values of [Default].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Cursor    CursorConfig    `yaml:"cursor"`
	Matcher   MatcherConfig   `yaml:"matcher"`
	Frequency FrequencyConfig `yaml:"frequency"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Storage   StorageConfig   `yaml:"storage"`
	Session   SessionConfig   `yaml:"session"`
	Events    EventsConfig    `yaml:"events"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// ShutdownTimeout bounds graceful shutdown of the HTTP server.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CursorConfig tunes transcript consumption.
type CursorConfig struct {
	// BackslideWords is how many already-consumed words are repeated in
	// front of new text. Zero disables backslide.
	BackslideWords int `yaml:"backslide_words"`
}

// MatcherConfig mirrors [match.Config] field by field.
type MatcherConfig struct {
	MaxWindowSize            int     `yaml:"max_window_size"`
	MinCandidateLength       int     `yaml:"min_candidate_length"`
	MaxStopWordRatio         float64 `yaml:"max_stop_word_ratio"`
	CommonPhraseThreshold    float64 `yaml:"common_phrase_threshold"`
	MaxDeletions             int     `yaml:"max_deletions"`
	MaxInsertions            int     `yaml:"max_insertions"`
	MaxSubstitutions         int     `yaml:"max_substitutions"`
	MaxDistance              int     `yaml:"max_distance"`
	MaxLengthDelta           int     `yaml:"max_length_delta"`
	ImperfectDistance        int     `yaml:"imperfect_distance"`
	ImperfectRarityThreshold float64 `yaml:"imperfect_rarity_threshold"`
	MinCapitalsSingleWord    int     `yaml:"min_capitals_single_word"`
	MaxResults               int     `yaml:"max_results"`

	// Workers bounds parallel candidate matching. Zero uses GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// MatchConfig converts m to a [match.Config].
func (m MatcherConfig) MatchConfig() match.Config {
	workers := m.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return match.Config{
		MaxWindowSize:         m.MaxWindowSize,
		MinCandidateLength:    m.MinCandidateLength,
		MaxStopWordRatio:      m.MaxStopWordRatio,
		CommonPhraseThreshold: m.CommonPhraseThreshold,
		Bounds: match.Bounds{
			MaxDeletions:     m.MaxDeletions,
			MaxInsertions:    m.MaxInsertions,
			MaxSubstitutions: m.MaxSubstitutions,
			MaxDistance:      m.MaxDistance,
		},
		MaxLengthDelta:           m.MaxLengthDelta,
		ImperfectDistance:        m.ImperfectDistance,
		ImperfectRarityThreshold: m.ImperfectRarityThreshold,
		MinCapitalsSingleWord:    m.MinCapitalsSingleWord,
		MaxResults:               m.MaxResults,
		Workers:                  workers,
	}
}

// FrequencyConfig selects the word-frequency tables.
type FrequencyConfig struct {
	// GeneralPath is the everyday-vocabulary table. Empty uses the built-in
	// table.
	GeneralPath string `yaml:"general_path"`

	// CuratedPath is the curated table. Empty uses the built-in table.
	CuratedPath string `yaml:"curated_path"`

	// GeneralThreshold and CuratedThreshold are the relative ranks above
	// which a word counts as rare.
	GeneralThreshold float64 `yaml:"general_threshold"`
	CuratedThreshold float64 `yaml:"curated_threshold"`
}

// Load reads the configured tables into a [frequency.Oracle].
func (f FrequencyConfig) Load() (*frequency.Oracle, error) {
	return frequency.Load(f.GeneralPath, f.CuratedPath,
		frequency.WithThresholds(f.GeneralThreshold, f.CuratedThreshold))
}

// CatalogConfig configures static catalog provisioning.
type CatalogConfig struct {
	// Dir holds YAML catalog files imported at startup and re-imported when
	// they change. Empty disables file provisioning.
	Dir string `yaml:"dir"`

	// Debounce coalesces bursts of file events.
	Debounce time.Duration `yaml:"debounce"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// PostgresDSN is the PostgreSQL connection string. When empty,
	// transcripts and catalogs are kept in memory.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// SessionConfig tunes per-user housekeeping.
type SessionConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	TranscriptTTL time.Duration `yaml:"transcript_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// EventsConfig configures the Kafka insight publisher.
type EventsConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Brokers   []string `yaml:"brokers"`
	Topic     string   `yaml:"topic"`
	Principal string   `yaml:"principal"`
}

// PublisherConfig converts e to an [events.Config].
func (e EventsConfig) PublisherConfig() events.Config {
	return events.Config{
		Enabled:   e.Enabled,
		Brokers:   e.Brokers,
		Topic:     e.Topic,
		Principal: e.Principal,
	}
}

// Default returns the configuration used for every field a config file
// leaves out.
func Default() *Config {
	mc := match.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			LogLevel:        LogInfo,
			ShutdownTimeout: 10 * time.Second,
		},
		Cursor: CursorConfig{BackslideWords: 4},
		Matcher: MatcherConfig{
			MaxWindowSize:            mc.MaxWindowSize,
			MinCandidateLength:       mc.MinCandidateLength,
			MaxStopWordRatio:         mc.MaxStopWordRatio,
			CommonPhraseThreshold:    mc.CommonPhraseThreshold,
			MaxDeletions:             mc.Bounds.MaxDeletions,
			MaxInsertions:            mc.Bounds.MaxInsertions,
			MaxSubstitutions:         mc.Bounds.MaxSubstitutions,
			MaxDistance:              mc.Bounds.MaxDistance,
			MaxLengthDelta:           mc.MaxLengthDelta,
			ImperfectDistance:        mc.ImperfectDistance,
			ImperfectRarityThreshold: mc.ImperfectRarityThreshold,
			MinCapitalsSingleWord:    mc.MinCapitalsSingleWord,
			MaxResults:               mc.MaxResults,
		},
		Frequency: FrequencyConfig{
			GeneralThreshold: frequency.DefaultGeneralThreshold,
			CuratedThreshold: frequency.DefaultCuratedThreshold,
		},
		Catalog: CatalogConfig{Debounce: 200 * time.Millisecond},
		Session: SessionConfig{
			IdleTimeout:   session.DefaultIdleTimeout,
			TranscriptTTL: session.DefaultTranscriptTTL,
			SweepInterval: session.DefaultSweepInterval,
		},
		Events: EventsConfig{
			Topic:     events.DefaultTopic,
			Principal: "convoscope",
		},
	}
}
