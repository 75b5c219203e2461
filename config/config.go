// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete bookgrep configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Search    SearchConfig    `yaml:"search"`
	Server    ServerConfig    `yaml:"server"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig locates the book database.
type StorageConfig struct {
	// Path is the BadgerDB directory. Created if missing.
	Path string `yaml:"path"`
	// InMemory keeps the database in memory; Path is ignored.
	InMemory bool `yaml:"in_memory"`
}

// SearchConfig tunes the scan engine.
type SearchConfig struct {
	// Workers is the number of documents scanned concurrently.
	Workers int `yaml:"workers"`
	// MatcherCacheSize is how many compiled patterns are kept.
	MatcherCacheSize int `yaml:"matcher_cache_size"`
	// Scorer is "density" or "count".
	Scorer string `yaml:"scorer"`
	// DensityUnit is the document length the density scorer normalizes to.
	DensityUnit int `yaml:"density_unit"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Patterns shorter than MinPatternLength characters are rejected.
	MinPatternLength int `yaml:"min_pattern_length"`
	// Patterns longer than MaxPatternLength characters are truncated.
	MaxPatternLength int `yaml:"max_pattern_length"`
	// AllowedOrigin is sent as Access-Control-Allow-Origin. Empty disables CORS headers.
	AllowedOrigin string `yaml:"allowed_origin"`
	// RateLimit is search requests per second across all clients. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
	// DefaultPageSize is used when a listing request omits limit.
	DefaultPageSize int `yaml:"default_page_size"`
	// MaxPageSize caps the limit a listing request may ask for.
	MaxPageSize     int           `yaml:"max_page_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// IngestionConfig controls importing and directory watching.
type IngestionConfig struct {
	Workers    int           `yaml:"workers"`
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	// WatchDir is re-imported on change while serving. Empty disables watching.
	WatchDir string        `yaml:"watch_dir"`
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig selects the log level and handler.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// Option is a functional option for configuring a Config.
type Option func(*Config)

// WithStoragePath sets the database directory.
func WithStoragePath(path string) Option {
	return func(c *Config) {
		c.Storage.Path = path
	}
}

// WithInMemory keeps the database in memory.
func WithInMemory(inMemory bool) Option {
	return func(c *Config) {
		c.Storage.InMemory = inMemory
	}
}

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(c *Config) {
		c.Server.Addr = addr
	}
}

// WithSearchWorkers sets the scan concurrency.
func WithSearchWorkers(n int) Option {
	return func(c *Config) {
		c.Search.Workers = n
	}
}

// WithWatchDir enables re-importing dir while serving.
func WithWatchDir(dir string) Option {
	return func(c *Config) {
		c.Ingestion.WatchDir = dir
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) Option {
	return func(c *Config) {
		c.Logging.Level = level
	}
}

// DefaultConfig returns a Config with defaults suitable for a local server.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path: "data",
		},
		Search: SearchConfig{
			Workers:          0, // runtime.NumCPU()
			MatcherCacheSize: 256,
			Scorer:           "density",
			DensityUnit:      10000,
		},
		Server: ServerConfig{
			Addr:             ":3000",
			MinPatternLength: 4,
			MaxPatternLength: 30,
			AllowedOrigin:    "*",
			RateLimit:        20,
			RateBurst:        40,
			DefaultPageSize:  9,
			MaxPageSize:      100,
			ShutdownTimeout:  10 * time.Second,
		},
		Ingestion: IngestionConfig{
			Workers:    0, // runtime.NumCPU() / 2
			BatchSize:  8,
			MaxRetries: 3,
			RetryDelay: 50 * time.Millisecond,
			Debounce:   500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Load builds a Config from defaults, the YAML file at path (if path is not
// empty), and environment overrides, in that order, then validates it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML decodes path over the current values. Unknown keys are rejected.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies BOOKGREP_* variables. PORT is honoured for
// compatibility with hosting platforms that assign one.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := os.Getenv("BOOKGREP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("BOOKGREP_DB"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("BOOKGREP_IN_MEMORY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: BOOKGREP_IN_MEMORY: %w", ErrInvalidConfig, err)
		}
		c.Storage.InMemory = b
	}
	if v := os.Getenv("BOOKGREP_SEARCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: BOOKGREP_SEARCH_WORKERS: %w", ErrInvalidConfig, err)
		}
		c.Search.Workers = n
	}
	if v := os.Getenv("BOOKGREP_ALLOWED_ORIGIN"); v != "" {
		c.Server.AllowedOrigin = v
	}
	if v := os.Getenv("BOOKGREP_WATCH_DIR"); v != "" {
		c.Ingestion.WatchDir = v
	}
	if v := os.Getenv("BOOKGREP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("BOOKGREP_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path is required unless storage.in_memory is set", ErrInvalidConfig)
	}
	if c.Search.Workers < 0 {
		return fmt.Errorf("%w: search.workers must be non-negative, got %d", ErrInvalidConfig, c.Search.Workers)
	}
	if c.Search.MatcherCacheSize < 1 {
		return fmt.Errorf("%w: search.matcher_cache_size must be positive, got %d", ErrInvalidConfig, c.Search.MatcherCacheSize)
	}
	switch c.Search.Scorer {
	case "density", "count":
	default:
		return fmt.Errorf("%w: search.scorer must be 'density' or 'count', got %q", ErrInvalidConfig, c.Search.Scorer)
	}
	if c.Search.DensityUnit < 1 {
		return fmt.Errorf("%w: search.density_unit must be positive, got %d", ErrInvalidConfig, c.Search.DensityUnit)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalidConfig)
	}
	if c.Server.MinPatternLength < 0 {
		return fmt.Errorf("%w: server.min_pattern_length must be non-negative, got %d", ErrInvalidConfig, c.Server.MinPatternLength)
	}
	if c.Server.MaxPatternLength > 0 && c.Server.MaxPatternLength < c.Server.MinPatternLength {
		return fmt.Errorf("%w: server.max_pattern_length %d is below min_pattern_length %d",
			ErrInvalidConfig, c.Server.MaxPatternLength, c.Server.MinPatternLength)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("%w: server.rate_limit must be non-negative, got %f", ErrInvalidConfig, c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		return fmt.Errorf("%w: server.rate_burst must be positive when rate_limit is set", ErrInvalidConfig)
	}
	if c.Server.DefaultPageSize < 1 || c.Server.MaxPageSize < c.Server.DefaultPageSize {
		return fmt.Errorf("%w: server page sizes must satisfy 1 <= default_page_size <= max_page_size", ErrInvalidConfig)
	}
	if c.Ingestion.BatchSize < 1 {
		return fmt.Errorf("%w: ingestion.batch_size must be positive, got %d", ErrInvalidConfig, c.Ingestion.BatchSize)
	}
	if c.Ingestion.MaxRetries < 1 {
		return fmt.Errorf("%w: ingestion.max_retries must be at least 1, got %d", ErrInvalidConfig, c.Ingestion.MaxRetries)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging.format must be 'text' or 'json', got %q", ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: log level must be debug, info, warn or error, got %q", ErrInvalidConfig, level)
}

// NewLogger builds a logger writing to w according to the logging section.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.Logging.Level)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Logging.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
