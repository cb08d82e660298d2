// Package config loads venue-events settings from YAML, .env files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Index backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Environment variables that override file settings.
const (
	EnvGoogleAPIKey = "GOOGLE_API_KEY"
	EnvDatabaseURL  = "VENUE_EVENTS_DATABASE_URL"
	EnvNATSURL      = "VENUE_EVENTS_NATS_URL"
	EnvListen       = "VENUE_EVENTS_LISTEN"
	EnvLogLevel     = "VENUE_EVENTS_LOG_LEVEL"
)

const (
	defaultListen       = ":8080"
	defaultTimezone     = "Asia/Jerusalem"
	defaultLogLevel     = "info"
	defaultLanguage     = "iw"
	defaultGeoTimeout   = 10 * time.Second
	defaultIndexTimeout = 10 * time.Second
	defaultIndexRetries = 3
	defaultRetryBackoff = 500 * time.Millisecond
)

// IndexConfig selects where events are stored.
type IndexConfig struct {
	// Backend is one of "memory", "file" or "postgres".
	Backend string `yaml:"backend"`
	// Path is the data directory of the file backend.
	Path string `yaml:"path,omitempty"`
	// DatabaseURL is the connection string of the postgres backend.
	DatabaseURL string `yaml:"database_url,omitempty"`
}

// GeocoderConfig configures the Google geocoding provider.
type GeocoderConfig struct {
	APIKey   string        `yaml:"api_key,omitempty"`
	BaseURL  string        `yaml:"base_url,omitempty"`
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
	// Translations rewrite provider city names before they are cached.
	Translations map[string]string `yaml:"translations,omitempty"`
}

// PipelineConfig bounds index writes. Zero durations take the defaults.
type PipelineConfig struct {
	IndexTimeout time.Duration `yaml:"index_timeout"`
	// IndexRetries is nil when unset; 0 disables retries.
	IndexRetries *int          `yaml:"index_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// Retries returns the configured retry count, or the default when unset.
func (p PipelineConfig) Retries() int {
	if p.IndexRetries == nil {
		return defaultIndexRetries
	}
	return *p.IndexRetries
}

// SourceConfig enables one venue adapter.
type SourceConfig struct {
	Name string `yaml:"name"`
	// URL overrides the adapter's default listing page.
	URL string `yaml:"url,omitempty"`
	// Render loads the page in headless Chromium instead of a plain GET.
	Render bool `yaml:"render,omitempty"`
	// Location overrides the venue address for single-venue adapters.
	Location string `yaml:"location,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the query service listen address.
	Listen string `yaml:"listen"`
	// Timezone is the IANA zone listing dates are interpreted in.
	Timezone string `yaml:"timezone"`
	LogLevel string `yaml:"log_level"`

	Index    IndexConfig    `yaml:"index"`
	Geocoder GeocoderConfig `yaml:"geocoder"`
	Pipeline PipelineConfig `yaml:"pipeline"`

	// NATSURL enables run notifications when set.
	NATSURL string `yaml:"nats_url,omitempty"`

	Sources []SourceConfig `yaml:"sources"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{
		Index: IndexConfig{Backend: BackendFile},
		Sources: []SourceConfig{
			{Name: "katedra", Render: true},
			{Name: "ybz"},
		},
	}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing/zero values with defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}

	c.Index.Backend = strings.ToLower(strings.TrimSpace(c.Index.Backend))
	if c.Index.Backend == "" {
		c.Index.Backend = BackendFile
	}

	if c.Geocoder.Language == "" {
		c.Geocoder.Language = defaultLanguage
	}
	if c.Geocoder.Timeout <= 0 {
		c.Geocoder.Timeout = defaultGeoTimeout
	}

	if c.Pipeline.IndexTimeout <= 0 {
		c.Pipeline.IndexTimeout = defaultIndexTimeout
	}
	if c.Pipeline.IndexRetries == nil {
		retries := defaultIndexRetries
		c.Pipeline.IndexRetries = &retries
	}
	if c.Pipeline.RetryBackoff <= 0 {
		c.Pipeline.RetryBackoff = defaultRetryBackoff
	}

	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error

	switch c.Index.Backend {
	case BackendMemory, BackendFile:
	case BackendPostgres:
		if c.Index.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("index.database_url is required for the postgres backend (or set %s)", EnvDatabaseURL))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown index backend %q", c.Index.Backend))
	}

	if c.Pipeline.Retries() < 0 {
		errs = append(errs, fmt.Errorf("pipeline.index_retries must not be negative, got %d", c.Pipeline.Retries()))
	}

	for i, s := range c.Sources {
		if strings.TrimSpace(s.Name) == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: name is required", i))
		}
	}

	return errors.Join(errs...)
}

// Load reads the YAML file at path, then applies environment overrides.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			cfg = &Config{}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
			cfg.Normalize()
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvGoogleAPIKey); ok && v != "" {
		c.Geocoder.APIKey = v
	}
	if v, ok := lookup(EnvDatabaseURL); ok && v != "" {
		c.Index.DatabaseURL = v
	}
	if v, ok := lookup(EnvNATSURL); ok && v != "" {
		c.NATSURL = v
	}
	if v, ok := lookup(EnvListen); ok && v != "" {
		c.Listen = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
}

// Source returns the configured source with the given name.
func (c *Config) Source(name string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return SourceConfig{}, false
}
