package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/abelbrown/nexttogo/internal/fetch"
	"github.com/abelbrown/nexttogo/internal/model"
)

const appName = "nexttogo"

// Defaults used when a field is empty or unparseable.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 5 * time.Second
)

// Config is the persistent application configuration
type Config struct {
	API     APIConfig     `yaml:"api"`
	Refresh RefreshConfig `yaml:"refresh"`
	Cache   CacheConfig   `yaml:"cache"`
	Log     LogConfig     `yaml:"log"`
	Filter  FilterConfig  `yaml:"filter"`
}

// APIConfig holds racing API transport settings
type APIConfig struct {
	BaseURL       string  `yaml:"base_url"`
	Timeout       string  `yaml:"timeout"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// RefreshConfig holds the coordinator schedule
type RefreshConfig struct {
	Interval string `yaml:"interval"`
}

// CacheConfig controls the local snapshot store
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Fallback bool   `yaml:"fallback"` // publish cached races when the first cycles fail
	Path     string `yaml:"path"`
}

// LogConfig holds log destinations
type LogConfig struct {
	EventsPath string `yaml:"events_path"` // JSONL event log
	Path       string `yaml:"path"`        // human-readable process log
	Level      string `yaml:"level"`       // minimum event level
}

// FilterConfig holds the startup category filter
type FilterConfig struct {
	Categories []string `yaml:"categories"` // display names, e.g. "horse"
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:       fetch.DefaultBaseURL,
			Timeout:       DefaultTimeout.String(),
			RatePerSecond: 4,
			Burst:         10,
		},
		Refresh: RefreshConfig{
			Interval: DefaultInterval.String(),
		},
		Cache: CacheConfig{
			Enabled:  true,
			Fallback: true,
			Path:     filepath.Join(xdg.CacheHome, appName, "races.db"),
		},
		Log: LogConfig{
			EventsPath: filepath.Join(xdg.StateHome, appName, "events.jsonl"),
			Path:       filepath.Join(xdg.StateHome, appName, "nexttogo.log"),
			Level:      "info",
		},
	}
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// Load reads config from path (ConfigPath when empty), or returns defaults
// if the file does not exist. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	return LoadFS(afero.NewOsFs(), path)
}

// LoadFS is Load against an arbitrary filesystem.
func LoadFS(fs afero.Fs, path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()
	data, err := afero.ReadFile(fs, path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		// Fields absent from the file keep their defaults.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to path (ConfigPath when empty)
func (c *Config) Save(path string) error {
	return c.SaveFS(afero.NewOsFs(), path)
}

// SaveFS is Save against an arbitrary filesystem.
func (c *Config) SaveFS(fs afero.Fs, path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, path, data, 0o644)
}

// ApplyEnv overrides fields from NEXTTOGO_BASE_URL, NEXTTOGO_DB and
// NEXTTOGO_INTERVAL.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("NEXTTOGO_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("NEXTTOGO_DB"); v != "" {
		c.Cache.Path = v
	}
	if v := os.Getenv("NEXTTOGO_INTERVAL"); v != "" {
		c.Refresh.Interval = v
	}
}

// Validate checks fields that would otherwise fail much later.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url: scheme must be http or https, got %q", u.Scheme)
	}
	if _, unknown := c.parseCategories(); len(unknown) > 0 {
		return fmt.Errorf("filter.categories: unknown %s", strings.Join(unknown, ", "))
	}
	return nil
}

// TimeoutDuration returns the per-request timeout.
func (c *Config) TimeoutDuration() time.Duration {
	return parsePositive(c.API.Timeout, DefaultTimeout)
}

// IntervalDuration returns the refresh period.
func (c *Config) IntervalDuration() time.Duration {
	return parsePositive(c.Refresh.Interval, DefaultInterval)
}

// CategoryFilter returns the startup filter. Unknown names are ignored;
// Validate reports them.
func (c *Config) CategoryFilter() model.CategorySet {
	set, _ := c.parseCategories()
	return set
}

func (c *Config) parseCategories() (model.CategorySet, []string) {
	return model.ParseCategoryNames(strings.Join(c.Filter.Categories, ","))
}

func parsePositive(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
