// ABOUTME: Configuration loading and parsing for tatasbox
// ABOUTME: YAML or TOML files with .env loading, env var expansion, durations and defaults

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/2389/tatasbox/internal/kv"
)

// Config represents the complete tatasbox configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	LLM       LLMConfig       `yaml:"llm" toml:"llm"`
	Story     StoryConfig     `yaml:"story" toml:"story"`
	RateLimit RateLimitConfig `yaml:"ratelimit" toml:"ratelimit"`
	Journal   JournalConfig   `yaml:"journal" toml:"journal"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds the listen address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`   // Serve HTTPS with a tailnet certificate
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// DatabaseConfig selects and configures the key-value backend
type DatabaseConfig struct {
	Driver        string `yaml:"driver" toml:"driver"`
	Path          string `yaml:"path" toml:"path"`
	DSN           string `yaml:"dsn" toml:"dsn"`
	EncryptionKey string `yaml:"encryption_key" toml:"encryption_key"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// LLMConfig configures the upstream Responses API
type LLMConfig struct {
	APIKey  string `yaml:"api_key" toml:"api_key"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
	Model   string `yaml:"model" toml:"model"`

	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// StoryConfig sizes the today's-story cache
type StoryConfig struct {
	CacheSize int `yaml:"cache_size" toml:"cache_size"`

	CacheTTL    time.Duration `yaml:"-" toml:"-"`
	CacheTTLRaw string        `yaml:"cache_ttl" toml:"cache_ttl"`
}

// RateLimitConfig limits story generation per device
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" toml:"requests_per_minute"`
	Burst             int `yaml:"burst" toml:"burst"`
}

// JournalConfig holds journal housekeeping settings
type JournalConfig struct {
	// EphemeralSweep is a standard cron spec; empty disables the sweep.
	EphemeralSweep string `yaml:"ephemeral_sweep" toml:"ephemeral_sweep"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Defaults
const (
	DefaultHTTPAddr    = ":4000"
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-mini"
	DefaultLLMTimeout  = 60 * time.Second
	DefaultCacheTTL    = 24 * time.Hour
	DefaultCacheSize   = 1000
	DefaultRatePerMin  = 10
	DefaultBurst       = 3
	DefaultMetricsPath = "/metrics"
)

// Default returns a configuration with every default applied and a local
// SQLite database under dataDir.
func Default(dataDir string) *Config {
	cfg := &Config{
		Database: DatabaseConfig{Path: filepath.Join(dataDir, "tatasbox.db")},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// A .env file in the working directory is loaded first without overriding the
// environment; ${VAR_NAME} references are then expanded. Files ending in
// .toml are parsed as TOML, anything else as YAML.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// DefaultPath returns the config location: $TATASBOX_CONFIG, then
// $XDG_CONFIG_HOME/tatasbox/config.yaml, then ~/.config/tatasbox/config.yaml.
func DefaultPath() string {
	if p := os.Getenv("TATASBOX_CONFIG"); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tatasbox", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "tatasbox", "config.yaml")
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) applyDefaults() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.HTTPAddr = ":" + port
	}
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Database.Driver == "" {
		c.Database.Driver = kv.DriverSQLite
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = DefaultBaseURL
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = DefaultLLMTimeout
	}
	if c.Story.CacheTTL == 0 {
		c.Story.CacheTTL = DefaultCacheTTL
	}
	if c.Story.CacheSize == 0 {
		c.Story.CacheSize = DefaultCacheSize
	}
	if c.RateLimit.RequestsPerMinute == 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.RequestsPerMinute = DefaultRatePerMin
		c.RateLimit.Burst = DefaultBurst
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Database.Driver {
	case kv.DriverSQLite, kv.DriverSQLite3, kv.DriverFile:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for driver %q", c.Database.Driver)
		}
	case kv.DriverPostgres, kv.DriverRedis:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	case kv.DriverMemory:
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}

	if c.Database.EncryptionKey != "" && len(c.Database.EncryptionKey) < kv.MinKeyLength {
		return fmt.Errorf("database.encryption_key must be at least %d bytes", kv.MinKeyLength)
	}

	if c.Journal.EphemeralSweep != "" {
		if _, err := cron.ParseStandard(c.Journal.EphemeralSweep); err != nil {
			return fmt.Errorf("journal.ephemeral_sweep %q: %w", c.Journal.EphemeralSweep, err)
		}
	}

	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("ratelimit values must not be negative")
	}
	if c.Story.CacheSize < 0 {
		return fmt.Errorf("story.cache_size must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.LLM.TimeoutRaw != "" {
		cfg.LLM.Timeout, err = time.ParseDuration(cfg.LLM.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing llm.timeout %q: %w", cfg.LLM.TimeoutRaw, err)
		}
	}

	if cfg.Story.CacheTTLRaw != "" {
		cfg.Story.CacheTTL, err = time.ParseDuration(cfg.Story.CacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing story.cache_ttl %q: %w", cfg.Story.CacheTTLRaw, err)
		}
	}

	return nil
}
