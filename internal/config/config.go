// ABOUTME: Configuration loading and parsing for the council client
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/council/internal/render"
	"github.com/2389/council/internal/sentinel"
	"github.com/2389/council/internal/transport"
)

// EnvConfigPath overrides the default config file location.
const EnvConfigPath = "COUNCIL_CONFIG"

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config represents the complete council client configuration
type Config struct {
	Server       ServerConfig       `yaml:"server" toml:"server"`
	Conversation ConversationConfig `yaml:"conversation" toml:"conversation"`
	Sentinels    SentinelsConfig    `yaml:"sentinels" toml:"sentinels"`
	Store        StoreConfig        `yaml:"store" toml:"store"`
	Render       RenderConfig       `yaml:"render" toml:"render"`
	Logging      LoggingConfig      `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the council server location
type ServerConfig struct {
	URL string `yaml:"url" toml:"url"`

	// RequestTimeout bounds short requests such as the model listing.
	// Conversation streams are never subject to it.
	RequestTimeout    time.Duration `yaml:"-" toml:"-"`
	RequestTimeoutRaw string        `yaml:"request_timeout" toml:"request_timeout"`
}

// ConversationConfig holds per-submission defaults
type ConversationConfig struct {
	Transport string `yaml:"transport" toml:"transport"`
	Model     string `yaml:"model" toml:"model"`

	// MaxDuration closes a conversation that runs longer. Zero disables it.
	MaxDuration    time.Duration `yaml:"-" toml:"-"`
	MaxDurationRaw string        `yaml:"max_duration" toml:"max_duration"`
}

// SentinelsConfig overrides the terminal phrases. Empty lists keep the
// built-in phrases.
type SentinelsConfig struct {
	Success     []string `yaml:"success" toml:"success"`
	Failure     []string `yaml:"failure" toml:"failure"`
	ErrorPrefix string   `yaml:"error_prefix" toml:"error_prefix"`
}

// StoreConfig selects where turns are kept during a session
type StoreConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
}

// RenderConfig holds output rendering configuration
type RenderConfig struct {
	Format  string `yaml:"format" toml:"format"`
	NoColor bool   `yaml:"no_color" toml:"no_color"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:               "http://localhost:8000",
			RequestTimeout:    10 * time.Second,
			RequestTimeoutRaw: "10s",
		},
		Conversation: ConversationConfig{
			Transport: string(transport.ModeStream),
		},
		Sentinels: SentinelsConfig{
			ErrorPrefix: sentinel.DefaultErrorPrefix,
		},
		Store:   StoreConfig{Driver: StoreMemory},
		Render:  RenderConfig{Format: string(render.FormatText)},
		Logging: LoggingConfig{Level: "warn", Format: "text"},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, anything else as YAML. Values
// missing from the file keep their Default.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not
// exist. Any other read or parse error is returned.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// DefaultPath returns the config file location.
// Priority: COUNCIL_CONFIG env var > XDG_CONFIG_HOME/council/config.yaml > ~/.config/council/config.yaml
func DefaultPath() string {
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "council.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "council", "config.yaml")
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server.url must be an http or https URL: %q", c.Server.URL)
	}

	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout must not be negative")
	}

	if _, err := transport.ParseMode(c.Conversation.Transport); err != nil {
		return fmt.Errorf("conversation.transport: %w", err)
	}

	if c.Conversation.MaxDuration < 0 {
		return fmt.Errorf("conversation.max_duration must not be negative")
	}

	if strings.TrimSpace(c.Sentinels.ErrorPrefix) == "" {
		return fmt.Errorf("sentinels.error_prefix is required")
	}

	switch c.Store.Driver {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", StoreMemory, StoreSQLite, c.Store.Driver)
	}

	if _, err := render.ParseFormat(c.Render.Format); err != nil {
		return fmt.Errorf("render.format: %w", err)
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// SentinelConfig returns the detector configuration, keeping the built-in
// phrases for any list left empty. The error prefix is taken as is; Validate
// requires it.
func (c *Config) SentinelConfig() sentinel.Config {
	cfg := sentinel.DefaultConfig()
	if len(c.Sentinels.Success) > 0 {
		cfg.Success = c.Sentinels.Success
	}
	if len(c.Sentinels.Failure) > 0 {
		cfg.Failure = c.Sentinels.Failure
	}
	cfg.ErrorPrefix = c.Sentinels.ErrorPrefix
	return cfg
}

// ParseLevel maps a logging.level value to a slog level. The empty string
// means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.RequestTimeoutRaw != "" {
		cfg.Server.RequestTimeout, err = time.ParseDuration(cfg.Server.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Server.RequestTimeoutRaw, err)
		}
	}

	if cfg.Conversation.MaxDurationRaw != "" {
		cfg.Conversation.MaxDuration, err = time.ParseDuration(cfg.Conversation.MaxDurationRaw)
		if err != nil {
			return fmt.Errorf("parsing max_duration %q: %w", cfg.Conversation.MaxDurationRaw, err)
		}
	}

	return nil
}
