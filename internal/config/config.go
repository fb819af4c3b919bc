// ABOUTME: Configuration loading and parsing for the chatsync client
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults applied when a field is left empty.
const (
	DefaultRequestTimeout = 15 * time.Second
	DefaultDedupeTTL      = 5 * time.Minute
	DefaultDedupeMax      = 1000
)

// Config represents the complete chatsync configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Auth    AuthConfig    `yaml:"auth" toml:"auth"`
	Sync    SyncConfig    `yaml:"sync" toml:"sync"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the chat server endpoints
type ServerConfig struct {
	// BaseURL is the root of the message API, e.g. https://chat.example.com/api
	BaseURL string `yaml:"base_url" toml:"base_url"`
	// SocketURL is the push endpoint. Derived from BaseURL when empty.
	SocketURL string `yaml:"socket_url" toml:"socket_url"`

	RequestTimeout    time.Duration `yaml:"-" toml:"-"`
	RequestTimeoutRaw string        `yaml:"request_timeout" toml:"request_timeout"`
}

// AuthConfig holds the bearer token issued by the chat server
type AuthConfig struct {
	Token string `yaml:"token" toml:"token"`
}

// SyncConfig holds conversation sync behavior
type SyncConfig struct {
	// DedupeIncoming drops live messages already seen in the open conversation.
	DedupeIncoming bool `yaml:"dedupe_incoming" toml:"dedupe_incoming"`
	DedupeMax      int  `yaml:"dedupe_max" toml:"dedupe_max"`

	DedupeTTL    time.Duration `yaml:"-" toml:"-"`
	DedupeTTLRaw string        `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// DefaultPath returns the config file location.
// Priority: CHATSYNC_CONFIG env var > XDG_CONFIG_HOME/chatsync/config.yaml > ~/.config/chatsync/config.yaml
func DefaultPath() string {
	if envPath := os.Getenv("CHATSYNC_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "chatsync", "config.yaml")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
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
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
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

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = DefaultRequestTimeout
	}
	if c.Sync.DedupeTTL == 0 {
		c.Sync.DedupeTTL = DefaultDedupeTTL
	}
	if c.Sync.DedupeMax == 0 {
		c.Sync.DedupeMax = DefaultDedupeMax
	}
	if c.Server.SocketURL == "" && c.Server.BaseURL != "" {
		if derived, err := DeriveSocketURL(c.Server.BaseURL); err == nil {
			c.Server.SocketURL = derived
		}
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url must use http or https scheme")
	}

	if c.Server.SocketURL != "" {
		su, err := url.Parse(c.Server.SocketURL)
		if err != nil {
			return fmt.Errorf("server.socket_url is not a valid URL: %w", err)
		}
		if su.Scheme != "ws" && su.Scheme != "wss" {
			return fmt.Errorf("server.socket_url must use ws or wss scheme")
		}
	}

	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout must not be negative")
	}
	if c.Sync.DedupeTTL < 0 {
		return fmt.Errorf("sync.dedupe_ttl must not be negative")
	}
	if c.Sync.DedupeMax < 0 {
		return fmt.Errorf("sync.dedupe_max must not be negative")
	}

	return nil
}

// DeriveSocketURL maps an http(s) base URL to the ws(s)://host/ws push endpoint.
func DeriveSocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
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

	if cfg.Sync.DedupeTTLRaw != "" {
		cfg.Sync.DedupeTTL, err = time.ParseDuration(cfg.Sync.DedupeTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing dedupe_ttl %q: %w", cfg.Sync.DedupeTTLRaw, err)
		}
	}

	return nil
}
