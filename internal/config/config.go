// ABOUTME: Configuration loading and parsing for menu-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion, defaults and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/2389/menu-gateway/internal/auth"
)

// Session persistence backends
const (
	SessionBackendFile   = "file"
	SessionBackendSQLite = "sqlite"
	SessionBackendRedis  = "redis"
)

// Defaults applied by Load
const (
	DefaultHTTPAddr        = ":8080"
	DefaultReplayTTL       = 5 * time.Minute
	DefaultSessionIdleTTL  = time.Hour
	DefaultBackendTimeout  = 30 * time.Second
	DefaultActionPath      = "/api/action"
	DefaultBasketItemsPath = "/api/basket/items"
	DefaultUserAgent       = "menu-gateway"
	DefaultSessionMode     = "shared"
	DefaultRedisPrefix     = "menu-gateway:session:"
)

// Config represents the complete menu-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Backend   BackendConfig   `yaml:"backend" toml:"backend"`
	Session   SessionConfig   `yaml:"session" toml:"session"`
	Widgets   WidgetsConfig   `yaml:"widgets" toml:"widgets"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the MCP listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`

	ReplayTTL    time.Duration `yaml:"-" toml:"-"`
	ReplayTTLRaw string        `yaml:"replay_ttl" toml:"replay_ttl"`

	SessionIdleTTL    time.Duration `yaml:"-" toml:"-"`
	SessionIdleTTLRaw string        `yaml:"session_idle_ttl" toml:"session_idle_ttl"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`   // Serve TLS with a tailnet certificate
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Expose publicly via Funnel (implies HTTPS)
}

// BackendConfig holds the ordering backend endpoint configuration
type BackendConfig struct {
	BaseURL         string `yaml:"base_url" toml:"base_url"`
	ActionPath      string `yaml:"action_path" toml:"action_path"`
	BasketItemsPath string `yaml:"basket_items_path" toml:"basket_items_path"`
	UserAgent       string `yaml:"user_agent" toml:"user_agent"`

	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// SessionConfig holds session persistence configuration
type SessionConfig struct {
	Backend string `yaml:"backend" toml:"backend"`
	Path    string `yaml:"path" toml:"path"`
	Mode    string `yaml:"mode" toml:"mode"`

	RedisAddr     string `yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword string `yaml:"redis_password" toml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" toml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix" toml:"redis_prefix"`

	RedisTTL    time.Duration `yaml:"-" toml:"-"`
	RedisTTLRaw string        `yaml:"redis_ttl" toml:"redis_ttl"`
}

// WidgetsConfig points at optional widget markup overrides
type WidgetsConfig struct {
	Dir string `yaml:"dir" toml:"dir"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data, formatFor(path))
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Format is a config file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

func formatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes, defaults and validates configuration content.
func Parse(data []byte, format Format) (*Config, error) {
	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
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

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the environment. Missing files are ignored; variables already set
// are not overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills unset fields.
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.ReplayTTLRaw == "" {
		c.Server.ReplayTTL = DefaultReplayTTL
	}
	if c.Server.SessionIdleTTLRaw == "" {
		c.Server.SessionIdleTTL = DefaultSessionIdleTTL
	}

	if c.Tailscale.Funnel {
		c.Tailscale.HTTPS = true
	}
	if c.Tailscale.Enabled && c.Tailscale.StateDir == "" {
		c.Tailscale.StateDir = filepath.Join(DataDir(), "tsnet")
	}

	if c.Backend.ActionPath == "" {
		c.Backend.ActionPath = DefaultActionPath
	}
	if c.Backend.BasketItemsPath == "" {
		c.Backend.BasketItemsPath = DefaultBasketItemsPath
	}
	if c.Backend.UserAgent == "" {
		c.Backend.UserAgent = DefaultUserAgent
	}
	if c.Backend.TimeoutRaw == "" {
		c.Backend.Timeout = DefaultBackendTimeout
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")

	if c.Session.Backend == "" {
		c.Session.Backend = SessionBackendFile
	}
	if c.Session.Mode == "" {
		c.Session.Mode = DefaultSessionMode
	}
	if c.Session.Path == "" {
		switch c.Session.Backend {
		case SessionBackendFile:
			c.Session.Path = filepath.Join(DataDir(), "session.json")
		case SessionBackendSQLite:
			c.Session.Path = filepath.Join(DataDir(), "sessions.db")
		}
	}
	if c.Session.RedisPrefix == "" {
		c.Session.RedisPrefix = DefaultRedisPrefix
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// resolvePaths makes relative file paths relative to the config file's directory.
func (c *Config) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) || p == ":memory:" {
			return p
		}
		return filepath.Join(base, p)
	}
	if c.Session.Backend != SessionBackendRedis {
		c.Session.Path = abs(c.Session.Path)
	}
	c.Widgets.Dir = abs(c.Widgets.Dir)
	c.Tailscale.StateDir = abs(c.Tailscale.StateDir)
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}
	if c.Server.ReplayTTL < 0 {
		return fmt.Errorf("server.replay_ttl must not be negative")
	}
	if c.Server.SessionIdleTTL < 0 {
		return fmt.Errorf("server.session_idle_ttl must not be negative")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an http(s) URL, got %q", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}

	switch c.Session.Backend {
	case SessionBackendFile, SessionBackendSQLite:
		if c.Session.Path == "" {
			return fmt.Errorf("session.path is required for the %s backend", c.Session.Backend)
		}
	case SessionBackendRedis:
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("session.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("session.backend must be one of file, sqlite, redis; got %q", c.Session.Backend)
	}
	if c.Session.Mode != "shared" && c.Session.Mode != "per_connection" {
		return fmt.Errorf("session.mode must be shared or per_connection; got %q", c.Session.Mode)
	}
	if c.Session.RedisTTL < 0 {
		return fmt.Errorf("session.redis_ttl must not be negative")
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d characters", auth.MinSecretLength)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error; got %q", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json; got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.ReplayTTLRaw != "" {
		cfg.Server.ReplayTTL, err = time.ParseDuration(cfg.Server.ReplayTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing replay_ttl %q: %w", cfg.Server.ReplayTTLRaw, err)
		}
	}

	if cfg.Server.SessionIdleTTLRaw != "" {
		cfg.Server.SessionIdleTTL, err = time.ParseDuration(cfg.Server.SessionIdleTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session_idle_ttl %q: %w", cfg.Server.SessionIdleTTLRaw, err)
		}
	}

	if cfg.Backend.TimeoutRaw != "" {
		cfg.Backend.Timeout, err = time.ParseDuration(cfg.Backend.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", cfg.Backend.TimeoutRaw, err)
		}
	}

	if cfg.Session.RedisTTLRaw != "" {
		cfg.Session.RedisTTL, err = time.ParseDuration(cfg.Session.RedisTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing redis_ttl %q: %w", cfg.Session.RedisTTLRaw, err)
		}
	}

	return nil
}

// DataDir returns the directory for durable state: $XDG_DATA_HOME/menu-gateway,
// falling back to ~/.local/share/menu-gateway.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "menu-gateway")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "menu-gateway")
	}
	return "menu-gateway-data"
}
