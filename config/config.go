package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/tradebook/journal"
)

// EnvPrefix prefixes every environment override, e.g. TRADEBOOK_REMOTE_DATABASE_URL.
const EnvPrefix = "TRADEBOOK_"

// Config represents the complete service configuration
type Config struct {
	Namespace string         `json:"namespace" yaml:"namespace" env:"NAMESPACE"`
	Local     LocalConfig    `json:"local" yaml:"local" envPrefix:"LOCAL_"`
	Remote    RemoteConfig   `json:"remote" yaml:"remote" envPrefix:"REMOTE_"`
	Server    ServerConfig   `json:"server" yaml:"server" envPrefix:"SERVER_"`
	Journal   JournalConfig  `json:"journal" yaml:"journal" envPrefix:"JOURNAL_"`
	Accounts  AccountsConfig `json:"accounts" yaml:"accounts" envPrefix:"ACCOUNTS_"`
	Log       LogConfig      `json:"log" yaml:"log" envPrefix:"LOG_"`
}

// LocalConfig locates the on-device cache
type LocalConfig struct {
	Path         string        `json:"path" yaml:"path" env:"PATH"`
	CacheMaxCost int64         `json:"cache_max_cost" yaml:"cache_max_cost" env:"CACHE_MAX_COST"`
	CacheTTL     time.Duration `json:"cache_ttl" yaml:"cache_ttl" env:"CACHE_TTL"`
}

// RemoteConfig points at the durable store. An empty DatabaseURL runs
// local-only.
type RemoteConfig struct {
	DatabaseURL string        `json:"database_url,omitempty" yaml:"database_url,omitempty" env:"DATABASE_URL"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout" env:"TIMEOUT"`
}

type ServerConfig struct {
	Addr           string        `json:"addr" yaml:"addr" env:"ADDR"`
	JWTSecret      string        `json:"jwt_secret,omitempty" yaml:"jwt_secret,omitempty" env:"JWT_SECRET"`
	TokenTTL       time.Duration `json:"token_ttl" yaml:"token_ttl" env:"TOKEN_TTL"`
	AllowedOrigins []string      `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty" env:"ALLOWED_ORIGINS" envSeparator:","`
}

type JournalConfig struct {
	WeekStartsOnSunday bool   `json:"week_starts_on_sunday" yaml:"week_starts_on_sunday" env:"WEEK_STARTS_ON_SUNDAY"`
	DefaultKind        string `json:"default_kind" yaml:"default_kind" env:"DEFAULT_KIND"`
	ResyncSchedule     string `json:"resync_schedule,omitempty" yaml:"resync_schedule,omitempty" env:"RESYNC_SCHEDULE"`
}

type AccountsConfig struct {
	BcryptCost int `json:"bcrypt_cost" yaml:"bcrypt_cost" env:"BCRYPT_COST"`
}

type LogConfig struct {
	Level       string `json:"level" yaml:"level" env:"LEVEL"`
	Development bool   `json:"development" yaml:"development" env:"DEVELOPMENT"`
}

// Load builds the configuration from defaults, then the file at path (if
// any), then a .env file (if present), then TRADEBOOK_* environment
// variables.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON)
// on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.readFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, c); err != nil {
		if jerr := json.Unmarshal(data, c); jerr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	return nil
}

// SaveToFile saves configuration to a file (YAML for .yaml/.yml, JSON
// otherwise)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if strings.ContainsAny(c.Namespace, ":/ ") {
		return fmt.Errorf("namespace must not contain ':', '/' or spaces")
	}
	if c.Local.Path == "" {
		return fmt.Errorf("local.path is required")
	}
	if c.Local.CacheMaxCost < 0 {
		return fmt.Errorf("local.cache_max_cost must not be negative")
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote.timeout must be positive")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret is required")
	}
	if c.Server.TokenTTL <= 0 {
		return fmt.Errorf("server.token_ttl must be positive")
	}
	if _, err := journal.ParseKind(c.Journal.DefaultKind); err != nil {
		return fmt.Errorf("journal.default_kind: %w", err)
	}
	if c.Journal.ResyncSchedule != "" {
		if _, err := cron.ParseStandard(c.Journal.ResyncSchedule); err != nil {
			return fmt.Errorf("journal.resync_schedule: %w", err)
		}
	}
	if c.Accounts.BcryptCost < bcrypt.MinCost || c.Accounts.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("accounts.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Namespace: "tradebook",
		Local: LocalConfig{
			Path:         "./tradebook.db",
			CacheMaxCost: 1 << 24,
			CacheTTL:     10 * time.Minute,
		},
		Remote: RemoteConfig{
			Timeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Addr:      ":8080",
			JWTSecret: "change-me-in-production",
			TokenTTL:  24 * time.Hour,
		},
		Journal: JournalConfig{
			DefaultKind:    string(journal.Futures),
			ResyncSchedule: "@every 5m",
		},
		Accounts: AccountsConfig{
			BcryptCost: bcrypt.DefaultCost,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
