package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for recoverable settings
const (
	DefaultMaxFailures   = 3
	DefaultBlockDuration = 5 * time.Minute
	DefaultVerifyWindow  = 1 * time.Minute
)

// ErrDefaultWritten indicates a fresh config file was generated and the
// operator must fill it in before the server can start
var ErrDefaultWritten = errors.New("default config written, edit it and restart")

// Config holds the application configuration
type Config struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	AdminAPI AdminAPIConfig `yaml:"admin_api"`

	// AllowListPath points at another subsystem's allow-list file; names
	// on it bypass Discord verification. Empty disables the integration.
	AllowListPath string `yaml:"allow_list_path"`
}

// DiscordConfig holds bot credentials and guild settings
type DiscordConfig struct {
	Token string `yaml:"token"`
	// GuildID is the Discord server players must belong to
	GuildID string `yaml:"guild_id"`
	// RoleID is the role required to verify
	RoleID string `yaml:"role_id"`
	// AdminID is the Discord account allowed to revoke links over DM;
	// empty disables the DM revoke command
	AdminID string `yaml:"admin_id"`
}

// AuthConfig holds verification policy settings
type AuthConfig struct {
	MaxFailures   int           `yaml:"max_failures"`
	BlockDuration time.Duration `yaml:"block_duration"`
	VerifyWindow  time.Duration `yaml:"verify_window"`
}

// StorageConfig selects and configures the link store backend
type StorageConfig struct {
	// Type is "file", "redis", or "memory"
	Type string `yaml:"type"`
	// Path is the link file location (file backend)
	Path string `yaml:"path"`
	// RedisURL is the Redis connection URL (redis backend)
	RedisURL string `yaml:"redis_url"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Port       int    `yaml:"port"`
}

// AdminAPIConfig holds admin API settings
type AdminAPIConfig struct {
	// TokenHash is the bcrypt hash of the admin bearer token; empty
	// disables the admin endpoints
	TokenHash string `yaml:"token_hash"`
}

// Storage type constants
const (
	StorageTypeFile   = "file"
	StorageTypeRedis  = "redis"
	StorageTypeMemory = "memory"
)

// Load reads configuration from a YAML file. If the file does not exist
// a commented default is written and ErrDefaultWritten returned, so a
// first run never starts with silently-empty credentials. Credential and
// ID problems are fatal; bad policy numbers fall back to defaults with a
// warning.
func Load(path string, logger *slog.Logger) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := writeDefault(path); err != nil {
				return nil, fmt.Errorf("writing default config: %w", err)
			}
			logger.Info("wrote default config", slog.String("path", path))
			return nil, ErrDefaultWritten
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults(logger)
	return &cfg, nil
}

// validate checks the settings the server cannot run without
func (c *Config) validate() error {
	if c.Discord.Token == "" {
		return errors.New("discord.token is required")
	}
	if err := validateSnowflake("discord.guild_id", c.Discord.GuildID, true); err != nil {
		return err
	}
	if err := validateSnowflake("discord.role_id", c.Discord.RoleID, true); err != nil {
		return err
	}
	if err := validateSnowflake("discord.admin_id", c.Discord.AdminID, false); err != nil {
		return err
	}

	switch c.Storage.Type {
	case "", StorageTypeFile, StorageTypeRedis, StorageTypeMemory:
	default:
		return fmt.Errorf("storage.type %q is not one of file, redis, memory", c.Storage.Type)
	}
	return nil
}

func validateSnowflake(name, value string, required bool) error {
	if value == "" {
		if required {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
	if _, err := strconv.ParseUint(value, 10, 64); err != nil {
		return fmt.Errorf("%s must be a numeric Discord ID, got %q", name, value)
	}
	return nil
}

// applyDefaults fills unset or out-of-range values, warning where an
// explicit value was discarded
func (c *Config) applyDefaults(logger *slog.Logger) {
	if c.Auth.MaxFailures <= 0 {
		if c.Auth.MaxFailures < 0 {
			logger.Warn("invalid auth.max_failures, using default",
				slog.Int("value", c.Auth.MaxFailures),
				slog.Int("default", DefaultMaxFailures))
		}
		c.Auth.MaxFailures = DefaultMaxFailures
	}
	if c.Auth.BlockDuration <= 0 {
		if c.Auth.BlockDuration < 0 {
			logger.Warn("invalid auth.block_duration, using default",
				slog.Duration("value", c.Auth.BlockDuration),
				slog.Duration("default", DefaultBlockDuration))
		}
		c.Auth.BlockDuration = DefaultBlockDuration
	}
	if c.Auth.VerifyWindow <= 0 {
		if c.Auth.VerifyWindow < 0 {
			logger.Warn("invalid auth.verify_window, using default",
				slog.Duration("value", c.Auth.VerifyWindow),
				slog.Duration("default", DefaultVerifyWindow))
		}
		c.Auth.VerifyWindow = DefaultVerifyWindow
	}

	if c.Storage.Type == "" {
		c.Storage.Type = StorageTypeFile
	}
	if c.Storage.Type == StorageTypeFile && c.Storage.Path == "" {
		c.Storage.Path = "data/verified.json"
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

const defaultConfig = `# discordgate configuration
discord:
  # Bot token (required)
  token: ""
  # Discord server players must belong to (required)
  guild_id: ""
  # Role required to verify (required)
  role_id: ""
  # Account allowed to revoke links via "!delete <discord id>" DM (optional)
  admin_id: ""

auth:
  # Verification failures from one address before it is blocked
  max_failures: 3
  # How long a blocked address stays blocked
  block_duration: 5m
  # How long a player has to redeem their code
  verify_window: 1m

storage:
  # Link store backend: file, redis, or memory
  type: file
  path: data/verified.json
  # redis_url: redis://localhost:6379/0

server:
  listen_addr: ""
  port: 8080

admin_api:
  # bcrypt hash of the admin bearer token; empty disables the admin API
  token_hash: ""

# Another subsystem's allow-list file; names on it skip verification
allow_list_path: ""
`

func writeDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(defaultConfig), 0o600)
}
