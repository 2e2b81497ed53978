// Package config loads cyclelog settings from a YAML file with environment
// overrides.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. CYCLELOG_REMOTE_URL.
const EnvPrefix = "CYCLELOG"

// Config holds all cyclelog settings.
// It is loaded from ~/.cyclelog/config.yaml and can be overridden by environment variables.
type Config struct {
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Remote  RemoteConfig  `mapstructure:"remote" yaml:"remote"`
	Local   LocalConfig   `mapstructure:"local" yaml:"local"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Stats   StatsConfig   `mapstructure:"stats" yaml:"stats"`
	Policy  PolicyConfig  `mapstructure:"policy" yaml:"policy"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
}

// StoreConfig locates the working database.
type StoreConfig struct {
	// WorkPath is where the loaded image is materialized.
	WorkPath string `mapstructure:"work_path" yaml:"work_path"`
}

// RemoteConfig configures the remote backend. An empty URL disables it.
type RemoteConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// LocalConfig configures the local fallback blob.
type LocalConfig struct {
	BlobPath string `mapstructure:"blob_path" yaml:"blob_path"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// StatsConfig configures statistics.
type StatsConfig struct {
	// Timezone is an IANA name used to derive calendar dates.
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
}

// PolicyConfig selects the edge policy.
type PolicyConfig struct {
	// File is a YAML or CUE policy. Empty means the built-in workflow.
	File string `mapstructure:"file" yaml:"file"`

	// Strict rejects illegal edges instead of logging them.
	Strict bool `mapstructure:"strict" yaml:"strict"`
}

// ServerConfig configures `cyclelog serve`.
type ServerConfig struct {
	Addr    string `mapstructure:"addr" yaml:"addr"`
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// Default returns the configuration written on first run.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			WorkPath: "~/.cyclelog/work.db",
		},
		Remote: RemoteConfig{
			ProbeTimeout:   2 * time.Second,
			RequestTimeout: 10 * time.Second,
		},
		Local: LocalConfig{
			BlobPath: "~/.cyclelog/cyclelog.b64",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Stats: StatsConfig{
			Timezone: "UTC",
		},
		Server: ServerConfig{
			Addr:    "127.0.0.1:8787",
			DataDir: "~/.cyclelog/server",
		},
	}
}

// DefaultPath returns ~/.cyclelog/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cyclelog", "config.yaml"), nil
}

// Load reads the configuration from DefaultPath.
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the configuration at path, writing the defaults there
// first when the file does not exist.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		slog.Debug("wrote default config", "path", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v, Default())

	// Example: CYCLELOG_REMOTE_URL=http://localhost:8787
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.expandPaths()
	return &cfg, nil
}

// setDefaults registers every key so environment overrides apply even
// when the file omits the key.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("store.work_path", d.Store.WorkPath)
	v.SetDefault("remote.url", d.Remote.URL)
	v.SetDefault("remote.probe_timeout", d.Remote.ProbeTimeout)
	v.SetDefault("remote.request_timeout", d.Remote.RequestTimeout)
	v.SetDefault("local.blob_path", d.Local.BlobPath)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("stats.timezone", d.Stats.Timezone)
	v.SetDefault("policy.file", d.Policy.File)
	v.SetDefault("policy.strict", d.Policy.Strict)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.data_dir", d.Server.DataDir)
}

func (c *Config) expandPaths() {
	c.Store.WorkPath = expandPath(c.Store.WorkPath)
	c.Local.BlobPath = expandPath(c.Local.BlobPath)
	c.Policy.File = expandPath(c.Policy.File)
	c.Server.DataDir = expandPath(c.Server.DataDir)
}

// SaveToPath writes the configuration as YAML.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return writeConfigFile(path, c)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Store.WorkPath == "" {
		return fmt.Errorf("store.work_path cannot be empty")
	}
	if c.Local.BlobPath == "" {
		return fmt.Errorf("local.blob_path cannot be empty")
	}
	if c.Store.WorkPath == c.Local.BlobPath {
		return fmt.Errorf("store.work_path and local.blob_path must differ")
	}

	if c.Remote.URL != "" {
		u, err := url.Parse(c.Remote.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid remote.url '%s', must be an http or https URL", c.Remote.URL)
		}
	}
	if c.Remote.ProbeTimeout <= 0 {
		return fmt.Errorf("remote.probe_timeout must be positive")
	}
	if c.Remote.RequestTimeout <= 0 {
		return fmt.Errorf("remote.request_timeout must be positive")
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses logging.level.
func (c *Config) LogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}
}

// Location loads stats.timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Stats.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Stats.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid stats.timezone '%s': %w", c.Stats.Timezone, err)
	}
	return loc, nil
}

func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
