package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/chaz8081/botracer/internal/ble"
	"github.com/chaz8081/botracer/internal/dispatch"
	"github.com/chaz8081/botracer/internal/watch"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string         `yaml:"log_level" default:"info"`
	Store    StoreConfig    `yaml:"store"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Watch    WatchConfig    `yaml:"watch"`
	Connect  ConnectConfig  `yaml:"connect"`
	Device   DeviceConfig   `yaml:"device"`
}

// StoreConfig holds settings persistence options.
type StoreConfig struct {
	Path string `yaml:"path" default:"~/.config/botracer/settings.yaml"`
}

// DispatchConfig sizes the background worker pool.
type DispatchConfig struct {
	Workers   int `yaml:"workers" default:"4"`
	QueueSize int `yaml:"queue_size" default:"64"`
}

// WatchConfig controls disconnection watchers.
type WatchConfig struct {
	ReconnectMax       int  `yaml:"reconnect_max" default:"30"` // seconds
	MaintainConnection bool `yaml:"maintain_connection" default:"true"`
}

// ConnectConfig holds connection options.
type ConnectConfig struct {
	Timeout time.Duration `yaml:"timeout" default:"10s"`
}

// DeviceConfig names the racer used when a command is given no address.
type DeviceConfig struct {
	Address string `yaml:"address"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "botracer")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with every default applied and paths expanded.
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	cfg.Store.Path = expandTilde(cfg.Store.Path)
	return cfg
}

// Load reads and parses a YAML config file. Missing fields keep their
// defaults. Tilde (~) in store.path is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	defaults.SetDefaults(cfg)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Store.Path = expandTilde(cfg.Store.Path)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	if c.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}

	if c.Dispatch.Workers <= 0 {
		return fmt.Errorf("dispatch.workers must be > 0, got %d", c.Dispatch.Workers)
	}
	if c.Dispatch.QueueSize <= 0 {
		return fmt.Errorf("dispatch.queue_size must be > 0, got %d", c.Dispatch.QueueSize)
	}

	if c.Watch.ReconnectMax <= 0 {
		return fmt.Errorf("watch.reconnect_max must be > 0, got %d", c.Watch.ReconnectMax)
	}

	if c.Connect.Timeout <= 0 {
		return fmt.Errorf("connect.timeout must be > 0, got %s", c.Connect.Timeout)
	}

	if c.Device.Address != "" {
		if _, err := ble.AddressID(c.Device.Address); err != nil {
			return fmt.Errorf("device.address: %w", err)
		}
	}

	return nil
}

// DispatchOptions returns the worker pool options.
func (c *Config) DispatchOptions() dispatch.Options {
	return dispatch.Options{Workers: c.Dispatch.Workers, QueueSize: c.Dispatch.QueueSize}
}

// WatchOptions returns the watcher manager options.
func (c *Config) WatchOptions() watch.Options {
	return watch.Options{ReconnectMax: c.Watch.ReconnectMax, ConnectTimeout: c.Connect.Timeout}
}

// ParseLogLevel maps a config log level to a logrus level.
func ParseLogLevel(s string) (logrus.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return logrus.DebugLevel, nil
	case "info", "":
		return logrus.InfoLevel, nil
	case "warn":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	}
	return logrus.InfoLevel, fmt.Errorf("log_level must be debug, info, warn, or error, got %q", s)
}

// NewLogger builds the application logger for the configured level.
func (c *Config) NewLogger() *logrus.Logger {
	level, _ := ParseLogLevel(c.LogLevel)
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger
}

const defaultHeader = `# botracer configuration
# See https://github.com/chaz8081/botracer for all options.

`

// WriteDefault writes the default config to DefaultConfigPath when no file
// exists there yet. It returns the written path, or "" if a file was
// already present.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("checking %s: %w", path, err)
	}

	cfg := &Config{}
	defaults.SetDefaults(cfg)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0o644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
