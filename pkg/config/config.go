/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix for environment variables used to configure dlmctl
	EnvPrefix = "DLMCTL_"
	// ConfigDirName is the directory under the user's home holding dlmctl state
	ConfigDirName = ".dlmctl"
	// DefaultConfigFileName is the config file looked up in ConfigDirName when no path is given
	DefaultConfigFileName = "config.toml"

	// MaxReconnectBase is the upper bound for stream.reconnect_base; reconnect delays are capped at this value
	MaxReconnectBase = 30 * time.Second
)

// Storage types
const (
	StorageTypeMemory = "memory"
	StorageTypeFile   = "file"
	StorageTypeSQLite = "sqlite"
)

// Config holds all configuration for dlmctl
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Stream     StreamConfig     `koanf:"stream"`
	Storage    StorageConfig    `koanf:"storage"`
	Logging    LoggingConfig    `koanf:"logging"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	MockServer MockServerConfig `koanf:"mock_server"`
}

// ServerConfig describes the download manager REST API
type ServerConfig struct {
	Scheme             string        `koanf:"scheme"`
	Host               string        `koanf:"host"`
	Port               int           `koanf:"port"`
	RequestTimeout     time.Duration `koanf:"request_timeout"`      // Applied to every HTTP call, credential refresh and stream dial
	InsecureSkipVerify bool          `koanf:"insecure_skip_verify"` // Skip TLS certificate verification
}

// StreamConfig describes the event-stream WebSocket endpoint and its keepalive/reconnect policy
type StreamConfig struct {
	Scheme            string        `koanf:"scheme"` // "ws" or "wss"
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	Path              string        `koanf:"path"`
	ReconnectBase     time.Duration `koanf:"reconnect_base"`     // Delay before the first reconnect attempt
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"` // Interval between keepalive pings
	RefreshWindow     time.Duration `koanf:"refresh_window"`     // Refresh credentials expiring within this window before connecting
}

// StorageConfig selects where the bearer credential is kept between runs
type StorageConfig struct {
	Type   string            `koanf:"type"` // "memory", "file" or "sqlite"
	File   FileStorageConfig `koanf:"file"`
	SQLite SQLiteConfig      `koanf:"sqlite"`
}

// FileStorageConfig holds file storage configuration
type FileStorageConfig struct {
	Path string `koanf:"path"`
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path string `koanf:"path"` // Path to SQLite database file
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `koanf:"level"`  // "debug", "info", "warn", "error"
	Format string `koanf:"format"` // "json" (default) or "console"
}

// MetricsConfig holds Prometheus metrics server configuration
type MetricsConfig struct {
	// Enabled indicates whether the metrics server should be started
	Enabled bool `koanf:"enabled"`

	// Port is the port for the metrics HTTP server
	Port int `koanf:"port"`
}

// MockServerConfig configures the local mock backend used for development and tests
type MockServerConfig struct {
	Port           int           `koanf:"port"`
	Username       string        `koanf:"username"`
	Password       string        `koanf:"password"`
	Secret         string        `koanf:"secret"`          // HMAC secret used to sign issued tokens
	TokenTTL       time.Duration `koanf:"token_ttl"`       // Lifetime of issued tokens
	UpdateInterval time.Duration `koanf:"update_interval"` // Interval between simulated download updates
}

// DefaultConfigPath returns ~/.dlmctl/config.toml
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ConfigDirName, DefaultConfigFileName), nil
}

// LoadConfig loads configuration from file, environment variables, and defaults
// Priority: Environment variables > Config file > Defaults
//
// An empty configPath falls back to DefaultConfigPath, which is optional. An explicit
// path must exist.
func LoadConfig(configPath string) (*Config, error) {
	cfg := defaultConfig()

	k := koanf.New(".")

	optional := false
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err == nil {
			configPath = p
			optional = true
		}
	}

	if configPath != "" {
		_, statErr := os.Stat(configPath)
		switch {
		case statErr == nil:
			if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		case optional && errors.Is(statErr, os.ErrNotExist):
			// Defaults and environment only
		default:
			return nil, fmt.Errorf("failed to load config file: %w", statErr)
		}
	}

	// Load environment variables with prefix
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)

		switch s {
		case "token_path":
			return "storage.file.path"
		default:
			// Double underscore keeps a literal underscore, single underscore nests
			s = strings.ReplaceAll(s, "__", "%UNDERSCORE%")
			s = strings.ReplaceAll(s, "_", ".")
			s = strings.ReplaceAll(s, "%UNDERSCORE%", "_")
			return s
		}
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Unmarshal into Config struct with DecodeHook for duration strings
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           cfg,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns the default configuration with home-relative paths expanded
func Default() *Config {
	cfg := defaultConfig()
	cfg.expandPaths()
	return cfg
}

// defaultConfig returns a Config struct with default configuration values
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Scheme:             "http",
			Host:               "localhost",
			Port:               8848,
			RequestTimeout:     10 * time.Second,
			InsecureSkipVerify: false,
		},
		Stream: StreamConfig{
			Scheme:            "ws",
			Host:              "localhost",
			Port:              8848,
			Path:              "/ws",
			ReconnectBase:     5 * time.Second,
			HeartbeatInterval: 30 * time.Second,
			RefreshWindow:     300 * time.Second,
		},
		Storage: StorageConfig{
			Type: StorageTypeFile,
			File: FileStorageConfig{
				Path: "~/" + ConfigDirName + "/credentials.yaml",
			},
			SQLite: SQLiteConfig{
				Path: "~/" + ConfigDirName + "/dlmctl.db",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9091,
		},
		MockServer: MockServerConfig{
			Port:           8848,
			Username:       "admin",
			Password:       "admin",
			Secret:         "dlmctl-mock-secret",
			TokenTTL:       30 * time.Minute,
			UpdateInterval: 2 * time.Second,
		},
	}
}

// expandPaths resolves a leading "~/" in storage paths
func (c *Config) expandPaths() {
	c.Storage.File.Path = expandHome(c.Storage.File.Path)
	c.Storage.SQLite.Path = expandHome(c.Storage.SQLite.Path)
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(homeDir, strings.TrimPrefix(p, "~/"))
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.validateServerConfig(); err != nil {
		return err
	}
	if err := c.validateStreamConfig(); err != nil {
		return err
	}

	// Validate storage type
	switch c.Storage.Type {
	case StorageTypeMemory:
	case StorageTypeFile:
		if c.Storage.File.Path == "" {
			return fmt.Errorf("storage.file.path is required when storage.type is 'file'")
		}
	case StorageTypeSQLite:
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required when storage.type is 'sqlite'")
		}
	default:
		return fmt.Errorf("storage.type must be one of: memory, file, sqlite, got: %s", c.Storage.Type)
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "warning", "error"}
	isValidLevel := false
	for _, level := range validLevels {
		if strings.ToLower(c.Logging.Level) == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got: %s", c.Logging.Level)
	}

	// Validate log format
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be either 'json' or 'console', got: %s", c.Logging.Format)
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got: %d", c.Metrics.Port)
	}

	return nil
}

// validateServerConfig validates the REST API configuration
func (c *Config) validateServerConfig() error {
	if c.Server.Scheme != "http" && c.Server.Scheme != "https" {
		return fmt.Errorf("server.scheme must be either 'http' or 'https', got: %s", c.Server.Scheme)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got: %s", c.Server.RequestTimeout)
	}
	return nil
}

// validateStreamConfig validates the event-stream configuration
func (c *Config) validateStreamConfig() error {
	if c.Stream.Scheme != "ws" && c.Stream.Scheme != "wss" {
		return fmt.Errorf("stream.scheme must be either 'ws' or 'wss', got: %s", c.Stream.Scheme)
	}
	if c.Stream.Host == "" {
		return fmt.Errorf("stream.host is required")
	}
	if c.Stream.Port <= 0 || c.Stream.Port > 65535 {
		return fmt.Errorf("stream.port must be between 1 and 65535, got: %d", c.Stream.Port)
	}
	if !strings.HasPrefix(c.Stream.Path, "/") {
		return fmt.Errorf("stream.path must start with '/', got: %q", c.Stream.Path)
	}

	// Validate reconnection intervals
	if c.Stream.ReconnectBase <= 0 {
		return fmt.Errorf("stream.reconnect_base must be positive, got: %s", c.Stream.ReconnectBase)
	}
	if c.Stream.ReconnectBase > MaxReconnectBase {
		return fmt.Errorf("stream.reconnect_base (%s) must be <= %s", c.Stream.ReconnectBase, MaxReconnectBase)
	}

	if c.Stream.HeartbeatInterval <= 0 {
		return fmt.Errorf("stream.heartbeat_interval must be positive, got: %s", c.Stream.HeartbeatInterval)
	}
	if c.Stream.RefreshWindow < 0 {
		return fmt.Errorf("stream.refresh_window must not be negative, got: %s", c.Stream.RefreshWindow)
	}

	return nil
}

// APIBaseURL returns the REST API base URL, e.g. http://localhost:8848
func (c *Config) APIBaseURL() string {
	return fmt.Sprintf("%s://%s:%d", c.Server.Scheme, c.Server.Host, c.Server.Port)
}

// StreamURL returns the event-stream URL carrying the bearer token as a query parameter
func (c *Config) StreamURL(token string) string {
	return fmt.Sprintf("%s://%s:%d%s?token=%s",
		c.Stream.Scheme, c.Stream.Host, c.Stream.Port, c.Stream.Path, url.QueryEscape(token))
}
