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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a valid configuration for testing
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Storage.Type = StorageTypeMemory
	return cfg
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.Stream.ReconnectBase)
	assert.Equal(t, 30*time.Second, cfg.Stream.HeartbeatInterval)
	assert.Equal(t, 300*time.Second, cfg.Stream.RefreshWindow)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
}

func TestConfig_Validate_StorageType(t *testing.T) {
	tests := []struct {
		name        string
		storageType string
		filePath    string
		sqlitePath  string
		wantErr     bool
		errContains string
	}{
		{name: "Valid memory", storageType: "memory", wantErr: false},
		{name: "Valid file", storageType: "file", filePath: "/tmp/creds.yaml", wantErr: false},
		{name: "File without path", storageType: "file", wantErr: true, errContains: "storage.file.path is required"},
		{name: "Valid sqlite", storageType: "sqlite", sqlitePath: "/tmp/dlmctl.db", wantErr: false},
		{name: "SQLite without path", storageType: "sqlite", wantErr: true, errContains: "storage.sqlite.path is required"},
		{name: "Invalid type", storageType: "redis", wantErr: true, errContains: "storage.type must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Storage.Type = tt.storageType
			cfg.Storage.File.Path = tt.filePath
			cfg.Storage.SQLite.Path = tt.sqlitePath
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Validate_Stream(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{
			name:        "Invalid scheme",
			mutate:      func(c *Config) { c.Stream.Scheme = "http" },
			errContains: "stream.scheme must be either 'ws' or 'wss'",
		},
		{
			name:        "Missing host",
			mutate:      func(c *Config) { c.Stream.Host = "" },
			errContains: "stream.host is required",
		},
		{
			name:        "Port out of range",
			mutate:      func(c *Config) { c.Stream.Port = 70000 },
			errContains: "stream.port must be between 1 and 65535",
		},
		{
			name:        "Relative path",
			mutate:      func(c *Config) { c.Stream.Path = "ws" },
			errContains: "stream.path must start with '/'",
		},
		{
			name:        "Zero reconnect base",
			mutate:      func(c *Config) { c.Stream.ReconnectBase = 0 },
			errContains: "stream.reconnect_base must be positive",
		},
		{
			name:        "Reconnect base above cap",
			mutate:      func(c *Config) { c.Stream.ReconnectBase = time.Minute },
			errContains: "must be <= 30s",
		},
		{
			name:        "Zero heartbeat",
			mutate:      func(c *Config) { c.Stream.HeartbeatInterval = 0 },
			errContains: "stream.heartbeat_interval must be positive",
		},
		{
			name:        "Negative refresh window",
			mutate:      func(c *Config) { c.Stream.RefreshWindow = -time.Second },
			errContains: "stream.refresh_window must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestConfig_Validate_ServerAndLogging(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Scheme = "ftp"
	assert.ErrorContains(t, cfg.Validate(), "server.scheme")

	cfg = validConfig()
	cfg.Server.RequestTimeout = 0
	assert.ErrorContains(t, cfg.Validate(), "server.request_timeout must be positive")

	cfg = validConfig()
	cfg.Logging.Level = "verbose"
	assert.ErrorContains(t, cfg.Validate(), "logging.level must be one of")

	cfg = validConfig()
	cfg.Logging.Format = "xml"
	assert.ErrorContains(t, cfg.Validate(), "logging.format must be either 'json' or 'console'")

	cfg = validConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 0
	assert.ErrorContains(t, cfg.Validate(), "metrics.port")
}

func TestConfig_URLs(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Host = "dl.example.com"
	cfg.Server.Port = 8443
	cfg.Server.Scheme = "https"
	cfg.Stream.Scheme = "wss"
	cfg.Stream.Host = "dl.example.com"
	cfg.Stream.Port = 8443
	cfg.Stream.Path = "/ws"

	assert.Equal(t, "https://dl.example.com:8443", cfg.APIBaseURL())
	assert.Equal(t, "wss://dl.example.com:8443/ws?token=a+b%2Fc%3D", cfg.StreamURL("a b/c="))
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[server]
host = "downloads.internal"
port = 9000
request_timeout = "3s"

[stream]
host = "downloads.internal"
port = 9000
path = "/events"
reconnect_base = "2s"

[storage]
type = "memory"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	t.Setenv("DLMCTL_LOGGING_LEVEL", "debug")
	t.Setenv("DLMCTL_STREAM_HEARTBEAT__INTERVAL", "15s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "downloads.internal", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "/events", cfg.Stream.Path)
	assert.Equal(t, 2*time.Second, cfg.Stream.ReconnectBase)
	assert.Equal(t, 15*time.Second, cfg.Stream.HeartbeatInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, StorageTypeMemory, cfg.Storage.Type)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "failed to load config file")
}

func TestLoadConfig_MissingDefaultFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, StorageTypeFile, cfg.Storage.Type)
	assert.Equal(t, filepath.Join(home, ConfigDirName, "credentials.yaml"), cfg.Storage.File.Path)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[stream]\nreconnect_base = \"45s\"\n"), 0600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
