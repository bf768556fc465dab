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

// Package app wires configuration, logging, the credential store and the API clients for
// the CLI commands.
package app

import (
	"fmt"

	"github.com/dlmanager/dlmctl/pkg/api"
	"github.com/dlmanager/dlmctl/pkg/auth"
	"github.com/dlmanager/dlmctl/pkg/config"
	"github.com/dlmanager/dlmctl/pkg/credentials"
	"github.com/dlmanager/dlmctl/pkg/logger"
	"go.uber.org/zap"
)

// Global flag values, bound by the root command
var (
	ConfigPath string
	LogLevel   string
)

// App holds the collaborators shared by the commands
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Store  credentials.Store
	API    *api.Client
	Auth   *auth.Client
}

// New loads the configuration and builds the collaborators
func New() (*App, error) {
	cfg, err := config.LoadConfig(ConfigPath)
	if err != nil {
		return nil, err
	}
	if LogLevel != "" {
		cfg.Logging.Level = LogLevel
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --log-level: %w", err)
		}
	}
	return NewFromConfig(cfg)
}

// NewFromConfig builds the collaborators for an already loaded configuration
func NewFromConfig(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	store, err := credentials.NewStore(cfg.Storage, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}

	apiClient := api.NewClientFromConfig(cfg, store, log)
	return &App{
		Config: cfg,
		Logger: log,
		Store:  store,
		API:    apiClient,
		Auth:   auth.NewClient(apiClient, log),
	}, nil
}

// Close releases the credential store and flushes the logger
func (a *App) Close() {
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("Failed to close credential store", zap.Error(err))
	}
	_ = a.Logger.Sync()
}
