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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dlmanager/dlmctl/pkg/config"
	"github.com/dlmanager/dlmctl/pkg/logger"
	"github.com/dlmanager/dlmctl/pkg/metrics"
	"github.com/dlmanager/dlmctl/pkg/mockserver"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to configuration file (default ~/.dlmctl/config.toml)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("Starting mock download manager",
		zap.Int("port", cfg.MockServer.Port),
		zap.String("username", cfg.MockServer.Username),
		zap.Duration("token_ttl", cfg.MockServer.TokenTTL),
		zap.Duration("update_interval", cfg.MockServer.UpdateInterval),
	)

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metrics.SetEnabled(true)
		metrics.Init()
		metrics.Up.Set(1)
		metrics.Info.WithLabelValues("dev", "mock-server").Set(1)

		metricsServer = metrics.NewServer(&cfg.Metrics, log)
		if err := metricsServer.Start(); err != nil {
			log.Fatal("Failed to start metrics server", zap.Error(err))
		}
	}

	server := mockserver.New(cfg.MockServer, log)
	if err := server.Start(); err != nil {
		log.Fatal("Failed to start mock server", zap.Error(err))
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down mock download manager")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(ctx); err != nil {
			log.Error("Metrics server forced to shutdown", zap.Error(err))
		}
	}

	log.Info("Mock download manager stopped")
}
