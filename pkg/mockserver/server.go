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

// Package mockserver is an in-memory download manager backend: token auth, download and
// settings endpoints, and the /ws event stream with simulated progress.
package mockserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dlmanager/dlmctl/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// progressStep is how far a downloading task advances per simulated update
const progressStep = 7.5

// Server is the mock backend
type Server struct {
	cfg      config.MockServerConfig
	logger   *zap.Logger
	tokens   *tokenIssuer
	tasks    *taskStore
	settings *settingsStore
	hub      *streamHub
	upgrader websocket.Upgrader
	router   *gin.Engine

	httpServer *http.Server
	listener   net.Listener
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a mock backend with two seeded tasks
func New(cfg config.MockServerConfig, logger *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		tokens:   newTokenIssuer(cfg.Secret, cfg.TokenTTL),
		tasks:    newTaskStore(time.Now),
		settings: newSettingsStore(),
		hub:      newStreamHub(logger),
		upgrader: websocket.Upgrader{
			CheckOrigin:      func(r *http.Request) bool { return true },
			HandshakeTimeout: 10 * time.Second,
		},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(correlationIDMiddleware(s.logger))
	router.Use(loggingMiddleware(s.logger))
	router.Use(recoveryMiddleware(s.logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "stream_clients": s.hub.count()})
	})

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/token", s.handleLogin)
		authGroup.POST("/refresh", s.requireToken(), s.handleRefresh)
		authGroup.GET("/me", s.requireToken(), s.handleMe)
	}

	v1 := router.Group("/api/v1", s.requireToken())
	{
		v1.GET("/downloads", s.handleListDownloads)
		v1.POST("/downloads", s.handleAddDownload)
		v1.GET("/downloads/:id", s.handleGetDownload)
		v1.DELETE("/downloads/:id", s.handleDeleteDownload)
		v1.GET("/downloads/:id/files", s.handleDownloadFiles)
		v1.POST("/downloads/:id/pause", s.handlePauseDownload)
		v1.POST("/downloads/:id/resume", s.handleResumeDownload)
		v1.GET("/categories", s.handleCategories)
		v1.GET("/config", s.handleGetSettings)
		v1.PUT("/config", s.handleUpdateSettings)
	}

	router.GET("/ws", s.handleStream)
	return router
}

// Handler returns the HTTP handler, for use with httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port and starts the update simulator
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.StartSimulator(ctx)

	s.logger.Info("Starting mock server", zap.String("addr", listener.Addr().String()))
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Mock server failed", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the listening address; empty before Start
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops the simulator, disconnects stream clients with code 1001 and stops serving
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.hub.closeAll(websocket.CloseGoingAway, "server shutting down")

	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Stopping mock server")
	return s.httpServer.Shutdown(ctx)
}

// StartSimulator pushes progress updates every UpdateInterval until ctx is done
func (s *Server) StartSimulator(ctx context.Context) {
	if s.cfg.UpdateInterval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.UpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.PushUpdates()
			}
		}
	}()
}

// PushUpdates advances every downloading task once and broadcasts the results
func (s *Server) PushUpdates() {
	updates := s.tasks.advance(progressStep)
	if len(updates) == 0 {
		return
	}
	s.hub.broadcastUpdates(updates)
}

// DisconnectStreams closes every stream connection with code
func (s *Server) DisconnectStreams(code int, reason string) {
	s.hub.closeAll(code, reason)
}

// StreamClients returns the number of connected stream clients
func (s *Server) StreamClients() int {
	return s.hub.count()
}
