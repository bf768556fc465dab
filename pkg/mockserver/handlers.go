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

package mockserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dlmanager/dlmctl/pkg/api"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var categories = map[string]string{
	"video":     "Video files",
	"audio":     "Audio files",
	"documents": "Documents",
	"software":  "Installers and disk images",
	"archives":  "Compressed archives",
	"other":     "Everything else",
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"code":    http.StatusOK,
		"message": "Success",
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"detail": message})
}

func (s *Server) handleLogin(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username != s.cfg.Username || password != s.cfg.Password {
		getLogger(c, s.logger).Warn("Login rejected", zap.String("username", username))
		respondError(c, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	s.issue(c, username)
}

func (s *Server) handleRefresh(c *gin.Context) {
	s.issue(c, c.GetString(usernameKey))
}

func (s *Server) issue(c *gin.Context, username string) {
	token, err := s.tokens.Issue(username)
	if err != nil {
		getLogger(c, s.logger).Error("Failed to issue token", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	respondOK(c, gin.H{"token": token, "token_type": "bearer"})
}

func (s *Server) handleMe(c *gin.Context) {
	respondOK(c, api.User{Username: c.GetString(usernameKey)})
}

func (s *Server) handleListDownloads(c *gin.Context) {
	opts := api.ListOptions{
		Status:   api.DownloadStatus(c.Query("status")),
		Type:     api.DownloadType(c.Query("download_type")),
		Category: c.Query("category"),
	}
	var err error
	if opts.Limit, err = queryInt(c, "limit"); err != nil {
		respondError(c, http.StatusUnprocessableEntity, "limit must be a non-negative integer")
		return
	}
	if opts.Offset, err = queryInt(c, "offset"); err != nil {
		respondError(c, http.StatusUnprocessableEntity, "offset must be a non-negative integer")
		return
	}

	respondOK(c, s.tasks.list(opts))
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("invalid integer")
	}
	return v, nil
}

func (s *Server) handleGetDownload(c *gin.Context) {
	task, err := s.tasks.get(c.Param("id"))
	if err != nil {
		s.respondTaskError(c, err)
		return
	}
	respondOK(c, task)
}

func (s *Server) handleDownloadFiles(c *gin.Context) {
	files, err := s.tasks.files(c.Param("id"))
	if err != nil {
		s.respondTaskError(c, err)
		return
	}
	respondOK(c, files)
}

func (s *Server) handleAddDownload(c *gin.Context) {
	var req api.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if req.URL == "" {
		respondError(c, http.StatusUnprocessableEntity, "url is required")
		return
	}

	task := s.tasks.create(req)
	getLogger(c, s.logger).Info("Download added",
		zap.String("task_id", task.ID),
		zap.String("url", task.URL))
	respondOK(c, gin.H{"task_id": task.ID})
}

func (s *Server) handlePauseDownload(c *gin.Context) {
	update, err := s.tasks.transition(c.Param("id"), api.StatusPaused, func(st api.DownloadStatus) bool {
		return st == api.StatusDownloading
	})
	s.respondTransition(c, update, err)
}

func (s *Server) handleResumeDownload(c *gin.Context) {
	update, err := s.tasks.transition(c.Param("id"), api.StatusDownloading, api.DownloadStatus.Resumable)
	s.respondTransition(c, update, err)
}

func (s *Server) handleDeleteDownload(c *gin.Context) {
	update, err := s.tasks.remove(c.Param("id"))
	s.respondTransition(c, update, err)
}

func (s *Server) respondTransition(c *gin.Context, update api.DownloadUpdate, err error) {
	if err != nil {
		s.respondTaskError(c, err)
		return
	}
	s.hub.broadcastUpdates([]api.DownloadUpdate{update})
	respondOK(c, gin.H{"task_id": update.TaskID, "status": update.Status})
}

func (s *Server) respondTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errTaskNotFound):
		respondError(c, http.StatusNotFound, "Task not found")
	case errors.Is(err, errInvalidTransition):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		getLogger(c, s.logger).Error("Task operation failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) handleCategories(c *gin.Context) {
	respondOK(c, categories)
}

func (s *Server) handleGetSettings(c *gin.Context) {
	respondOK(c, s.settings.get())
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	var update map[string]any
	if err := c.ShouldBindJSON(&update); err != nil {
		respondError(c, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	settings, err := s.settings.update(update)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	getLogger(c, s.logger).Info("Settings updated", zap.Int("keys", len(update)))
	respondOK(c, settings)
}
