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

package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DownloadStatus is the lifecycle state of a download task
type DownloadStatus string

const (
	StatusQueued             DownloadStatus = "queued"
	StatusDownloading        DownloadStatus = "downloading"
	StatusCompleted          DownloadStatus = "completed"
	StatusFailed             DownloadStatus = "failed"
	StatusPaused             DownloadStatus = "paused"
	StatusCancelled          DownloadStatus = "cancelled"
	StatusDeleted            DownloadStatus = "deleted"
	StatusFetchingMetadata   DownloadStatus = "fetching_metadata"
	StatusDownloadingTorrent DownloadStatus = "downloading_torrent"
	StatusSeeding            DownloadStatus = "seeding"
)

// Terminal reports whether no further progress is expected
func (s DownloadStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusDeleted:
		return true
	}
	return false
}

// Resumable reports whether the backend accepts a resume for this status
func (s DownloadStatus) Resumable() bool {
	return s == StatusPaused || s == StatusFailed
}

// DownloadType is the transport used to fetch a task
type DownloadType string

const (
	TypeHTTP    DownloadType = "http"
	TypeMagnet  DownloadType = "magnet"
	TypeTorrent DownloadType = "torrent"
)

// Priority of a download task
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Download is a task as returned by the list and detail endpoints
type Download struct {
	ID                  string           `json:"id"`
	URL                 string           `json:"url"`
	DownloadType        DownloadType     `json:"download_type"`
	Filename            string           `json:"filename,omitempty"`
	Priority            Priority         `json:"priority"`
	Status              DownloadStatus   `json:"status"`
	Progress            float64          `json:"progress"`
	TotalSize           int64            `json:"total_size"`
	TotalSizeHuman      string           `json:"total_size_human,omitempty"`
	DownloadedSize      int64            `json:"downloaded_size"`
	DownloadedSizeHuman string           `json:"downloaded_size_human,omitempty"`
	StartTimeStr        string           `json:"start_time_str,omitempty"`
	EndTimeStr          string           `json:"end_time_str,omitempty"`
	Error               string           `json:"error,omitempty"`
	FilePath            string           `json:"file_path,omitempty"`
	Category            string           `json:"category,omitempty"`
	CategoryDescription string           `json:"category_description,omitempty"`
	RetryCount          int              `json:"retry_count"`
	DownloadSpeed       float64          `json:"download_speed"` // KB/s
	DownloadSpeedHuman  string           `json:"download_speed_human,omitempty"`
	UploadSpeed         float64          `json:"upload_speed"` // KB/s
	UploadSpeedHuman    string           `json:"upload_speed_human,omitempty"`
	Peers               int              `json:"peers"`
	Seeds               int              `json:"seeds"`
	Duration            float64          `json:"duration"` // seconds
	DurationHuman       string           `json:"duration_human,omitempty"`
	Files               []map[string]any `json:"files,omitempty"`
	DownloadedFiles     []map[string]any `json:"downloaded_files,omitempty"`
	DownloadTypeDisplay string           `json:"download_type_display,omitempty"`
	StatusDisplay       string           `json:"status_display,omitempty"`
}

// DownloadList is one page of tasks plus the total number matching the filter
type DownloadList struct {
	Items []Download `json:"items"`
	Total int        `json:"total"`
}

// DownloadRequest creates a task
type DownloadRequest struct {
	URL           string       `json:"url"`
	DownloadType  DownloadType `json:"download_type,omitempty"`
	Filename      string       `json:"filename,omitempty"`
	Priority      Priority     `json:"priority,omitempty"`
	Referer       string       `json:"referer,omitempty"`
	UserAgent     string       `json:"user_agent,omitempty"`
	StartFrom     int64        `json:"start_from,omitempty"`
	Category      string       `json:"category,omitempty"`
	SelectedFiles []int        `json:"selected_files,omitempty"`
}

// ListOptions filters ListDownloads; zero values are omitted
type ListOptions struct {
	Status   DownloadStatus
	Type     DownloadType
	Category string
	Limit    int
	Offset   int
}

// FileList describes the files belonging to a task
type FileList struct {
	Total int              `json:"total"`
	Files []map[string]any `json:"files"`
}

// Settings mirrors the backend configuration document
type Settings struct {
	ProjectName            string   `json:"project_name" yaml:"project_name"`
	APIPrefix              string   `json:"api_prefix" yaml:"api_prefix"`
	CORSOrigins            []string `json:"cors_origins" yaml:"cors_origins"`
	DownloadDir            string   `json:"download_dir" yaml:"download_dir"`
	MaxConcurrentDownloads int      `json:"max_concurrent_downloads" yaml:"max_concurrent_downloads"`
	ChunkSize              int      `json:"chunk_size" yaml:"chunk_size"`
	ResumeSupport          bool     `json:"resume_support" yaml:"resume_support"`
	RetryAttempts          int      `json:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay             int      `json:"retry_delay" yaml:"retry_delay"`
	Timeout                int      `json:"timeout" yaml:"timeout"`
	CategorySubdirs        bool     `json:"category_subdirs" yaml:"category_subdirs"`
	FileRecognitionMethod  string   `json:"file_recognition_method" yaml:"file_recognition_method"`
	BTMaxConnections       int      `json:"bt_max_connections" yaml:"bt_max_connections"`
	BTMaxUploads           int      `json:"bt_max_uploads" yaml:"bt_max_uploads"`
	BTDownloadRateLimit    int      `json:"bt_download_rate_limit" yaml:"bt_download_rate_limit"`
	BTUploadRateLimit      int      `json:"bt_upload_rate_limit" yaml:"bt_upload_rate_limit"`
	BTListenPort           int      `json:"bt_listen_port" yaml:"bt_listen_port"`
	BTSeedTime             int      `json:"bt_seed_time" yaml:"bt_seed_time"`
	BTUseDHT               bool     `json:"bt_use_dht" yaml:"bt_use_dht"`
	BTUsePEX               bool     `json:"bt_use_pex" yaml:"bt_use_pex"`
	BTUseLSD               bool     `json:"bt_use_lsd" yaml:"bt_use_lsd"`
	StateSaveInterval      int      `json:"state_save_interval" yaml:"state_save_interval"`
	SaveHistory            bool     `json:"save_history" yaml:"save_history"`
	HistoryMaxCount        int      `json:"history_max_count" yaml:"history_max_count"`
}

// SettingsUpdate is a partial update; only keys present are sent
type SettingsUpdate map[string]any

// User is the identity behind the current credential
type User struct {
	Username string `json:"username"`
}

// DownloadUpdate is the payload of a "downloads" stream event
type DownloadUpdate struct {
	TaskID        string         `json:"task_id"`
	Status        DownloadStatus `json:"status"`
	Progress      float64        `json:"progress"`
	Speed         float64        `json:"speed"`
	DownloadSpeed float64        `json:"download_speed"`
	StartTime     string         `json:"start_time,omitempty"`
	EndTime       string         `json:"end_time,omitempty"`
}

// DecodeDownloadUpdate decodes a downloads event payload
func DecodeDownloadUpdate(payload []byte) (DownloadUpdate, error) {
	var u DownloadUpdate
	if len(payload) == 0 {
		return u, fmt.Errorf("empty downloads payload")
	}
	if err := json.Unmarshal(payload, &u); err != nil {
		return u, fmt.Errorf("failed to decode downloads payload: %w", err)
	}
	if u.TaskID == "" {
		return u, fmt.Errorf("downloads payload is missing task_id")
	}
	// Some backends stringify the enum as "DownloadStatus.X"
	if i := strings.LastIndex(string(u.Status), "."); i >= 0 {
		u.Status = DownloadStatus(strings.ToLower(string(u.Status)[i+1:]))
	}
	return u, nil
}

// StartedAt parses StartTime; zero when absent or unparsable
func (u DownloadUpdate) StartedAt() time.Time {
	return parseTimestamp(u.StartTime)
}

// EndedAt parses EndTime; zero when absent or unparsable
func (u DownloadUpdate) EndedAt() time.Time {
	return parseTimestamp(u.EndTime)
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(f)
		return time.Unix(sec, int64((f-float64(sec))*1e9))
	}
	return time.Time{}
}
