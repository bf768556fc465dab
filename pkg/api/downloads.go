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
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const downloadsPath = "/api/v1/downloads"

// ListDownloads returns one page of tasks matching opts
func (c *Client) ListDownloads(ctx context.Context, opts ListOptions) (*DownloadList, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	if opts.Type != "" {
		q.Set("download_type", string(opts.Type))
	}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}

	var list DownloadList
	if err := c.Do(ctx, http.MethodGet, downloadsPath, nil, &list, WithQuery(q)); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetDownload returns a single task
func (c *Client) GetDownload(ctx context.Context, id string) (*Download, error) {
	var d Download
	if err := c.Do(ctx, http.MethodGet, taskPath(id, ""), nil, &d, withEndpoint(downloadsPath+"/{id}")); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDownloadFiles returns the files belonging to a task
func (c *Client) GetDownloadFiles(ctx context.Context, id string) (*FileList, error) {
	var files FileList
	if err := c.Do(ctx, http.MethodGet, taskPath(id, "/files"), nil, &files, withEndpoint(downloadsPath+"/{id}/files")); err != nil {
		return nil, err
	}
	return &files, nil
}

// AddDownload creates a task and returns its ID
func (c *Client) AddDownload(ctx context.Context, req DownloadRequest) (string, error) {
	if req.URL == "" {
		return "", fmt.Errorf("download url is required")
	}
	var resp struct {
		TaskID string `json:"task_id"`
	}
	if err := c.Do(ctx, http.MethodPost, downloadsPath, req, &resp); err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("%w: create download returned no task_id", ErrUnexpectedResponse)
	}
	return resp.TaskID, nil
}

// PauseDownload pauses a task. currentStatus is the caller's last known status; anything
// other than downloading is rejected without contacting the server.
func (c *Client) PauseDownload(ctx context.Context, id string, currentStatus DownloadStatus) error {
	if currentStatus != StatusDownloading {
		return fmt.Errorf("%w (task %s is %s)", ErrNotDownloading, id, currentStatus)
	}
	return c.Do(ctx, http.MethodPost, taskPath(id, "/pause"), nil, nil, withEndpoint(downloadsPath+"/{id}/pause"))
}

// ResumeDownload resumes a paused or failed task
func (c *Client) ResumeDownload(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodPost, taskPath(id, "/resume"), nil, nil, withEndpoint(downloadsPath+"/{id}/resume"))
}

// DeleteDownload cancels a task, or removes a finished task's file
func (c *Client) DeleteDownload(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, taskPath(id, ""), nil, nil, withEndpoint(downloadsPath+"/{id}"))
}

// ListCategories returns the file categories and their descriptions
func (c *Client) ListCategories(ctx context.Context) (map[string]string, error) {
	categories := map[string]string{}
	if err := c.Do(ctx, http.MethodGet, "/api/v1/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func taskPath(id, suffix string) string {
	return downloadsPath + "/" + url.PathEscape(id) + suffix
}
