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
	"fmt"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/dlmanager/dlmctl/pkg/api"
	"github.com/google/uuid"
)

var (
	errTaskNotFound      = errors.New("task not found")
	errInvalidTransition = errors.New("invalid status transition")
)

// speedKBps is the simulated download speed
const speedKBps = 2048.0

// taskStore holds the simulated download tasks
type taskStore struct {
	mu      sync.RWMutex
	tasks   map[string]*api.Download
	order   []string
	started map[string]time.Time
	ended   map[string]time.Time
	now     func() time.Time
}

func newTaskStore(now func() time.Time) *taskStore {
	s := &taskStore{
		tasks:   make(map[string]*api.Download),
		started: make(map[string]time.Time),
		ended:   make(map[string]time.Time),
		now:     now,
	}
	s.seed()
	return s
}

func (s *taskStore) seed() {
	iso := s.add(api.DownloadRequest{
		URL:          "https://releases.example.com/images/distro-24.04-amd64.iso",
		DownloadType: api.TypeHTTP,
		Category:     "software",
	})
	s.tasks[iso.ID].Status = api.StatusDownloading
	s.tasks[iso.ID].Progress = 12
	s.tasks[iso.ID].TotalSize = 6 << 30

	magnet := s.add(api.DownloadRequest{
		URL:          "magnet:?xt=urn:btih:c9e15763f722f23e98a29decdfae341b98d53056",
		DownloadType: api.TypeMagnet,
		Filename:     "open-dataset",
		Category:     "documents",
	})
	s.tasks[magnet.ID].Status = api.StatusPaused
	s.tasks[magnet.ID].Progress = 57.5
}

// list returns the tasks matching opts in creation order
func (s *taskStore) list(opts api.ListOptions) api.DownloadList {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]api.Download, 0, len(s.tasks))
	for _, id := range s.order {
		t := s.tasks[id]
		if opts.Status != "" && t.Status != opts.Status {
			continue
		}
		if opts.Type != "" && t.DownloadType != opts.Type {
			continue
		}
		if opts.Category != "" && t.Category != opts.Category {
			continue
		}
		matched = append(matched, *t)
	}

	total := len(matched)
	if opts.Offset >= total {
		return api.DownloadList{Items: []api.Download{}, Total: total}
	}
	matched = matched[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return api.DownloadList{Items: matched, Total: total}
}

func (s *taskStore) get(id string) (api.Download, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return api.Download{}, errTaskNotFound
	}
	return *t, nil
}

// create adds a queued task
func (s *taskStore) create(req api.DownloadRequest) api.Download {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(req)
}

func (s *taskStore) add(req api.DownloadRequest) api.Download {
	if req.DownloadType == "" {
		req.DownloadType = api.TypeHTTP
	}
	if req.Priority == "" {
		req.Priority = api.PriorityNormal
	}
	if req.Filename == "" {
		req.Filename = path.Base(req.URL)
	}

	t := &api.Download{
		ID:           uuid.NewString(),
		URL:          req.URL,
		DownloadType: req.DownloadType,
		Filename:     req.Filename,
		Priority:     req.Priority,
		Status:       api.StatusDownloading,
		Category:     req.Category,
		TotalSize:    512 << 20,
	}
	s.tasks[t.ID] = t
	s.order = append(s.order, t.ID)
	s.started[t.ID] = s.now()
	return *t
}

// transition moves a task from one of the allowed statuses to next
func (s *taskStore) transition(id string, next api.DownloadStatus, allowed func(api.DownloadStatus) bool) (api.DownloadUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return api.DownloadUpdate{}, errTaskNotFound
	}
	if !allowed(t.Status) {
		return api.DownloadUpdate{}, fmt.Errorf("%w: task is %s", errInvalidTransition, t.Status)
	}
	t.Status = next
	if next != api.StatusDownloading {
		t.DownloadSpeed = 0
	}
	return s.updateLocked(t), nil
}

// remove cancels a running task or deletes a finished one
func (s *taskStore) remove(id string) (api.DownloadUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return api.DownloadUpdate{}, errTaskNotFound
	}
	if t.Status.Terminal() {
		t.Status = api.StatusDeleted
	} else {
		t.Status = api.StatusCancelled
	}
	t.DownloadSpeed = 0
	s.ended[id] = s.now()
	update := s.updateLocked(t)
	delete(s.tasks, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return update, nil
}

// advance moves every downloading task forward by step percent and returns their updates
func (s *taskStore) advance(step float64) []api.DownloadUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updates []api.DownloadUpdate
	for _, id := range s.order {
		t := s.tasks[id]
		if t.Status != api.StatusDownloading {
			continue
		}
		t.Progress += step
		t.DownloadSpeed = speedKBps
		if t.Progress >= 100 {
			t.Progress = 100
			t.Status = api.StatusCompleted
			t.DownloadSpeed = 0
			s.ended[id] = s.now()
		}
		t.DownloadedSize = int64(float64(t.TotalSize) * t.Progress / 100)
		updates = append(updates, s.updateLocked(t))
	}
	return updates
}

func (s *taskStore) updateLocked(t *api.Download) api.DownloadUpdate {
	u := api.DownloadUpdate{
		TaskID:        t.ID,
		Status:        t.Status,
		Progress:      t.Progress,
		Speed:         t.DownloadSpeed,
		DownloadSpeed: t.DownloadSpeed,
	}
	if started, ok := s.started[t.ID]; ok {
		u.StartTime = started.UTC().Format(time.RFC3339)
	}
	if ended, ok := s.ended[t.ID]; ok {
		u.EndTime = ended.UTC().Format(time.RFC3339)
	}
	return u
}

// files lists the files of a task
func (s *taskStore) files(id string) (api.FileList, error) {
	t, err := s.get(id)
	if err != nil {
		return api.FileList{}, err
	}
	return api.FileList{
		Total: 1,
		Files: []map[string]any{{
			"index":    0,
			"path":     t.Filename,
			"size":     t.TotalSize,
			"progress": t.Progress,
			"selected": true,
		}},
	}, nil
}
