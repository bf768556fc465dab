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
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dlmanager/dlmctl/pkg/api"
)

// settingsStore holds the backend configuration document
type settingsStore struct {
	mu       sync.RWMutex
	settings api.Settings
}

func newSettingsStore() *settingsStore {
	return &settingsStore{settings: api.Settings{
		ProjectName:            "Download Manager",
		APIPrefix:              "/api/v1",
		CORSOrigins:            []string{"http://localhost:5173"},
		DownloadDir:            "downloads",
		MaxConcurrentDownloads: 3,
		ChunkSize:              8192,
		ResumeSupport:          true,
		RetryAttempts:          3,
		RetryDelay:             5,
		Timeout:                30,
		CategorySubdirs:        true,
		FileRecognitionMethod:  "extension",
		BTMaxConnections:       200,
		BTMaxUploads:           10,
		BTListenPort:           6881,
		BTSeedTime:             3600,
		BTUseDHT:               true,
		BTUsePEX:               true,
		BTUseLSD:               true,
		StateSaveInterval:      30,
		SaveHistory:            true,
		HistoryMaxCount:        1000,
	}}
}

func (s *settingsStore) get() api.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// update merges a partial document into the settings. Unknown keys and read-only keys are
// rejected and leave the settings unchanged.
func (s *settingsStore) update(update map[string]any) (api.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := json.Marshal(s.settings)
	if err != nil {
		return api.Settings{}, err
	}
	merged := map[string]any{}
	if err := json.Unmarshal(current, &merged); err != nil {
		return api.Settings{}, err
	}

	for key, value := range update {
		if api.IsReadOnlySetting(key) {
			return api.Settings{}, fmt.Errorf("setting %q is read-only", key)
		}
		if _, known := merged[key]; !known {
			return api.Settings{}, fmt.Errorf("unknown setting %q", key)
		}
		merged[key] = value
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return api.Settings{}, err
	}
	var next api.Settings
	if err := json.Unmarshal(data, &next); err != nil {
		return api.Settings{}, fmt.Errorf("invalid settings value: %w", err)
	}

	s.settings = next
	return next, nil
}
