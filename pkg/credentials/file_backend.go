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

package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// credentialFile is the on-disk layout of FileBackend
type credentialFile struct {
	Token   string    `yaml:"token"`
	SavedAt time.Time `yaml:"saved_at"`
}

// FileBackend persists the credential as a YAML file readable only by the owner
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend writing to path. The parent directory is created on first save.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Name() string {
	return "file"
}

// Load reads the credential file; a missing file means nothing is persisted
func (b *FileBackend) Load() (Credential, bool, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credential{}, false, nil
		}
		return Credential{}, false, fmt.Errorf("failed to read credential file: %w", err)
	}

	var f credentialFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Credential{}, false, fmt.Errorf("failed to parse credential file: %w", err)
	}
	if f.Token == "" {
		return Credential{}, false, nil
	}

	// Opaque tokens are kept with an unknown expiry
	cred, _ := Parse(f.Token)
	return cred, true, nil
}

// Save writes the credential with 0600 permissions
func (b *FileBackend) Save(cred Credential) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	data, err := yaml.Marshal(credentialFile{Token: cred.Token, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	// Write to a sibling then rename so readers never see a partial file
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("failed to create credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set credential file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("failed to replace credential file: %w", err)
	}
	return nil
}

// Delete removes the credential file
func (b *FileBackend) Delete() error {
	if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credential file: %w", err)
	}
	return nil
}

func (b *FileBackend) Close() error {
	return nil
}
