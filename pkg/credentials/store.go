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
	"fmt"
	"sync"

	"github.com/dlmanager/dlmctl/pkg/metrics"
	"go.uber.org/zap"
)

// Store holds at most one credential.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the stored credential; false when absent
	Get() (Credential, bool)
	Set(cred Credential) error
	Clear() error
	Close() error
}

// Backend persists a credential across process restarts
type Backend interface {
	// Load returns false when nothing is persisted
	Load() (Credential, bool, error)
	Save(cred Credential) error
	Delete() error
	Close() error
	Name() string
}

// MemoryStore keeps the credential in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	cred  Credential
	valid bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the stored credential
func (s *MemoryStore) Get() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.valid
}

// Set replaces the stored credential
func (s *MemoryStore) Set(cred Credential) error {
	if cred.Token == "" {
		return fmt.Errorf("%w: empty token", ErrMalformedToken)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	s.valid = true
	return nil
}

// Clear removes the stored credential
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = Credential{}
	s.valid = false
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// PersistentStore is a write-through cache over a Backend. Reads never touch the backend.
type PersistentStore struct {
	mem     *MemoryStore
	backend Backend
	logger  *zap.Logger

	// Serializes backend writes so the file/database matches the cache
	writeMu sync.Mutex
}

// NewPersistentStore loads the persisted credential, if any, into memory
func NewPersistentStore(backend Backend, logger *zap.Logger) (*PersistentStore, error) {
	s := &PersistentStore{
		mem:     NewMemoryStore(),
		backend: backend,
		logger:  logger,
	}

	cred, ok, err := backend.Load()
	if err != nil {
		metrics.CredentialStoreErrorsTotal.WithLabelValues(backend.Name(), "load").Inc()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if ok {
		if err := s.mem.Set(cred); err != nil {
			logger.Warn("Ignoring unusable persisted credential", zap.Error(err))
		} else {
			logger.Debug("Loaded persisted credential",
				zap.String("backend", backend.Name()),
				zap.Time("expires_at", cred.ExpiresAt))
		}
	}

	return s, nil
}

// Get returns the cached credential
func (s *PersistentStore) Get() (Credential, bool) {
	return s.mem.Get()
}

// Set updates the cache, then persists. The cache keeps the new value even when
// persisting fails.
func (s *PersistentStore) Set(cred Credential) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.mem.Set(cred); err != nil {
		return err
	}
	if err := s.backend.Save(cred); err != nil {
		metrics.CredentialStoreErrorsTotal.WithLabelValues(s.backend.Name(), "save").Inc()
		s.logger.Error("Failed to persist credential",
			zap.String("backend", s.backend.Name()),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Clear empties the cache and deletes the persisted credential
func (s *PersistentStore) Clear() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.mem.Clear()
	if err := s.backend.Delete(); err != nil {
		metrics.CredentialStoreErrorsTotal.WithLabelValues(s.backend.Name(), "delete").Inc()
		s.logger.Error("Failed to delete persisted credential",
			zap.String("backend", s.backend.Name()),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the backend
func (s *PersistentStore) Close() error {
	return s.backend.Close()
}
