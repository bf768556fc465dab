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

	"github.com/dlmanager/dlmctl/pkg/config"
	"go.uber.org/zap"
)

// NewStore builds the Store selected by storage.type
func NewStore(cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Type {
	case config.StorageTypeMemory:
		return NewMemoryStore(), nil
	case config.StorageTypeFile:
		return NewPersistentStore(NewFileBackend(cfg.File.Path), logger)
	case config.StorageTypeSQLite:
		backend, err := NewSQLiteBackend(cfg.SQLite.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		store, err := NewPersistentStore(backend, logger)
		if err != nil {
			backend.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
