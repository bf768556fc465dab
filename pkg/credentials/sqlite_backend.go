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
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed credentials-db.sql
var schemaSQL string

// SQLiteBackend persists the credential in a single-row SQLite table
type SQLiteBackend struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteBackend opens (and if needed creates) the database at dbPath
func NewSQLiteBackend(dbPath string, logger *zap.Logger) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A second process (e.g. `dlmctl login` while `dlmctl watch` runs) may hold the file
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	b := &SQLiteBackend{
		db:     db,
		logger: logger,
	}

	if err := b.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug("SQLite credential backend initialized",
		zap.String("database_path", dbPath),
		zap.String("journal_mode", "WAL"))

	return b, nil
}

func (b *SQLiteBackend) initSchema() error {
	var version int
	if err := b.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to query schema version: %w", err)
	}

	if version == 0 {
		if _, err := b.db.Exec(schemaSQL); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		b.logger.Debug("Credential schema initialized", zap.Int("version", 1))
	}
	return nil
}

func (b *SQLiteBackend) Name() string {
	return "sqlite"
}

// Load returns the stored credential
func (b *SQLiteBackend) Load() (Credential, bool, error) {
	var token string
	err := b.db.QueryRow(`SELECT token FROM credentials WHERE id = 1`).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, false, nil
	}
	if err != nil {
		return Credential{}, false, fmt.Errorf("failed to query credential: %w", err)
	}

	cred, _ := Parse(token)
	return cred, true, nil
}

// Save upserts the credential row
func (b *SQLiteBackend) Save(cred Credential) error {
	var expiresAt any
	if cred.HasExpiry() {
		expiresAt = cred.ExpiresAt.UTC()
	}

	_, err := b.db.Exec(`
		INSERT INTO credentials (id, token, subject, expires_at, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			subject = excluded.subject,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, cred.Token, cred.Subject, expiresAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Delete removes the credential row
func (b *SQLiteBackend) Delete() error {
	if _, err := b.db.Exec(`DELETE FROM credentials WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// Close closes the database connection
func (b *SQLiteBackend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
