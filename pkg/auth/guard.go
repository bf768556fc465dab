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

package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dlmanager/dlmctl/pkg/api"
	"github.com/dlmanager/dlmctl/pkg/credentials"
	"go.uber.org/zap"
)

// Guard decides whether the stored credential still represents a live session.
// A token verified once is trusted for the rest of the process.
type Guard struct {
	client *Client
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	verified string
	user     *api.User
}

// NewGuard creates a session guard
func NewGuard(client *Client, logger *zap.Logger) *Guard {
	return &Guard{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// Check returns the session user. It fails with credentials.ErrCredentialAbsent when nothing
// is stored, and with ErrSessionExpired (after clearing the store) when the credential has
// expired or the server rejects it. Other probe failures are returned as-is and leave the
// credential in place.
func (g *Guard) Check(ctx context.Context) (*api.User, error) {
	cred, ok := g.client.store.Get()
	if !ok {
		return nil, credentials.ErrCredentialAbsent
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.verified != "" && g.verified == cred.Token {
		return g.user, nil
	}

	if cred.Expired(g.now()) {
		g.expire("credential expired")
		return nil, ErrSessionExpired
	}

	user, err := g.client.Me(ctx)
	if err != nil {
		if api.IsUnauthorizedError(err) {
			g.expire("credential rejected")
			return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
		}
		return nil, fmt.Errorf("failed to verify session: %w", err)
	}

	g.verified = cred.Token
	g.user = user
	return user, nil
}

// Reset forgets the cached verification
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verified = ""
	g.user = nil
}

// expire must be called with g.mu held
func (g *Guard) expire(reason string) {
	g.verified = ""
	g.user = nil
	if err := g.client.store.Clear(); err != nil {
		g.logger.Warn("Failed to clear credential", zap.Error(err))
	}
	g.logger.Info("Session ended", zap.String("reason", reason))
}
