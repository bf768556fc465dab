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
	"time"

	"github.com/dlmanager/dlmctl/pkg/credentials"
	"github.com/dlmanager/dlmctl/pkg/metrics"
	"go.uber.org/zap"
)

// Refresher replaces credentials that are about to expire
type Refresher struct {
	client *Client
	window time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewRefresher creates a Refresher. A non-positive window uses credentials.DefaultRefreshWindow.
func NewRefresher(client *Client, window time.Duration, logger *zap.Logger) *Refresher {
	if window <= 0 {
		window = credentials.DefaultRefreshWindow
	}
	return &Refresher{
		client: client,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// Refresh returns current unchanged when it does not expire within the window. Otherwise it
// obtains a new credential from the server and stores it. Failures wrap ErrAuthFailure, and
// additionally ErrCredentialRejected when the server refused the current credential.
func (r *Refresher) Refresh(ctx context.Context, current credentials.Credential) (credentials.Credential, error) {
	if !current.NeedsRefresh(r.now(), r.window) {
		metrics.CredentialRefreshesTotal.WithLabelValues("skipped").Inc()
		return current, nil
	}

	r.logger.Info("Refreshing credential",
		zap.Time("expires_at", current.ExpiresAt),
		zap.Duration("time_left", current.TimeLeft(r.now())))

	fresh, err := r.client.refresh(ctx, current.Token)
	if err != nil {
		result := "failure"
		if IsCredentialRejectedError(err) {
			result = "rejected"
		}
		metrics.CredentialRefreshesTotal.WithLabelValues(result).Inc()
		r.logger.Warn("Credential refresh failed", zap.Error(err))
		return credentials.Credential{}, err
	}
	if fresh.Expired(r.now()) {
		metrics.CredentialRefreshesTotal.WithLabelValues("failure").Inc()
		err := fmt.Errorf("%w: refreshed token expired at %s", ErrAuthFailure, fresh.ExpiresAt.Format(time.RFC3339))
		r.logger.Warn("Credential refresh failed", zap.Error(err))
		return credentials.Credential{}, err
	}

	if err := r.client.store.Set(fresh); err != nil {
		// The refreshed credential is still usable for this process
		r.logger.Warn("Failed to store refreshed credential", zap.Error(err))
	}

	metrics.CredentialRefreshesTotal.WithLabelValues("success").Inc()
	r.logger.Info("Credential refreshed", zap.Time("expires_at", fresh.ExpiresAt))

	return fresh, nil
}
