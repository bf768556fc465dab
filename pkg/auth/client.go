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

// Package auth obtains, refreshes and verifies the bearer credential.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dlmanager/dlmctl/pkg/api"
	"github.com/dlmanager/dlmctl/pkg/credentials"
	"go.uber.org/zap"
)

const (
	tokenPath   = "/auth/token"
	refreshPath = "/auth/refresh"
	mePath      = "/auth/me"
)

// tokenResponse is the data returned by the token and refresh endpoints
type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (t tokenResponse) token() string {
	if t.Token != "" {
		return t.Token
	}
	return t.AccessToken
}

// Client wraps the credential endpoints
type Client struct {
	api    *api.Client
	store  credentials.Store
	logger *zap.Logger
}

// NewClient creates an auth client sharing apiClient's credential store
func NewClient(apiClient *api.Client, logger *zap.Logger) *Client {
	return &Client{
		api:    apiClient,
		store:  apiClient.Store(),
		logger: logger,
	}
}

// Login exchanges a username and password for a credential and stores it
func (c *Client) Login(ctx context.Context, username, password string) (credentials.Credential, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var resp tokenResponse
	if err := c.api.Do(ctx, http.MethodPost, tokenPath, form, &resp, api.WithoutAuth()); err != nil {
		if api.IsUnauthorizedError(err) {
			return credentials.Credential{}, fmt.Errorf("%w: %w", ErrInvalidLogin, err)
		}
		return credentials.Credential{}, fmt.Errorf("%w: %w", ErrAuthFailure, err)
	}

	token, err := issuedToken(resp)
	if err != nil {
		return credentials.Credential{}, err
	}
	// Opaque login tokens are accepted with an unknown expiry
	cred, _ := credentials.Parse(token)

	if err := c.store.Set(cred); err != nil {
		return cred, fmt.Errorf("failed to store credential: %w", err)
	}

	c.logger.Info("Logged in",
		zap.String("username", username),
		zap.Time("expires_at", cred.ExpiresAt))

	return cred, nil
}

// Me returns the user behind the stored credential
func (c *Client) Me(ctx context.Context) (*api.User, error) {
	var user api.User
	if err := c.api.Do(ctx, http.MethodGet, mePath, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout forgets the stored credential
func (c *Client) Logout() error {
	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	c.logger.Info("Logged out")
	return nil
}

// refresh exchanges token for a new credential without touching the store
func (c *Client) refresh(ctx context.Context, token string) (credentials.Credential, error) {
	var resp tokenResponse
	if err := c.api.Do(ctx, http.MethodPost, refreshPath, nil, &resp, api.WithToken(token)); err != nil {
		if api.IsUnauthorizedError(err) {
			return credentials.Credential{}, fmt.Errorf("%w: %w: %w", ErrAuthFailure, ErrCredentialRejected, err)
		}
		return credentials.Credential{}, fmt.Errorf("%w: %w", ErrAuthFailure, err)
	}

	issued, err := issuedToken(resp)
	if err != nil {
		return credentials.Credential{}, err
	}
	cred, err := credentials.Parse(issued)
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("%w: refreshed token is unusable: %w", ErrAuthFailure, err)
	}
	return cred, nil
}

func issuedToken(resp tokenResponse) (string, error) {
	token := resp.token()
	if token == "" {
		return "", fmt.Errorf("%w: server returned no token", ErrAuthFailure)
	}
	return token, nil
}
