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

// Package api is the REST client for the download manager backend.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dlmanager/dlmctl/pkg/config"
	"github.com/dlmanager/dlmctl/pkg/credentials"
	"github.com/dlmanager/dlmctl/pkg/metrics"
	"go.uber.org/zap"
)

const maxResponseBytes = 10 << 20

// Options tunes the underlying HTTP client
type Options struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Client talks to the download manager REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      credentials.Store
	logger     *zap.Logger
}

// NewClient creates a client for baseURL. Requests carry the bearer token from store.
func NewClient(baseURL string, opts Options, store credentials.Store, logger *zap.Logger) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		},
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		store:  store,
		logger: logger,
	}
}

// NewClientFromConfig creates a client for the server section of cfg
func NewClientFromConfig(cfg *config.Config, store credentials.Store, logger *zap.Logger) *Client {
	return NewClient(cfg.APIBaseURL(), Options{
		Timeout:            cfg.Server.RequestTimeout,
		InsecureSkipVerify: cfg.Server.InsecureSkipVerify,
	}, store, logger)
}

// BaseURL returns the API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Store returns the credential store backing the client
func (c *Client) Store() credentials.Store {
	return c.store
}

type requestOptions struct {
	auth     bool
	query    url.Values
	endpoint string
	token    string
}

// RequestOption customizes a single request
type RequestOption func(*requestOptions)

// WithoutAuth sends the request without an Authorization header
func WithoutAuth() RequestOption {
	return func(o *requestOptions) { o.auth = false }
}

// WithQuery adds query parameters
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) { o.query = q }
}

// WithToken authenticates with token instead of the stored credential
func WithToken(token string) RequestOption {
	return func(o *requestOptions) { o.token = token }
}

// withEndpoint sets the metrics label for paths containing IDs
func withEndpoint(endpoint string) RequestOption {
	return func(o *requestOptions) { o.endpoint = endpoint }
}

// Do performs a request. body may be nil, url.Values (sent form-encoded) or any
// JSON-serializable value. When out is non-nil the response data is decoded into it.
func (c *Client) Do(ctx context.Context, method, path string, body any, out any, opts ...RequestOption) error {
	o := requestOptions{auth: true, endpoint: path}
	for _, opt := range opts {
		opt(&o)
	}

	operation := fmt.Sprintf("%s %s", method, path)

	target := c.baseURL + path
	if len(o.query) > 0 {
		target += "?" + o.query.Encode()
	}

	var reader io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case url.Values:
		reader = strings.NewReader(b.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	if o.auth {
		token := o.token
		if token == "" {
			cred, ok := c.store.Get()
			if !ok {
				return fmt.Errorf("%s: %w", operation, credentials.ErrCredentialAbsent)
			}
			token = cred.Token
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.HTTPRequestDurationSeconds.WithLabelValues(method, o.endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HTTPRequestsTotal.WithLabelValues(method, o.endpoint, "error").Inc()
		return fmt.Errorf("%s failed: %w", operation, err)
	}
	defer resp.Body.Close()
	metrics.HTTPRequestsTotal.WithLabelValues(method, o.endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s failed (status %d): failed to read response body: %w", operation, resp.StatusCode, err)
	}

	c.logger.Debug("API request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(operation, resp.StatusCode, data)
	}

	return decodeResponse(operation, resp.StatusCode, data, out)
}

// envelope is the wrapped response shape {success, code, message, data}
type envelope struct {
	Success flexBool        `json:"success"`
	Code    flexInt         `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// decodeResponse unwraps the envelope when present and decodes the payload into out
func decodeResponse(operation string, statusCode int, data []byte, out any) error {
	trimmed := bytes.TrimSpace(data)

	payload := trimmed
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &keys); err == nil {
			if _, wrapped := keys["success"]; wrapped {
				var env envelope
				if err := json.Unmarshal(trimmed, &env); err != nil {
					return fmt.Errorf("%w: %s: %v", ErrUnexpectedResponse, operation, err)
				}
				if !env.Success {
					return &APIError{StatusCode: statusCode, Code: int(env.Code), Message: env.Message, Operation: operation}
				}
				payload = bytes.TrimSpace(env.Data)
			}
		}
	}

	if out == nil || len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil
	}

	// Data may itself be a JSON document serialized into a string
	if payload[0] == '"' {
		var inner string
		if err := json.Unmarshal(payload, &inner); err == nil {
			payload = []byte(inner)
		}
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnexpectedResponse, operation, err)
	}
	return nil
}

// flexBool accepts true/false and "true"/"false"
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean %s", data)
	}
	*b = flexBool(v)
	return nil
}

// flexInt accepts numbers and numeric strings
type flexInt int

func (i *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer %s", data)
	}
	*i = flexInt(v)
	return nil
}
