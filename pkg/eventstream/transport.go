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

package eventstream

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Conn is the subset of *websocket.Conn the client uses
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens a transport to url
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer dials with gorilla/websocket
type WebSocketDialer struct {
	dialer *websocket.Dialer
	logger *zap.Logger
}

// NewWebSocketDialer creates a dialer with the given handshake timeout
func NewWebSocketDialer(handshakeTimeout time.Duration, insecureSkipVerify bool, logger *zap.Logger) *WebSocketDialer {
	if insecureSkipVerify {
		logger.Debug("TLS certificate verification disabled (insecure_skip_verify=true)")
	}
	return &WebSocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			TLSClientConfig: &tls.Config{
				MinVersion:         tls.VersionTLS12,
				InsecureSkipVerify: insecureSkipVerify,
			},
		},
		logger: logger,
	}
}

// Dial opens a WebSocket connection
func (d *WebSocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			d.logger.Error("WebSocket connection failed",
				zap.String("url", redactToken(rawURL)),
				zap.Int("status_code", resp.StatusCode),
				zap.Error(err))

			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				d.logger.Error("Stream handshake rejected - credential invalid or revoked")
			}
			return nil, fmt.Errorf("websocket handshake failed (status %d): %w", resp.StatusCode, err)
		}
		d.logger.Error("WebSocket connection failed",
			zap.String("url", redactToken(rawURL)),
			zap.Error(err))
		return nil, err
	}
	return conn, nil
}

// redactToken hides the token query parameter for logging
func redactToken(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
