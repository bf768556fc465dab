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
	"sync"
	"time"

	"github.com/dlmanager/dlmctl/pkg/api"
	"github.com/dlmanager/dlmctl/pkg/eventstream"
	"github.com/dlmanager/dlmctl/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const streamWriteTimeout = 5 * time.Second

// streamClient is one connected WebSocket subscriber
type streamClient struct {
	id       string
	username string
	conn     *websocket.Conn
	writeMu  sync.Mutex
}

func (c *streamClient) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *streamClient) close(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = c.conn.Close()
}

// streamHub tracks connected subscribers
type streamHub struct {
	mu      sync.RWMutex
	clients map[string]*streamClient
	logger  *zap.Logger
}

func newStreamHub(logger *zap.Logger) *streamHub {
	return &streamHub{clients: make(map[string]*streamClient), logger: logger}
}

func (h *streamHub) add(c *streamClient) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	metrics.MockServerStreamClients.Set(float64(n))
}

func (h *streamHub) remove(c *streamClient) {
	h.mu.Lock()
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()
	metrics.MockServerStreamClients.Set(float64(n))
}

func (h *streamHub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *streamHub) snapshot() []*streamClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*streamClient, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// broadcast sends a frame to every subscriber; failing subscribers are dropped by their reader
func (h *streamHub) broadcast(category eventstream.Category, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal stream payload", zap.Error(err))
		return
	}
	data, err := json.Marshal(eventstream.Frame{Type: category, Payload: raw})
	if err != nil {
		h.logger.Error("Failed to marshal stream frame", zap.Error(err))
		return
	}

	for _, c := range h.snapshot() {
		if err := c.send(data); err != nil {
			h.logger.Warn("Failed to push stream frame",
				zap.String("connection_id", c.id),
				zap.Error(err))
			continue
		}
		metrics.MockServerStreamFramesTotal.WithLabelValues(string(category)).Inc()
	}
}

func (h *streamHub) broadcastUpdates(updates []api.DownloadUpdate) {
	for _, u := range updates {
		h.broadcast(eventstream.CategoryDownloads, u)
	}
}

// closeAll disconnects every subscriber with the given close code
func (h *streamHub) closeAll(code int, reason string) {
	for _, c := range h.snapshot() {
		c.close(code, reason)
	}
}

// handleStream upgrades /ws?token=... and serves one subscriber until it disconnects.
// An invalid token is reported with close code 1008 after the upgrade.
func (s *Server) handleStream(c *gin.Context) {
	log := getLogger(c, s.logger)
	token := c.Query("token")

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &streamClient{id: uuid.NewString(), conn: conn}
	username, err := s.tokens.Verify(token)
	if err != nil {
		log.Warn("Stream connection with invalid token", zap.Error(err))
		client.close(websocket.ClosePolicyViolation, "Invalid token")
		return
	}
	client.username = username

	s.hub.add(client)
	defer s.hub.remove(client)
	log.Info("Stream client connected",
		zap.String("connection_id", client.id),
		zap.String("username", username))

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("Stream read error", zap.String("connection_id", client.id), zap.Error(err))
			}
			log.Info("Stream client disconnected", zap.String("connection_id", client.id))
			_ = conn.Close()
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var frame eventstream.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Debug("Ignoring malformed client frame", zap.Error(err))
			continue
		}
		if frame.Type == eventstream.CategoryPing {
			if err := client.send(pongFrame); err != nil {
				log.Warn("Failed to answer heartbeat", zap.Error(err))
				continue
			}
			metrics.MockServerStreamFramesTotal.WithLabelValues(string(eventstream.CategoryPong)).Inc()
		}
	}
}

var pongFrame = []byte(`{"type":"pong"}`)
