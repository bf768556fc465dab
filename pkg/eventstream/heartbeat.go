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
	"time"

	"github.com/dlmanager/dlmctl/pkg/metrics"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const heartbeatWriteTimeout = 10 * time.Second

// heartbeat sends a ping frame every interval until stop is closed. A tick is skipped unless
// gen is still the current, connected generation.
func (c *Client) heartbeat(gen uint64, interval time.Duration, stop <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.sendPing(gen)
		}
	}
}

func (c *Client) sendPing(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.state != Connected || c.conn == nil {
		metrics.StreamHeartbeatsTotal.WithLabelValues("skipped").Inc()
		return
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(heartbeatWriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, pingFrame); err != nil {
		// The reader observes the broken connection and drives the reconnect
		metrics.StreamHeartbeatsTotal.WithLabelValues("failure").Inc()
		c.logger.Warn("Failed to send heartbeat", zap.Error(err))
		return
	}
	metrics.StreamHeartbeatsTotal.WithLabelValues("success").Inc()
	c.logger.Debug("Heartbeat sent", zap.String("connection_id", c.connectionID))
}
