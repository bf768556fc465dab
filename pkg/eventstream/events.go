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
	"encoding/json"
	"time"
)

// Category keys the subscription registry
type Category string

const (
	// CategoryConnect is emitted locally after a connection is established
	CategoryConnect Category = "connect"
	// CategoryError is emitted locally for transport errors
	CategoryError Category = "error"
	// CategoryDisconnect is emitted locally whenever an open connection closes
	CategoryDisconnect Category = "disconnect"
	// CategoryDownloads carries download task updates from the server
	CategoryDownloads Category = "downloads"
	// CategoryPing is the outbound heartbeat frame type
	CategoryPing Category = "ping"
	// CategoryPong is the server's heartbeat reply; counted but never dispatched
	CategoryPong Category = "pong"
)

// Synthetic reports whether the category is produced locally and must not be accepted from the wire
func (c Category) Synthetic() bool {
	return c == CategoryConnect || c == CategoryError || c == CategoryDisconnect
}

// Frame is the wire format of every text message in both directions
type Frame struct {
	Type    Category        `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Envelope is what consumers receive. Payload is set for server events, Err for error
// events, and CloseCode/CloseReason for disconnect events.
type Envelope struct {
	Category     Category
	Payload      json.RawMessage
	Err          error
	CloseCode    int
	CloseReason  string
	ConnectionID string
	ReceivedAt   time.Time
}

var pingFrame = mustMarshal(Frame{Type: CategoryPing})

func mustMarshal(f Frame) []byte {
	b, err := json.Marshal(f)
	if err != nil {
		panic(err)
	}
	return b
}

func connectEnvelope(connectionID string, at time.Time) Envelope {
	return Envelope{Category: CategoryConnect, ConnectionID: connectionID, ReceivedAt: at}
}

func errorEnvelope(err error, connectionID string, at time.Time) Envelope {
	return Envelope{Category: CategoryError, Err: err, ConnectionID: connectionID, ReceivedAt: at}
}

func disconnectEnvelope(code int, reason, connectionID string, at time.Time) Envelope {
	return Envelope{
		Category:     CategoryDisconnect,
		CloseCode:    code,
		CloseReason:  reason,
		ConnectionID: connectionID,
		ReceivedAt:   at,
	}
}
