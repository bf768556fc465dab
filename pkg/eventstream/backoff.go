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

import "time"

// MaxReconnectDelay caps every reconnect delay
const MaxReconnectDelay = 30 * time.Second

// Backoff computes reconnect delays: Base doubled per attempt, capped at Max
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// NewBackoff returns a Backoff capped at MaxReconnectDelay
func NewBackoff(base time.Duration) Backoff {
	return Backoff{Base: base, Max: MaxReconnectDelay}
}

// NextDelay returns min(Base*2^(attempt-1), Max). Attempts below 1 count as 1.
func (b Backoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	maxDelay := b.Max
	if maxDelay <= 0 {
		maxDelay = MaxReconnectDelay
	}

	delay := b.Base
	if delay <= 0 {
		return 0
	}
	for i := 1; i < attempt && delay < maxDelay; i++ {
		delay *= 2
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}
