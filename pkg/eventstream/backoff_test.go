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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_NextDelay(t *testing.T) {
	b := NewBackoff(5 * time.Second)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: -3, want: 5 * time.Second},
		{attempt: 0, want: 5 * time.Second},
		{attempt: 1, want: 5 * time.Second},
		{attempt: 2, want: 10 * time.Second},
		{attempt: 3, want: 20 * time.Second},
		{attempt: 4, want: 30 * time.Second},
		{attempt: 5, want: 30 * time.Second},
		{attempt: 6, want: 30 * time.Second},
		{attempt: 1000, want: 30 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, b.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestBackoff_SmallBase(t *testing.T) {
	b := Backoff{Base: time.Second, Max: MaxReconnectDelay}

	var got []time.Duration
	for attempt := 1; attempt <= 7; attempt++ {
		got = append(got, b.NextDelay(attempt))
	}
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}, got)
}

func TestBackoff_ZeroBase(t *testing.T) {
	assert.Zero(t, Backoff{Max: MaxReconnectDelay}.NextDelay(3))
}
