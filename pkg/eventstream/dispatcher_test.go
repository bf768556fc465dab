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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatcher_DeliversInRegistrationOrder(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	var order []string
	d.Subscribe(CategoryDownloads, ConsumerFunc(func(Envelope) error {
		order = append(order, "first")
		return nil
	}))
	d.Subscribe(CategoryDownloads, ConsumerFunc(func(Envelope) error {
		order = append(order, "second")
		return nil
	}))
	d.Subscribe(CategoryConnect, ConsumerFunc(func(Envelope) error {
		order = append(order, "connect")
		return nil
	}))

	require.NoError(t, d.Dispatch(Envelope{Category: CategoryDownloads}))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestDispatcher_IsolatesFailingConsumers(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	var calls []string
	d.Subscribe(CategoryDownloads, ConsumerFunc(func(Envelope) error {
		calls = append(calls, "erroring")
		return errors.New("boom")
	}))
	d.Subscribe(CategoryDownloads, ConsumerFunc(func(Envelope) error {
		calls = append(calls, "panicking")
		panic("bad consumer")
	}))
	d.Subscribe(CategoryDownloads, ConsumerFunc(func(Envelope) error {
		calls = append(calls, "healthy")
		return nil
	}))

	err := d.Dispatch(Envelope{Category: CategoryDownloads})

	require.Error(t, err)
	assert.True(t, IsConsumerError(err))
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "panic: bad consumer")
	assert.Equal(t, []string{"erroring", "panicking", "healthy"}, calls)
}

func TestDispatcher_NoSubscribers(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	d.Subscribe(CategoryDownloads, nil)

	assert.False(t, d.HasSubscribers(CategoryDownloads))
	assert.NoError(t, d.Dispatch(Envelope{Category: CategoryDownloads}))
}

func TestCategory_Synthetic(t *testing.T) {
	assert.True(t, CategoryConnect.Synthetic())
	assert.True(t, CategoryError.Synthetic())
	assert.True(t, CategoryDisconnect.Synthetic())
	assert.False(t, CategoryDownloads.Synthetic())
	assert.False(t, CategoryPong.Synthetic())
}
