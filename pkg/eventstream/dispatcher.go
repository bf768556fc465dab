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
	"fmt"
	"sync"

	"github.com/dlmanager/dlmctl/pkg/metrics"
	"go.uber.org/zap"
)

// Consumer receives envelopes of the categories it subscribed to
type Consumer interface {
	OnEvent(env Envelope) error
}

// ConsumerFunc adapts a function to Consumer
type ConsumerFunc func(env Envelope) error

// OnEvent calls f(env)
func (f ConsumerFunc) OnEvent(env Envelope) error {
	return f(env)
}

// Dispatcher fans envelopes out to consumers, synchronously and in registration order.
// A failing consumer never prevents delivery to the others.
type Dispatcher struct {
	mu        sync.RWMutex
	consumers map[Category][]Consumer
	logger    *zap.Logger
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		consumers: make(map[Category][]Consumer),
		logger:    logger,
	}
}

// Subscribe appends consumer to the category's list
func (d *Dispatcher) Subscribe(category Category, consumer Consumer) {
	if consumer == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.consumers[category] = append(d.consumers[category], consumer)
}

// HasSubscribers reports whether any consumer listens to category
func (d *Dispatcher) HasSubscribers(category Category) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.consumers[category]) > 0
}

// Dispatch delivers env to every consumer of its category. Consumer failures are logged,
// counted and returned joined; they never stop delivery.
func (d *Dispatcher) Dispatch(env Envelope) error {
	d.mu.RLock()
	consumers := make([]Consumer, len(d.consumers[env.Category]))
	copy(consumers, d.consumers[env.Category])
	d.mu.RUnlock()

	if len(consumers) == 0 {
		d.logger.Debug("No consumers for event", zap.String("category", string(env.Category)))
		return nil
	}

	var errs []error
	for i, consumer := range consumers {
		if err := d.deliver(consumer, env); err != nil {
			err = fmt.Errorf("%w: %s consumer #%d: %w", ErrConsumer, env.Category, i, err)
			d.logger.Error("Event consumer failed",
				zap.String("category", string(env.Category)),
				zap.Int("consumer", i),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) deliver(consumer Consumer, env Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.StreamConsumerErrorsTotal.WithLabelValues(string(env.Category), "panic").Inc()
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if err := consumer.OnEvent(env); err != nil {
		metrics.StreamConsumerErrorsTotal.WithLabelValues(string(env.Category), "error").Inc()
		return err
	}
	return nil
}
