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
)

var (
	// ErrTransport wraps dial failures and unexpected connection loss
	ErrTransport = errors.New("event stream transport error")

	// ErrDecode is reported when an inbound frame is not a valid envelope
	ErrDecode = errors.New("event stream decode error")

	// ErrConsumer wraps errors returned (or panics raised) by consumers
	ErrConsumer = errors.New("event consumer failed")

	// ErrClientStopped is returned by Connect after Stop
	ErrClientStopped = errors.New("event stream client stopped")

	// ErrConnectCancelled is returned by Connect when Close or a newer Connect superseded the
	// attempt while it was dialing
	ErrConnectCancelled = errors.New("event stream connect cancelled")
)

// IsTransportError checks if an error is a transport error
func IsTransportError(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsConsumerError checks if an error came from a consumer
func IsConsumerError(err error) bool {
	return errors.Is(err, ErrConsumer)
}
