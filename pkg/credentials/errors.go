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

package credentials

import "errors"

var (
	// ErrCredentialAbsent is returned when no bearer credential is stored
	ErrCredentialAbsent = errors.New("no credential stored")

	// ErrMalformedToken is returned when a token's claims cannot be decoded
	ErrMalformedToken = errors.New("malformed token")

	// ErrStoreUnavailable is returned when the persistent backend cannot be read or written
	ErrStoreUnavailable = errors.New("credential store is unavailable")
)

// IsCredentialAbsentError checks if an error is a missing credential error
func IsCredentialAbsentError(err error) bool {
	return errors.Is(err, ErrCredentialAbsent)
}

// IsMalformedTokenError checks if an error is a malformed token error
func IsMalformedTokenError(err error) bool {
	return errors.Is(err, ErrMalformedToken)
}

func IsStoreUnavailableError(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
