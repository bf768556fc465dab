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

package auth

import "errors"

var (
	// ErrAuthFailure is returned when a credential cannot be obtained or refreshed
	ErrAuthFailure = errors.New("authentication failed")

	// ErrCredentialRejected marks failures where the backend answered 401/403; the stored
	// credential is no longer usable
	ErrCredentialRejected = errors.New("credential rejected by server")

	// ErrInvalidLogin is returned when the username or password is wrong
	ErrInvalidLogin = errors.New("incorrect username or password")

	// ErrSessionExpired is returned by Guard when the stored credential is no longer accepted
	ErrSessionExpired = errors.New("session expired, please log in again")
)

// IsAuthFailureError checks if an error is an authentication failure
func IsAuthFailureError(err error) bool {
	return errors.Is(err, ErrAuthFailure)
}

// IsCredentialRejectedError checks if the backend rejected the credential
func IsCredentialRejectedError(err error) bool {
	return errors.Is(err, ErrCredentialRejected)
}
