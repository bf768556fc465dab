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

// Package credentials holds the bearer credential used by the REST client and the event stream.
package credentials

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultRefreshWindow is how close to expiry a credential must be before it is refreshed
const DefaultRefreshWindow = 300 * time.Second

// Credential is an opaque bearer token plus the expiry decoded from its exp claim.
// A zero ExpiresAt means the expiry is unknown.
type Credential struct {
	Token     string
	Subject   string
	ExpiresAt time.Time
}

// Parse builds a Credential from a raw token. The signature is not verified; the claims
// are only used to schedule refreshes. When the claims cannot be decoded the returned
// Credential still carries the token (with an unknown expiry) alongside an error
// wrapping ErrMalformedToken.
func Parse(token string) (Credential, error) {
	if token == "" {
		return Credential{}, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	cred := Credential{Token: token}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return cred, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return cred, fmt.Errorf("%w: invalid exp claim: %v", ErrMalformedToken, err)
	}
	if exp != nil {
		cred.ExpiresAt = exp.Time
	}
	if sub, err := claims.GetSubject(); err == nil {
		cred.Subject = sub
	}

	return cred, nil
}

// HasExpiry reports whether the expiry was decoded from the token
func (c Credential) HasExpiry() bool {
	return !c.ExpiresAt.IsZero()
}

// Expired reports whether the credential is no longer usable at now
func (c Credential) Expired(now time.Time) bool {
	return c.HasExpiry() && !now.Before(c.ExpiresAt)
}

// NeedsRefresh reports whether the credential expires within window of now.
// Credentials with an unknown expiry never need a refresh.
func (c Credential) NeedsRefresh(now time.Time, window time.Duration) bool {
	if !c.HasExpiry() {
		return false
	}
	return c.ExpiresAt.Before(now.Add(window))
}

// TimeLeft returns the remaining lifetime, or zero when unknown or expired
func (c Credential) TimeLeft(now time.Time) time.Duration {
	if !c.HasExpiry() || c.Expired(now) {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}
