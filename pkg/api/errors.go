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

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotDownloading is returned by PauseDownload when the task is not currently downloading
	ErrNotDownloading = errors.New("only downloading tasks can be paused")

	// ErrUnexpectedResponse is returned when a 2xx body cannot be decoded
	ErrUnexpectedResponse = errors.New("unexpected response from server")
)

// APIError is a non-2xx response, or a 2xx response whose envelope reports failure
type APIError struct {
	StatusCode int
	Code       int
	Message    string
	Operation  string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Operation == "" {
		return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("%s failed (status %d): %s", e.Operation, e.StatusCode, msg)
}

// IsUnauthorizedError reports whether the backend rejected the credential
func IsUnauthorizedError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// IsNotFoundError reports whether the backend answered 404
func IsNotFoundError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// parseAPIError builds an APIError from an error body. Accepted shapes:
// {"detail": "..."}, {"detail": {"code": n, "message": "..."}},
// {"success": false, "code": n, "message": "..."} and plain text.
func parseAPIError(operation string, statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Operation: operation}

	var doc struct {
		Detail  json.RawMessage `json:"detail"`
		Code    flexInt         `json:"code"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}

	apiErr.Code = int(doc.Code)
	apiErr.Message = doc.Message

	if len(doc.Detail) > 0 {
		var s string
		if err := json.Unmarshal(doc.Detail, &s); err == nil {
			apiErr.Message = s
		} else {
			var d struct {
				Code    flexInt `json:"code"`
				Message string  `json:"message"`
			}
			if err := json.Unmarshal(doc.Detail, &d); err == nil {
				apiErr.Code = int(d.Code)
				apiErr.Message = d.Message
			}
		}
	}

	return apiErr
}
