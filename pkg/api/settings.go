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
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

const settingsPath = "/api/v1/config"

// GetSettings returns the backend configuration
func (c *Client) GetSettings(ctx context.Context) (*Settings, error) {
	var s Settings
	if err := c.Do(ctx, http.MethodGet, settingsPath, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSettings applies a partial update and returns the resulting configuration
func (c *Client) UpdateSettings(ctx context.Context, update SettingsUpdate) (*Settings, error) {
	if len(update) == 0 {
		return nil, fmt.Errorf("settings update is empty")
	}
	var s Settings
	if err := c.Do(ctx, http.MethodPut, settingsPath, update, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// readOnlySettings cannot be changed through the API
var readOnlySettings = map[string]bool{
	"api_prefix":   true,
	"download_dir": true,
}

// IsReadOnlySetting reports whether key cannot be changed through the API
func IsReadOnlySetting(key string) bool {
	return readOnlySettings[key]
}

// ParseSettingsUpdate converts key=value pairs into a typed SettingsUpdate. Keys are the
// JSON names of Settings fields; list values are comma separated.
func ParseSettingsUpdate(pairs []string) (SettingsUpdate, error) {
	fields := settingsFields()
	update := SettingsUpdate{}

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid setting %q, expected key=value", pair)
		}
		if readOnlySettings[key] {
			return nil, fmt.Errorf("setting %q is read-only", key)
		}
		kind, known := fields[key]
		if !known {
			return nil, fmt.Errorf("unknown setting %q", key)
		}

		raw = strings.TrimSpace(raw)
		switch kind {
		case reflect.Bool:
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("setting %q must be true or false, got: %s", key, raw)
			}
			update[key] = v
		case reflect.Int:
			v, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("setting %q must be an integer, got: %s", key, raw)
			}
			update[key] = v
		case reflect.Slice:
			items := []string{}
			for _, item := range strings.Split(raw, ",") {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
			update[key] = items
		default:
			update[key] = raw
		}
	}

	return update, nil
}

// settingsFields maps each Settings JSON key to its value kind
func settingsFields() map[string]reflect.Kind {
	t := reflect.TypeOf(Settings{})
	fields := make(map[string]reflect.Kind, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		fields[name] = f.Type.Kind()
	}
	return fields
}
