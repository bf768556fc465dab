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

package utils

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, []string{"ID", "STATUS"}, [][]string{{"a1", "downloading"}, {"b22", "paused"}})

	want := strings.Join([]string{
		"+-----+-------------+",
		"| ID  | STATUS      |",
		"+-----+-------------+",
		"| a1  | downloading |",
		"| b22 | paused      |",
		"+-----+-------------+",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestPrintFormatted(t *testing.T) {
	v := map[string]any{"task_id": "t1", "progress": 50}

	var buf bytes.Buffer
	require.NoError(t, PrintFormatted(&buf, v, "json"))
	assert.JSONEq(t, `{"task_id":"t1","progress":50}`, buf.String())

	buf.Reset()
	require.NoError(t, PrintFormatted(&buf, v, "YAML"))
	assert.Equal(t, "progress: 50\ntask_id: t1\n", buf.String())

	assert.Error(t, PrintFormatted(&buf, v, "xml"))
}

func TestHumanUnits(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{in: 0, want: "0 B"},
		{in: 1023, want: "1023 B"},
		{in: 1024, want: "1.0 KiB"},
		{in: 1536, want: "1.5 KiB"},
		{in: 6 << 30, want: "6.0 GiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HumanBytes(tt.in))
	}

	assert.Equal(t, "2.0 MiB/s", HumanSpeed(2048))
	assert.Equal(t, "-", HumanSpeed(0))
	assert.Equal(t, "1m30s", HumanDuration(90*time.Second+200*time.Millisecond))
	assert.Equal(t, "-", HumanDuration(0))
}
