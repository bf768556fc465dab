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

package downloads

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/dlmanager/dlmctl/internal/app"
	"github.com/dlmanager/dlmctl/pkg/api"
	"github.com/dlmanager/dlmctl/pkg/config"
	"github.com/dlmanager/dlmctl/pkg/mockserver"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDetectType(t *testing.T) {
	tests := []struct {
		url  string
		want api.DownloadType
	}{
		{url: "magnet:?xt=urn:btih:abc", want: api.TypeMagnet},
		{url: "https://example.com/distro.TORRENT", want: api.TypeTorrent},
		{url: "https://example.com/file.iso", want: api.TypeHTTP},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detectType(tt.url), tt.url)
	}
}

// setupBackend starts a mock backend, writes a config pointing at it and signs in
func setupBackend(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mockCfg := config.Default().MockServer
	mockCfg.UpdateInterval = 0
	srv := httptest.NewServer(mockserver.New(mockCfg, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`
[server]
host = %q
port = %s

[storage]
type = "file"

[storage.file]
path = %q

[logging]
level = "error"
`, host, port, filepath.Join(dir, "credentials.yaml"))
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	app.ConfigPath = configPath
	t.Cleanup(func() { app.ConfigPath = "" })

	a, err := app.New()
	require.NoError(t, err)
	defer a.Close()
	_, err = a.Auth.Login(context.Background(), "admin", "admin")
	require.NoError(t, err)
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	DownloadsCmd.SetOut(&buf)
	DownloadsCmd.SetArgs(args)
	t.Cleanup(func() {
		DownloadsCmd.SetOut(nil)
		DownloadsCmd.SetArgs(nil)
	})
	require.NoError(t, DownloadsCmd.ExecuteContext(context.Background()))
	return buf.String()
}

func TestDownloadsCommands(t *testing.T) {
	setupBackend(t)

	out := run(t, "list")
	assert.Contains(t, out, "distro-24.04-amd64.iso")
	assert.Contains(t, out, "Showing 2 of 2")

	out = run(t, "add", "https://files.example.com/report.pdf", "--category", "documents")
	require.Contains(t, out, "Download added: ")
	var id string
	_, err := fmt.Sscanf(out, "Download added: %s", &id)
	require.NoError(t, err)

	out = run(t, "get", id, "--output", "json")
	assert.Contains(t, out, `"filename": "report.pdf"`)

	assert.Contains(t, run(t, "pause", id), "Download paused")
	assert.Contains(t, run(t, "resume", id), "Download resumed")
	assert.Contains(t, run(t, "files", id), "report.pdf")
	assert.Contains(t, run(t, "delete", id), "Download deleted")
	assert.Contains(t, run(t, "categories"), "documents")

	out = run(t, "list", "--status", "completed")
	assert.Contains(t, out, "No downloads found.")
}
