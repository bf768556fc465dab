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
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dlmanager/dlmctl/internal/app"
	"github.com/dlmanager/dlmctl/internal/utils"
	"github.com/dlmanager/dlmctl/pkg/api"
	"github.com/spf13/cobra"
)

var (
	addType     string
	addFilename string
	addCategory string
	addPriority string
)

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a download task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runAddCommand(cmd, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause <task-id>",
	Short: "Pause a running download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runPauseCommand(cmd, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <task-id>",
	Short: "Resume a paused or failed download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runResumeCommand(cmd, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Cancel a download, or delete a finished one",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDeleteCommand(cmd, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	utils.AddStringFlag(addCmd, utils.FlagType, &addType, "", "Download type (http, magnet, torrent); detected from the URL when empty")
	utils.AddStringFlag(addCmd, utils.FlagFilename, &addFilename, "", "Target file name")
	utils.AddStringFlag(addCmd, utils.FlagCategory, &addCategory, "", "Category")
	utils.AddStringFlag(addCmd, utils.FlagPriority, &addPriority, "", "Priority (low, normal, high)")
}

// detectType infers the download type from the URL scheme or extension
func detectType(rawURL string) api.DownloadType {
	switch {
	case strings.HasPrefix(rawURL, "magnet:"):
		return api.TypeMagnet
	case strings.HasSuffix(strings.ToLower(rawURL), ".torrent"):
		return api.TypeTorrent
	default:
		return api.TypeHTTP
	}
}

func runAddCommand(cmd *cobra.Command, rawURL string) error {
	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()

	downloadType := api.DownloadType(addType)
	if downloadType == "" {
		downloadType = detectType(rawURL)
	}

	id, err := a.API.AddDownload(cmd.Context(), api.DownloadRequest{
		URL:          rawURL,
		DownloadType: downloadType,
		Filename:     addFilename,
		Category:     addCategory,
		Priority:     api.Priority(addPriority),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Download added: %s\n", id)
	return nil
}

func runPauseCommand(cmd *cobra.Command, id string) error {
	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()

	task, err := a.API.GetDownload(cmd.Context(), id)
	if err != nil {
		return err
	}
	if err := a.API.PauseDownload(cmd.Context(), id, task.Status); err != nil {
		if errors.Is(err, api.ErrNotDownloading) {
			return fmt.Errorf("only running downloads can be paused (task is %s)", task.Status)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Download paused: %s\n", id)
	return nil
}

func runResumeCommand(cmd *cobra.Command, id string) error {
	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.API.ResumeDownload(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Download resumed: %s\n", id)
	return nil
}

func runDeleteCommand(cmd *cobra.Command, id string) error {
	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.API.DeleteDownload(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Download deleted: %s\n", id)
	return nil
}
