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
	"github.com/spf13/cobra"
)

const (
	DownloadsCmdLiteral = "downloads"
	DownloadsCmdExample = `# List active downloads
dlmctl downloads list --status downloading

# Add a download and pause it
dlmctl downloads add https://example.com/file.iso
dlmctl downloads pause <task-id>`
)

// DownloadsCmd groups the download task commands
var DownloadsCmd = &cobra.Command{
	Use:     DownloadsCmdLiteral,
	Aliases: []string{"dl"},
	Short:   "Manage download tasks",
	Long:    "List, inspect, add, pause, resume and delete download tasks.",
	Example: DownloadsCmdExample,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	DownloadsCmd.AddCommand(listCmd)
	DownloadsCmd.AddCommand(getCmd)
	DownloadsCmd.AddCommand(filesCmd)
	DownloadsCmd.AddCommand(addCmd)
	DownloadsCmd.AddCommand(pauseCmd)
	DownloadsCmd.AddCommand(resumeCmd)
	DownloadsCmd.AddCommand(deleteCmd)
	DownloadsCmd.AddCommand(categoriesCmd)
}
