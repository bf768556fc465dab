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
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/dlmanager/dlmctl/internal/app"
	"github.com/dlmanager/dlmctl/internal/utils"
	"github.com/dlmanager/dlmctl/pkg/api"
	"github.com/spf13/cobra"
)

var (
	listStatus   string
	listType     string
	listCategory string
	listLimit    int
	listOffset   int
	listOutput   string

	getOutput   string
	filesOutput string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List download tasks",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runListCommand(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var getCmd = &cobra.Command{
	Use:   "get <task-id>",
	Short: "Show a download task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runGetCommand(cmd, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var filesCmd = &cobra.Command{
	Use:   "files <task-id>",
	Short: "List the files of a download task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runFilesCommand(cmd, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the file categories known to the backend",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runCategoriesCommand(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	utils.AddStringFlag(listCmd, utils.FlagStatus, &listStatus, "", "Filter by status")
	utils.AddStringFlag(listCmd, utils.FlagType, &listType, "", "Filter by type (http, magnet, torrent)")
	utils.AddStringFlag(listCmd, utils.FlagCategory, &listCategory, "", "Filter by category")
	utils.AddIntFlag(listCmd, utils.FlagLimit, &listLimit, 0, "Maximum number of tasks")
	utils.AddIntFlag(listCmd, utils.FlagOffset, &listOffset, 0, "Number of tasks to skip")
	utils.AddStringFlag(listCmd, utils.FlagOutput, &listOutput, utils.FormatTable, "Output format (table, json or yaml)")

	utils.AddStringFlag(getCmd, utils.FlagOutput, &getOutput, utils.FormatYAML, "Output format (json or yaml)")
	utils.AddStringFlag(filesCmd, utils.FlagOutput, &filesOutput, utils.FormatTable, "Output format (table, json or yaml)")
}

func runListCommand(cmd *cobra.Command) error {
	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.API.ListDownloads(cmd.Context(), api.ListOptions{
		Status:   api.DownloadStatus(listStatus),
		Type:     api.DownloadType(listType),
		Category: listCategory,
		Limit:    listLimit,
		Offset:   listOffset,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if listOutput != utils.FormatTable {
		return utils.PrintFormatted(out, list, listOutput)
	}
	printDownloads(out, list)
	return nil
}

func printDownloads(out io.Writer, list *api.DownloadList) {
	if len(list.Items) == 0 {
		fmt.Fprintln(out, "No downloads found.")
		return
	}

	headers := []string{"ID", "NAME", "TYPE", "STATUS", "PROGRESS", "SIZE", "SPEED"}
	rows := make([][]string, 0, len(list.Items))
	for _, d := range list.Items {
		rows = append(rows, []string{
			d.ID,
			d.Filename,
			string(d.DownloadType),
			string(d.Status),
			strconv.FormatFloat(d.Progress, 'f', 1, 64) + "%",
			utils.HumanBytes(d.TotalSize),
			utils.HumanSpeed(d.DownloadSpeed),
		})
	}
	utils.PrintTable(out, headers, rows)
	fmt.Fprintf(out, "Showing %d of %d\n", len(list.Items), list.Total)
}

func runGetCommand(cmd *cobra.Command, id string) error {
	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()

	task, err := a.API.GetDownload(cmd.Context(), id)
	if err != nil {
		return err
	}
	return utils.PrintFormatted(cmd.OutOrStdout(), task, getOutput)
}

func runFilesCommand(cmd *cobra.Command, id string) error {
	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()

	files, err := a.API.GetDownloadFiles(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if filesOutput != utils.FormatTable {
		return utils.PrintFormatted(out, files, filesOutput)
	}
	if len(files.Files) == 0 {
		fmt.Fprintln(out, "No files found.")
		return nil
	}
	rows := make([][]string, 0, len(files.Files))
	for _, f := range files.Files {
		rows = append(rows, []string{fmt.Sprint(f["index"]), fmt.Sprint(f["path"]), fmt.Sprint(f["size"])})
	}
	utils.PrintTable(out, []string{"INDEX", "PATH", "SIZE"}, rows)
	return nil
}

func runCategoriesCommand(cmd *cobra.Command) error {
	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()

	categories, err := a.API.ListCategories(cmd.Context())
	if err != nil {
		return err
	}

	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, categories[name]})
	}
	utils.PrintTable(cmd.OutOrStdout(), []string{"CATEGORY", "DESCRIPTION"}, rows)
	return nil
}
