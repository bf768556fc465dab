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

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dlmanager/dlmctl/internal/app"
	"github.com/dlmanager/dlmctl/internal/cmd/downloads"
	"github.com/dlmanager/dlmctl/internal/cmd/settings"
	"github.com/dlmanager/dlmctl/internal/utils"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   utils.CliName,
	Short: "dlmctl is a command line client for the download manager",
	Long: "dlmctl signs in to a download manager backend, manages download tasks and settings, " +
		"and follows live download progress over the event stream.",
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	utils.AddPersistentStringFlag(rootCmd, utils.FlagConfig, &app.ConfigPath, "",
		"Path to the config file (default ~/.dlmctl/config.toml)")
	utils.AddPersistentStringFlag(rootCmd, utils.FlagLogLevel, &app.LogLevel, "",
		"Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(downloads.DownloadsCmd)
	rootCmd.AddCommand(settings.SettingsCmd)
}

// Execute runs the root command; SIGINT and SIGTERM cancel the command context
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Oops. An error occurred while executing %s: %v\n", utils.CliName, err)
		stop()
		os.Exit(1)
	}
}
