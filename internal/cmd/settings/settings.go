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

package settings

import (
	"fmt"
	"os"

	"github.com/dlmanager/dlmctl/internal/app"
	"github.com/dlmanager/dlmctl/internal/utils"
	"github.com/dlmanager/dlmctl/pkg/api"
	"github.com/spf13/cobra"
)

const (
	SettingsCmdLiteral = "settings"
	SettingsCmdExample = `# Show the backend configuration
dlmctl settings get

# Change settings
dlmctl settings set max_concurrent_downloads=5 bt_use_dht=false`
)

var (
	getOutput string
	setOutput string
)

// SettingsCmd groups the backend configuration commands
var SettingsCmd = &cobra.Command{
	Use:     SettingsCmdLiteral,
	Short:   "Show or change the backend configuration",
	Example: SettingsCmdExample,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the backend configuration",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runGetCommand(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var setCmd = &cobra.Command{
	Use:   "set key=value [key=value...]",
	Short: "Change backend configuration values",
	Long:  "Applies a partial update. Keys are the names shown by 'settings get'; list values are comma separated.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSetCommand(cmd, args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	utils.AddStringFlag(getCmd, utils.FlagOutput, &getOutput, utils.FormatYAML, "Output format (json or yaml)")
	utils.AddStringFlag(setCmd, utils.FlagOutput, &setOutput, utils.FormatYAML, "Output format (json or yaml)")

	SettingsCmd.AddCommand(getCmd)
	SettingsCmd.AddCommand(setCmd)
}

func runGetCommand(cmd *cobra.Command) error {
	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()

	settings, err := a.API.GetSettings(cmd.Context())
	if err != nil {
		return err
	}
	return utils.PrintFormatted(cmd.OutOrStdout(), settings, getOutput)
}

func runSetCommand(cmd *cobra.Command, pairs []string) error {
	update, err := api.ParseSettingsUpdate(pairs)
	if err != nil {
		return err
	}

	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()

	settings, err := a.API.UpdateSettings(cmd.Context(), update)
	if err != nil {
		return err
	}
	return utils.PrintFormatted(cmd.OutOrStdout(), settings, setOutput)
}
