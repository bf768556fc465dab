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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dlmanager/dlmctl/internal/app"
	"github.com/dlmanager/dlmctl/internal/utils"
	"github.com/dlmanager/dlmctl/pkg/auth"
	"github.com/dlmanager/dlmctl/pkg/credentials"
	"github.com/spf13/cobra"
)

const (
	LoginCmdExample = `# Sign in interactively
dlmctl login

# Sign in non-interactively
DLMCTL_PASSWORD=secret dlmctl login --username admin`
)

var (
	loginUsername string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:     "login",
	Short:   "Sign in and store a credential",
	Long:    "Exchanges a username and password for an access token and stores it in the configured credential store.",
	Example: LoginCmdExample,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runLoginCommand(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored credential",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runLogoutCommand(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Long:  "Verifies the stored credential with the backend and prints the user it belongs to.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runWhoamiCommand(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	utils.AddStringFlag(loginCmd, utils.FlagUsername, &loginUsername, "", "Username (or "+utils.EnvUsername+")")
	utils.AddStringFlag(loginCmd, utils.FlagPassword, &loginPassword, "", "Password (or "+utils.EnvPassword+")")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

func runLoginCommand(cmd *cobra.Command) error {
	username, password, err := utils.ResolveCredentials(loginUsername, loginPassword)
	if err != nil {
		return err
	}

	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()

	cred, err := a.Auth.Login(cmd.Context(), username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidLogin) {
			return fmt.Errorf("incorrect username or password")
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Logged in as %s\n", username)
	if cred.HasExpiry() {
		fmt.Fprintf(out, "Token expires at %s\n", cred.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

func runLogoutCommand(cmd *cobra.Command) error {
	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Auth.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func runWhoamiCommand(cmd *cobra.Command) error {
	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := auth.NewGuard(a.Auth, a.Logger).Check(cmd.Context())
	switch {
	case errors.Is(err, credentials.ErrCredentialAbsent):
		return fmt.Errorf("not logged in, run '%s login' first", utils.CliName)
	case errors.Is(err, auth.ErrSessionExpired):
		return fmt.Errorf("session expired, run '%s login' again", utils.CliName)
	case err != nil:
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Logged in as %s\n", user.Username)
	if cred, ok := a.Store.Get(); ok && cred.HasExpiry() {
		fmt.Fprintf(out, "Token expires in %s\n", utils.HumanDuration(cred.TimeLeft(time.Now())))
	}
	return nil
}
