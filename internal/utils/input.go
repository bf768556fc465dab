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
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// PromptInput prompts the user for input and returns the trimmed response
func PromptInput(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(input), nil
}

// PromptPassword prompts the user for a password with masked input
func PromptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // Print newline after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(bytePassword)), nil
}

// ResolveCredentials fills username and password from the environment, then from prompts.
// The password is only prompted for on a terminal.
func ResolveCredentials(username, password string) (string, string, error) {
	var err error
	if username == "" {
		username = os.Getenv(EnvUsername)
	}
	if username == "" {
		if username, err = PromptInput("Username: "); err != nil {
			return "", "", err
		}
	}

	if password == "" {
		password = os.Getenv(EnvPassword)
	}
	if password == "" {
		if !term.IsTerminal(int(syscall.Stdin)) {
			return "", "", fmt.Errorf("password required: use --%s or %s", FlagPassword, EnvPassword)
		}
		if password, err = PromptPassword("Password: "); err != nil {
			return "", "", err
		}
	}

	if username == "" || password == "" {
		return "", "", fmt.Errorf("username and password are required")
	}
	return username, password, nil
}
