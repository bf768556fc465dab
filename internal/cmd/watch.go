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
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dlmanager/dlmctl/internal/app"
	"github.com/dlmanager/dlmctl/internal/utils"
	"github.com/dlmanager/dlmctl/pkg/api"
	"github.com/dlmanager/dlmctl/pkg/auth"
	"github.com/dlmanager/dlmctl/pkg/credentials"
	"github.com/dlmanager/dlmctl/pkg/eventstream"
	"github.com/dlmanager/dlmctl/pkg/metrics"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	WatchCmdExample = `# Follow download progress
dlmctl watch

# Print raw updates as JSON and expose Prometheus metrics
dlmctl watch --output json --metrics`
)

var (
	watchOutput  string
	watchMetrics bool
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Follow live download progress",
	Long:    "Connects to the event stream and prints download updates until interrupted. Lost connections are retried with backoff.",
	Example: WatchCmdExample,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runWatchCommand(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	utils.AddStringFlag(watchCmd, utils.FlagOutput, &watchOutput, utils.FormatTable, "Output format (table or json)")
	utils.AddBoolFlag(watchCmd, utils.FlagMetrics, &watchMetrics, false, "Serve Prometheus metrics on metrics.port")

	rootCmd.AddCommand(watchCmd)
}

func runWatchCommand(cmd *cobra.Command) error {
	if watchOutput != utils.FormatTable && watchOutput != utils.FormatJSON {
		return fmt.Errorf("unsupported output format %q", watchOutput)
	}

	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if watchMetrics {
		a.Config.Metrics.Enabled = true
	}
	if a.Config.Metrics.Enabled {
		stopMetrics, err := startMetrics(ctx, a)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	var (
		failureMu sync.Mutex
		failure   error
	)
	client := eventstream.NewClient(a.Config, a.Logger, a.Store,
		auth.NewRefresher(a.Auth, a.Config.Stream.RefreshWindow, a.Logger),
		eventstream.WithNotifier(newConsoleNotifier(os.Stderr)),
		eventstream.WithGiveUpHandler(func(err error) {
			failureMu.Lock()
			failure = err
			failureMu.Unlock()
			cancel()
		}))

	printer := &updatePrinter{out: cmd.OutOrStdout(), format: watchOutput}
	client.Subscribe(eventstream.CategoryDownloads, printer)
	client.SubscribeFunc(eventstream.CategoryDisconnect, func(env eventstream.Envelope) error {
		if env.CloseCode == websocket.CloseNormalClosure {
			cancel()
		}
		return nil
	})

	if err := client.Connect(ctx); err != nil && !eventstream.IsTransportError(err) {
		return connectError(err)
	}

	<-ctx.Done()
	client.Stop()

	failureMu.Lock()
	defer failureMu.Unlock()
	if failure != nil {
		return connectError(failure)
	}
	return nil
}

// connectError turns a non-retried stream failure into a message for the user
func connectError(err error) error {
	switch {
	case errors.Is(err, credentials.ErrCredentialAbsent):
		return fmt.Errorf("not logged in, run '%s login' first", utils.CliName)
	case auth.IsAuthFailureError(err):
		return fmt.Errorf("authentication failed, run '%s login' again: %w", utils.CliName, err)
	}
	return err
}

func startMetrics(ctx context.Context, a *app.App) (func(), error) {
	metrics.SetEnabled(true)
	metrics.Init()
	metrics.Up.Set(1)
	metrics.Info.WithLabelValues(Version, "watch").Set(1)

	server := metrics.NewServer(&a.Config.Metrics, a.Logger)
	if err := server.Start(); err != nil {
		return nil, err
	}
	metrics.StartMemoryMetricsUpdater(ctx, 15*time.Second)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			a.Logger.Warn("Failed to stop metrics server", zap.Error(err))
		}
	}, nil
}

// updatePrinter prints downloads events, one line per update
type updatePrinter struct {
	mu     sync.Mutex
	out    io.Writer
	format string
}

func (p *updatePrinter) OnEvent(env eventstream.Envelope) error {
	update, err := api.DecodeDownloadUpdate(env.Payload)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == utils.FormatJSON {
		return utils.PrintFormatted(p.out, update, utils.FormatJSON)
	}
	_, err = fmt.Fprintf(p.out, "%s  %-36s  %-20s %6.1f%%  %s\n",
		env.ReceivedAt.Format("15:04:05"),
		update.TaskID,
		update.Status,
		update.Progress,
		utils.HumanSpeed(update.DownloadSpeed))
	return err
}

func newConsoleNotifier(w io.Writer) eventstream.Notifier {
	var mu sync.Mutex
	return eventstream.NotifierFunc(func(n eventstream.Notice) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "[%s] %s: %s\n", strings.ToUpper(string(n.Level)), n.Title, n.Message)
	})
}
