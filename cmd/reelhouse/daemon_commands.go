package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelhouse/internal/api"
	"reelhouse/internal/daemonctl"
	"reelhouse/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run and control the reelhouse daemon",
	}
	daemonCmd.AddCommand(newDaemonRunCommand(ctx))
	daemonCmd.AddCommand(newDaemonStartCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	return daemonCmd
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&development, "development", false, "Include source locations in log lines")
	return cmd
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, _ []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			result, err := daemonctl.EnsureStarted(cmd.Context(), client, exe, daemonctl.LaunchOptions{
				ConfigPath: ctx.configPath(),
				LogLevel:   logLevel,
			}, 10*time.Second)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			default:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.Stop(cmd.Context(), cfg, grace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon did not exit within %s; killed pid %d\n", grace, result.PID)
				return nil
			}
			fmt.Fprintf(stdout, "Daemon stopped (pid %d)\n", result.PID)
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 30*time.Second, "How long running jobs get to wind down before the process is killed")
	return cmd
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and queue status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *api.Client) error {
				health, err := client.Health(cmd.Context())
				if err != nil {
					return err
				}
				return ctx.render(cmd, health, func() error {
					renderHealth(cmd, health)
					return nil
				})
			})
		},
	}
}

func renderHealth(cmd *cobra.Command, health *api.HealthResponse) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	overall := statusOK
	if health.Status != "ok" {
		overall = statusWarn
	}
	fmt.Fprintln(stdout, renderStatusLine("Status", overall, health.Status, colorize))
	fmt.Fprintln(stdout, renderStatusLine("PID", statusInfo, strconv.Itoa(health.PID), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Workers running", statusInfo, yesNo(health.Workflow.Running), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Queue database", statusInfo, health.QueueDBPath, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Library database", statusInfo, health.LibraryDB, colorize))
	if health.Workflow.LastError != "" {
		fmt.Fprintln(stdout, renderStatusLine("Last error", statusWarn, health.Workflow.LastError, colorize))
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(stdout, line)
	}
	for _, dep := range health.Dependencies {
		detail := "Ready (command: " + dep.Command + ")"
		if !dep.Available {
			detail = strings.TrimSpace(dep.Detail)
		}
		fmt.Fprintln(stdout, renderStatusLine(dep.Name, dependencyKind(dep.Available, dep.Optional), detail, colorize))
	}
	for _, stage := range health.Workflow.StageHealth {
		kind := statusOK
		if !stage.Ready {
			kind = statusError
		}
		fmt.Fprintln(stdout, renderStatusLine("Handler "+stage.Name, kind, stage.Detail, colorize))
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Queue", colorize) {
		fmt.Fprintln(stdout, line)
	}
	rows := queueStatRows(health.Workflow.QueueStats)
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "Queue is empty")
		return
	}
	fmt.Fprint(stdout, renderTable([]column{
		{Header: "Lane"},
		{Header: "Status"},
		{Header: "Jobs", Align: alignRight},
	}, rows))
}

// queueStatRows splits "lane/status" keys into sorted table rows.
func queueStatRows(stats map[string]int) [][]string {
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		lane, status, _ := strings.Cut(key, "/")
		rows = append(rows, []string{lane, status, strconv.Itoa(stats[key])})
	}
	return rows
}
