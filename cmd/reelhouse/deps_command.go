package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reelhouse/internal/api"
	"reelhouse/internal/deps"
	"reelhouse/internal/notifications"
	"reelhouse/internal/preflight"
)

// depsReport is the JSON form of `reelhouse deps`.
type depsReport struct {
	Dependencies []api.DependencyStatus `json:"dependencies"`
	Checks       []checkStatus          `json:"checks"`
}

type checkStatus struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

func newDepsCommand(ctx *commandContext) *cobra.Command {
	depsCmd := &cobra.Command{
		Use:   "deps",
		Short: "Check external tools, directories, and endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			checks := preflight.RunAll(cmd.Context(), cfg)
			report := depsReport{Dependencies: api.FromDependencies(statuses)}
			for _, check := range checks {
				report.Checks = append(report.Checks, checkStatus{Name: check.Name, Passed: check.Passed, Detail: check.Detail})
			}
			err = ctx.render(cmd, report, func() error {
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				for _, line := range renderSectionHeader("Dependencies", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, status := range statuses {
					detail := status.Description
					if !status.Available {
						detail = status.Detail
					}
					fmt.Fprintln(stdout, renderStatusLine(status.Name, dependencyKind(status.Available, status.Optional), detail, colorize))
				}
				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Preflight", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, check := range checks {
					fmt.Fprintln(stdout, renderStatusLine(check.Name, checkKind(check.Passed), check.Detail, colorize))
				}
				return nil
			})
			if err != nil {
				return err
			}
			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required dependencies missing", len(missing))
			}
			if failed := preflight.Failed(checks); len(failed) > 0 {
				return fmt.Errorf("%d preflight checks failed", len(failed))
			}
			return nil
		},
	}
	depsCmd.AddCommand(newNotifyTestCommand(ctx))
	return depsCmd
}

func newNotifyTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test failure alert to the configured ntfy topic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Notifications.NtfyTopic == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No ntfy topic configured; alerts are disabled")
				return nil
			}
			sendCtx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			if err := notifications.NewAlerter(cfg).Test(sendCtx); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
