package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"reelhouse/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and prune queued jobs",
	}

	var lane, status string
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *api.Client) error {
				jobs, err := client.Jobs(cmd.Context(), lane, status, limit)
				if err != nil {
					return err
				}
				return ctx.render(cmd, jobs, func() error {
					if len(jobs) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
						return nil
					}
					fmt.Fprint(cmd.OutOrStdout(), renderJobTable(jobs))
					return nil
				})
			})
		},
	}
	listCmd.Flags().StringVar(&lane, "lane", "", "Only jobs in this lane (conversion or subtitles)")
	listCmd.Flags().StringVar(&status, "status", "", "Comma-separated statuses (queued,running,succeeded,failed)")
	listCmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of jobs to show (0 for all)")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.Job(cmd.Context(), id)
				if err != nil {
					return err
				}
				return ctx.render(cmd, job, func() error {
					printJob(cmd, job)
					return nil
				})
			})
		},
	}

	var olderThan time.Duration
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished jobs older than a cutoff",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *api.Client) error {
				removed, err := client.PruneJobs(cmd.Context(), olderThan)
				if err != nil {
					return err
				}
				return ctx.render(cmd, api.PruneResponse{Removed: removed}, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %d finished jobs\n", removed)
					return nil
				})
			})
		},
	}
	pruneCmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Age of finished jobs to remove")

	jobsCmd.AddCommand(listCmd, showCmd, pruneCmd)
	return jobsCmd
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}

func renderJobTable(jobs []api.Job) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			job.Kind,
			job.Status,
			job.Input,
			job.CallbackState,
			job.EnqueuedAt,
		})
	}
	return renderTable([]column{
		{Header: "ID", Align: alignRight},
		{Header: "Kind"},
		{Header: "Status"},
		{Header: "Input", MaxWidth: 60},
		{Header: "Callback"},
		{Header: "Enqueued"},
	}, rows)
}

func printJob(cmd *cobra.Command, job *api.Job) {
	out := cmd.OutOrStdout()
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(out, "%-14s %s\n", label+":", value)
		}
	}
	field("ID", strconv.FormatInt(job.ID, 10))
	field("Correlation", job.CorrelationID)
	field("Kind", job.Kind)
	field("Lane", job.Lane)
	field("Status", job.Status)
	field("Input", job.Input)
	field("Output", job.Output)
	field("Tier", job.Tier)
	field("Enqueued", job.EnqueuedAt)
	field("Started", job.StartedAt)
	field("Finished", job.FinishedAt)
	field("Heartbeat", job.HeartbeatAt)
	field("Worker", job.WorkerID)
	field("Callback", job.CallbackURL)
	field("Callback state", job.CallbackState)
	field("Error", job.ErrorMessage)
}
