package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"reelhouse/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Queue processing jobs on the daemon",
	}

	var callbackURL string
	var tier string
	convertCmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert a library file to a streamable MP4",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Convert(cmd.Context(), api.ConvertRequest{
					Input:       absPath(args[0]),
					Output:      absPath(args[1]),
					CallbackURL: callbackURL,
					Tier:        tier,
				})
				if err != nil {
					return err
				}
				return ctx.render(cmd, resp, func() error {
					printSubmitted(cmd, resp)
					return nil
				})
			})
		},
	}
	convertCmd.Flags().StringVar(&callbackURL, "callback", "", "URL notified with the conversion outcome")
	convertCmd.Flags().StringVar(&tier, "tier", "", "Output caps to apply (small or large)")

	extractCmd := &cobra.Command{
		Use:   "extract-subtitles <input>",
		Short: "Extract text subtitle tracks to SRT and WebVTT sidecars",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.ExtractSubtitles(cmd.Context(), absPath(args[0]))
				if err != nil {
					return err
				}
				return ctx.render(cmd, resp, func() error {
					printSubmitted(cmd, resp)
					return nil
				})
			})
		},
	}

	convertSubsCmd := &cobra.Command{
		Use:   "convert-subtitles <srt-file-or-directory>",
		Short: "Convert SRT sidecars to WebVTT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.ConvertSubtitles(cmd.Context(), absPath(args[0]))
				if err != nil {
					return err
				}
				return ctx.render(cmd, resp, func() error {
					printSubmitted(cmd, resp)
					return nil
				})
			})
		},
	}

	submitCmd.AddCommand(convertCmd, extractCmd, convertSubsCmd)
	return submitCmd
}

// absPath resolves relative arguments against the working directory. Paths
// are passed through untouched when that fails so the daemon reports the
// error.
func absPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

func printSubmitted(cmd *cobra.Command, resp *api.SubmitResponse) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Queued job %d (%s) in %s lane\n", resp.Job.ID, resp.Job.Kind, resp.Job.Lane)
	for _, related := range resp.Related {
		fmt.Fprintf(out, "Queued related job %d (%s)\n", related.ID, related.Kind)
	}
}
