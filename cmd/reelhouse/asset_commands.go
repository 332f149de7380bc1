package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reelhouse/internal/api"
)

func newAssetCommand(ctx *commandContext) *cobra.Command {
	assetCmd := &cobra.Command{
		Use:     "asset",
		Aliases: []string{"assets"},
		Short:   "Manage library assets",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List library assets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *api.Client) error {
				assets, err := client.Assets(cmd.Context())
				if err != nil {
					return err
				}
				return ctx.render(cmd, assets, func() error {
					if len(assets) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "Library is empty")
						return nil
					}
					fmt.Fprint(cmd.OutOrStdout(), renderAssetTable(assets))
					return nil
				})
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one asset and its artifact paths",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.assetAction(cmd, args[0], func(client *api.Client, id int64) (*api.Asset, error) {
				return client.Asset(cmd.Context(), id)
			})
		},
	}

	var admit api.AdmitRequest
	var season, episode int
	admitCmd := &cobra.Command{
		Use:   "admit <triage-file>",
		Short: "Move a triage file into the library as a new asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := admit
			req.TriagePath = args[0]
			if cmd.Flags().Changed("season") {
				req.Season = &season
			}
			if cmd.Flags().Changed("episode") {
				req.Episode = &episode
			}
			return ctx.withClient(func(client *api.Client) error {
				asset, err := client.AdmitAsset(cmd.Context(), req)
				if err != nil {
					return err
				}
				return ctx.render(cmd, asset, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Admitted asset %d as %q\n", asset.ID, asset.BaseName)
					return nil
				})
			})
		},
	}
	admitCmd.Flags().StringVar(&admit.Title, "title", "", "Asset title")
	admitCmd.Flags().IntVar(&admit.Year, "year", 0, "Release year")
	admitCmd.Flags().IntVar(&season, "season", 0, "Season number for episodes")
	admitCmd.Flags().IntVar(&episode, "episode", 0, "Episode number for episodes")
	admitCmd.Flags().StringVar(&admit.CatalogID, "catalog-id", "", "External catalog identifier shared by related assets")
	_ = admitCmd.MarkFlagRequired("title")

	var tier string
	convertCmd := &cobra.Command{
		Use:   "convert <id>",
		Short: "Submit an asset's original for conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.assetAction(cmd, args[0], func(client *api.Client, id int64) (*api.Asset, error) {
				return client.ConvertAsset(cmd.Context(), id, tier)
			})
		},
	}
	convertCmd.Flags().StringVar(&tier, "tier", "", "Write a small or large tier artifact instead of the converted file")

	durationCmd := &cobra.Command{
		Use:   "duration <id>",
		Short: "Probe and store an asset's running time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.assetAction(cmd, args[0], func(client *api.Client, id int64) (*api.Asset, error) {
				return client.RefreshDuration(cmd.Context(), id)
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an asset and every artifact derived from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				if err := client.DeleteAsset(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted asset %d\n", id)
				return nil
			})
		},
	}

	triageCmd := &cobra.Command{
		Use:   "triage",
		Short: "List video files waiting in the triage directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *api.Client) error {
				videos, err := client.Untriaged(cmd.Context())
				if err != nil {
					return err
				}
				return ctx.render(cmd, videos, func() error {
					if len(videos) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "Nothing to triage")
						return nil
					}
					for _, video := range videos {
						fmt.Fprintln(cmd.OutOrStdout(), video)
					}
					return nil
				})
			})
		},
	}

	assetCmd.AddCommand(listCmd, showCmd, admitCmd, convertCmd, durationCmd, deleteCmd, triageCmd)
	return assetCmd
}

func (c *commandContext) assetAction(cmd *cobra.Command, rawID string, fn func(*api.Client, int64) (*api.Asset, error)) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	return c.withClient(func(client *api.Client) error {
		asset, err := fn(client, id)
		if err != nil {
			return err
		}
		return c.render(cmd, asset, func() error {
			printAsset(cmd, asset)
			return nil
		})
	})
}

func renderAssetTable(assets []api.Asset) string {
	rows := make([][]string, 0, len(assets))
	for _, asset := range assets {
		rows = append(rows, []string{
			strconv.FormatInt(asset.ID, 10),
			asset.BaseName,
			asset.MediaType,
			asset.EffectiveStatus,
			formatDuration(asset.DurationSeconds),
		})
	}
	return renderTable([]column{
		{Header: "ID", Align: alignRight},
		{Header: "Name", MaxWidth: 60},
		{Header: "Type"},
		{Header: "Status"},
		{Header: "Duration", Align: alignRight},
	}, rows)
}

func formatDuration(seconds *int) string {
	if seconds == nil {
		return "-"
	}
	s := *seconds
	return fmt.Sprintf("%d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

func printAsset(cmd *cobra.Command, asset *api.Asset) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-12s %d\n", "ID:", asset.ID)
	fmt.Fprintf(out, "%-12s %s\n", "Name:", asset.BaseName)
	fmt.Fprintf(out, "%-12s %s\n", "Type:", asset.MediaType)
	if asset.CatalogID != "" {
		fmt.Fprintf(out, "%-12s %s\n", "Catalog ID:", asset.CatalogID)
	}
	fmt.Fprintf(out, "%-12s %s (stored %s)\n", "Status:", asset.EffectiveStatus, asset.Status)
	fmt.Fprintf(out, "%-12s %s\n", "Duration:", formatDuration(asset.DurationSeconds))
	fmt.Fprintf(out, "%-12s %s\n", "Original:", asset.OriginalPath)
	fmt.Fprintf(out, "%-12s %s\n", "Converted:", asset.ConvertedPath)
	fmt.Fprintf(out, "%-12s %s\n", "Triaged from:", asset.TriagePath)
}
