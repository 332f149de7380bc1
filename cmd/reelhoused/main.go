// Command reelhoused runs the reelhouse daemon in the foreground. It is the
// entrypoint for service managers; interactive use goes through
// "reelhouse daemon run".
package main

import (
	"log"

	"github.com/spf13/cobra"

	"reelhouse/internal/config"
	"reelhouse/internal/daemonrun"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		log.Fatalf("reelhoused: %v", err)
	}
}

func newCommand() *cobra.Command {
	var configPath, logLevel string
	cmd := &cobra.Command{
		Use:           "reelhoused",
		Short:         "Run the reelhouse transcoding daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, _, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}
