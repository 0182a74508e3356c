package main

import (
	"github.com/spf13/cobra"

	"voxaug/internal/engine"
)

func newPreviewCommand(pipelinePath *string) *cobra.Command {
	var episodes int
	var metricsPort int

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Run the pipeline on synthetic samples and report each episode's shapes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engine.Bootstrap(cmd.Context(), engine.Config{
				PipelineYml: *pipelinePath,
				MetricsPort: metricsPort,
				Episodes:    episodes,
				Out:         cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}
			return e.Run(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&episodes, "episodes", "n", 0, "Episodes to run (default from the manifest)")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "Serve Prometheus metrics on this port while running")
	return cmd
}
