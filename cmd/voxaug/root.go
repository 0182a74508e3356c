package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"voxaug/internal/logging"
)

func newRootCommand() *cobra.Command {
	var pipelineFlag string
	var logLevel string
	var logJSON bool

	rootCmd := &cobra.Command{
		Use:           "voxaug",
		Short:         "Volumetric training-sample augmentation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts := logging.FromEnv()
			if cmd.Flags().Changed("log-level") {
				opts.Level = logLevel
			}
			if cmd.Flags().Changed("log-json") {
				opts.JSON = logJSON
			}
			opts.Output = cmd.ErrOrStderr()
			opts.Attrs = []slog.Attr{slog.String("command", cmd.Name())}
			logging.Configure(opts)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&pipelineFlag, "pipeline", "p", "pipeline.yml", "Pipeline manifest path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log as JSON")

	rootCmd.AddCommand(newNegotiateCommand(&pipelineFlag))
	rootCmd.AddCommand(newPreviewCommand(&pipelineFlag))
	return rootCmd
}
