package main

import (
	"github.com/spf13/cobra"

	"voxaug/internal/augment"
	"voxaug/internal/config"
	"voxaug/internal/fault"
	"voxaug/internal/pipeline"
)

func newNegotiateCommand(pipelinePath *string) *cobra.Command {
	var specFile string
	var shapes []string

	cmd := &cobra.Command{
		Use:   "negotiate",
		Short: "Print the input spec a pipeline needs for a requested output spec",
		Example: `  voxaug negotiate -p pipeline.yml --shape image=1,18,160,160 --shape label=18,160,160
  voxaug negotiate -p pipeline.yml --spec output.yml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			want, err := requestedSpec(specFile, shapes)
			if err != nil {
				return err
			}
			runner, err := pipeline.Compile(*pipelinePath, nil)
			if err != nil {
				return err
			}
			ep, err := runner.Prepare(want)
			if err != nil {
				return err
			}
			return config.WriteSpec(cmd.OutOrStdout(), ep.Input)
		},
	}
	cmd.Flags().StringVar(&specFile, "spec", "", "YAML file mapping each key to its output shape")
	cmd.Flags().StringArrayVar(&shapes, "shape", nil, "Output shape as key=d0,d1,... (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("spec", "shape")
	return cmd
}

func requestedSpec(specFile string, shapes []string) (augment.Spec, error) {
	if specFile != "" {
		return config.LoadOutputSpec(specFile)
	}
	if len(shapes) == 0 {
		return nil, fault.Configf("give --spec or at least one --shape")
	}
	want := make(augment.Spec, len(shapes))
	for _, s := range shapes {
		key, shape, err := config.ParseShapeFlag(s)
		if err != nil {
			return nil, err
		}
		want[key] = shape
	}
	return want, nil
}
