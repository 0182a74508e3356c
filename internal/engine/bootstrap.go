package engine

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"voxaug/internal/config"
	"voxaug/internal/pipeline"
	"voxaug/internal/telemetry"
)

type Config struct {
	PipelineYml string
	// MetricsPort overrides metrics.port from the manifest when positive. No
	// endpoint is served when both are zero.
	MetricsPort int
	// Episodes overrides preview.episodes from the manifest when positive.
	Episodes int
	// Out receives one YAML document per episode; stdout when nil.
	Out io.Writer
}

func Bootstrap(ctx context.Context, cfg Config) (*Engine, error) {
	// 1. pipeline runner
	reg := prometheus.NewRegistry()
	runner, err := pipeline.Compile(cfg.PipelineYml, telemetry.NewMetrics(reg))
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	mf := runner.Manifest()

	// 2. preview request
	want, err := config.SpecFromMap(mf.Preview.Spec)
	if err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}
	episodes := mf.Preview.Episodes
	if cfg.Episodes > 0 {
		episodes = cfg.Episodes
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	e := &Engine{
		runner:   runner,
		want:     want,
		episodes: episodes,
		out:      out,
		fetch:    Synthesize(runner.Options()),
	}

	// 3. metrics
	port := mf.Metrics.Port
	if cfg.MetricsPort > 0 {
		port = cfg.MetricsPort
	}
	if port > 0 {
		e.metrics = telemetry.Expose(port, reg)
	}
	return e, nil
}
