package engine

import (
	"context"
	"io"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"voxaug/internal/augment"
	"voxaug/internal/config"
	"voxaug/internal/logging"
	"voxaug/internal/pipeline"
)

type Engine struct {
	runner   *pipeline.Runner
	want     augment.Spec
	episodes int
	out      io.Writer
	fetch    pipeline.Fetch
	metrics  *http.Server
}

// Run previews the pipeline: it negotiates, synthesizes and transforms the
// configured number of episodes and reports each one's shapes.
func (e *Engine) Run(ctx context.Context) error {
	defer e.stopMetrics()
	log := logging.Component("engine")
	enc := yaml.NewEncoder(e.out)
	defer enc.Close()

	for i := 0; i < e.episodes; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ep, out, err := e.runner.Run(e.want, e.fetch)
		if err != nil {
			return err
		}
		log.Info("episode done", "episode", ep.ID, "index", i, "keys", len(out))
		if err := enc.Encode(report(ep, out)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) stopMetrics() {
	if e.metrics == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = e.metrics.Shutdown(ctx)
}

func report(ep *pipeline.Episode, out augment.Sample) *yaml.Node {
	scalar := func(v string) *yaml.Node { return &yaml.Node{Kind: yaml.ScalarNode, Value: v} }
	return &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		scalar("episode"), scalar(ep.ID.String()),
		scalar("input"), config.SpecNode(ep.Input),
		scalar("output"), config.SpecNode(out.Spec()),
	}}
}
