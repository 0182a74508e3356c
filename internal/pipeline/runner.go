package pipeline

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"voxaug/internal/augment"
	"voxaug/internal/fault"
	"voxaug/internal/logging"
	"voxaug/internal/manifest"
	"voxaug/internal/telemetry"
	"voxaug/internal/tensor"
)

// Episode is one negotiated prepare/apply cycle.
type Episode struct {
	ID uuid.UUID
	// Output is the spec the caller asked for; Input the spec the sample
	// handed to Apply must have.
	Output augment.Spec
	Input  augment.Spec

	plan augment.Plan
}

// Fetch materializes a sample shaped like spec, e.g. by cropping a larger
// volume.
type Fetch func(spec augment.Spec) (augment.Sample, error)

// Runner owns a compiled augment tree and the episode generator. Each
// episode draws its own generator from the runner's, so episodes may be
// applied concurrently once prepared.
type Runner struct {
	root     augment.Augment
	opts     augment.Options
	metrics  *telemetry.Metrics
	log      *slog.Logger
	manifest manifest.File

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRunner seeds the episode generator with seed. A nil m gets metrics on a
// private registry.
func NewRunner(root augment.Augment, opts augment.Options, seed uint64, m *telemetry.Metrics) *Runner {
	if m == nil {
		m = telemetry.NewMetrics(prometheus.NewRegistry())
	}
	return &Runner{
		root:    root,
		opts:    opts,
		metrics: m,
		log:     logging.Component("runner"),
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (r *Runner) Root() augment.Augment { return r.root }

func (r *Runner) Options() augment.Options { return r.opts }

// Manifest is the file the runner was compiled from; zero for runners built
// with NewRunner.
func (r *Runner) Manifest() manifest.File { return r.manifest }

func (r *Runner) episodeRNG() *rand.Rand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return rand.New(rand.NewPCG(r.rng.Uint64(), r.rng.Uint64()))
}

// Prepare negotiates the input spec for want.
func (r *Runner) Prepare(want augment.Spec) (*Episode, error) {
	ep := &Episode{ID: uuid.New(), Output: want.Clone()}
	in, plan, err := r.root.Prepare(r.episodeRNG(), want, r.opts)
	if err != nil {
		r.fail("prepare", ep, err)
		return nil, err
	}
	ep.Input, ep.plan = in, plan
	r.metrics.Prepared.Inc()
	r.metrics.Inflation.Observe(inflation(in, want))
	r.log.Debug("episode prepared", "episode", ep.ID, "output", want, "input", in)
	return ep, nil
}

// Apply transforms sample, which must match ep.Input.
func (r *Runner) Apply(ep *Episode, sample augment.Sample) (augment.Sample, error) {
	if ep == nil || ep.plan == nil {
		err := fault.Contractf("apply without prepare")
		r.fail("apply", &Episode{}, err)
		return nil, err
	}
	if got := sample.Spec(); !got.Equal(ep.Input) {
		err := fault.Shapef("sample %v does not match negotiated %v", got, ep.Input)
		r.fail("apply", ep, err)
		return nil, err
	}
	start := time.Now()
	out, err := r.root.Apply(sample, ep.plan)
	if err != nil {
		r.fail("apply", ep, err)
		return nil, err
	}
	r.metrics.ApplyTime.Observe(time.Since(start).Seconds())
	r.metrics.Applied.Inc()
	r.log.Debug("episode applied", "episode", ep.ID, "elapsed", time.Since(start))
	return out, nil
}

// Run prepares an episode, fetches its input and applies it.
func (r *Runner) Run(want augment.Spec, fetch Fetch) (*Episode, augment.Sample, error) {
	ep, err := r.Prepare(want)
	if err != nil {
		return nil, nil, err
	}
	sample, err := fetch(ep.Input)
	if err != nil {
		r.fail("fetch", ep, err)
		return ep, nil, err
	}
	out, err := r.Apply(ep, sample)
	return ep, out, err
}

func (r *Runner) fail(phase string, ep *Episode, err error) {
	kind := fault.KindOf(err)
	r.metrics.Failures.WithLabelValues(phase, kind).Inc()
	r.log.Warn("episode failed", "episode", ep.ID, "phase", phase, "kind", kind, "err", err)
}

// inflation is the ratio of input to output voxels.
func inflation(in, out augment.Spec) float64 {
	a, b := voxels(in), voxels(out)
	if b == 0 {
		return 1
	}
	return float64(a) / float64(b)
}

func voxels(spec augment.Spec) int {
	n := 0
	for _, shape := range spec {
		c, err := tensor.Canonical(shape)
		if err != nil {
			continue
		}
		n += c[0] * c[1] * c[2] * c[3]
	}
	return n
}
