package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voxaug"

// Metrics counts episodes through both negotiation phases.
type Metrics struct {
	Prepared  prometheus.Counter
	Applied   prometheus.Counter
	Failures  *prometheus.CounterVec // labels: phase, kind
	ApplyTime prometheus.Histogram
	// Inflation observes input voxels over output voxels per episode, i.e.
	// the margin the pipeline asks the data source to supply.
	Inflation prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Prepared: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "episodes_prepared_total",
			Help:      "Episodes whose input spec was negotiated.",
		}),
		Applied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "episodes_applied_total",
			Help:      "Episodes whose sample was transformed.",
		}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "episode_failures_total",
			Help:      "Failed episodes by phase and error kind.",
		}, []string{"phase", "kind"}),
		ApplyTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apply_seconds",
			Help:      "Time spent transforming one sample.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		Inflation: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "input_inflation_ratio",
			Help:      "Input voxels requested per output voxel.",
			Buckets:   []float64{1, 1.05, 1.1, 1.25, 1.5, 2, 3, 5},
		}),
	}
}

// Expose serves /metrics for g on port in the background. The returned
// server is stopped with Shutdown.
func Expose(port int, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
