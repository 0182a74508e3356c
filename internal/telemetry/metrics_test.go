package telemetry

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.Prepared.Inc()
	m.Failures.WithLabelValues("apply", "shape_mismatch").Inc()
	m.ApplyTime.Observe(0.01)

	if got := testutil.ToFloat64(m.Prepared); got != 1 {
		t.Fatalf("want 1 prepared, got %v", got)
	}
	want := `
# HELP voxaug_episode_failures_total Failed episodes by phase and error kind.
# TYPE voxaug_episode_failures_total counter
voxaug_episode_failures_total{kind="shape_mismatch",phase="apply"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "voxaug_episode_failures_total"); err != nil {
		t.Fatalf("failures metric: %v", err)
	}
	if n := testutil.CollectAndCount(m.ApplyTime); n != 1 {
		t.Fatalf("want one histogram series, got %d", n)
	}

	// A second set on a fresh registry must not collide.
	NewMetrics(prometheus.NewRegistry())
}
