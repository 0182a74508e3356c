package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"voxaug/internal/augment"
	"voxaug/internal/fault"
	"voxaug/internal/manifest"
	"voxaug/internal/telemetry"
	"voxaug/internal/tensor"
)

func rampFetch(spec augment.Spec) (augment.Sample, error) {
	s := make(augment.Sample, len(spec))
	for k, shape := range spec {
		c, err := tensor.Canonical(shape)
		if err != nil {
			return nil, err
		}
		r := tensor.Ramp(c[0], c[1], c[2], c[3])
		n := float32(r.Len())
		for i := range r.Data() {
			r.Data()[i] /= n
		}
		s[k] = r
	}
	return s, nil
}

const testPipeline = `seed: 7
options:
  imgs: [image]
  segs: [label]
pipeline:
  type: compose
  children:
    - type: flip_rotate
    - type: mixed_missing_section
      max_sec: [2, 1]
    - type: section
      mode: mixed
      max_sec: [2]
      kernel: {name: blur, params: {sigma: 1.5, random: true}}
    - type: blend
      children:
        - type: misalign
          disp: [1, 6]
        - type: slip_misalign
          disp: [1, 6]
          interp: true
        - type: misalign_plus_missing
          disp: [1, 6]
    - type: lost_sections
      max_sec: [2]
    - type: lost_plus_missing
      random: true
    - type: gray_mixed
      contrast: 0.3
      brightness: 0.3
    - type: noise
      sigma_min: 0.01
      sigma_max: 0.05
    - type: label
      fragments: true
`

func compileTest(t *testing.T, body string) (*Runner, *telemetry.Metrics) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write pipeline: %v", err)
	}
	m := telemetry.NewMetrics(prometheus.NewRegistry())
	r, err := Compile(path, m)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return r, m
}

var want = augment.Spec{"image": {1, 12, 24, 24}, "label": {12, 24, 24}}

func TestCompile_RunsEndToEnd(t *testing.T) {
	r, m := compileTest(t, testPipeline)
	if r.Manifest().Seed != 7 {
		t.Fatalf("want seed 7, got %d", r.Manifest().Seed)
	}
	for i := 0; i < 5; i++ {
		ep, out, err := r.Run(want, rampFetch)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if _, ok := out["label"+augment.FragmentSuffix]; !ok {
			t.Fatalf("run %d: fragment table missing", i)
		}
		delete(out, "label"+augment.FragmentSuffix)
		if got := out.Spec(); !got.Equal(want) {
			t.Fatalf("run %d (%s): want %v, got %v", i, ep.ID, want, got)
		}
	}
	if got := testutil.ToFloat64(m.Applied); got != 5 {
		t.Fatalf("want 5 applied episodes, got %v", got)
	}
	if got := testutil.ToFloat64(m.Prepared); got != 5 {
		t.Fatalf("want 5 prepared episodes, got %v", got)
	}
}

func TestRunner_SameSeedSameEpisodes(t *testing.T) {
	a, _ := compileTest(t, testPipeline)
	b, _ := compileTest(t, testPipeline)
	for i := 0; i < 3; i++ {
		_, x, err := a.Run(want, rampFetch)
		if err != nil {
			t.Fatalf("run a: %v", err)
		}
		_, y, err := b.Run(want, rampFetch)
		if err != nil {
			t.Fatalf("run b: %v", err)
		}
		for _, k := range x.Keys() {
			if !x[k].Equal(y[k]) {
				t.Fatalf("episode %d key %q differs between equally seeded runners", i, k)
			}
		}
	}
}

func TestRunner_ApplyRejectsMismatchedSample(t *testing.T) {
	r, m := compileTest(t, testPipeline)
	ep, err := r.Prepare(want)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	sample, _ := rampFetch(want)
	if _, err := r.Apply(ep, sample); !errors.Is(err, fault.ErrShapeMismatch) {
		t.Fatalf("want shape mismatch, got %v", err)
	}
	if _, err := r.Apply(nil, sample); !errors.Is(err, fault.ErrContractViolation) {
		t.Fatalf("want contract violation, got %v", err)
	}
	if got := testutil.ToFloat64(m.Failures.WithLabelValues("apply", "shape_mismatch")); got != 1 {
		t.Fatalf("want one shape failure, got %v", got)
	}
}

func TestRunner_PrepareFailureIsCounted(t *testing.T) {
	r, m := compileTest(t, testPipeline)
	if _, err := r.Prepare(augment.Spec{"image": {1, 1, 24, 24}, "label": {1, 24, 24}}); !errors.Is(err, fault.ErrShapeMismatch) {
		t.Fatalf("want shape mismatch for a shallow request, got %v", err)
	}
	if got := testutil.ToFloat64(m.Failures.WithLabelValues("prepare", "shape_mismatch")); got != 1 {
		t.Fatalf("want one prepare failure, got %v", got)
	}
}

func TestRunner_FetchErrorPropagates(t *testing.T) {
	r, m := compileTest(t, testPipeline)
	boom := errors.New("volume unavailable")
	_, _, err := r.Run(want, func(augment.Spec) (augment.Sample, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("want fetch error, got %v", err)
	}
	if got := testutil.ToFloat64(m.Failures.WithLabelValues("fetch", "other")); got != 1 {
		t.Fatalf("want one fetch failure, got %v", got)
	}
}

func TestRunner_ConcurrentApply(t *testing.T) {
	r, _ := compileTest(t, testPipeline)
	eps := make([]*Episode, 8)
	for i := range eps {
		ep, err := r.Prepare(want)
		if err != nil {
			t.Fatalf("prepare: %v", err)
		}
		eps[i] = ep
	}
	var wg sync.WaitGroup
	errs := make([]error, len(eps))
	for i, ep := range eps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sample, err := rampFetch(ep.Input)
			if err == nil {
				_, err = r.Apply(ep, sample)
			}
			errs[i] = err
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("episode %d: %v", i, err)
		}
	}
}

func TestBuild_EveryNodeType(t *testing.T) {
	axis, margin := -1, 1
	sigma := 0.1
	nodes := []manifest.Node{
		{Type: manifest.TypeFlip, Axis: &axis},
		{Type: manifest.TypeTranspose, Axes: []int{0, 1, 3, 2}},
		{Type: manifest.TypeFlipRotate},
		{Type: manifest.TypeSection, MaxSec: []int{1}, Kernel: &manifest.KernelSpec{Name: "fill"}},
		{Type: manifest.TypePartialSection, MaxSec: []int{1}, Kernel: &manifest.KernelSpec{Name: "fill"}},
		{Type: manifest.TypeMixedSection, MaxSec: []int{1}, Kernel: &manifest.KernelSpec{Name: "fill"}, Target: "imgs"},
		{Type: manifest.TypeMissingSection, MaxSec: []int{1}},
		{Type: manifest.TypePartialMissing, MaxSec: []int{1}},
		{Type: manifest.TypeMixedMissing, MaxSec: []int{1}},
		{Type: manifest.TypeBlurrySection, MaxSec: []int{1}, Sigma: 2},
		{Type: manifest.TypePartialBlurry, MaxSec: []int{1}, Sigma: 2},
		{Type: manifest.TypeMixedBlurry, MaxSec: []int{1, 2}, Sigma: 2},
		{Type: manifest.TypeMisalign},
		{Type: manifest.TypeMisalignPlusMissing, Disp: []int{1, 3}, Margin: &margin},
		{Type: manifest.TypeSlipMisalign},
		{Type: manifest.TypeLostSection},
		{Type: manifest.TypeLostSections, MaxSec: []int{2}},
		{Type: manifest.TypeLostPlusMissing},
		{Type: manifest.TypeGray2D},
		{Type: manifest.TypeGray3D},
		{Type: manifest.TypeGrayMixed},
		{Type: manifest.TypeNoise, SigmaMax: &sigma},
		{Type: manifest.TypeLabel},
		{Type: manifest.TypeWarp},
	}
	root := manifest.Node{Type: manifest.TypeBlend, Children: nodes}
	a, err := Build(root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := len(a.(*augment.Blend).Augments()); got != len(nodes) {
		t.Fatalf("want %d children, got %d", len(nodes), got)
	}
}

func TestBuild_Errors(t *testing.T) {
	axis := 0
	tests := []struct {
		name string
		node manifest.Node
		path string
	}{
		{"unknown type", manifest.Node{Type: "shear"}, "pipeline (shear)"},
		{"no type", manifest.Node{}, "pipeline ()"},
		{"flip without axis", manifest.Node{Type: manifest.TypeFlip}, "pipeline (flip)"},
		{"section without kernel", manifest.Node{Type: manifest.TypeSection, MaxSec: []int{1}}, "pipeline (section)"},
		{"unknown kernel", manifest.Node{Type: manifest.TypeSection, MaxSec: []int{1}, Kernel: &manifest.KernelSpec{Name: "sharpen"}}, "pipeline (section)"},
		{"bad mode", manifest.Node{Type: manifest.TypeSection, MaxSec: []int{1}, Mode: "half", Kernel: &manifest.KernelSpec{Name: "fill"}}, "pipeline (section)"},
		{"two max_sec", manifest.Node{Type: manifest.TypeMissingSection, MaxSec: []int{1, 2}}, "pipeline (missing_section)"},
		{"bad disp", manifest.Node{Type: manifest.TypeMisalign, Disp: []int{4}}, "pipeline (misalign)"},
		{"unknown warper", manifest.Node{Type: manifest.TypeWarp, Warper: "twist"}, "pipeline (warp)"},
		{"empty compose", manifest.Node{Type: manifest.TypeCompose}, "pipeline (compose)"},
		{"nested", manifest.Node{Type: manifest.TypeCompose, Children: []manifest.Node{
			{Type: manifest.TypeFlip, Axis: &axis},
			{Type: manifest.TypeFlip, Axis: &axis, Prob: new(float64)},
			{Type: manifest.TypeBlend, Children: []manifest.Node{{Type: "shear"}}},
		}}, "pipeline.children[2].children[0] (shear)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(tc.node)
			if !errors.Is(err, fault.ErrConfiguration) {
				t.Fatalf("want configuration error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.path) {
				t.Fatalf("want %q in %q", tc.path, err.Error())
			}
		})
	}
}

func TestBuild_RegisteredWarper(t *testing.T) {
	var calls atomic.Int32
	RegisterWarper("identity-test", augment.WarperFunc(func(s augment.Sample, _ uint64) (augment.Sample, error) {
		calls.Add(1)
		return s, nil
	}))
	a, err := Build(manifest.Node{Type: manifest.TypeWarp, Warper: "identity-test"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	r := NewRunner(a, augment.Options{}, 1, nil)
	if _, _, err := r.Run(augment.Spec{"image": {1, 2, 2, 2}}, rampFetch); err != nil {
		t.Fatalf("run: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("want one warper call, got %d", calls.Load())
	}
}
