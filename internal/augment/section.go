package augment

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat/sampleuv"

	"voxaug/internal/fault"
	"voxaug/internal/kernel"
	"voxaug/internal/tensor"
)

// Mode selects how a selected slice is perturbed.
type Mode int

const (
	// Full perturbs the whole slice with one kernel instance.
	Full Mode = iota
	// Partial splits the slice into quadrants at a random pivot and perturbs
	// each quadrant with probability one half, each with its own instance.
	Partial
	// Mixed tosses a fair coin per slice between Full and Partial.
	Mixed
)

func (m Mode) String() string {
	switch m {
	case Full:
		return "full"
	case Partial:
		return "partial"
	case Mixed:
		return "mixed"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// SectionConfig configures the section engine. Exactly one selection mode is
// active: probability mode when Prob > 0, count mode otherwise.
type SectionConfig struct {
	Kernel kernel.Constructor
	// MaxSec bounds the number of slices drawn in count mode.
	MaxSec int
	// Prob is the per-slice inclusion probability in probability mode.
	Prob   float64
	Skip   float64
	Mode   Mode
	Target Target
}

// Section perturbs randomly chosen depth slices. Every key of the active set
// receives the same slices, the same quadrant geometry and the same kernel
// instances.
type Section struct {
	cfg SectionConfig
}

func NewSection(cfg SectionConfig) (*Section, error) {
	if cfg.Kernel == nil {
		return nil, fault.Configf("section needs a kernel")
	}
	if err := checkProb("section prob", cfg.Prob); err != nil {
		return nil, err
	}
	if err := checkProb("section skip", cfg.Skip); err != nil {
		return nil, err
	}
	if cfg.Prob == 0 && cfg.MaxSec < 1 {
		return nil, fault.Configf("section max_sec must be at least 1, got %d", cfg.MaxSec)
	}
	if cfg.MaxSec < 0 {
		return nil, fault.Configf("section max_sec must be non-negative, got %d", cfg.MaxSec)
	}
	if cfg.Mode < Full || cfg.Mode > Mixed {
		return nil, fault.Configf("unknown section mode %d", int(cfg.Mode))
	}
	return &Section{cfg: cfg}, nil
}

func NewPartialSection(cfg SectionConfig) (*Section, error) {
	cfg.Mode = Partial
	return NewSection(cfg)
}

func NewMixedSection(cfg SectionConfig) (*Section, error) {
	cfg.Mode = Mixed
	return NewSection(cfg)
}

func (s *Section) Config() SectionConfig { return s.cfg }

type slicePlan struct {
	z      int
	full   kernel.Kernel
	rx, ry float64
	quads  [4]kernel.Kernel // nil entries are left untouched
}

type sectionPlan struct {
	planBase
	keys   []string
	depth  int
	skip   bool
	slices []slicePlan
}

// Depths lists the selected depth indices in ascending order.
func (p *sectionPlan) Depths() []int {
	out := make([]int, len(p.slices))
	for i, sp := range p.slices {
		out[i] = sp.z
	}
	return out
}

func (s *Section) Prepare(rng *rand.Rand, spec Spec, opts Options) (Spec, Plan, error) {
	keys, err := resolve(spec, s.cfg.Target.list(opts))
	if err != nil {
		return nil, nil, err
	}
	depth, err := commonDepth(spec, keys)
	if err != nil {
		return nil, nil, err
	}
	if s.cfg.Prob == 0 && depth <= s.cfg.MaxSec {
		return nil, nil, fault.Shapef("depth %d must exceed max_sec %d", depth, s.cfg.MaxSec)
	}

	p := &sectionPlan{planBase: planBase{s}, keys: keys, depth: depth}
	if coin(rng, s.cfg.Skip) {
		p.skip = true
		return spec.Clone(), p, nil
	}
	for _, z := range s.selectDepths(rng, depth) {
		p.slices = append(p.slices, s.planSlice(rng, z))
	}
	return spec.Clone(), p, nil
}

func (s *Section) selectDepths(rng *rand.Rand, depth int) []int {
	if s.cfg.Prob > 0 {
		var zs []int
		for z := 0; z < depth; z++ {
			if coin(rng, s.cfg.Prob) {
				zs = append(zs, z)
			}
		}
		return zs
	}
	zs := make([]int, 1+rng.IntN(s.cfg.MaxSec))
	sampleuv.WithoutReplacement(zs, depth, rng)
	slices.Sort(zs)
	return zs
}

func (s *Section) planSlice(rng *rand.Rand, z int) slicePlan {
	mode := s.cfg.Mode
	if mode == Mixed {
		mode = Partial
		if coin(rng, 0.5) {
			mode = Full
		}
	}
	sp := slicePlan{z: z}
	if mode == Full {
		sp.full = s.cfg.Kernel.New(rng)
		return sp
	}
	sp.rx, sp.ry = rng.Float64(), rng.Float64()
	for q := range sp.quads {
		if coin(rng, 0.5) {
			sp.quads[q] = s.cfg.Kernel.New(rng)
		}
	}
	return sp
}

func (s *Section) Apply(sample Sample, plan Plan) (Sample, error) {
	p, err := planFor[*sectionPlan](s, plan)
	if err != nil {
		return nil, err
	}
	src, err := lookup(sample, p.keys)
	if err != nil {
		return nil, err
	}
	for i, t := range src {
		if _, z, _, _ := t.Dims(); z != p.depth {
			return nil, fault.Shapef("%q has depth %d, prepared for %d", p.keys[i], z, p.depth)
		}
	}
	out := sample.Clone()
	if p.skip {
		return out, nil
	}
	dst := make([]*tensor.Tensor, len(src))
	for i, t := range src {
		dst[i] = t.Clone()
		out[p.keys[i]] = dst[i]
	}
	for _, sp := range p.slices {
		for _, t := range dst {
			sp.apply(t)
		}
	}
	return out, nil
}

// apply perturbs slice sp.z of t. Quadrants are split at the pivot scaled to
// t's own in-plane extent: [0] top-left, [1] bottom-left, [2] top-right,
// [3] bottom-right.
func (sp slicePlan) apply(t *tensor.Tensor) {
	r := t.Slice(sp.z)
	if sp.full != nil {
		sp.full.Apply(r)
		return
	}
	h, w := r.Height(), r.Width()
	y := int(math.Floor(sp.ry * float64(h)))
	x := int(math.Floor(sp.rx * float64(w)))
	quads := [4]tensor.Region{
		r.Sub(0, y, 0, x),
		r.Sub(y, h, 0, x),
		r.Sub(0, y, x, w),
		r.Sub(y, h, x, w),
	}
	for i, k := range sp.quads {
		if k != nil {
			k.Apply(quads[i])
		}
	}
}

func (s *Section) String() string {
	sel := fmt.Sprintf("max_sec=%d", s.cfg.MaxSec)
	if s.cfg.Prob > 0 {
		sel = fmt.Sprintf("prob=%.2f", s.cfg.Prob)
	}
	return fmt.Sprintf("Section(mode=%s, %s, skip=%.2f, target=%s, kernel=%s)",
		s.cfg.Mode, sel, s.cfg.Skip, s.cfg.Target, s.cfg.Kernel)
}

// VolumeConfig configures Volume.
type VolumeConfig struct {
	Kernel kernel.Constructor
	Skip   float64
	Target Target
	// Required makes an empty target list an error instead of meaning every key.
	Required bool
}

// Volume applies one kernel instance to the whole array of every key in its
// active set.
type Volume struct {
	cfg VolumeConfig
}

func NewVolume(cfg VolumeConfig) (*Volume, error) {
	if cfg.Kernel == nil {
		return nil, fault.Configf("volume needs a kernel")
	}
	if err := checkProb("volume skip", cfg.Skip); err != nil {
		return nil, err
	}
	return &Volume{cfg: cfg}, nil
}

type volumePlan struct {
	planBase
	keys []string
	k    kernel.Kernel // nil when skipped
}

func (v *Volume) Prepare(rng *rand.Rand, spec Spec, opts Options) (Spec, Plan, error) {
	var (
		keys []string
		err  error
	)
	if v.cfg.Required {
		keys, err = required(spec, v.cfg.Target.list(opts), v.cfg.Target.String())
	} else {
		keys, err = resolve(spec, v.cfg.Target.list(opts))
	}
	if err != nil {
		return nil, nil, err
	}
	p := &volumePlan{planBase: planBase{v}, keys: keys}
	if !coin(rng, v.cfg.Skip) {
		p.k = v.cfg.Kernel.New(rng)
	}
	return spec.Clone(), p, nil
}

func (v *Volume) Apply(sample Sample, plan Plan) (Sample, error) {
	p, err := planFor[*volumePlan](v, plan)
	if err != nil {
		return nil, err
	}
	src, err := lookup(sample, p.keys)
	if err != nil {
		return nil, err
	}
	out := sample.Clone()
	if p.k == nil {
		return out, nil
	}
	for i, t := range src {
		c := t.Clone()
		p.k.Apply(c.Whole())
		out[p.keys[i]] = c
	}
	return out, nil
}

func (v *Volume) String() string {
	return fmt.Sprintf("Volume(skip=%.2f, target=%s, kernel=%s)", v.cfg.Skip, v.cfg.Target, v.cfg.Kernel)
}
