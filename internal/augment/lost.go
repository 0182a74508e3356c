package augment

import (
	"fmt"
	"math/rand/v2"

	"voxaug/internal/fault"
	"voxaug/internal/tensor"
)

// LostSection simulates nsec consecutive sections lost at a random cut.
// Prepare asks for nsec extra slices, which Apply drops.
type LostSection struct {
	nsec int
	skip float64
}

func NewLostSection(nsec int, skip float64) (*LostSection, error) {
	if nsec < 1 {
		return nil, fault.Configf("lost section nsec must be at least 1, got %d", nsec)
	}
	if err := checkProb("lost section skip", skip); err != nil {
		return nil, err
	}
	return &LostSection{nsec: nsec, skip: skip}, nil
}

// NewLostSections chains maxSec independent lost sections. Each instance
// negotiates against the depth its successor asked for, so inflation adds up.
func NewLostSections(maxSec, nsec int, skip float64) (*Compose, error) {
	if maxSec < 1 {
		return nil, fault.Configf("lost sections max_sec must be at least 1, got %d", maxSec)
	}
	augs := make([]Augment, maxSec)
	for i := range augs {
		l, err := NewLostSection(nsec, skip)
		if err != nil {
			return nil, err
		}
		augs[i] = l
	}
	return NewCompose(augs...), nil
}

type lostPlan struct {
	planBase
	keys  []string
	zloc  int // 0 when skipped
	depth int // depth Apply expects
	fill  float32
	imgs  map[string]bool
}

// Cut reports the first dropped index, or 0 when the episode was skipped.
func (p *lostPlan) Cut() int { return p.zloc }

// drawCut tosses the skip coin, then picks a cut in [1, Z) and inflates every
// depth by grow.
func drawCut(rng *rand.Rand, src Augment, spec Spec, skip float64, grow int) (Spec, *lostPlan, error) {
	p := &lostPlan{planBase: planBase{src}, keys: spec.Keys()}
	if coin(rng, skip) {
		return spec.Clone(), p, nil
	}
	depth, err := commonDepth(spec, spec.Keys())
	if err != nil {
		return nil, nil, err
	}
	if depth < 2 {
		return nil, nil, fault.Shapef("depth %d is too shallow for a lost section", depth)
	}
	p.zloc = 1 + rng.IntN(depth-1)
	p.depth = depth + grow
	out := make(Spec, len(spec))
	for k, shape := range spec {
		out[k] = shape.with(-3, p.depth)
	}
	return out, p, nil
}

func (p *lostPlan) check(key string, t *tensor.Tensor) error {
	if _, z, _, _ := t.Dims(); z != p.depth {
		return fault.Shapef("%q has depth %d, prepared for %d", key, z, p.depth)
	}
	return nil
}

func (l *LostSection) Prepare(rng *rand.Rand, spec Spec, _ Options) (Spec, Plan, error) {
	return drawCut(rng, l, spec, l.skip, l.nsec)
}

func (l *LostSection) Apply(sample Sample, plan Plan) (Sample, error) {
	p, err := planFor[*lostPlan](l, plan)
	if err != nil {
		return nil, err
	}
	src, err := lookup(sample, p.keys)
	if err != nil {
		return nil, err
	}
	out := sample.Clone()
	if p.zloc == 0 {
		return out, nil
	}
	for i, k := range p.keys {
		in := src[i]
		if err := p.check(k, in); err != nil {
			return nil, err
		}
		before, err := in.SliceZ(0, p.zloc)
		if err != nil {
			return nil, err
		}
		after, err := in.SliceZ(p.zloc+l.nsec, p.depth)
		if err != nil {
			return nil, err
		}
		if out[k], err = tensor.ConcatZ(before, after); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (l *LostSection) String() string {
	return fmt.Sprintf("LostSection(nsec=%d, skip=%.2f)", l.nsec, l.skip)
}

// lostPlusMissingSpan is the number of input slices LostPlusMissing consumes
// at the cut; it emits one in their place.
const lostPlusMissingSpan = 3

// LostPlusMissing consumes three slices at the cut and emits one: image keys
// get a fill value there, other keys the middle real slice. The net depth
// shrink is two.
type LostPlusMissing struct {
	skip   float64
	value  float64
	random bool
}

func NewLostPlusMissing(skip, value float64, random bool) (*LostPlusMissing, error) {
	if err := checkProb("lost plus missing skip", skip); err != nil {
		return nil, err
	}
	return &LostPlusMissing{skip: skip, value: max(0, min(1, value)), random: random}, nil
}

func (l *LostPlusMissing) Prepare(rng *rand.Rand, spec Spec, opts Options) (Spec, Plan, error) {
	imgs, err := required(spec, opts.Imgs, "image")
	if err != nil {
		return nil, nil, err
	}
	out, p, err := drawCut(rng, l, spec, l.skip, lostPlusMissingSpan-1)
	if err != nil {
		return nil, nil, err
	}
	if p.zloc == 0 {
		return out, p, nil
	}
	p.fill = float32(l.value)
	if l.random {
		p.fill = float32(rng.Float64())
	}
	p.imgs = make(map[string]bool, len(imgs))
	for _, k := range imgs {
		p.imgs[k] = true
	}
	return out, p, nil
}

func (l *LostPlusMissing) Apply(sample Sample, plan Plan) (Sample, error) {
	p, err := planFor[*lostPlan](l, plan)
	if err != nil {
		return nil, err
	}
	src, err := lookup(sample, p.keys)
	if err != nil {
		return nil, err
	}
	out := sample.Clone()
	if p.zloc == 0 {
		return out, nil
	}
	for i, k := range p.keys {
		in := src[i]
		if err := p.check(k, in); err != nil {
			return nil, err
		}
		c, z, y, x := in.Dims()
		w := tensor.New(c, z-lostPlusMissingSpan+1, y, x)
		for zi := 0; zi < w.Shape()[tensor.AxisZ]; zi++ {
			src := zi
			switch {
			case zi == p.zloc && p.imgs[k]:
				w.FillPlane(zi, p.fill)
				continue
			case zi == p.zloc:
				src = zi + 1
			case zi > p.zloc:
				src = zi + lostPlusMissingSpan - 1
			}
			if err := w.CopyPlane(zi, in, src, 0, 0); err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
		}
		out[k] = w
	}
	return out, nil
}

func (l *LostPlusMissing) String() string {
	return fmt.Sprintf("LostPlusMissing(skip=%.2f, value=%g, random=%t)", l.skip, l.value, l.random)
}
