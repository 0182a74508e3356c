package augment

import (
	"fmt"
	"math/rand/v2"
)

// Warper performs a geometric warp of a whole sample. The warp family
// (rotation, shear, twist, scale, perspective stretch) is left to the
// implementation; seed is drawn during Prepare so the warp is reproducible.
// Warpers must keep every array's shape.
type Warper interface {
	Warp(sample Sample, seed uint64) (Sample, error)
}

// WarperFunc adapts a function to Warper.
type WarperFunc func(sample Sample, seed uint64) (Sample, error)

func (f WarperFunc) Warp(sample Sample, seed uint64) (Sample, error) { return f(sample, seed) }

// Warp delegates to a Warper with probability 1-skip. Without a Warper it is
// an identity.
type Warp struct {
	skip   float64
	warper Warper
}

func NewWarp(skip float64, warper Warper) (*Warp, error) {
	if err := checkProb("warp skip", skip); err != nil {
		return nil, err
	}
	return &Warp{skip: skip, warper: warper}, nil
}

type warpPlan struct {
	planBase
	on   bool
	seed uint64
}

func (w *Warp) Prepare(rng *rand.Rand, spec Spec, _ Options) (Spec, Plan, error) {
	p := &warpPlan{planBase: planBase{w}}
	if !coin(rng, w.skip) {
		p.on = true
		p.seed = rng.Uint64()
	}
	return spec.Clone(), p, nil
}

func (w *Warp) Apply(sample Sample, plan Plan) (Sample, error) {
	p, err := planFor[*warpPlan](w, plan)
	if err != nil {
		return nil, err
	}
	if !p.on || w.warper == nil {
		return sample.Clone(), nil
	}
	return w.warper.Warp(sample.Clone(), p.seed)
}

func (w *Warp) String() string {
	return fmt.Sprintf("Warp(skip=%.2f, warper=%t)", w.skip, w.warper != nil)
}
