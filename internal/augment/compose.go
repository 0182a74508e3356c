package augment

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/stat/sampleuv"

	"voxaug/internal/fault"
)

// Compose applies its children in order. Prepare walks them in reverse so
// that children nearer the output negotiate first and earlier children learn
// the margin they must supply.
type Compose struct {
	augments []Augment
}

func NewCompose(augments ...Augment) *Compose {
	return &Compose{augments: augments}
}

func (c *Compose) Augments() []Augment { return c.augments }

type composePlan struct {
	planBase
	plans []Plan
}

func (c *Compose) Prepare(rng *rand.Rand, spec Spec, opts Options) (Spec, Plan, error) {
	spec = spec.Clone()
	plans := make([]Plan, len(c.augments))
	for i := len(c.augments) - 1; i >= 0; i-- {
		var err error
		spec, plans[i], err = c.augments[i].Prepare(rng, spec, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("compose[%d] %s: %w", i, c.augments[i], err)
		}
	}
	return spec, &composePlan{planBase{c}, plans}, nil
}

func (c *Compose) Apply(sample Sample, plan Plan) (Sample, error) {
	p, err := planFor[*composePlan](c, plan)
	if err != nil {
		return nil, err
	}
	out := sample.Clone()
	for i, a := range c.augments {
		if out, err = a.Apply(out, p.plans[i]); err != nil {
			return nil, fmt.Errorf("compose[%d] %s: %w", i, a, err)
		}
	}
	return out, nil
}

func (c *Compose) String() string {
	return listString("Compose", c.augments, nil)
}

func listString(name string, augs []Augment, weights []float64) string {
	var b strings.Builder
	b.WriteString(name + "(")
	for i, a := range augs {
		b.WriteString("\n    ")
		if weights != nil {
			fmt.Fprintf(&b, "%.3f: ", weights[i])
		}
		b.WriteString(strings.ReplaceAll(a.String(), "\n", "\n    "))
	}
	b.WriteString("\n)")
	return b.String()
}

// Blend picks exactly one child per episode, uniformly or by weight, so that
// alternative strategies never compound.
type Blend struct {
	augments []Augment
	weights  []float64
}

// NewBlend builds a Blend. A nil weights slice means uniform choice.
func NewBlend(augments []Augment, weights []float64) (*Blend, error) {
	if len(augments) == 0 {
		return nil, fault.Configf("blend needs at least one augment")
	}
	if weights != nil {
		if len(weights) != len(augments) {
			return nil, fault.Configf("blend has %d augments but %d weights", len(augments), len(weights))
		}
		sum := 0.0
		for _, w := range weights {
			if !(w >= 0) {
				return nil, fault.Configf("blend weight %g is negative", w)
			}
			sum += w
		}
		if sum <= 0 {
			return nil, fault.Configf("blend weights sum to zero")
		}
	}
	return &Blend{augments: augments, weights: weights}, nil
}

func (b *Blend) Augments() []Augment { return b.augments }

type blendPlan struct {
	planBase
	index int
	child Plan
}

// Chosen reports the index of the child selected for the episode.
func (p *blendPlan) Chosen() int { return p.index }

func (b *Blend) Prepare(rng *rand.Rand, spec Spec, opts Options) (Spec, Plan, error) {
	idx := b.choose(rng)
	out, child, err := b.augments[idx].Prepare(rng, spec, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("blend[%d] %s: %w", idx, b.augments[idx], err)
	}
	return out, &blendPlan{planBase{b}, idx, child}, nil
}

func (b *Blend) choose(rng *rand.Rand) int {
	if b.weights == nil {
		return rng.IntN(len(b.augments))
	}
	idx, _ := sampleuv.NewWeighted(b.weights, rng).Take()
	return idx
}

func (b *Blend) Apply(sample Sample, plan Plan) (Sample, error) {
	p, err := planFor[*blendPlan](b, plan)
	if err != nil {
		return nil, err
	}
	return b.augments[p.index].Apply(sample, p.child)
}

func (b *Blend) String() string {
	return listString("Blend", b.augments, b.weights)
}
