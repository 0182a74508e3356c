package augment

import (
	"fmt"
	"math/rand/v2"

	"voxaug/internal/fault"
	"voxaug/internal/tensor"
)

// Flip reverses every array along one axis with probability prob. One coin
// is tossed per episode and shared by all keys.
type Flip struct {
	axis int // as configured, in [-4, 3]
	norm int
	prob float64
}

func NewFlip(axis int, prob float64) (*Flip, error) {
	norm, err := tensor.NormAxis(axis)
	if err != nil {
		return nil, err
	}
	if err := checkProb("flip prob", prob); err != nil {
		return nil, err
	}
	return &Flip{axis: axis, norm: norm, prob: prob}, nil
}

// coinPlan records one shared coin and the keys it governs. Keys added to
// the sample after Prepare, such as fragment tables, pass through.
type coinPlan struct {
	planBase
	keys []string
	on   bool
}

func (f *Flip) Prepare(rng *rand.Rand, spec Spec, _ Options) (Spec, Plan, error) {
	return spec.Clone(), &coinPlan{planBase{f}, spec.Keys(), coin(rng, f.prob)}, nil
}

// each replaces every prepared key of sample with fn of its array.
func (p *coinPlan) each(sample Sample, fn func(*tensor.Tensor) *tensor.Tensor) (Sample, error) {
	src, err := lookup(sample, p.keys)
	if err != nil {
		return nil, err
	}
	out := sample.Clone()
	if !p.on {
		return out, nil
	}
	for i, k := range p.keys {
		out[k] = fn(src[i])
	}
	return out, nil
}

func (f *Flip) Apply(sample Sample, plan Plan) (Sample, error) {
	p, err := planFor[*coinPlan](f, plan)
	if err != nil {
		return nil, err
	}
	return p.each(sample, func(t *tensor.Tensor) *tensor.Tensor { return t.Flip(f.norm) })
}

func (f *Flip) String() string {
	return fmt.Sprintf("Flip(axis=%d, prob=%.3f)", f.axis, f.prob)
}

// Transpose permutes the axes of every array with probability prob; output
// axis i is input axis axes[i].
type Transpose struct {
	axes [tensor.Rank]int
	prob float64
}

func NewTranspose(axes []int, prob float64) (*Transpose, error) {
	if len(axes) != tensor.Rank {
		return nil, fault.Configf("transpose needs %d axes, got %v", tensor.Rank, axes)
	}
	var perm [tensor.Rank]int
	copy(perm[:], axes)
	if !tensor.ValidPerm(perm) {
		return nil, fault.Configf("transpose axes %v are not a permutation", axes)
	}
	if err := checkProb("transpose prob", prob); err != nil {
		return nil, err
	}
	return &Transpose{axes: perm, prob: prob}, nil
}

// Prepare asks for the inverse permutation of the requested shapes, padded to
// four axes, whenever the coin says the arrays will be permuted.
func (t *Transpose) Prepare(rng *rand.Rand, spec Spec, _ Options) (Spec, Plan, error) {
	p := &coinPlan{planBase{t}, spec.Keys(), coin(rng, t.prob)}
	if !p.on {
		return spec.Clone(), p, nil
	}
	out := make(Spec, len(spec))
	for _, k := range spec.Keys() {
		shape, err := tensor.Canonical(spec[k])
		if err != nil {
			return nil, nil, fmt.Errorf("%q: %w", k, err)
		}
		in := make(Shape, tensor.Rank)
		for i, a := range t.axes {
			in[a] = shape[i]
		}
		out[k] = in
	}
	return out, p, nil
}

func (t *Transpose) Apply(sample Sample, plan Plan) (Sample, error) {
	p, err := planFor[*coinPlan](t, plan)
	if err != nil {
		return nil, err
	}
	return p.each(sample, func(a *tensor.Tensor) *tensor.Tensor { return a.Transpose(t.axes) })
}

func (t *Transpose) String() string {
	return fmt.Sprintf("Transpose(axes=%v, prob=%.3f)", t.axes, t.prob)
}

// NewFlipRotate builds the anisotropic symmetry group: independent flips along
// depth, height and width followed by an in-plane transpose, sixteen
// orientations in all.
func NewFlipRotate() *Compose {
	fz, _ := NewFlip(-3, 0.5)
	fy, _ := NewFlip(-2, 0.5)
	fx, _ := NewFlip(-1, 0.5)
	xy, _ := NewTranspose([]int{0, 1, 3, 2}, 0.5)
	return NewCompose(fz, fy, fx, xy)
}
