package augment

import (
	"fmt"
	"math"
	"math/rand/v2"

	"voxaug/internal/fault"
	"voxaug/internal/tensor"
)

// MisalignConfig bounds the displacement and the cut position.
type MisalignConfig struct {
	// Disp is the half-open range [lo, hi) both displacements are drawn from.
	Disp [2]int
	// Margin keeps the cut at least Margin+1 slices from the front and Margin
	// slices from the back of the shallowest key.
	Margin int
}

func DefaultMisalignConfig() MisalignConfig {
	return MisalignConfig{Disp: [2]int{5, 25}, Margin: 2}
}

func (c MisalignConfig) validate() error {
	if c.Disp[0] < 0 || c.Disp[1] <= c.Disp[0] {
		return fault.Configf("displacement range [%d, %d) is invalid", c.Disp[0], c.Disp[1])
	}
	if c.Margin < 0 {
		return fault.Configf("margin must be non-negative, got %d", c.Margin)
	}
	return nil
}

type misalignPlan struct {
	planBase
	tx, ty int
	keys   []string
	zlocs  map[string]int
	// MisalignPlusMissing: number of missing slices ending at the cut.
	missing int
	imgs    map[string]bool
}

// Displacement reports the drawn (ty, tx).
func (p *misalignPlan) Displacement() (ty, tx int) { return p.ty, p.tx }

// Cut reports the cut index of key.
func (p *misalignPlan) Cut(key string) int { return p.zlocs[key] }

// draw inflates every in-plane extent by the displacement and picks the cut.
// Keys deeper than the shallowest one have their cut shifted by the depth
// difference.
func (c MisalignConfig) draw(rng *rand.Rand, src Augment, spec Spec) (Spec, *misalignPlan, error) {
	if len(spec) == 0 {
		return nil, nil, fault.Contractf("empty spec")
	}
	p := &misalignPlan{
		planBase: planBase{src},
		tx:       c.Disp[0] + rng.IntN(c.Disp[1]-c.Disp[0]),
		ty:       c.Disp[0] + rng.IntN(c.Disp[1]-c.Disp[0]),
		keys:     spec.Keys(),
		zlocs:    make(map[string]int, len(spec)),
	}
	out := make(Spec, len(spec))
	depths := make(map[string]int, len(spec))
	zmin := math.MaxInt
	for _, k := range p.keys {
		shape := spec[k]
		z, err := shape.Depth()
		if err != nil {
			return nil, nil, fmt.Errorf("%q: %w", k, err)
		}
		y, _ := shape.at(-2)
		x, _ := shape.at(-1)
		out[k] = shape.with(-2, y+p.ty).with(-1, x+p.tx)
		depths[k] = z
		zmin = min(zmin, z)
	}
	if zmin < 2*c.Margin+2 {
		return nil, nil, fault.Shapef("depth %d is too shallow for margin %d", zmin, c.Margin)
	}
	zloc := c.Margin + 1 + rng.IntN(zmin-2*c.Margin-1)
	for k, z := range depths {
		p.zlocs[k] = zloc + z - zmin
	}
	return out, p, nil
}

// crop writes into a new tensor every plane of in, each cropped to in's
// extent minus the displacement at the origin origin(z) returns.
func (p *misalignPlan) crop(key string, in *tensor.Tensor, origin func(z int) (y0, x0 int, keep bool)) (*tensor.Tensor, error) {
	c, z, y, x := in.Dims()
	if y <= p.ty || x <= p.tx {
		return nil, fault.Shapef("%q: extent (%d, %d) does not cover displacement (%d, %d)", key, y, x, p.ty, p.tx)
	}
	out := tensor.New(c, z, y-p.ty, x-p.tx)
	for zi := 0; zi < z; zi++ {
		y0, x0, keep := origin(zi)
		if !keep {
			continue
		}
		if err := out.CopyPlane(zi, in, zi, y0, x0); err != nil {
			return nil, fmt.Errorf("%q: %w", key, err)
		}
	}
	return out, nil
}

// each crops every prepared key with the origin function origin builds for
// it. Keys the plan was not prepared for pass through.
func (p *misalignPlan) each(sample Sample, origin func(key string, zloc int) func(z int) (int, int, bool)) (Sample, error) {
	src, err := lookup(sample, p.keys)
	if err != nil {
		return nil, err
	}
	out := sample.Clone()
	for i, k := range p.keys {
		if out[k], err = p.crop(k, src[i], origin(k, p.zlocs[k])); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Misalign shifts every slice from the cut onward by a random in-plane
// displacement relative to the slices before it.
type Misalign struct {
	cfg MisalignConfig
}

func NewMisalign(cfg MisalignConfig) (*Misalign, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Misalign{cfg: cfg}, nil
}

func (m *Misalign) Prepare(rng *rand.Rand, spec Spec, _ Options) (Spec, Plan, error) {
	return m.cfg.draw(rng, m, spec)
}

func (m *Misalign) Apply(sample Sample, plan Plan) (Sample, error) {
	p, err := planFor[*misalignPlan](m, plan)
	if err != nil {
		return nil, err
	}
	return p.each(sample, func(_ string, zloc int) func(int) (int, int, bool) {
		return func(z int) (int, int, bool) {
			if z < zloc {
				return 0, 0, true
			}
			return p.ty, p.tx, true
		}
	})
}

func (m *Misalign) String() string {
	return fmt.Sprintf("Misalign(disp=%v, margin=%d)", m.cfg.Disp, m.cfg.Margin)
}

// MisalignPlusMissing misaligns at the cut and additionally blanks one or two
// image slices ending at the cut. Non-image keys at those slices are cropped
// at origins interpolated between the two sides, so labels transition
// smoothly instead of jumping.
type MisalignPlusMissing struct {
	cfg MisalignConfig
}

func NewMisalignPlusMissing(cfg MisalignConfig) (*MisalignPlusMissing, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Margin < 1 {
		return nil, fault.Configf("misalign plus missing needs a positive margin")
	}
	return &MisalignPlusMissing{cfg: cfg}, nil
}

func (m *MisalignPlusMissing) Prepare(rng *rand.Rand, spec Spec, opts Options) (Spec, Plan, error) {
	imgs, err := required(spec, opts.Imgs, "image")
	if err != nil {
		return nil, nil, err
	}
	out, p, err := m.cfg.draw(rng, m, spec)
	if err != nil {
		return nil, nil, err
	}
	p.missing = 1
	if !coin(rng, 0.5) {
		p.missing = 2
	}
	p.imgs = make(map[string]bool, len(imgs))
	for _, k := range imgs {
		p.imgs[k] = true
	}
	return out, p, nil
}

func (m *MisalignPlusMissing) Apply(sample Sample, plan Plan) (Sample, error) {
	p, err := planFor[*misalignPlan](m, plan)
	if err != nil {
		return nil, err
	}
	return p.each(sample, func(k string, zloc int) func(int) (int, int, bool) {
		first := zloc - p.missing + 1
		img := p.imgs[k]
		return func(z int) (int, int, bool) {
			switch {
			case z < first:
				return 0, 0, true
			case z > zloc:
				return p.ty, p.tx, true
			case img:
				return 0, 0, false
			}
			y0, x0 := p.interpolate(z - first + 1)
			return y0, x0, true
		}
	})
}

// interpolate returns the origin of the i-th (1-based) missing slice, placed
// i/(n+1) of the way from the front origin to the back origin.
func (p *misalignPlan) interpolate(i int) (y0, x0 int) {
	f := float64(i) / float64(p.missing+1)
	return int(math.Round(f * float64(p.ty))), int(math.Round(f * float64(p.tx)))
}

func (m *MisalignPlusMissing) String() string {
	return fmt.Sprintf("MisalignPlusMissing(disp=%v, margin=%d)", m.cfg.Disp, m.cfg.Margin)
}

// SlipMisalign displaces the single slice at the cut. Keys outside
// Options.Imgs follow the slip only when Interp is set; with no image keys
// given every key slips.
type SlipMisalign struct {
	cfg    MisalignConfig
	interp bool
}

func NewSlipMisalign(cfg MisalignConfig, interp bool) (*SlipMisalign, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &SlipMisalign{cfg: cfg, interp: interp}, nil
}

func (m *SlipMisalign) Prepare(rng *rand.Rand, spec Spec, opts Options) (Spec, Plan, error) {
	imgs, err := resolve(spec, opts.Imgs)
	if err != nil {
		return nil, nil, err
	}
	out, p, err := m.cfg.draw(rng, m, spec)
	if err != nil {
		return nil, nil, err
	}
	p.imgs = make(map[string]bool, len(imgs))
	for _, k := range imgs {
		p.imgs[k] = true
	}
	return out, p, nil
}

func (m *SlipMisalign) Apply(sample Sample, plan Plan) (Sample, error) {
	p, err := planFor[*misalignPlan](m, plan)
	if err != nil {
		return nil, err
	}
	return p.each(sample, func(k string, zloc int) func(int) (int, int, bool) {
		slip := p.imgs[k] || m.interp
		return func(z int) (int, int, bool) {
			if z == zloc && slip {
				return p.ty, p.tx, true
			}
			return 0, 0, true
		}
	})
}

func (m *SlipMisalign) String() string {
	return fmt.Sprintf("SlipMisalign(disp=%v, margin=%d, interp=%t)", m.cfg.Disp, m.cfg.Margin, m.interp)
}
