package kernel

import (
	"fmt"
	"math/rand/v2"

	"voxaug/internal/tensor"
)

// Fill overwrites a region with a scalar. Value is clamped to [0, 1]; with
// Random set every instance draws its own value uniformly from [0, 1).
type Fill struct {
	Value  float64 `mapstructure:"value"`
	Random bool    `mapstructure:"random"`
}

func NewFill(value float64, random bool) (*Fill, error) {
	return &Fill{Value: clamp(value, 0, 1), Random: random}, nil
}

func (f *Fill) New(rng *rand.Rand) Kernel {
	v := f.Value
	if f.Random {
		v = rng.Float64()
	}
	return fillKernel(v)
}

func (f *Fill) String() string {
	return fmt.Sprintf("Fill(value=%g, random=%t)", f.Value, f.Random)
}

type fillKernel float32

func (k fillKernel) Apply(r tensor.Region) {
	v := float32(k)
	r.Each(func(p *float32) { *p = v })
}

// Value reports the scalar an instance writes.
func (k fillKernel) Value() float32 { return float32(k) }

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
