package kernel

import (
	"fmt"
	"math"
	"math/rand/v2"

	"voxaug/internal/fault"
	"voxaug/internal/tensor"
)

// Grayscale perturbs contrast, brightness and gamma. Factors are clamped to
// [0, 2].
type Grayscale struct {
	Contrast   float64 `mapstructure:"contrast"`
	Brightness float64 `mapstructure:"brightness"`
}

func NewGrayscale(contrast, brightness float64) (*Grayscale, error) {
	if contrast < 0 || brightness < 0 {
		return nil, fault.Configf("grayscale factors must be non-negative, got contrast=%g brightness=%g",
			contrast, brightness)
	}
	return &Grayscale{Contrast: min(contrast, 2), Brightness: min(brightness, 2)}, nil
}

func (g *Grayscale) New(rng *rand.Rand) Kernel {
	return grayKernel{
		contrast:   1 + (rng.Float64()-0.5)*g.Contrast,
		brightness: (rng.Float64() - 0.5) * g.Brightness,
		exponent:   math.Pow(2, rng.Float64()*2-1),
	}
}

func (g *Grayscale) String() string {
	return fmt.Sprintf("Grayscale(contrast=%g, brightness=%g)", g.Contrast, g.Brightness)
}

type grayKernel struct {
	contrast   float64
	brightness float64
	exponent   float64
}

func (k grayKernel) Apply(r tensor.Region) {
	r.Each(func(p *float32) {
		v := clamp(float64(*p)*k.contrast+k.brightness, 0, 1)
		*p = float32(math.Pow(v, k.exponent))
	})
}
