package kernel

import (
	"fmt"
	"math"
	"math/rand/v2"

	"voxaug/internal/fault"
	"voxaug/internal/tensor"
)

// truncate is the kernel radius in standard deviations.
const truncate = 4.0

// Blur smooths each (channel, depth) plane of a region with a separable
// Gaussian. With Random set, each instance draws sigma from [0, Sigma).
type Blur struct {
	Sigma  float64 `mapstructure:"sigma"`
	Random bool    `mapstructure:"random"`
}

func NewBlur(sigma float64, random bool) (*Blur, error) {
	if sigma < 0 || math.IsNaN(sigma) {
		return nil, fault.Configf("blur sigma must be non-negative, got %g", sigma)
	}
	return &Blur{Sigma: sigma, Random: random}, nil
}

func (b *Blur) New(rng *rand.Rand) Kernel {
	s := b.Sigma
	if b.Random {
		s *= rng.Float64()
	}
	return blurKernel{weights: gaussian(s)}
}

func (b *Blur) String() string {
	return fmt.Sprintf("Blur(sigma=%g, random=%t)", b.Sigma, b.Random)
}

type blurKernel struct {
	weights []float64 // length 2r+1, centered
}

func gaussian(sigma float64) []float64 {
	if sigma <= 0 {
		return []float64{1}
	}
	radius := int(truncate*sigma + 0.5)
	w := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range w {
		d := float64(i - radius)
		w[i] = math.Exp(-0.5 * d * d / (sigma * sigma))
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

func (k blurKernel) Apply(r tensor.Region) {
	if len(k.weights) == 1 {
		return
	}
	r.Planes(func(p tensor.Plane) {
		h, w := p.Height(), p.Width()
		buf := make([]float64, max(h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				buf[x] = float64(p.At(y, x))
			}
			for x := 0; x < w; x++ {
				p.Set(y, x, float32(k.convolve(buf[:w], x)))
			}
		}
		for x := 0; x < w; x++ {
			for y := 0; y < h; y++ {
				buf[y] = float64(p.At(y, x))
			}
			for y := 0; y < h; y++ {
				p.Set(y, x, float32(k.convolve(buf[:h], y)))
			}
		}
	})
}

// convolve evaluates the filter at i with half-sample symmetric boundaries.
func (k blurKernel) convolve(line []float64, i int) float64 {
	radius := len(k.weights) / 2
	acc := 0.0
	for j, wt := range k.weights {
		acc += wt * line[reflect(i+j-radius, len(line))]
	}
	return acc
}

func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}
