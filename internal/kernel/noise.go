package kernel

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"voxaug/internal/fault"
	"voxaug/internal/tensor"
)

// Noise adds zero-mean Gaussian noise and clamps to [0, 1]. Each instance
// draws its scale uniformly from [SigmaMin, SigmaMax] and a seed, so applying
// one instance to several regions adds the same noise field to each.
type Noise struct {
	SigmaMin   float64 `mapstructure:"sigma_min"`
	SigmaMax   float64 `mapstructure:"sigma_max"`
	PerChannel bool    `mapstructure:"per_channel"`
}

func NewNoise(sigmaMin, sigmaMax float64, perChannel bool) (*Noise, error) {
	if sigmaMin < 0 || sigmaMax < sigmaMin {
		return nil, fault.Configf("noise sigma range [%g, %g] is invalid", sigmaMin, sigmaMax)
	}
	return &Noise{SigmaMin: sigmaMin, SigmaMax: sigmaMax, PerChannel: perChannel}, nil
}

func (n *Noise) New(rng *rand.Rand) Kernel {
	scale := distuv.Uniform{Min: n.SigmaMin, Max: n.SigmaMax, Src: rng}
	return noiseKernel{
		sigma:      scale.Rand(),
		seed:       rng.Uint64(),
		perChannel: n.PerChannel,
	}
}

func (n *Noise) String() string {
	return fmt.Sprintf("Noise(sigma=[%g, %g], per_channel=%t)", n.SigmaMin, n.SigmaMax, n.PerChannel)
}

type noiseKernel struct {
	sigma      float64
	seed       uint64
	perChannel bool
}

func (k noiseKernel) Apply(r tensor.Region) {
	if r.Empty() {
		return
	}
	normal := distuv.Normal{Mu: 0, Sigma: k.sigma, Src: rand.NewPCG(k.seed, k.seed>>1|1)}
	add := func(p *float32, d float64) {
		*p = float32(clamp(float64(*p)+d, 0, 1))
	}
	if k.perChannel {
		r.Each(func(p *float32) { add(p, normal.Rand()) })
		return
	}
	t := r.T
	data := t.Data()
	channels, _, _, _ := t.Dims()
	for z := r.Z0; z < r.Z1; z++ {
		for y := r.Y0; y < r.Y1; y++ {
			for x := r.X0; x < r.X1; x++ {
				d := normal.Rand()
				for c := 0; c < channels; c++ {
					add(&data[t.Index(c, z, y, x)], d)
				}
			}
		}
	}
}
