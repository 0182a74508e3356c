package kernel

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"

	"voxaug/internal/fault"
	"voxaug/internal/tensor"
)

// Kernel mutates one region in place. An instance carries hyperparameters
// already drawn, so applying it to several regions perturbs them identically.
type Kernel interface {
	Apply(r tensor.Region)
}

// Constructor holds validated hyperparameters and draws fresh Kernel
// instances from them.
type Constructor interface {
	New(rng *rand.Rand) Kernel
	String() string
}

// Params are the free-form hyperparameters read from a manifest.
type Params map[string]any

// Factory builds a Constructor from params (e.g. fill, blur, grayscale).
type Factory func(Params) (Constructor, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register makes a kernel available by name. Built-ins register from init.
func Register(name string, f Factory) {
	mu.Lock()
	registry[name] = f
	mu.Unlock()
}

// New returns the constructor registered under name.
func New(name string, p Params) (Constructor, error) {
	mu.RLock()
	f, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, fault.Configf("unknown kernel %q", name)
	}
	c, err := f(p)
	if err != nil {
		return nil, fmt.Errorf("kernel %s: %w", name, err)
	}
	return c, nil
}

// Names lists registered kernels in ascending order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Decode copies params into out, matching `mapstructure` tags. Unknown keys
// are rejected so that typos surface at configuration time.
func Decode(p Params, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(p)); err != nil {
		return fault.Configf("%v", err)
	}
	return nil
}

func init() {
	Register("fill", func(p Params) (Constructor, error) {
		var c Fill
		if err := Decode(p, &c); err != nil {
			return nil, err
		}
		return NewFill(c.Value, c.Random)
	})
	Register("blur", func(p Params) (Constructor, error) {
		var c Blur
		if err := Decode(p, &c); err != nil {
			return nil, err
		}
		return NewBlur(c.Sigma, c.Random)
	})
	Register("grayscale", func(p Params) (Constructor, error) {
		c := Grayscale{Contrast: 0.3, Brightness: 0.3}
		if err := Decode(p, &c); err != nil {
			return nil, err
		}
		return NewGrayscale(c.Contrast, c.Brightness)
	})
	Register("noise", func(p Params) (Constructor, error) {
		c := Noise{SigmaMin: 0.01, SigmaMax: 0.1}
		if err := Decode(p, &c); err != nil {
			return nil, err
		}
		return NewNoise(c.SigmaMin, c.SigmaMax, c.PerChannel)
	})
}
