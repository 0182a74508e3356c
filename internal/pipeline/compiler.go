package pipeline

import (
	"fmt"
	"sort"
	"sync"

	"voxaug/internal/augment"
	"voxaug/internal/config"
	"voxaug/internal/fault"
	"voxaug/internal/kernel"
	"voxaug/internal/manifest"
	"voxaug/internal/telemetry"
)

var (
	warpMu  sync.RWMutex
	warpers = map[string]augment.Warper{}
)

// RegisterWarper makes a warper available to warp nodes by name.
func RegisterWarper(name string, w augment.Warper) {
	warpMu.Lock()
	warpers[name] = w
	warpMu.Unlock()
}

func warperNamed(name string) (augment.Warper, error) {
	if name == "" {
		return nil, nil
	}
	warpMu.RLock()
	defer warpMu.RUnlock()
	w, ok := warpers[name]
	if !ok {
		known := make([]string, 0, len(warpers))
		for k := range warpers {
			known = append(known, k)
		}
		sort.Strings(known)
		return nil, fault.Configf("unknown warper %q (have %v)", name, known)
	}
	return w, nil
}

// Compile loads the manifest at path and builds its runner. A nil m gets
// metrics on a private registry.
func Compile(path string, m *telemetry.Metrics) (*Runner, error) {
	mf, err := config.LoadManifest(path)
	if err != nil {
		return nil, err
	}
	root, err := Build(mf.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", path, err)
	}
	r := NewRunner(root, mf.Options, mf.Seed, m)
	r.manifest = mf
	return r, nil
}

// Build turns a manifest node into its augment, recursing into compose and
// blend children. Errors name the offending node by its path in the tree.
func Build(n manifest.Node) (augment.Augment, error) {
	return build(n, "pipeline")
}

func build(n manifest.Node, path string) (augment.Augment, error) {
	a, err := buildNode(n, path)
	if err != nil {
		return nil, fmt.Errorf("%s (%s): %w", path, n.Type, err)
	}
	return a, nil
}

func buildChildren(n manifest.Node, path string) ([]augment.Augment, error) {
	if len(n.Children) == 0 {
		return nil, fault.Configf("%s needs children", n.Type)
	}
	out := make([]augment.Augment, len(n.Children))
	for i, c := range n.Children {
		a, err := build(c, fmt.Sprintf("%s.children[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func buildNode(n manifest.Node, path string) (augment.Augment, error) {
	switch n.Type {
	case manifest.TypeCompose:
		kids, err := buildChildren(n, path)
		if err != nil {
			return nil, err
		}
		return augment.NewCompose(kids...), nil

	case manifest.TypeBlend:
		kids, err := buildChildren(n, path)
		if err != nil {
			return nil, err
		}
		return augment.NewBlend(kids, n.Weights)

	case manifest.TypeFlip:
		if n.Axis == nil {
			return nil, fault.Configf("flip needs an axis")
		}
		return augment.NewFlip(*n.Axis, prob(n))

	case manifest.TypeTranspose:
		return augment.NewTranspose(n.Axes, prob(n))

	case manifest.TypeFlipRotate:
		return augment.NewFlipRotate(), nil

	case manifest.TypeSection, manifest.TypePartialSection, manifest.TypeMixedSection:
		return buildSection(n)

	case manifest.TypeMissingSection, manifest.TypePartialMissing:
		maxSec, err := oneMax(n)
		if err != nil {
			return nil, err
		}
		if n.Type == manifest.TypePartialMissing {
			return augment.NewPartialMissingSection(maxSec, orZero(n.Skip), n.Value, n.Random)
		}
		return augment.NewMissingSection(maxSec, orZero(n.Skip), n.Value, n.Random)

	case manifest.TypeMixedMissing:
		return augment.NewMixedMissingSection(n.MaxSec, orZero(n.Skip), n.Value, n.Random)

	case manifest.TypeBlurrySection, manifest.TypePartialBlurry:
		maxSec, err := oneMax(n)
		if err != nil {
			return nil, err
		}
		if n.Type == manifest.TypePartialBlurry {
			return augment.NewPartialBlurrySection(maxSec, orZero(n.Skip), n.Sigma, n.Random)
		}
		return augment.NewBlurrySection(maxSec, orZero(n.Skip), n.Sigma, n.Random)

	case manifest.TypeMixedBlurry:
		return augment.NewMixedBlurrySection(n.MaxSec, orZero(n.Skip), n.Sigma, n.Random)

	case manifest.TypeMisalign, manifest.TypeMisalignPlusMissing, manifest.TypeSlipMisalign:
		cfg, err := misalignConfig(n)
		if err != nil {
			return nil, err
		}
		switch n.Type {
		case manifest.TypeMisalignPlusMissing:
			return augment.NewMisalignPlusMissing(cfg)
		case manifest.TypeSlipMisalign:
			return augment.NewSlipMisalign(cfg, n.Interp)
		}
		return augment.NewMisalign(cfg)

	case manifest.TypeLostSection:
		return augment.NewLostSection(nsec(n), orZero(n.Skip))

	case manifest.TypeLostSections:
		maxSec, err := oneMax(n)
		if err != nil {
			return nil, err
		}
		return augment.NewLostSections(maxSec, nsec(n), orZero(n.Skip))

	case manifest.TypeLostPlusMissing:
		return augment.NewLostPlusMissing(orZero(n.Skip), n.Value, n.Random)

	case manifest.TypeGray2D:
		return augment.NewGray2D(orZero(n.Contrast), orZero(n.Brightness), orZero(n.Skip))
	case manifest.TypeGray3D:
		return augment.NewGray3D(orZero(n.Contrast), orZero(n.Brightness), orZero(n.Skip))
	case manifest.TypeGrayMixed:
		return augment.NewGrayMixed(orZero(n.Contrast), orZero(n.Brightness), orZero(n.Skip))

	case manifest.TypeNoise:
		return augment.NewAdditiveGaussianNoise(orZero(n.SigmaMin), orZero(n.SigmaMax), n.PerChannel)

	case manifest.TypeLabel:
		return augment.NewLabel(nil, n.Fragments), nil

	case manifest.TypeWarp:
		w, err := warperNamed(n.Warper)
		if err != nil {
			return nil, err
		}
		return augment.NewWarp(orZero(n.Skip), w)

	case "":
		return nil, fault.Configf("node has no type")
	}
	return nil, fault.Configf("unknown node type %q", n.Type)
}

func buildSection(n manifest.Node) (augment.Augment, error) {
	if n.Kernel == nil || n.Kernel.Name == "" {
		return nil, fault.Configf("section needs a kernel")
	}
	k, err := kernel.New(n.Kernel.Name, kernel.Params(n.Kernel.Params))
	if err != nil {
		return nil, err
	}
	maxSec, err := oneMax(n)
	if err != nil {
		return nil, err
	}
	target, err := parseTarget(n.Target)
	if err != nil {
		return nil, err
	}
	cfg := augment.SectionConfig{
		Kernel: k,
		MaxSec: maxSec,
		Prob:   prob(n),
		Skip:   orZero(n.Skip),
		Target: target,
	}
	switch n.Type {
	case manifest.TypePartialSection:
		return augment.NewPartialSection(cfg)
	case manifest.TypeMixedSection:
		return augment.NewMixedSection(cfg)
	}
	if cfg.Mode, err = parseMode(n.Mode); err != nil {
		return nil, err
	}
	return augment.NewSection(cfg)
}

func prob(n manifest.Node) float64 { return orZero(n.Prob) }

// orZero reads an optional manifest value; defaults were filled at load.
func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func nsec(n manifest.Node) int {
	if n.NSec == 0 {
		return 1
	}
	return n.NSec
}

// oneMax reads max_sec for nodes that take a single count; an absent value
// is 0 and left to the augment's own validation.
func oneMax(n manifest.Node) (int, error) {
	switch len(n.MaxSec) {
	case 0:
		return 0, nil
	case 1:
		return n.MaxSec[0], nil
	}
	return 0, fault.Configf("%s takes one max_sec, got %v", n.Type, n.MaxSec)
}

func misalignConfig(n manifest.Node) (augment.MisalignConfig, error) {
	cfg := augment.DefaultMisalignConfig()
	switch len(n.Disp) {
	case 0:
	case 2:
		cfg.Disp = [2]int{n.Disp[0], n.Disp[1]}
	default:
		return cfg, fault.Configf("disp needs [lo, hi), got %v", n.Disp)
	}
	if n.Margin != nil {
		cfg.Margin = *n.Margin
	}
	return cfg, nil
}

func parseMode(s string) (augment.Mode, error) {
	switch s {
	case "", "full":
		return augment.Full, nil
	case "partial":
		return augment.Partial, nil
	case "mixed":
		return augment.Mixed, nil
	}
	return 0, fault.Configf("unknown section mode %q", s)
}

func parseTarget(s string) (augment.Target, error) {
	switch s {
	case "", "keys":
		return augment.TargetKeys, nil
	case "imgs":
		return augment.TargetImgs, nil
	}
	return 0, fault.Configf("unknown section target %q", s)
}
