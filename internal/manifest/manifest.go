package manifest

import "voxaug/internal/augment"

// Node types understood by the pipeline compiler.
const (
	TypeCompose             = "compose"
	TypeBlend               = "blend"
	TypeFlip                = "flip"
	TypeTranspose           = "transpose"
	TypeFlipRotate          = "flip_rotate"
	TypeSection             = "section"
	TypePartialSection      = "partial_section"
	TypeMixedSection        = "mixed_section"
	TypeMissingSection      = "missing_section"
	TypePartialMissing      = "partial_missing_section"
	TypeMixedMissing        = "mixed_missing_section"
	TypeBlurrySection       = "blurry_section"
	TypePartialBlurry       = "partial_blurry_section"
	TypeMixedBlurry         = "mixed_blurry_section"
	TypeMisalign            = "misalign"
	TypeMisalignPlusMissing = "misalign_plus_missing"
	TypeSlipMisalign        = "slip_misalign"
	TypeLostSection         = "lost_section"
	TypeLostSections        = "lost_sections"
	TypeLostPlusMissing     = "lost_plus_missing"
	TypeGray2D              = "gray_2d"
	TypeGray3D              = "gray_3d"
	TypeGrayMixed           = "gray_mixed"
	TypeNoise               = "noise"
	TypeLabel               = "label"
	TypeWarp                = "warp"
)

// KernelSpec names a registered kernel and its free-form parameters.
type KernelSpec struct {
	Name   string         `koanf:"name" yaml:"name"`
	Params map[string]any `koanf:"params" yaml:"params,omitempty"`
}

// Node is one augment of the tree. Only the fields its Type reads are used.
type Node struct {
	Type string `koanf:"type" yaml:"type"`

	// compose, blend
	Children []Node    `koanf:"children" yaml:"children,omitempty"`
	Weights  []float64 `koanf:"weights" yaml:"weights,omitempty"`

	// flip, transpose
	Axis *int     `koanf:"axis" yaml:"axis,omitempty"`
	Axes []int    `koanf:"axes" yaml:"axes,omitempty"`
	Prob *float64 `koanf:"prob" yaml:"prob,omitempty"`

	Skip *float64 `koanf:"skip" yaml:"skip,omitempty"`

	// section engine and presets
	MaxSec []int       `koanf:"max_sec" yaml:"max_sec,omitempty"`
	Mode   string      `koanf:"mode" yaml:"mode,omitempty"`
	Target string      `koanf:"target" yaml:"target,omitempty"`
	Kernel *KernelSpec `koanf:"kernel" yaml:"kernel,omitempty"`
	Value  float64     `koanf:"value" yaml:"value,omitempty"`
	Random bool        `koanf:"random" yaml:"random,omitempty"`
	Sigma  float64     `koanf:"sigma" yaml:"sigma,omitempty"`

	// misalign family
	Disp   []int `koanf:"disp" yaml:"disp,omitempty"`
	Margin *int  `koanf:"margin" yaml:"margin,omitempty"`
	Interp bool  `koanf:"interp" yaml:"interp,omitempty"`

	// lost section family
	NSec int `koanf:"nsec" yaml:"nsec,omitempty"`

	// grayscale
	Contrast   *float64 `koanf:"contrast" yaml:"contrast,omitempty"`
	Brightness *float64 `koanf:"brightness" yaml:"brightness,omitempty"`

	// noise
	SigmaMin   *float64 `koanf:"sigma_min" yaml:"sigma_min,omitempty"`
	SigmaMax   *float64 `koanf:"sigma_max" yaml:"sigma_max,omitempty"`
	PerChannel bool     `koanf:"per_channel" yaml:"per_channel,omitempty"`

	// label
	Fragments bool `koanf:"fragments" yaml:"fragments,omitempty"`

	// warp
	Warper string `koanf:"warper" yaml:"warper,omitempty"`
}

// Walk visits n and every descendant depth-first.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for i := range n.Children {
		n.Children[i].Walk(fn)
	}
}

type Metrics struct {
	Port int `koanf:"port" yaml:"port,omitempty"`
}

// Preview drives the preview command: how many episodes to run and the
// output spec each one requests.
type Preview struct {
	Episodes int              `koanf:"episodes" yaml:"episodes,omitempty"`
	Spec     map[string][]int `koanf:"spec" yaml:"spec,omitempty"`
}

type File struct {
	SchemaVersion string `koanf:"schema_version" yaml:"schema_version"`

	// Seed initializes the episode generator. Runs with equal seeds and
	// equal call order reproduce each other exactly.
	Seed uint64 `koanf:"seed" yaml:"seed"`

	Options  augment.Options `koanf:"options" yaml:"options"`
	Pipeline Node            `koanf:"pipeline" yaml:"pipeline"`

	Metrics Metrics `koanf:"metrics" yaml:"metrics,omitempty"`
	Preview Preview `koanf:"preview" yaml:"preview,omitempty"`
}
