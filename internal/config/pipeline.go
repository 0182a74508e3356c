package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"voxaug/internal/fault"
	"voxaug/internal/manifest"
)

const (
	SupportedSchema = "v1"

	// EnvPrefix marks variables that override manifest values; "__" separates
	// nesting levels, e.g. VOXAUG__OPTIONS__IMGS=image.
	EnvPrefix = "VOXAUG__"

	DefaultSeed     = 42
	DefaultFlipProb = 0.5
	DefaultEpisodes = 1
)

// DefaultDisp and DefaultMargin configure the misalign family when a node
// leaves them out.
var (
	DefaultDisp   = []int{5, 25}
	DefaultMargin = 2
)

// Grayscale and noise nodes fall back to the same values the kernel registry
// uses for an empty params map.
const (
	DefaultContrast   = 0.3
	DefaultBrightness = 0.3
	DefaultGraySkip   = 0.3
	DefaultSigmaMin   = 0.01
	DefaultSigmaMax   = 0.1
)

// LoadManifest merges the pipeline YAML with VOXAUG__ environment variables,
// validates schema_version and fills defaults.
func LoadManifest(path string) (manifest.File, error) {
	var m manifest.File
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return m, fmt.Errorf("%w: pipeline %s: %w", fault.ErrConfiguration, path, err)
	}
	sv := k.String("schema_version")
	if sv != "" && sv != SupportedSchema {
		return m, fault.Configf("pipeline schema_version %q not supported (want %q)", sv, SupportedSchema)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return m, fmt.Errorf("%w: environment: %w", fault.ErrConfiguration, err)
	}
	if !k.Exists("seed") {
		_ = k.Set("seed", DefaultSeed)
	}

	if err := k.Unmarshal("", &m); err != nil {
		return m, fmt.Errorf("%w: pipeline %s: %w", fault.ErrConfiguration, path, err)
	}
	if m.Pipeline.Type == "" {
		return m, fault.Configf("pipeline %s has no pipeline node", path)
	}
	applyDefaults(&m)
	return m, nil
}

// envKey maps VOXAUG__PREVIEW__EPISODES to preview.episodes.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func applyDefaults(m *manifest.File) {
	if m.SchemaVersion == "" {
		m.SchemaVersion = SupportedSchema
	}
	if m.Preview.Episodes == 0 {
		m.Preview.Episodes = DefaultEpisodes
	}
	m.Pipeline.Walk(func(n *manifest.Node) {
		switch n.Type {
		case manifest.TypeFlip, manifest.TypeTranspose:
			if n.Prob == nil {
				p := DefaultFlipProb
				n.Prob = &p
			}
		case manifest.TypeMisalign, manifest.TypeMisalignPlusMissing, manifest.TypeSlipMisalign:
			if len(n.Disp) == 0 {
				n.Disp = append([]int(nil), DefaultDisp...)
			}
			if n.Margin == nil {
				margin := DefaultMargin
				n.Margin = &margin
			}
		case manifest.TypeGray2D, manifest.TypeGray3D, manifest.TypeGrayMixed:
			setDefault(&n.Contrast, DefaultContrast)
			setDefault(&n.Brightness, DefaultBrightness)
			setDefault(&n.Skip, DefaultGraySkip)
		case manifest.TypeNoise:
			setDefault(&n.SigmaMax, DefaultSigmaMax)
			setDefault(&n.SigmaMin, min(DefaultSigmaMin, *n.SigmaMax))
		}
	})
}

func setDefault(p **float64, v float64) {
	if *p == nil {
		*p = &v
	}
}
