package augment

import (
	"voxaug/internal/fault"
	"voxaug/internal/kernel"
)

// NewMissingSection simulates whole missing sections by filling up to maxSec
// slices with a constant, or a random value per slice.
func NewMissingSection(maxSec int, skip, value float64, random bool) (*Section, error) {
	fill, err := kernel.NewFill(value, random)
	if err != nil {
		return nil, err
	}
	return NewSection(SectionConfig{Kernel: fill, MaxSec: maxSec, Skip: skip})
}

// NewPartialMissingSection fills random quadrants of up to maxSec slices.
func NewPartialMissingSection(maxSec int, skip, value float64, random bool) (*Section, error) {
	fill, err := kernel.NewFill(value, random)
	if err != nil {
		return nil, err
	}
	return NewPartialSection(SectionConfig{Kernel: fill, MaxSec: maxSec, Skip: skip})
}

// NewMixedMissingSection chains full and partial missing sections. maxSec is
// either one count shared by both or a (full, partial) pair.
func NewMixedMissingSection(maxSec []int, skip, value float64, random bool) (*Compose, error) {
	full, part, err := splitMax(maxSec)
	if err != nil {
		return nil, err
	}
	a, err := NewMissingSection(full, skip, value, random)
	if err != nil {
		return nil, err
	}
	b, err := NewPartialMissingSection(part, skip, value, random)
	if err != nil {
		return nil, err
	}
	return NewCompose(a, b), nil
}

// NewBlurrySection simulates out-of-focus sections.
func NewBlurrySection(maxSec int, skip, sigma float64, random bool) (*Section, error) {
	blur, err := kernel.NewBlur(sigma, random)
	if err != nil {
		return nil, err
	}
	return NewSection(SectionConfig{Kernel: blur, MaxSec: maxSec, Skip: skip})
}

func NewPartialBlurrySection(maxSec int, skip, sigma float64, random bool) (*Section, error) {
	blur, err := kernel.NewBlur(sigma, random)
	if err != nil {
		return nil, err
	}
	return NewPartialSection(SectionConfig{Kernel: blur, MaxSec: maxSec, Skip: skip})
}

func NewMixedBlurrySection(maxSec []int, skip, sigma float64, random bool) (*Compose, error) {
	full, part, err := splitMax(maxSec)
	if err != nil {
		return nil, err
	}
	a, err := NewBlurrySection(full, skip, sigma, random)
	if err != nil {
		return nil, err
	}
	b, err := NewPartialBlurrySection(part, skip, sigma, random)
	if err != nil {
		return nil, err
	}
	return NewCompose(a, b), nil
}

func splitMax(maxSec []int) (full, part int, err error) {
	switch len(maxSec) {
	case 1:
		return maxSec[0], maxSec[0], nil
	case 2:
		return maxSec[0], maxSec[1], nil
	}
	return 0, 0, fault.Configf("max_sec needs one or two counts, got %v", maxSec)
}

// NewGray2D perturbs contrast, brightness and gamma of every image slice
// independently.
func NewGray2D(contrast, brightness, skip float64) (*Section, error) {
	g, err := kernel.NewGrayscale(contrast, brightness)
	if err != nil {
		return nil, err
	}
	return NewSection(SectionConfig{Kernel: g, Prob: 1, Skip: skip, Target: TargetImgs})
}

// NewGray3D perturbs every image slice identically.
func NewGray3D(contrast, brightness, skip float64) (*Volume, error) {
	g, err := kernel.NewGrayscale(contrast, brightness)
	if err != nil {
		return nil, err
	}
	return NewVolume(VolumeConfig{Kernel: g, Skip: skip, Target: TargetImgs})
}

// NewGrayMixed picks Gray2D or Gray3D with equal odds.
func NewGrayMixed(contrast, brightness, skip float64) (*Blend, error) {
	g2, err := NewGray2D(contrast, brightness, skip)
	if err != nil {
		return nil, err
	}
	g3, err := NewGray3D(contrast, brightness, skip)
	if err != nil {
		return nil, err
	}
	return NewBlend([]Augment{g2, g3}, nil)
}

// NewAdditiveGaussianNoise adds clipped Gaussian noise to the image keys,
// with a scale drawn from [sigmaMin, sigmaMax] per episode.
func NewAdditiveGaussianNoise(sigmaMin, sigmaMax float64, perChannel bool) (*Volume, error) {
	n, err := kernel.NewNoise(sigmaMin, sigmaMax, perChannel)
	if err != nil {
		return nil, err
	}
	return NewVolume(VolumeConfig{Kernel: n, Target: TargetImgs, Required: true})
}
