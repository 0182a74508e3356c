package engine

import (
	"slices"

	"voxaug/internal/augment"
	"voxaug/internal/pipeline"
	"voxaug/internal/tensor"
)

// blockSize is the in-plane edge of one synthetic segment.
const blockSize = 8

// Synthesize returns a Fetch that fabricates samples for previews:
// segmentation keys get a grid of block-shaped objects running through the
// whole depth, every other key a smooth gradient in [0, 1].
func Synthesize(opts augment.Options) pipeline.Fetch {
	return func(spec augment.Spec) (augment.Sample, error) {
		out := make(augment.Sample, len(spec))
		for _, k := range spec.Keys() {
			shape, err := tensor.Canonical(spec[k])
			if err != nil {
				return nil, err
			}
			t := tensor.New(shape[0], shape[1], shape[2], shape[3])
			if slices.Contains(opts.Segs, k) {
				blocks(t)
			} else {
				gradient(t)
			}
			out[k] = t
		}
		return out, nil
	}
}

func blocks(t *tensor.Tensor) {
	c, z, y, x := t.Dims()
	cols := (x + blockSize - 1) / blockSize
	for ci := 0; ci < c; ci++ {
		for zi := 0; zi < z; zi++ {
			for yi := 0; yi < y; yi++ {
				for xi := 0; xi < x; xi++ {
					id := 1 + (yi/blockSize)*cols + xi/blockSize
					t.Set(ci, zi, yi, xi, float32(id))
				}
			}
		}
	}
}

func gradient(t *tensor.Tensor) {
	c, z, y, x := t.Dims()
	span := float32(z + y + x)
	for ci := 0; ci < c; ci++ {
		for zi := 0; zi < z; zi++ {
			for yi := 0; yi < y; yi++ {
				for xi := 0; xi < x; xi++ {
					t.Set(ci, zi, yi, xi, float32(zi+yi+xi)/span)
				}
			}
		}
	}
}
