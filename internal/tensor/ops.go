package tensor

import (
	"voxaug/internal/fault"
)

// NormAxis maps an axis in [-4, 3] onto [0, 3].
func NormAxis(axis int) (int, error) {
	if axis < -Rank || axis >= Rank {
		return 0, fault.Configf("axis %d out of range [-4, 3]", axis)
	}
	if axis < 0 {
		axis += Rank
	}
	return axis, nil
}

// ValidPerm reports whether perm is a permutation of 0..3.
func ValidPerm(perm [Rank]int) bool {
	var seen [Rank]bool
	for _, p := range perm {
		if p < 0 || p >= Rank || seen[p] {
			return false
		}
		seen[p] = true
	}
	return true
}

// Flip returns a copy reversed along axis (already normalized).
func (t *Tensor) Flip(axis int) *Tensor {
	out := New(t.Dims())
	c, z, y, x := t.Dims()
	for ci := 0; ci < c; ci++ {
		for zi := 0; zi < z; zi++ {
			for yi := 0; yi < y; yi++ {
				for xi := 0; xi < x; xi++ {
					src := [Rank]int{ci, zi, yi, xi}
					src[axis] = t.shape[axis] - 1 - src[axis]
					out.data[out.Index(ci, zi, yi, xi)] = t.At(src[0], src[1], src[2], src[3])
				}
			}
		}
	}
	return out
}

// Transpose returns a copy whose axis i is the receiver's axis perm[i].
func (t *Tensor) Transpose(perm [Rank]int) *Tensor {
	var shape [Rank]int
	for i, p := range perm {
		shape[i] = t.shape[p]
	}
	out := New(shape[0], shape[1], shape[2], shape[3])
	var idx [Rank]int
	for ci := 0; ci < shape[0]; ci++ {
		for zi := 0; zi < shape[1]; zi++ {
			for yi := 0; yi < shape[2]; yi++ {
				for xi := 0; xi < shape[3]; xi++ {
					dst := [Rank]int{ci, zi, yi, xi}
					for i, p := range perm {
						idx[p] = dst[i]
					}
					out.data[out.Index(ci, zi, yi, xi)] = t.At(idx[0], idx[1], idx[2], idx[3])
				}
			}
		}
	}
	return out
}

// Crop copies the (z, y, x) window starting at origin (z0, y0, x0) across all
// channels.
func (t *Tensor) Crop(z0, y0, x0, z, y, x int) (*Tensor, error) {
	c, tz, ty, tx := t.Dims()
	if z0 < 0 || y0 < 0 || x0 < 0 || z < 0 || y < 0 || x < 0 ||
		z0+z > tz || y0+y > ty || x0+x > tx {
		return nil, fault.Shapef("crop origin (%d,%d,%d) extent (%d,%d,%d) exceeds %v",
			z0, y0, x0, z, y, x, t.shape)
	}
	out := New(c, z, y, x)
	for ci := 0; ci < c; ci++ {
		for zi := 0; zi < z; zi++ {
			for yi := 0; yi < y; yi++ {
				src := t.Index(ci, z0+zi, y0+yi, x0)
				dst := out.Index(ci, zi, yi, 0)
				copy(out.data[dst:dst+x], t.data[src:src+x])
			}
		}
	}
	return out, nil
}

// CopyPlane copies the (y, x) plane at depth srcZ of src, starting at
// (y0, x0), into depth dstZ of t. The window size is t's in-plane extent.
func (t *Tensor) CopyPlane(dstZ int, src *Tensor, srcZ, y0, x0 int) error {
	c, _, y, x := t.Dims()
	sc, sz, sy, sx := src.Dims()
	if sc != c || srcZ < 0 || srcZ >= sz || dstZ < 0 || dstZ >= t.shape[AxisZ] ||
		y0 < 0 || x0 < 0 || y0+y > sy || x0+x > sx {
		return fault.Shapef("cannot copy plane %d of %v at (%d,%d) into plane %d of %v",
			srcZ, src.shape, y0, x0, dstZ, t.shape)
	}
	for ci := 0; ci < c; ci++ {
		for yi := 0; yi < y; yi++ {
			s := src.Index(ci, srcZ, y0+yi, x0)
			d := t.Index(ci, dstZ, yi, 0)
			copy(t.data[d:d+x], src.data[s:s+x])
		}
	}
	return nil
}

// FillPlane sets every voxel of depth z to v.
func (t *Tensor) FillPlane(z int, v float32) {
	t.Slice(z).Each(func(p *float32) { *p = v })
}

// ConcatZ stacks tensors along depth. Channel and in-plane extents must agree.
func ConcatZ(parts ...*Tensor) (*Tensor, error) {
	if len(parts) == 0 {
		return nil, fault.Configf("nothing to concatenate")
	}
	c, _, y, x := parts[0].Dims()
	depth := 0
	for _, p := range parts {
		pc, pz, py, px := p.Dims()
		if pc != c || py != y || px != x {
			return nil, fault.Shapef("cannot concatenate %v with %v", parts[0].shape, p.shape)
		}
		depth += pz
	}
	out := New(c, depth, y, x)
	plane := y * x
	for ci := 0; ci < c; ci++ {
		off := 0
		for _, p := range parts {
			pz := p.shape[AxisZ]
			src := p.Index(ci, 0, 0, 0)
			dst := out.Index(ci, off, 0, 0)
			copy(out.data[dst:dst+pz*plane], p.data[src:src+pz*plane])
			off += pz
		}
	}
	return out, nil
}

// SliceZ copies depths [z0, z1).
func (t *Tensor) SliceZ(z0, z1 int) (*Tensor, error) {
	_, _, y, x := t.Dims()
	return t.Crop(z0, 0, 0, z1-z0, y, x)
}
