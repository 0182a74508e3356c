// Package tensor implements the dense 4-axis float32 array exchanged by the
// augmentation pipeline. Axes are always (channel, depth, height, width).
package tensor

import (
	"voxaug/internal/fault"
)

// Rank is the number of axes every Tensor carries.
const Rank = 4

// Axis positions within a canonical shape.
const (
	AxisC = iota
	AxisZ
	AxisY
	AxisX
)

type Tensor struct {
	shape [Rank]int
	data  []float32
}

// Canonical left-pads shape with singleton axes up to four. Ranks outside
// [2, 4] and negative extents are rejected.
func Canonical(shape []int) ([Rank]int, error) {
	var out [Rank]int
	if len(shape) < 2 || len(shape) > Rank {
		return out, fault.Configf("array must have 2 to 4 axes, got %d", len(shape))
	}
	pad := Rank - len(shape)
	for i := 0; i < pad; i++ {
		out[i] = 1
	}
	for i, n := range shape {
		if n < 0 {
			return out, fault.Configf("negative extent %d in shape %v", n, shape)
		}
		out[pad+i] = n
	}
	return out, nil
}

// New allocates a zero tensor.
func New(c, z, y, x int) *Tensor {
	return &Tensor{
		shape: [Rank]int{c, z, y, x},
		data:  make([]float32, c*z*y*x),
	}
}

// FromData wraps data (row-major) after canonicalizing shape. The slice is
// used as is, not copied.
func FromData(shape []int, data []float32) (*Tensor, error) {
	s, err := Canonical(shape)
	if err != nil {
		return nil, err
	}
	if n := s[0] * s[1] * s[2] * s[3]; n != len(data) {
		return nil, fault.Configf("shape %v needs %d values, got %d", shape, n, len(data))
	}
	return &Tensor{shape: s, data: data}, nil
}

// Ramp returns a tensor whose values count up from zero, handy for tracing
// where each voxel ended up.
func Ramp(c, z, y, x int) *Tensor {
	t := New(c, z, y, x)
	for i := range t.data {
		t.data[i] = float32(i)
	}
	return t
}

func (t *Tensor) Shape() [Rank]int { return t.shape }

func (t *Tensor) Dims() (c, z, y, x int) {
	return t.shape[0], t.shape[1], t.shape[2], t.shape[3]
}

func (t *Tensor) Data() []float32 { return t.data }

func (t *Tensor) Len() int { return len(t.data) }

func (t *Tensor) Index(c, z, y, x int) int {
	return ((c*t.shape[1]+z)*t.shape[2]+y)*t.shape[3] + x
}

func (t *Tensor) At(c, z, y, x int) float32 { return t.data[t.Index(c, z, y, x)] }

func (t *Tensor) Set(c, z, y, x int, v float32) { t.data[t.Index(c, z, y, x)] = v }

func (t *Tensor) Clone() *Tensor {
	d := make([]float32, len(t.data))
	copy(d, t.data)
	return &Tensor{shape: t.shape, data: d}
}

// Equal reports whether both tensors have the same shape and values.
func (t *Tensor) Equal(o *Tensor) bool {
	if t.shape != o.shape {
		return false
	}
	for i, v := range t.data {
		if o.data[i] != v {
			return false
		}
	}
	return true
}
