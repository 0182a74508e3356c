package tensor

// Region is a box of a tensor spanning all channels. Kernels mutate regions
// in place.
type Region struct {
	T      *Tensor
	Z0, Z1 int
	Y0, Y1 int
	X0, X1 int
}

func (t *Tensor) Whole() Region {
	_, z, y, x := t.Dims()
	return Region{T: t, Z1: z, Y1: y, X1: x}
}

// Slice is the full (y, x) extent of depth z.
func (t *Tensor) Slice(z int) Region {
	_, _, y, x := t.Dims()
	return Region{T: t, Z0: z, Z1: z + 1, Y1: y, X1: x}
}

// Sub narrows r to the in-plane window [y0, y1) x [x0, x1), relative to r.
func (r Region) Sub(y0, y1, x0, x1 int) Region {
	return Region{
		T:  r.T,
		Z0: r.Z0, Z1: r.Z1,
		Y0: r.Y0 + y0, Y1: r.Y0 + y1,
		X0: r.X0 + x0, X1: r.X0 + x1,
	}
}

func (r Region) Height() int { return r.Y1 - r.Y0 }
func (r Region) Width() int  { return r.X1 - r.X0 }
func (r Region) Depth() int  { return r.Z1 - r.Z0 }

func (r Region) Empty() bool {
	return r.T == nil || r.Depth() <= 0 || r.Height() <= 0 || r.Width() <= 0 || r.T.shape[AxisC] == 0
}

// Each visits every voxel of r in row-major order.
func (r Region) Each(fn func(v *float32)) {
	if r.Empty() {
		return
	}
	for c := 0; c < r.T.shape[AxisC]; c++ {
		for z := r.Z0; z < r.Z1; z++ {
			for y := r.Y0; y < r.Y1; y++ {
				row := r.T.Index(c, z, y, 0)
				for x := r.X0; x < r.X1; x++ {
					fn(&r.T.data[row+x])
				}
			}
		}
	}
}

// Planes visits each (channel, depth) plane of r.
func (r Region) Planes(fn func(p Plane)) {
	if r.Empty() {
		return
	}
	for c := 0; c < r.T.shape[AxisC]; c++ {
		for z := r.Z0; z < r.Z1; z++ {
			fn(Plane{r: r, c: c, z: z})
		}
	}
}

// Plane is one (channel, depth) cut of a region, addressed relative to the
// region's in-plane origin.
type Plane struct {
	r    Region
	c, z int
}

func (p Plane) Height() int { return p.r.Height() }
func (p Plane) Width() int  { return p.r.Width() }

func (p Plane) At(y, x int) float32 {
	return p.r.T.data[p.r.T.Index(p.c, p.z, p.r.Y0+y, p.r.X0+x)]
}

func (p Plane) Set(y, x int, v float32) {
	p.r.T.data[p.r.T.Index(p.c, p.z, p.r.Y0+y, p.r.X0+x)] = v
}
