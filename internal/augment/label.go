package augment

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"voxaug/internal/tensor"
)

// FragmentSuffix names the derived key Label adds per segmentation when
// fragments are requested.
const FragmentSuffix = "_fragments"

// Labeler recomputes object ids of a segmentation. The result must have the
// input's depth and in-plane extent.
type Labeler interface {
	Label(seg *tensor.Tensor) *tensor.Tensor
}

// LabelerFunc adapts a function to Labeler.
type LabelerFunc func(seg *tensor.Tensor) *tensor.Tensor

func (f LabelerFunc) Label(seg *tensor.Tensor) *tensor.Tensor { return f(seg) }

// Label relabels the segmentation keys so that every connected fragment gets
// its own id. Misalignment and lost sections can split objects; relabeling
// keeps the target consistent with what is visible.
type Label struct {
	labeler   Labeler
	fragments bool
}

// NewLabel uses ConnectedComponents when labeler is nil.
func NewLabel(labeler Labeler, fragments bool) *Label {
	if labeler == nil {
		labeler = ConnectedComponents{}
	}
	return &Label{labeler: labeler, fragments: fragments}
}

type labelPlan struct {
	planBase
	segs []string
}

func (l *Label) Prepare(_ *rand.Rand, spec Spec, opts Options) (Spec, Plan, error) {
	segs, err := required(spec, opts.Segs, "segmentation")
	if err != nil {
		return nil, nil, err
	}
	return spec.Clone(), &labelPlan{planBase{l}, segs}, nil
}

func (l *Label) Apply(sample Sample, plan Plan) (Sample, error) {
	p, err := planFor[*labelPlan](l, plan)
	if err != nil {
		return nil, err
	}
	src, err := lookup(sample, p.segs)
	if err != nil {
		return nil, err
	}
	out := sample.Clone()
	for i, seg := range src {
		k := p.segs[i]
		relabeled := l.labeler.Label(seg)
		out[k] = relabeled
		if l.fragments {
			out[k+FragmentSuffix] = FragmentPairs(seg, relabeled)
		}
	}
	return out, nil
}

func (l *Label) String() string {
	return fmt.Sprintf("Label(fragments=%t)", l.fragments)
}

// pairs returns the distinct (old, new) id pairs over channel 0 of both
// arrays, each packed as old<<32 | new, in ascending order. Background pairs
// are skipped.
func pairs(old, relabeled *tensor.Tensor) []uint64 {
	_, z, y, x := old.Dims()
	seen := make(map[uint64]struct{})
	for zi := 0; zi < z; zi++ {
		for yi := 0; yi < y; yi++ {
			for xi := 0; xi < x; xi++ {
				o := uint32(old.At(0, zi, yi, xi))
				n := uint32(relabeled.At(0, zi, yi, xi))
				if o == 0 && n == 0 {
					continue
				}
				seen[uint64(o)<<32|uint64(n)] = struct{}{}
			}
		}
	}
	out := make([]uint64, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// FragmentPairs lists the (old, new) id pairs as a (1, 1, N, 2) array.
func FragmentPairs(old, relabeled *tensor.Tensor) *tensor.Tensor {
	ps := pairs(old, relabeled)
	t := tensor.New(1, 1, len(ps), 2)
	for i, p := range ps {
		t.Set(0, 0, i, 0, float32(p>>32))
		t.Set(0, 0, i, 1, float32(uint32(p)))
	}
	return t
}

// FragmentMap maps every original id to the ascending ids it was split into.
func FragmentMap(old, relabeled *tensor.Tensor) map[uint32][]uint32 {
	out := make(map[uint32][]uint32)
	for _, p := range pairs(old, relabeled) {
		o := uint32(p >> 32)
		out[o] = append(out[o], uint32(p))
	}
	return out
}

// ConnectedComponents labels 6-connected runs of equal non-zero ids in
// channel 0, numbering components from 1 in scan order. Background stays 0.
type ConnectedComponents struct{}

func (ConnectedComponents) Label(seg *tensor.Tensor) *tensor.Tensor {
	_, z, y, x := seg.Dims()
	out := tensor.New(1, z, y, x)
	next := float32(0)
	var stack [][3]int
	for zi := 0; zi < z; zi++ {
		for yi := 0; yi < y; yi++ {
			for xi := 0; xi < x; xi++ {
				id := seg.At(0, zi, yi, xi)
				if id == 0 || out.At(0, zi, yi, xi) != 0 {
					continue
				}
				next++
				out.Set(0, zi, yi, xi, next)
				stack = append(stack[:0], [3]int{zi, yi, xi})
				for len(stack) > 0 {
					v := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					for _, d := range neighbors6 {
						nz, ny, nx := v[0]+d[0], v[1]+d[1], v[2]+d[2]
						if nz < 0 || ny < 0 || nx < 0 || nz >= z || ny >= y || nx >= x {
							continue
						}
						if seg.At(0, nz, ny, nx) != id || out.At(0, nz, ny, nx) != 0 {
							continue
						}
						out.Set(0, nz, ny, nx, next)
						stack = append(stack, [3]int{nz, ny, nx})
					}
				}
			}
		}
	}
	return out
}

var neighbors6 = [6][3]int{
	{-1, 0, 0}, {1, 0, 0},
	{0, -1, 0}, {0, 1, 0},
	{0, 0, -1}, {0, 0, 1},
}
