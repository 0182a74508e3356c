package augment

import (
	"slices"
	"sort"

	"voxaug/internal/fault"
	"voxaug/internal/tensor"
)

// Re-exported so callers need a single import for errors.Is checks.
var (
	ErrConfiguration     = fault.ErrConfiguration
	ErrShapeMismatch     = fault.ErrShapeMismatch
	ErrContractViolation = fault.ErrContractViolation
)

// Sample maps keys to co-registered arrays.
type Sample map[string]*tensor.Tensor

// Keys returns the keys in ascending order.
func (s Sample) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone copies the mapping, not the arrays.
func (s Sample) Clone() Sample {
	out := make(Sample, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Spec reports the shape of every array.
func (s Sample) Spec() Spec {
	out := make(Spec, len(s))
	for k, v := range s {
		sh := v.Shape()
		out[k] = sh[:]
	}
	return out
}

// Entry is one key/array pair of a sorted sample.
type Entry struct {
	Key    string
	Tensor *tensor.Tensor
}

// Sorted lists the sample in ascending key order.
func Sorted(s Sample) []Entry {
	out := make([]Entry, 0, len(s))
	for _, k := range s.Keys() {
		out = append(out, Entry{Key: k, Tensor: s[k]})
	}
	return out
}

// ToTensor canonicalizes raw row-major data to four axes.
func ToTensor(shape []int, data []float32) (*tensor.Tensor, error) {
	return tensor.FromData(shape, data)
}

// Shape is an ordered per-axis size list. Negotiation addresses axes from the
// end: depth is -3, height -2, width -1.
type Shape []int

// at reads an axis of the canonical four-axis shape, so a 2D shape has
// depth 1.
func (s Shape) at(axis int) (int, error) {
	if axis < -tensor.Rank || axis >= 0 {
		return 0, fault.Shapef("shape %v has no axis %d", []int(s), axis)
	}
	c, err := tensor.Canonical(s)
	if err != nil {
		return 0, err
	}
	return c[tensor.Rank+axis], nil
}

// with sets an axis, left-padding with singleton axes when s is too short
// to hold it.
func (s Shape) with(axis, v int) Shape {
	out := slices.Clone(s)
	for len(out)+axis < 0 {
		out = append(Shape{1}, out...)
	}
	out[len(out)+axis] = v
	return out
}

// Depth returns the depth extent (axis -3).
func (s Shape) Depth() (int, error) { return s.at(-3) }

// Spec maps keys to shapes. It is negotiated before arrays exist.
type Spec map[string]Shape

func (s Spec) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone deep-copies the spec.
func (s Spec) Clone() Spec {
	out := make(Spec, len(s))
	for k, v := range s {
		out[k] = slices.Clone(v)
	}
	return out
}

// Equal compares shapes after canonicalizing both sides to four axes.
func (s Spec) Equal(o Spec) bool {
	if len(s) != len(o) {
		return false
	}
	for k, v := range s {
		w, ok := o[k]
		if !ok {
			return false
		}
		a, errA := tensor.Canonical(v)
		b, errB := tensor.Canonical(w)
		if errA != nil || errB != nil {
			if !slices.Equal(v, w) {
				return false
			}
			continue
		}
		if a != b {
			return false
		}
	}
	return true
}

// Options names the roles keys play in an episode. Empty lists mean every key
// in the spec, except where an augment requires an explicit list.
type Options struct {
	Keys []string `koanf:"keys" yaml:"keys,omitempty"`
	Imgs []string `koanf:"imgs" yaml:"imgs,omitempty"`
	Segs []string `koanf:"segs" yaml:"segs,omitempty"`
}

// Target selects which option list forms an augment's active key set.
type Target int

const (
	TargetKeys Target = iota
	TargetImgs
)

func (t Target) String() string {
	if t == TargetImgs {
		return "imgs"
	}
	return "keys"
}

func (t Target) list(opts Options) []string {
	if t == TargetImgs {
		return opts.Imgs
	}
	return opts.Keys
}

// resolve returns the sorted, de-duplicated keys named by list, or every spec
// key when list is empty.
func resolve(spec Spec, list []string) ([]string, error) {
	if len(list) == 0 {
		return spec.Keys(), nil
	}
	keys := slices.Clone(list)
	sort.Strings(keys)
	keys = slices.Compact(keys)
	for _, k := range keys {
		if _, ok := spec[k]; !ok {
			return nil, fault.Contractf("key %q is not in the spec", k)
		}
	}
	return keys, nil
}

// required is resolve for augments that cannot default to every key.
func required(spec Spec, list []string, role string) ([]string, error) {
	if len(list) == 0 {
		return nil, fault.Contractf("no %s keys given", role)
	}
	return resolve(spec, list)
}

// commonDepth returns the depth shared by keys.
func commonDepth(spec Spec, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, fault.Contractf("empty key set")
	}
	depth := -1
	for _, k := range keys {
		z, err := spec[k].Depth()
		if err != nil {
			return 0, err
		}
		if depth >= 0 && z != depth {
			return 0, fault.Shapef("depth %d of %q differs from %d", z, k, depth)
		}
		depth = z
	}
	return depth, nil
}

// lookup fetches keys from sample, failing on the first missing one.
func lookup(sample Sample, keys []string) ([]*tensor.Tensor, error) {
	out := make([]*tensor.Tensor, len(keys))
	for i, k := range keys {
		t, ok := sample[k]
		if !ok || t == nil {
			return nil, fault.Contractf("key %q is not in the sample", k)
		}
		out[i] = t
	}
	return out, nil
}
