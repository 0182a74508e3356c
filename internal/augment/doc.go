// Package augment implements the two-phase augmentation engine.
//
// Every Augment negotiates shapes before any data exists and then transforms
// the data it asked for:
//
//	input, plan, err := aug.Prepare(rng, outputSpec, opts)
//	// fetch arrays shaped like input
//	out, err := aug.Apply(sample, plan)
//
// Prepare commits every random draw of the episode into the returned Plan, so
// Apply is a pure function of its arguments and the same Augment value can
// serve many episodes, including concurrent ones, as long as each episode
// keeps its own plan.
//
// Combinators:
//   - Compose threads the spec backward and the sample forward through its
//     children.
//   - Blend picks exactly one child per episode.
//
// Transform families:
//   - Section: per-slice corruption dispatched to a kernel.Kernel.
//   - Volume: whole-array corruption dispatched to a kernel.Kernel.
//   - Flip and Transpose: symmetry operations.
//   - Misalign, MisalignPlusMissing and SlipMisalign: translational
//     discontinuities between slices.
//   - LostSection and LostPlusMissing: dropped slices.
//   - Label: connected-component relabeling.
//   - Warp: pluggable geometric warp.
package augment
