package augment

import (
	"math/rand/v2"

	"voxaug/internal/fault"
)

// Augment is a randomized transform negotiated in two phases.
//
// Prepare receives the spec the caller wants out and returns the spec it needs
// in, together with the plan holding every random draw of the episode. The
// spec argument is never modified.
//
// Apply transforms a sample shaped like the spec Prepare returned, using the
// plan from that call. Input arrays are never modified; changed keys get
// freshly allocated arrays.
type Augment interface {
	Prepare(rng *rand.Rand, spec Spec, opts Options) (Spec, Plan, error)
	Apply(sample Sample, plan Plan) (Sample, error)
	String() string
}

// Plan is the per-episode state of one Augment.
type Plan interface {
	// Source is the augment whose Prepare produced the plan.
	Source() Augment
}

type planBase struct{ src Augment }

func (p planBase) Source() Augment { return p.src }

// planFor checks that plan was produced by a's Prepare.
func planFor[P Plan](a Augment, plan Plan) (P, error) {
	var zero P
	if plan == nil {
		return zero, fault.Contractf("%s: apply without prepare", a)
	}
	if plan.Source() != a {
		return zero, fault.Contractf("%s: plan belongs to %s", a, plan.Source())
	}
	p, ok := plan.(P)
	if !ok {
		return zero, fault.Contractf("%s: unexpected plan %T", a, plan)
	}
	return p, nil
}

// coin reports true with probability p.
func coin(rng *rand.Rand, p float64) bool {
	return rng.Float64() < p
}

func checkProb(name string, p float64) error {
	if !(p >= 0 && p <= 1) {
		return fault.Configf("%s must be in [0, 1], got %g", name, p)
	}
	return nil
}
