// Package fault holds the error taxonomy shared by every augmentation package.
// All failures are fail-fast: callers test them with errors.Is against the
// sentinels below.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration reports invalid hyperparameters or a malformed shape.
	ErrConfiguration = errors.New("configuration error")
	// ErrShapeMismatch reports inconsistent depth across an active key set, or a
	// count or margin that does not fit in the available depth.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrContractViolation reports an Apply without a matching Prepare, or a key
	// missing from the spec or the sample.
	ErrContractViolation = errors.New("contract violation")
)

func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func Shapef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrShapeMismatch, fmt.Sprintf(format, args...))
}

func Contractf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...))
}

// KindOf returns a short label for err, used as a metrics dimension.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrShapeMismatch):
		return "shape_mismatch"
	case errors.Is(err, ErrContractViolation):
		return "contract_violation"
	default:
		return "other"
	}
}
