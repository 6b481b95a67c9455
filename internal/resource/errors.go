package resource

import "errors"

// Resource errors.
//
// ErrExhausted is environmental and reported up to the insertion path,
// which parks the device in a failed state. ErrDoubleRelease and
// ErrMisaligned indicate broken invariants inside the device manager
// itself and are never recovered from silently.
var (
	// ErrExhausted is returned when a pool cannot satisfy a request.
	ErrExhausted = errors.New("resource: exhausted")

	// ErrDoubleRelease is returned when a grant is released twice.
	ErrDoubleRelease = errors.New("resource: double release")

	// ErrMisaligned is returned when an MMIO alignment is not a power of two.
	ErrMisaligned = errors.New("resource: misaligned request")

	// ErrInvalidRequest is returned for negative counts or a zero-size
	// request carrying an alignment.
	ErrInvalidRequest = errors.New("resource: invalid request")
)
