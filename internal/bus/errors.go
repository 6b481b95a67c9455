package bus

import "errors"

// Enumeration errors.
//
// ErrBusNotPresent and ErrProbeTimeout are recoverable: the manager logs
// them, treats the bus as yielding zero devices for that pass, and
// retries on the next hot-plug tick. Enumerators must not retry
// internally within a single Enumerate call.
var (
	// ErrBusNotPresent is returned when the bus controller itself is absent.
	ErrBusNotPresent = errors.New("bus: not present")

	// ErrProbeTimeout is returned when a bus probe exceeds its deadline.
	ErrProbeTimeout = errors.New("bus: probe timeout")

	// ErrMalformedResponse is returned when probe data fails basic sanity checks.
	ErrMalformedResponse = errors.New("bus: malformed response")
)

// Recoverable reports whether err is a transient enumeration failure
// that the hot-plug worker should retry on a later tick.
func Recoverable(err error) bool {
	return errors.Is(err, ErrBusNotPresent) || errors.Is(err, ErrProbeTimeout)
}
