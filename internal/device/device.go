package device

import "context"

// Device is the capability object wrapping one physical or logical unit.
//
// Concrete implementations are produced by per-class driver factories and
// are owned exclusively by the registry once inserted. Init is called at
// most once per instance and never concurrently with Shutdown; the
// registry enforces this by holding the only owning reference and
// serialising calls through the record state machine.
//
// Side effects of Init/Shutdown (touching hardware registers) belong to
// the concrete driver; the device manager guarantees ordering, not
// protocol correctness.
type Device interface {
	// Identity returns the stable bus-relative ID of the unit.
	Identity() ID

	// Class returns the device classification.
	Class() Class

	// Init brings the device to an operational state.
	Init(ctx context.Context) error

	// Shutdown quiesces the device ahead of removal.
	Shutdown(ctx context.Context) error
}
