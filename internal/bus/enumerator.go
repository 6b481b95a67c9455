package bus

import (
	"context"

	"github.com/samajesteduroyaume/devman/internal/device"
)

// Enumerator converts bus-specific probing into a flat list of raw
// device descriptors. One implementation exists per bus family.
//
// Enumerate must be idempotent and side-effect-free on the bus beyond
// standard read-only probing. A partially-present bus (controller there,
// nothing attached) yields an empty slice, not an error.
//
// Implementations receive their probing backend (config-space reader,
// port prober, HCI transport) at construction time and never retain a
// reference to any descriptor they return.
type Enumerator interface {
	// Family identifies which bus family this enumerator probes.
	Family() device.Family

	// Enumerate probes the bus and returns descriptors for every unit
	// currently present.
	Enumerate(ctx context.Context) ([]device.RawDescriptor, error)
}
