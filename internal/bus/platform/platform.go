// Package platform enumerates fixed platform units (memory-mapped
// UARTs, controllers discovered from firmware tables) declared in
// configuration rather than probed.
package platform

import (
	"context"

	"github.com/samajesteduroyaume/devman/internal/device"
)

// Unit describes one fixed platform device.
type Unit struct {
	// Name is the bus-relative address, e.g. "uart0" or "rtc".
	Name string

	// Class is the declared classification; platform units are not
	// probed, so the table supplies what probing would have read.
	Class device.Class

	VendorID  uint32
	ProductID uint32
}

// Enumerator reports the configured unit table verbatim on every pass.
// Platform hardware cannot hot-plug, so the table never changes after
// construction.
type Enumerator struct {
	units []Unit
}

// New creates a platform enumerator for the given unit table.
func New(units []Unit) *Enumerator {
	cp := make([]Unit, len(units))
	copy(cp, units)
	return &Enumerator{units: cp}
}

// Family implements bus.Enumerator.
func (e *Enumerator) Family() device.Family {
	return device.FamilyPlatform
}

// Enumerate implements bus.Enumerator.
func (e *Enumerator) Enumerate(_ context.Context) ([]device.RawDescriptor, error) {
	descs := make([]device.RawDescriptor, 0, len(e.units))
	for _, u := range e.units {
		descs = append(descs, device.RawDescriptor{
			ID: device.ID{
				Family:  device.FamilyPlatform,
				Address: u.Name,
			},
			VendorID:  u.VendorID,
			ProductID: u.ProductID,
			Extra: map[string]any{
				"class": string(u.Class),
			},
		})
	}
	return descs, nil
}
