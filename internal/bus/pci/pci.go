// Package pci enumerates PCI/PCIe functions by walking configuration
// space through an opaque ConfigSpace backend.
package pci

import (
	"context"
	"fmt"

	"github.com/samajesteduroyaume/devman/internal/bus"
	"github.com/samajesteduroyaume/devman/internal/device"
)

// Architectural limits of the configuration address space.
const (
	MaxBuses     = 256
	MaxSlots     = 32
	MaxFunctions = 8
)

// Configuration header offsets (type-agnostic portion).
const (
	offVendorDevice = 0x00 // device ID [31:16] | vendor ID [15:0]
	offClassCode    = 0x08 // class [31:24] | subclass [23:16] | prog-if [15:8]
	offHeaderType   = 0x0C // header type at [23:16]
)

// vendorNotPresent is the sentinel read back from an empty slot.
const vendorNotPresent = 0xFFFF

// headerTypeMultiFunction is bit 7 of the header-type field.
const headerTypeMultiFunction = 0x80

// ConfigSpace is the opaque probing backend: a read-only view of PCI
// configuration space. Implementations are supplied by the platform
// (port 0xCF8/0xCFC, ECAM, or a fixture); reads must be side-effect-free.
type ConfigSpace interface {
	// Read32 reads a 32-bit dword at the given aligned offset of the
	// (bus, slot, function) configuration header.
	Read32(busNr, slot, fn uint8, offset uint8) (uint32, error)
}

// Enumerator walks all (bus, slot, function) triples and produces one
// descriptor per present function. Bridges are classified but not
// recursively descended; the walk covers every primary bus number, so a
// flat descriptor list still reflects the whole topology.
type Enumerator struct {
	cs ConfigSpace
}

// New creates a PCI enumerator over the given configuration-space backend.
func New(cs ConfigSpace) *Enumerator {
	return &Enumerator{cs: cs}
}

// Family implements bus.Enumerator.
func (e *Enumerator) Family() device.Family {
	return device.FamilyPCI
}

// Enumerate implements bus.Enumerator.
//
// A vendor-ID read of the not-present sentinel short-circuits the slot
// without descending into its functions; functions beyond 0 are probed
// only when function 0 advertises the multi-function header-type bit.
func (e *Enumerator) Enumerate(ctx context.Context) ([]device.RawDescriptor, error) {
	var out []device.RawDescriptor

	for busNr := 0; busNr < MaxBuses; busNr++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", bus.ErrProbeTimeout, err)
		}
		for slot := 0; slot < MaxSlots; slot++ {
			desc, multi, err := e.probeFunction(uint8(busNr), uint8(slot), 0)
			if err != nil {
				return nil, err
			}
			if desc == nil {
				continue
			}
			out = append(out, *desc)

			if !multi {
				continue
			}
			for fn := 1; fn < MaxFunctions; fn++ {
				d, _, err := e.probeFunction(uint8(busNr), uint8(slot), uint8(fn))
				if err != nil {
					return nil, err
				}
				if d != nil {
					out = append(out, *d)
				}
			}
		}
	}
	return out, nil
}

// probeFunction reads the fixed-size header of one function. It returns
// a nil descriptor for an empty slot and reports whether function 0
// declared itself multi-function.
func (e *Enumerator) probeFunction(busNr, slot, fn uint8) (*device.RawDescriptor, bool, error) {
	idReg, err := e.cs.Read32(busNr, slot, fn, offVendorDevice)
	if err != nil {
		return nil, false, err
	}
	vendor := idReg & 0xFFFF
	if vendor == vendorNotPresent {
		return nil, false, nil
	}
	product := idReg >> 16

	classReg, err := e.cs.Read32(busNr, slot, fn, offClassCode)
	if err != nil {
		return nil, false, err
	}
	hdrReg, err := e.cs.Read32(busNr, slot, fn, offHeaderType)
	if err != nil {
		return nil, false, err
	}
	headerType := uint8(hdrReg >> 16)

	desc := &device.RawDescriptor{
		ID: device.ID{
			Family:  device.FamilyPCI,
			Address: Address(busNr, slot, fn),
		},
		VendorID:  vendor,
		ProductID: product,
		Capability: device.CapabilitySummary{
			PCIClass:    uint8(classReg >> 24),
			PCISubclass: uint8(classReg >> 16),
			PCIProgIF:   uint8(classReg >> 8),
		},
		Extra: map[string]any{
			"header_type": headerType,
		},
	}
	return desc, headerType&headerTypeMultiFunction != 0, nil
}

// Address formats a (bus, slot, function) triple in the conventional
// "bb:ss.f" notation used as the bus-relative part of a device ID.
func Address(busNr, slot, fn uint8) string {
	return fmt.Sprintf("%02x:%02x.%d", busNr, slot, fn)
}
