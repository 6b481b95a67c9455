// Package usb enumerates USB devices through an opaque PortProber
// backend that performs the actual descriptor walks.
package usb

import (
	"context"
	"fmt"

	"github.com/samajesteduroyaume/devman/internal/device"
)

// PortSummary is what the probing backend reports for one attached
// device: the root-hub bus number, the port path, the device descriptor
// triad, and one triad per interface descriptor. The transfer-level walk
// that produces it (control transfers against endpoint zero) is the
// backend's concern.
type PortSummary struct {
	Bus  uint8
	Port uint8

	VendorID  uint16
	ProductID uint16

	Class    uint8
	Subclass uint8
	Protocol uint8

	Interfaces [][3]uint8
}

// PortProber is the opaque probing backend for a USB host controller.
type PortProber interface {
	// Ports reports a summary for every currently attached device.
	// An attached hub's downstream devices appear as their own entries.
	Ports(ctx context.Context) ([]PortSummary, error)
}

// Enumerator converts port summaries into raw descriptors.
type Enumerator struct {
	prober PortProber
}

// New creates a USB enumerator over the given port prober.
func New(prober PortProber) *Enumerator {
	return &Enumerator{prober: prober}
}

// Family implements bus.Enumerator.
func (e *Enumerator) Family() device.Family {
	return device.FamilyUSB
}

// Enumerate implements bus.Enumerator.
func (e *Enumerator) Enumerate(ctx context.Context) ([]device.RawDescriptor, error) {
	ports, err := e.prober.Ports(ctx)
	if err != nil {
		return nil, err
	}

	descs := make([]device.RawDescriptor, 0, len(ports))
	for _, p := range ports {
		ifaces := make([][3]uint8, len(p.Interfaces))
		copy(ifaces, p.Interfaces)

		descs = append(descs, device.RawDescriptor{
			ID: device.ID{
				Family:  device.FamilyUSB,
				Address: Address(p.Bus, p.Port),
			},
			VendorID:  uint32(p.VendorID),
			ProductID: uint32(p.ProductID),
			Capability: device.CapabilitySummary{
				USBClass:      p.Class,
				USBSubclass:   p.Subclass,
				USBProtocol:   p.Protocol,
				USBInterfaces: ifaces,
			},
		})
	}
	return descs, nil
}

// Address formats a (bus, port) pair in the conventional "b-p" notation.
func Address(busNr, port uint8) string {
	return fmt.Sprintf("%d-%d", busNr, port)
}
