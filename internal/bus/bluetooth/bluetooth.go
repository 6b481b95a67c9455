// Package bluetooth enumerates Bluetooth units via an opaque HCI
// backend that runs the inquiry procedure.
package bluetooth

import (
	"context"
	"fmt"

	"github.com/samajesteduroyaume/devman/internal/device"
)

// InquiryResponse is one unit reported by an HCI inquiry scan.
type InquiryResponse struct {
	// BDAddr is the 48-bit Bluetooth device address.
	BDAddr [6]byte

	// ClassOfDevice is the 24-bit class-of-device word from the
	// inquiry response.
	ClassOfDevice uint32

	// RSSI is the received signal strength, when reported.
	RSSI int8
}

// HCI is the opaque probing backend: it submits the inquiry command and
// collects responses until the controller completes the scan. The call
// is bounded by the backend's own inquiry duration; a stuck controller
// surfaces as bus.ErrProbeTimeout from the backend.
type HCI interface {
	Inquiry(ctx context.Context) ([]InquiryResponse, error)
}

// Enumerator converts inquiry responses into raw descriptors.
type Enumerator struct {
	hci HCI
}

// New creates a Bluetooth enumerator over the given HCI backend.
func New(hci HCI) *Enumerator {
	return &Enumerator{hci: hci}
}

// Family implements bus.Enumerator.
func (e *Enumerator) Family() device.Family {
	return device.FamilyBluetooth
}

// Enumerate implements bus.Enumerator.
func (e *Enumerator) Enumerate(ctx context.Context) ([]device.RawDescriptor, error) {
	responses, err := e.hci.Inquiry(ctx)
	if err != nil {
		return nil, err
	}

	descs := make([]device.RawDescriptor, 0, len(responses))
	for _, r := range responses {
		descs = append(descs, device.RawDescriptor{
			ID: device.ID{
				Family:  device.FamilyBluetooth,
				Address: Address(r.BDAddr),
			},
			// Inquiry carries no vendor/product pair; the address
			// OUI (upper three octets) stands in for the vendor.
			VendorID: uint32(r.BDAddr[0])<<16 | uint32(r.BDAddr[1])<<8 | uint32(r.BDAddr[2]),
			Capability: device.CapabilitySummary{
				BluetoothCoD: r.ClassOfDevice & 0xFFFFFF,
			},
			Extra: map[string]any{
				"rssi": r.RSSI,
			},
		})
	}
	return descs, nil
}

// Address formats a BD_ADDR in the conventional colon-separated form.
func Address(addr [6]byte) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		addr[0], addr[1], addr[2], addr[3], addr[4], addr[5])
}
