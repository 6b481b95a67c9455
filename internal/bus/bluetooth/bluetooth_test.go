package bluetooth

import (
	"context"
	"errors"
	"testing"

	"github.com/samajesteduroyaume/devman/internal/bus"
	"github.com/samajesteduroyaume/devman/internal/device"
)

func TestEnumerate_AddressAndClass(t *testing.T) {
	hci := NewStaticHCI(InquiryResponse{
		BDAddr:        [6]byte{0x00, 0x1A, 0x7D, 0xDA, 0x71, 0x13},
		ClassOfDevice: 0x000408, // audio/video major class
		RSSI:          -52,
	})
	e := New(hci)

	descs, err := e.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	if len(descs) != 1 {
		t.Fatalf("Enumerate() returned %d descriptors, want 1", len(descs))
	}

	d := descs[0]
	if d.ID.Address != "00:1a:7d:da:71:13" {
		t.Errorf("address = %q, want 00:1a:7d:da:71:13", d.ID.Address)
	}
	if got := bus.Classify(d); got != device.ClassAudioAdapter {
		t.Errorf("Classify() = %q, want %q", got, device.ClassAudioAdapter)
	}
}

func TestEnumerate_DefaultClassIsAdapter(t *testing.T) {
	hci := NewStaticHCI(InquiryResponse{
		BDAddr:        [6]byte{0xAA, 0xBB, 0xCC, 0x00, 0x11, 0x22},
		ClassOfDevice: 0x000104, // computer major class
	})
	e := New(hci)

	descs, err := e.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	if got := bus.Classify(descs[0]); got != device.ClassBluetoothAdapter {
		t.Errorf("Classify() = %q, want %q", got, device.ClassBluetoothAdapter)
	}
}

func TestEnumerate_InquiryFailure(t *testing.T) {
	hci := NewStaticHCI()
	hci.SetError(bus.ErrBusNotPresent)
	e := New(hci)

	_, err := e.Enumerate(context.Background())
	if !errors.Is(err, bus.ErrBusNotPresent) {
		t.Errorf("Enumerate() error = %v, want ErrBusNotPresent", err)
	}
}
