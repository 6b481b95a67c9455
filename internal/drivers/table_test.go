package drivers

import (
	"context"
	"errors"
	"testing"

	"github.com/samajesteduroyaume/devman/internal/device"
	"github.com/samajesteduroyaume/devman/internal/resource"
)

func testDesc() device.RawDescriptor {
	return device.RawDescriptor{
		ID: device.ID{Family: device.FamilyPCI, Address: "00:01.0"},
	}
}

func grantFor(t *testing.T, req resource.Request) *resource.Grant {
	t.Helper()
	a := resource.NewArbiter(resource.Config{
		IRQLines:    8,
		DMAChannels: 8,
		MMIOBase:    0x1000_0000,
		MMIOSize:    0x400_0000,
	})
	g, err := a.Reserve(device.ID{Family: device.FamilyPCI, Address: "00:01.0"}, req)
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	return g
}

func TestTable_CoversEveryClass(t *testing.T) {
	table := NewTable()

	for _, class := range device.AllClasses() {
		t.Run(string(class), func(t *testing.T) {
			req := table.Requirements(class, testDesc())
			g := grantFor(t, req)

			dev, err := table.Build(class, testDesc(), g)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if dev.Class() != class {
				t.Errorf("Class() = %q, want %q", dev.Class(), class)
			}

			ctx := context.Background()
			if err := dev.Init(ctx); err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			if err := dev.Shutdown(ctx); err != nil {
				t.Fatalf("Shutdown() error = %v", err)
			}
		})
	}
}

func TestInit_AtMostOnce(t *testing.T) {
	table := NewTable()
	desc := testDesc()
	g := grantFor(t, table.Requirements(device.ClassNetworkEthernet, desc))

	dev, err := table.Build(device.ClassNetworkEthernet, desc, g)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ctx := context.Background()
	if err := dev.Init(ctx); err != nil {
		t.Fatalf("first Init() error = %v", err)
	}
	if err := dev.Init(ctx); !errors.Is(err, ErrAlreadyInitialised) {
		t.Errorf("second Init() error = %v, want ErrAlreadyInitialised", err)
	}
}

func TestShutdown_BeforeInitFails(t *testing.T) {
	table := NewTable()
	desc := testDesc()

	dev, err := table.Build(device.ClassUnknown, desc, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := dev.Shutdown(context.Background()); !errors.Is(err, ErrNotInitialised) {
		t.Errorf("Shutdown() error = %v, want ErrNotInitialised", err)
	}
}

func TestInit_MissingResources(t *testing.T) {
	table := NewTable()
	desc := testDesc()

	// Ethernet requires IRQ, DMA and a register window; a nil grant
	// must fail init rather than pretend the NIC came up.
	dev, err := table.Build(device.ClassNetworkEthernet, desc, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := dev.Init(context.Background()); !errors.Is(err, ErrMissingResources) {
		t.Errorf("Init() error = %v, want ErrMissingResources", err)
	}
}

func TestBuild_UnknownClassRejected(t *testing.T) {
	table := NewTable()

	_, err := table.Build(device.Class("quantum"), testDesc(), nil)
	if !errors.Is(err, device.ErrInvalidClass) {
		t.Errorf("Build() error = %v, want ErrInvalidClass", err)
	}
}
