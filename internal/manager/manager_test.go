package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/samajesteduroyaume/devman/internal/bus"
	"github.com/samajesteduroyaume/devman/internal/device"
	"github.com/samajesteduroyaume/devman/internal/drivers"
	"github.com/samajesteduroyaume/devman/internal/resource"
)

// fakeEnumerator is a synthetic bus whose reported hardware can be
// reshaped between passes.
type fakeEnumerator struct {
	mu     sync.Mutex
	family device.Family
	descs  []device.RawDescriptor
	err    error
}

func newFakeEnumerator(family device.Family) *fakeEnumerator {
	return &fakeEnumerator{family: family}
}

func (f *fakeEnumerator) Family() device.Family { return f.family }

func (f *fakeEnumerator) Enumerate(_ context.Context) ([]device.RawDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]device.RawDescriptor, len(f.descs))
	copy(out, f.descs)
	return out, nil
}

func (f *fakeEnumerator) report(descs ...device.RawDescriptor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.descs = descs
	f.err = nil
}

func (f *fakeEnumerator) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func usbDisk(port uint8, product uint32) device.RawDescriptor {
	return device.RawDescriptor{
		ID:        device.ID{Family: device.FamilyUSB, Address: usbAddr(port)},
		VendorID:  0x0781,
		ProductID: product,
		Capability: device.CapabilitySummary{
			USBClass: 0x08,
		},
	}
}

func usbAddr(port uint8) string {
	return fmt.Sprintf("%d-1", port)
}

func newTestManager(t *testing.T) (*Manager, *resource.Arbiter) {
	t.Helper()
	arb := resource.NewArbiter(resource.Config{
		IRQLines:    16,
		DMAChannels: 8,
		MMIOBase:    0x1000_0000,
		MMIOSize:    0x800_0000,
	})
	return New(arb, drivers.NewTable()), arb
}

func TestDetectAll_AllRecordsTerminal(t *testing.T) {
	m, _ := newTestManager(t)
	e := newFakeEnumerator(device.FamilyUSB)
	e.report(usbDisk(1, 0x0001), usbDisk(2, 0x0002))
	if err := m.RegisterEnumerator(e); err != nil {
		t.Fatalf("RegisterEnumerator() error = %v", err)
	}

	if err := m.DetectAll(context.Background()); err != nil {
		t.Fatalf("DetectAll() error = %v", err)
	}

	views := m.ListDevices(Filter{})
	if len(views) != 2 {
		t.Fatalf("ListDevices() returned %d, want 2", len(views))
	}
	for _, v := range views {
		if v.State != device.StateReady && v.State != device.StateFailed {
			t.Errorf("device %s in state %q after DetectAll", v.ID, v.State)
		}
	}
}

func TestDetectAll_Idempotent(t *testing.T) {
	m, arb := newTestManager(t)
	e := newFakeEnumerator(device.FamilyUSB)
	e.report(usbDisk(1, 0x0001))
	if err := m.RegisterEnumerator(e); err != nil {
		t.Fatalf("RegisterEnumerator() error = %v", err)
	}

	ctx := context.Background()
	if err := m.DetectAll(ctx); err != nil {
		t.Fatalf("first DetectAll() error = %v", err)
	}
	statsAfterFirst := arb.GetStats()

	if err := m.DetectAll(ctx); err != nil {
		t.Fatalf("second DetectAll() error = %v", err)
	}

	if m.DeviceCount() != 1 {
		t.Errorf("DeviceCount() = %d, want 1", m.DeviceCount())
	}
	if got := arb.GetStats(); got != statsAfterFirst {
		t.Errorf("second DetectAll changed resource usage: %+v vs %+v", got, statsAfterFirst)
	}
}

func TestDetectAll_BusFailureIsolated(t *testing.T) {
	m, _ := newTestManager(t)

	broken := newFakeEnumerator(device.FamilyPCI)
	broken.fail(bus.ErrBusNotPresent)
	healthy := newFakeEnumerator(device.FamilyUSB)
	healthy.report(usbDisk(1, 0x0001))

	if err := m.RegisterEnumerator(broken); err != nil {
		t.Fatalf("RegisterEnumerator() error = %v", err)
	}
	if err := m.RegisterEnumerator(healthy); err != nil {
		t.Fatalf("RegisterEnumerator() error = %v", err)
	}

	if err := m.DetectAll(context.Background()); err != nil {
		t.Fatalf("DetectAll() error = %v", err)
	}
	if m.DeviceCount() != 1 {
		t.Errorf("DeviceCount() = %d, want 1 (healthy bus only)", m.DeviceCount())
	}
}

func TestSyncFamily_RemovalReclaimsResources(t *testing.T) {
	m, arb := newTestManager(t)
	e := newFakeEnumerator(device.FamilyUSB)
	e.report(usbDisk(1, 0x0001))
	if err := m.RegisterEnumerator(e); err != nil {
		t.Fatalf("RegisterEnumerator() error = %v", err)
	}

	ctx := context.Background()
	if err := m.DetectAll(ctx); err != nil {
		t.Fatalf("DetectAll() error = %v", err)
	}

	// Next tick: the disk is gone.
	e.report()
	delta, err := m.SyncFamily(ctx, device.FamilyUSB)
	if err != nil {
		t.Fatalf("SyncFamily() error = %v", err)
	}

	if len(delta.Removed) != 1 || delta.Removed[0].Address != usbAddr(1) {
		t.Errorf("Removed = %v, want exactly [usb/%s]", delta.Removed, usbAddr(1))
	}
	if len(delta.Added) != 0 || len(delta.Changed) != 0 {
		t.Errorf("spurious events: added=%v changed=%v", delta.Added, delta.Changed)
	}
	if m.DeviceCount() != 0 {
		t.Errorf("DeviceCount() = %d, want 0", m.DeviceCount())
	}

	stats := arb.GetStats()
	if stats.IRQUsed != 0 || stats.DMAUsed != 0 || stats.MMIOUsed != 0 {
		t.Errorf("resources not reclaimed: %+v", stats)
	}
}

func TestSyncFamily_PartialRemovalNoSpuriousEvents(t *testing.T) {
	m, _ := newTestManager(t)
	e := newFakeEnumerator(device.FamilyUSB)
	e.report(usbDisk(1, 0x0001), usbDisk(2, 0x0002))
	if err := m.RegisterEnumerator(e); err != nil {
		t.Fatalf("RegisterEnumerator() error = %v", err)
	}

	ctx := context.Background()
	if err := m.DetectAll(ctx); err != nil {
		t.Fatalf("DetectAll() error = %v", err)
	}

	// A disappears, B stays.
	e.report(usbDisk(2, 0x0002))
	delta, err := m.SyncFamily(ctx, device.FamilyUSB)
	if err != nil {
		t.Fatalf("SyncFamily() error = %v", err)
	}

	if len(delta.Removed) != 1 || delta.Removed[0].Address != usbAddr(1) {
		t.Errorf("Removed = %v, want exactly A", delta.Removed)
	}
	if len(delta.Added) != 0 || len(delta.Changed) != 0 {
		t.Errorf("spurious events for B: added=%v changed=%v", delta.Added, delta.Changed)
	}

	if _, err := m.GetDevice(device.ID{Family: device.FamilyUSB, Address: usbAddr(2)}); err != nil {
		t.Errorf("B vanished from registry: %v", err)
	}
}

func TestSyncFamily_CapabilityChangeReportedOnce(t *testing.T) {
	m, arb := newTestManager(t)
	e := newFakeEnumerator(device.FamilyUSB)
	e.report(usbDisk(1, 0x0001))
	if err := m.RegisterEnumerator(e); err != nil {
		t.Fatalf("RegisterEnumerator() error = %v", err)
	}

	ctx := context.Background()
	if err := m.DetectAll(ctx); err != nil {
		t.Fatalf("DetectAll() error = %v", err)
	}
	statsBefore := arb.GetStats()

	// Same vendor/product at the same address, new capability summary:
	// the record is refreshed in place, not cycled remove/add.
	changed := usbDisk(1, 0x0001)
	changed.Capability.USBSubclass = 0x06
	e.report(changed)
	delta, err := m.SyncFamily(ctx, device.FamilyUSB)
	if err != nil {
		t.Fatalf("SyncFamily() error = %v", err)
	}

	if len(delta.Changed) != 1 || delta.Changed[0].Address != usbAddr(1) {
		t.Errorf("Changed = %v, want exactly [usb/%s]", delta.Changed, usbAddr(1))
	}
	if len(delta.Added) != 0 || len(delta.Removed) != 0 {
		t.Errorf("spurious events: added=%v removed=%v", delta.Added, delta.Removed)
	}
	if got := arb.GetStats(); got != statsBefore {
		t.Errorf("refresh disturbed resources: %+v vs %+v", got, statsBefore)
	}

	// The stored descriptor now carries the new summary, so a further
	// tick with the same hardware reports nothing.
	delta, err = m.SyncFamily(ctx, device.FamilyUSB)
	if err != nil {
		t.Fatalf("second SyncFamily() error = %v", err)
	}
	if len(delta.Added)+len(delta.Removed)+len(delta.Changed) != 0 {
		t.Errorf("second sync not quiescent: %+v", delta)
	}
}

func TestSyncFamily_TimeoutThenSuccessConverges(t *testing.T) {
	m, _ := newTestManager(t)
	e := newFakeEnumerator(device.FamilyUSB)
	e.fail(bus.ErrProbeTimeout)
	if err := m.RegisterEnumerator(e); err != nil {
		t.Fatalf("RegisterEnumerator() error = %v", err)
	}

	ctx := context.Background()
	if err := m.DetectAll(ctx); err != nil {
		t.Fatalf("DetectAll() error = %v", err)
	}
	if m.DeviceCount() != 0 {
		t.Fatalf("DeviceCount() = %d after timed-out detection, want 0", m.DeviceCount())
	}

	// The timeout clears; the next tick must converge to the same
	// state a never-failing bus would have produced.
	e.report(usbDisk(1, 0x0001))
	delta, err := m.SyncFamily(ctx, device.FamilyUSB)
	if err != nil {
		t.Fatalf("SyncFamily() error = %v", err)
	}
	if len(delta.Added) != 1 {
		t.Fatalf("Added = %v, want one device", delta.Added)
	}

	v, err := m.GetDevice(delta.Added[0])
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if v.State != device.StateReady {
		t.Errorf("state = %q, want ready", v.State)
	}
}

func TestSyncFamily_TimeoutLeavesRegistryUntouched(t *testing.T) {
	m, _ := newTestManager(t)
	e := newFakeEnumerator(device.FamilyUSB)
	e.report(usbDisk(1, 0x0001))
	if err := m.RegisterEnumerator(e); err != nil {
		t.Fatalf("RegisterEnumerator() error = %v", err)
	}

	ctx := context.Background()
	if err := m.DetectAll(ctx); err != nil {
		t.Fatalf("DetectAll() error = %v", err)
	}

	e.fail(bus.ErrProbeTimeout)
	if _, err := m.SyncFamily(ctx, device.FamilyUSB); !errors.Is(err, bus.ErrProbeTimeout) {
		t.Fatalf("SyncFamily() error = %v, want ErrProbeTimeout", err)
	}
	if m.DeviceCount() != 1 {
		t.Errorf("timed-out sync mutated the registry: count = %d", m.DeviceCount())
	}
}

func TestSyncFamily_AddressReuseIsRemoveThenAdd(t *testing.T) {
	m, _ := newTestManager(t)
	e := newFakeEnumerator(device.FamilyUSB)
	e.report(usbDisk(1, 0x0001))
	if err := m.RegisterEnumerator(e); err != nil {
		t.Fatalf("RegisterEnumerator() error = %v", err)
	}

	ctx := context.Background()
	if err := m.DetectAll(ctx); err != nil {
		t.Fatalf("DetectAll() error = %v", err)
	}

	// Different hardware appears on the same port between ticks.
	e.report(usbDisk(1, 0xBEEF))
	delta, err := m.SyncFamily(ctx, device.FamilyUSB)
	if err != nil {
		t.Fatalf("SyncFamily() error = %v", err)
	}

	if len(delta.Removed) != 1 || len(delta.Added) != 1 {
		t.Fatalf("delta = %+v, want one removal and one addition", delta)
	}
	if delta.Removed[0] != delta.Added[0] {
		t.Errorf("reused address changed ID: %v vs %v", delta.Removed[0], delta.Added[0])
	}

	v, err := m.GetDevice(delta.Added[0])
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if v.ProductID != 0xBEEF {
		t.Errorf("ProductID = %#x, want 0xBEEF (new hardware)", v.ProductID)
	}
}

func TestInsert_ResourceExhaustionVisibleAsFailed(t *testing.T) {
	arb := resource.NewArbiter(resource.Config{
		// One IRQ line: the first disk claims it, the second fails.
		IRQLines:    1,
		DMAChannels: 8,
		MMIOBase:    0x1000_0000,
		MMIOSize:    0x800_0000,
	})
	m := New(arb, drivers.NewTable())

	e := newFakeEnumerator(device.FamilyUSB)
	e.report(usbDisk(1, 0x0001), usbDisk(2, 0x0002))
	if err := m.RegisterEnumerator(e); err != nil {
		t.Fatalf("RegisterEnumerator() error = %v", err)
	}
	if err := m.DetectAll(context.Background()); err != nil {
		t.Fatalf("DetectAll() error = %v", err)
	}

	ready := m.ListDevices(Filter{State: device.StateReady})
	failed := m.ListDevices(Filter{State: device.StateFailed})
	if len(ready) != 1 || len(failed) != 1 {
		t.Fatalf("ready=%d failed=%d, want 1 and 1", len(ready), len(failed))
	}
	if failed[0].Failure == "" {
		t.Error("failed view carries no reason")
	}
	if len(failed[0].IRQs) != 0 || failed[0].MMIO.Size != 0 {
		t.Errorf("failed device still holds resources: %+v", failed[0])
	}
}

func TestSyncFamily_FailedRecordEvictedWhenGone(t *testing.T) {
	arb := resource.NewArbiter(resource.Config{
		IRQLines:    1,
		DMAChannels: 8,
		MMIOBase:    0x1000_0000,
		MMIOSize:    0x800_0000,
	})
	m := New(arb, drivers.NewTable())

	e := newFakeEnumerator(device.FamilyUSB)
	e.report(usbDisk(1, 0x0001), usbDisk(2, 0x0002))
	if err := m.RegisterEnumerator(e); err != nil {
		t.Fatalf("RegisterEnumerator() error = %v", err)
	}
	ctx := context.Background()
	if err := m.DetectAll(ctx); err != nil {
		t.Fatalf("DetectAll() error = %v", err)
	}

	e.report()
	delta, err := m.SyncFamily(ctx, device.FamilyUSB)
	if err != nil {
		t.Fatalf("SyncFamily() error = %v", err)
	}
	if len(delta.Removed) != 2 {
		t.Errorf("Removed = %v, want both records", delta.Removed)
	}
	if m.DeviceCount() != 0 {
		t.Errorf("DeviceCount() = %d, want 0", m.DeviceCount())
	}
}

func TestRegisterEnumerator_AfterDetectAllRejected(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.DetectAll(context.Background()); err != nil {
		t.Fatalf("DetectAll() error = %v", err)
	}

	err := m.RegisterEnumerator(newFakeEnumerator(device.FamilyPCI))
	if !errors.Is(err, ErrDetectionStarted) {
		t.Errorf("RegisterEnumerator() error = %v, want ErrDetectionStarted", err)
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.GetDevice(device.ID{Family: device.FamilyPCI, Address: "ff:1f.7"})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetDevice() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestGetStats(t *testing.T) {
	m, _ := newTestManager(t)
	e := newFakeEnumerator(device.FamilyUSB)
	e.report(usbDisk(1, 0x0001), usbDisk(2, 0x0002))
	if err := m.RegisterEnumerator(e); err != nil {
		t.Fatalf("RegisterEnumerator() error = %v", err)
	}
	if err := m.DetectAll(context.Background()); err != nil {
		t.Fatalf("DetectAll() error = %v", err)
	}

	stats := m.GetStats()
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.ByClass[device.ClassStorageUsb] != 2 {
		t.Errorf("ByClass[storage_usb] = %d, want 2", stats.ByClass[device.ClassStorageUsb])
	}
	if stats.ByState[device.StateReady] != 2 {
		t.Errorf("ByState[ready] = %d, want 2", stats.ByState[device.StateReady])
	}
}

func TestShutdown_ReleasesEverything(t *testing.T) {
	m, arb := newTestManager(t)
	e := newFakeEnumerator(device.FamilyUSB)
	e.report(usbDisk(1, 0x0001), usbDisk(2, 0x0002))
	if err := m.RegisterEnumerator(e); err != nil {
		t.Fatalf("RegisterEnumerator() error = %v", err)
	}
	ctx := context.Background()
	if err := m.DetectAll(ctx); err != nil {
		t.Fatalf("DetectAll() error = %v", err)
	}

	m.Shutdown(ctx)

	if m.DeviceCount() != 0 {
		t.Errorf("DeviceCount() = %d after Shutdown, want 0", m.DeviceCount())
	}
	stats := arb.GetStats()
	if stats.IRQUsed != 0 || stats.DMAUsed != 0 || stats.MMIOUsed != 0 {
		t.Errorf("resources leaked at shutdown: %+v", stats)
	}
}
