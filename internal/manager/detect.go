package manager

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samajesteduroyaume/devman/internal/bus"
	"github.com/samajesteduroyaume/devman/internal/device"
	"github.com/samajesteduroyaume/devman/internal/hotplug"
)

// DetectAll runs the boot-time full-system scan: every registered
// enumerator in registration order, each descriptor classified,
// resourced, initialised, and inserted.
//
// A single bus enumerator's failure is logged and skipped; it never
// aborts detection of the remaining buses. Calling DetectAll again with
// unchanged hardware is a no-op: present IDs are left untouched, so no
// duplicate records or grants arise.
func (m *Manager) DetectAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detectStarted = true

	start := time.Now()
	for _, e := range m.enumerators {
		// Probing runs before any registry or arbiter lock is taken.
		descs, err := e.Enumerate(ctx)
		if err != nil {
			if bus.Recoverable(err) {
				m.logger.Warn("bus skipped this pass", "family", e.Family(), "error", err)
			} else {
				m.logger.Error("bus enumeration failed", "family", e.Family(), "error", err)
			}
			continue
		}

		for _, desc := range descs {
			if m.registry.get(desc.ID) != nil {
				continue
			}
			id := m.insertDevice(ctx, desc)
			m.publishInitial(ctx, id)
		}
	}

	m.logger.Info("detection complete",
		"devices", m.registry.count(),
		"duration", time.Since(start),
	)
	return nil
}

// publishInitial reports a boot-time insertion through the hot-plug
// event path so early listeners see the same stream as runtime ones.
func (m *Manager) publishInitial(ctx context.Context, id device.ID) {
	m.hotplug.Publish(ctx, hotplug.Event{Kind: hotplug.EventAdded, ID: id})
}

// SyncFamily implements hotplug.Syncer: re-enumerate one bus family,
// diff against the registry, and reconcile. Within one pass all
// removals are performed before any addition, so stale resource claims
// are reclaimed before new ones are granted.
func (m *Manager) SyncFamily(ctx context.Context, family device.Family) (hotplug.Delta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.byFamily[family]
	if !ok {
		return hotplug.Delta{}, fmt.Errorf("%w: %s", ErrUnknownFamily, family)
	}

	// Probe first, before touching the registry.
	descs, err := e.Enumerate(ctx)
	if err != nil {
		return hotplug.Delta{}, err
	}

	current := make(map[device.ID]device.RawDescriptor, len(descs))
	for _, d := range descs {
		current[d.ID] = d
	}
	known := m.registry.familyIDs(family)

	var delta hotplug.Delta

	// Vanished IDs, plus IDs whose address was reused by different
	// hardware; the latter are re-inserted in the addition phase.
	var reinserted []device.RawDescriptor
	var removals []device.ID
	for id, rec := range known {
		desc, present := current[id]
		if present && rec.desc.SameIdentity(desc) {
			continue
		}
		removals = append(removals, id)
		if present {
			reinserted = append(reinserted, desc)
		}
	}
	// Map iteration order is random; keep removal order deterministic.
	sort.Slice(removals, func(i, j int) bool {
		return removals[i].Address < removals[j].Address
	})
	for _, id := range removals {
		if err := m.removeDevice(ctx, id); err != nil {
			m.logger.Error("hotplug removal failed", "id", id.String(), "error", err)
			continue
		}
		delta.Removed = append(delta.Removed, id)
	}

	// Additions: genuinely new IDs first, then reinsertions.
	for _, d := range descs {
		if _, was := known[d.ID]; was {
			continue
		}
		delta.Added = append(delta.Added, m.insertDevice(ctx, d))
	}
	for _, d := range reinserted {
		delta.Added = append(delta.Added, m.insertDevice(ctx, d))
	}

	// Same hardware, different capability summary: refresh the record
	// and report a change.
	for id, rec := range known {
		desc, present := current[id]
		if !present || !rec.desc.SameIdentity(desc) {
			continue
		}
		if sameCapability(rec.desc.Capability, desc.Capability) {
			continue
		}
		m.refreshDescriptor(ctx, rec, desc)
		delta.Changed = append(delta.Changed, id)
	}

	return delta, nil
}

// sameCapability compares two capability summaries field by field.
func sameCapability(a, b device.CapabilitySummary) bool {
	if a.PCIClass != b.PCIClass || a.PCISubclass != b.PCISubclass || a.PCIProgIF != b.PCIProgIF {
		return false
	}
	if a.USBClass != b.USBClass || a.USBSubclass != b.USBSubclass || a.USBProtocol != b.USBProtocol {
		return false
	}
	if a.BluetoothCoD != b.BluetoothCoD {
		return false
	}
	if len(a.USBInterfaces) != len(b.USBInterfaces) {
		return false
	}
	for i := range a.USBInterfaces {
		if a.USBInterfaces[i] != b.USBInterfaces[i] {
			return false
		}
	}
	return true
}
