package manager

import (
	"context"
	"time"

	"github.com/samajesteduroyaume/devman/internal/bus"
	"github.com/samajesteduroyaume/devman/internal/device"
	"github.com/samajesteduroyaume/devman/internal/hotplug"
)

// insertDevice runs the insertion path for one descriptor:
//
//	Discovered -> ResourceReserved -> Initializing -> Ready
//	           \-> Failed(ResourceExhausted)
//	                        \-> Failed(reason)   [resources released]
//
// The record becomes visible in the registry only in its terminal state
// for this pass (Ready or Failed), so no reader ever observes a
// half-constructed device. Failed records are inserted rather than
// dropped: operators diagnose resource contention from listings.
func (m *Manager) insertDevice(ctx context.Context, desc device.RawDescriptor) device.ID {
	class := bus.Classify(desc)
	now := time.Now().UTC()
	rec := &record{
		id:        desc.ID,
		class:     class,
		desc:      desc,
		firstSeen: now,
		lastSeen:  now,
	}

	req := m.drivers.Requirements(class, desc)
	grant, err := m.arbiter.Reserve(desc.ID, req)
	if err != nil {
		m.logger.Warn("resource reservation failed",
			"id", desc.ID.String(), "class", class, "error", err)
		m.insertFailed(ctx, rec, err.Error())
		return desc.ID
	}

	dev, err := m.drivers.Build(class, desc, grant)
	if err != nil {
		m.logger.Error("driver construction failed", "id", desc.ID.String(), "error", err)
		rec.grant = grant
		m.releaseGrant(rec)
		m.insertFailed(ctx, rec, err.Error())
		return desc.ID
	}

	if err := dev.Init(ctx); err != nil {
		wrapped := device.InitError(err)
		m.logger.Error("device init failed", "id", desc.ID.String(), "error", wrapped)
		rec.grant = grant
		m.releaseGrant(rec)
		m.insertFailed(ctx, rec, wrapped.Error())
		return desc.ID
	}

	rec.state = device.StateReady
	rec.grant = grant
	rec.dev = dev
	if !m.registry.insert(rec) {
		// Caller checks for presence before inserting; reaching this
		// point is an internal ordering bug.
		m.logger.Error("duplicate insertion suppressed", "id", desc.ID.String())
		m.releaseGrant(rec)
		return desc.ID
	}

	m.logger.Info("device ready",
		"id", desc.ID.String(), "class", class,
		"vendor", rec.desc.VendorID, "product", rec.desc.ProductID)
	m.record(ctx, rec)
	return desc.ID
}

// insertFailed parks a record in the terminal Failed state. Its
// resources are already released; the record stays listed until its bus
// stops reporting the address.
func (m *Manager) insertFailed(ctx context.Context, rec *record, reason string) {
	rec.state = device.StateFailed
	rec.failure = reason
	rec.grant = nil
	rec.dev = nil
	if m.registry.insert(rec) {
		m.record(ctx, rec)
	}
}

// removeDevice drives Ready -> Removing -> Destroyed and evicts the
// record. Resources are released before eviction, always: this is the
// fixed policy for every path out of the registry.
func (m *Manager) removeDevice(ctx context.Context, id device.ID) error {
	rec := m.registry.get(id)
	if rec == nil {
		return ErrDeviceNotFound
	}

	switch rec.state {
	case device.StateReady:
		// Publish the transition so concurrent readers see Removing,
		// then shut down outside any lock.
		removing := *rec
		removing.state = device.StateRemoving
		m.registry.replace(&removing)

		if rec.dev != nil {
			if err := rec.dev.Shutdown(ctx); err != nil {
				// Shutdown failure does not block removal; the
				// hardware is already gone or going.
				m.logger.Error("device shutdown failed",
					"id", id.String(), "error", device.ShutdownError(err))
			}
		}
		m.releaseGrant(rec)

	case device.StateFailed:
		// Failed records hold no resources.

	default:
		return ErrNotRemovable
	}

	m.registry.evict(id)
	m.logger.Info("device removed", "id", id.String())
	m.forget(ctx, id)
	return nil
}

// RemoveDevice removes a device by ID and emits the Removed event after
// eviction. This is the path the hot-plug worker uses indirectly; it is
// exported for orderly teardown of individual devices.
func (m *Manager) RemoveDevice(ctx context.Context, id device.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.removeDevice(ctx, id); err != nil {
		return err
	}
	m.hotplug.Publish(ctx, hotplug.Event{Kind: hotplug.EventRemoved, ID: id})
	return nil
}

// Shutdown tears down every live device in no particular order,
// releasing all grants. Used at daemon exit.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.registry.list(nil) {
		if err := m.removeDevice(ctx, v.ID); err != nil {
			m.logger.Error("teardown removal failed", "id", v.ID.String(), "error", err)
		}
	}
}

// refreshDescriptor swaps in a record copy carrying the new capability
// summary. The grant and driver carry over untouched.
func (m *Manager) refreshDescriptor(ctx context.Context, rec *record, desc device.RawDescriptor) {
	updated := *rec
	updated.desc = desc
	updated.lastSeen = time.Now().UTC()
	m.registry.replace(&updated)
	m.logger.Info("device capability changed", "id", rec.id.String())
	m.record(ctx, &updated)
}

// releaseGrant returns a record's grant to the arbiter. A release
// failure here means a broken exactly-once invariant; it is logged
// loudly rather than swallowed.
func (m *Manager) releaseGrant(rec *record) {
	if rec.grant == nil {
		return
	}
	if err := m.arbiter.Release(rec.grant); err != nil {
		m.logger.Error("grant release invariant broken",
			"id", rec.id.String(), "error", err)
	}
	rec.grant = nil
}

// record mirrors a registry entry into the inventory recorder.
func (m *Manager) record(ctx context.Context, rec *record) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.RecordDevice(ctx, rec.view()); err != nil {
		m.logger.Warn("inventory record failed", "id", rec.id.String(), "error", err)
	}
}

// forget drops a device from the inventory recorder.
func (m *Manager) forget(ctx context.Context, id device.ID) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.ForgetDevice(ctx, id); err != nil {
		m.logger.Warn("inventory forget failed", "id", id.String(), "error", err)
	}
}
