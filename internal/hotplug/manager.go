package hotplug

import (
	"context"
	"sync"
	"time"

	"github.com/samajesteduroyaume/devman/internal/device"
)

// Logger defines the logging interface used by the hot-plug manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Syncer re-enumerates one bus family and reconciles the registry
// against current hardware, returning the resulting deltas. The device
// manager implements this; the hot-plug manager stays ignorant of
// registry and arbiter internals.
type Syncer interface {
	SyncFamily(ctx context.Context, family device.Family) (Delta, error)
}

// Delta is the outcome of one reconciliation of one bus family.
// IDs appear in the order the registry processed them.
type Delta struct {
	Removed []device.ID
	Added   []device.ID
	Changed []device.ID
}

// Empty reports whether the pass observed no changes.
func (d Delta) Empty() bool {
	return len(d.Removed) == 0 && len(d.Added) == 0 && len(d.Changed) == 0
}

// Manager receives raw hot-plug notifications, re-triggers targeted
// enumeration through the Syncer, and dispatches ordered events to
// registered listeners.
//
// Exactly one worker goroutine consumes the queue; producers only ever
// call Notify.
type Manager struct {
	queue  *Queue
	syncer Syncer
	logger Logger

	listeners   []Listener
	listenersMu sync.RWMutex
}

// NewManager creates a hot-plug manager draining into the given syncer.
func NewManager(syncer Syncer) *Manager {
	return &Manager{
		queue:  NewQueue(),
		syncer: syncer,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Notify enqueues a wake token for the family. Safe from interrupt-like
// contexts: never blocks, never allocates.
func (m *Manager) Notify(family device.Family) {
	m.queue.Notify(family)
}

// AddListener registers a listener. Listeners may be added at any time,
// including while the worker is running.
func (m *Manager) AddListener(l Listener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Run is the hot-plug worker loop. It blocks until ctx is cancelled.
// It must be called at most once.
func (m *Manager) Run(ctx context.Context) {
	m.logger.Info("hotplug worker started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("hotplug worker stopped")
			return
		case <-m.queue.Wake():
			for _, family := range m.queue.Drain() {
				m.syncOne(ctx, family)
			}
		}
	}
}

// syncOne reconciles one family and publishes the resulting events.
func (m *Manager) syncOne(ctx context.Context, family device.Family) {
	start := time.Now()
	delta, err := m.syncer.SyncFamily(ctx, family)
	if err != nil {
		// Transient probe failures retry on the next tick for this
		// family; nothing was mutated.
		m.logger.Warn("hotplug sync failed", "family", family, "error", err)
		return
	}
	if delta.Empty() {
		m.logger.Debug("hotplug sync: no changes", "family", family)
		return
	}

	m.logger.Info("hotplug sync complete",
		"family", family,
		"removed", len(delta.Removed),
		"added", len(delta.Added),
		"changed", len(delta.Changed),
		"duration", time.Since(start),
	)

	// Removals are published before additions: stale resource claims
	// are gone before consumers react to new hardware.
	for _, id := range delta.Removed {
		m.publish(ctx, Event{Kind: EventRemoved, ID: id})
	}
	for _, id := range delta.Added {
		m.publish(ctx, Event{Kind: EventAdded, ID: id})
	}
	for _, id := range delta.Changed {
		m.publish(ctx, Event{Kind: EventChanged, ID: id})
	}
}

// Publish delivers an event to every listener in registration order.
// Exposed for the boot-time detection pass, which reports its initial
// additions through the same path.
func (m *Manager) Publish(ctx context.Context, ev Event) {
	m.publish(ctx, ev)
}

func (m *Manager) publish(ctx context.Context, ev Event) {
	m.listenersMu.RLock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.listenersMu.RUnlock()

	for i, l := range listeners {
		if err := l.HandleHotplug(ctx, ev); err != nil {
			// Delivery continues to the remaining listeners.
			m.logger.Error("hotplug listener failed",
				"listener", i, "kind", ev.Kind, "id", ev.ID.String(), "error", err)
		}
	}
}
