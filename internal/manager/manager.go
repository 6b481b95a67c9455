package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samajesteduroyaume/devman/internal/bus"
	"github.com/samajesteduroyaume/devman/internal/device"
	"github.com/samajesteduroyaume/devman/internal/hotplug"
	"github.com/samajesteduroyaume/devman/internal/resource"
)

// Logger defines the logging interface used by the Manager.
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

// DriverProvider supplies per-class resource requirements and driver
// construction. The drivers package implements it; tests swap in mocks.
type DriverProvider interface {
	// Requirements names the resources a device of this class needs.
	Requirements(class device.Class, desc device.RawDescriptor) resource.Request

	// Build produces a concrete Device over the reserved grant.
	Build(class device.Class, desc device.RawDescriptor, grant *resource.Grant) (device.Device, error)
}

// Recorder mirrors registry changes into persistent inventory.
// Optional; failures are logged, never propagated into the insertion
// or removal paths.
type Recorder interface {
	RecordDevice(ctx context.Context, v View) error
	ForgetDevice(ctx context.Context, id device.ID) error
}

// Registration errors.
var (
	// ErrDeviceNotFound is returned when a device ID is not in the registry.
	ErrDeviceNotFound = errors.New("manager: device not found")

	// ErrDetectionStarted is returned when an enumerator is registered
	// after the first DetectAll.
	ErrDetectionStarted = errors.New("manager: detection already started")

	// ErrUnknownFamily is returned when no enumerator covers a bus family.
	ErrUnknownFamily = errors.New("manager: no enumerator for bus family")

	// ErrNotRemovable is returned when removal targets a record in a
	// state other than Ready or Failed.
	ErrNotRemovable = errors.New("manager: device not in a removable state")
)

// Manager is the device-manager façade: it owns the registry, the
// resource arbiter, and the hot-plug manager, and orchestrates the
// boot-time full scan plus runtime reconciliation.
//
// Lock ordering: registry before arbiter, always. Bus probing happens
// before either lock is taken, so slow hardware never serialises
// against registry reads.
type Manager struct {
	registry *registry
	arbiter  *resource.Arbiter
	drivers  DriverProvider
	hotplug  *hotplug.Manager

	enumerators []bus.Enumerator
	byFamily    map[device.Family]bus.Enumerator

	// mu serialises the mutating passes (DetectAll, SyncFamily,
	// RemoveDevice). At runtime only the hot-plug worker mutates, so
	// contention is nil; the lock keeps boot and runtime uniform.
	mu sync.Mutex

	detectStarted bool

	recorder Recorder
	logger   Logger
}

// New creates a Manager over the given arbiter and driver provider.
func New(arbiter *resource.Arbiter, drivers DriverProvider) *Manager {
	m := &Manager{
		registry: newRegistry(),
		arbiter:  arbiter,
		drivers:  drivers,
		byFamily: make(map[device.Family]bus.Enumerator),
		logger:   noopLogger{},
	}
	m.hotplug = hotplug.NewManager(m)
	return m
}

// SetLogger sets the logger for the manager and its hot-plug worker.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
	m.hotplug.SetLogger(logger)
}

// SetRecorder attaches a persistent inventory recorder.
func (m *Manager) SetRecorder(rec Recorder) {
	m.recorder = rec
}

// RegisterEnumerator adds a bus enumerator. Registration must complete
// before the first DetectAll; enumerators run in registration order.
func (m *Manager) RegisterEnumerator(e bus.Enumerator) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.detectStarted {
		return ErrDetectionStarted
	}
	if _, dup := m.byFamily[e.Family()]; dup {
		return fmt.Errorf("%w: duplicate enumerator for %s", device.ErrInvalidFamily, e.Family())
	}
	m.enumerators = append(m.enumerators, e)
	m.byFamily[e.Family()] = e
	return nil
}

// RegisterListener subscribes to hot-plug events. Listeners may be
// added at any time.
func (m *Manager) RegisterListener(l hotplug.Listener) {
	m.hotplug.AddListener(l)
}

// Notify enqueues a hot-plug wake token for the family. Safe from
// interrupt-like contexts.
func (m *Manager) Notify(family device.Family) {
	m.hotplug.Notify(family)
}

// RunHotplug runs the hot-plug worker until ctx is cancelled.
func (m *Manager) RunHotplug(ctx context.Context) {
	m.hotplug.Run(ctx)
}

// GetDevice returns a read-only view of a device.
func (m *Manager) GetDevice(id device.ID) (View, error) {
	rec := m.registry.get(id)
	if rec == nil {
		return View{}, ErrDeviceNotFound
	}
	return rec.view(), nil
}

// Filter narrows ListDevices output. Zero values match everything.
type Filter struct {
	Class  device.Class
	Family device.Family
	State  device.State
}

// ListDevices returns read-only views of every device matching the filter.
func (m *Manager) ListDevices(f Filter) []View {
	return m.registry.list(func(rec *record) bool {
		if f.Class != "" && rec.class != f.Class {
			return false
		}
		if f.Family != "" && rec.id.Family != f.Family {
			return false
		}
		if f.State != "" && rec.state != f.State {
			return false
		}
		return true
	})
}

// DeviceCount returns the number of live records.
func (m *Manager) DeviceCount() int {
	return m.registry.count()
}

// Stats summarises the registry for diagnostics.
type Stats struct {
	Total    int                   `json:"total"`
	ByClass  map[device.Class]int  `json:"by_class"`
	ByFamily map[device.Family]int `json:"by_family"`
	ByState  map[device.State]int  `json:"by_state"`
}

// GetStats returns current registry statistics.
func (m *Manager) GetStats() Stats {
	stats := Stats{
		ByClass:  make(map[device.Class]int),
		ByFamily: make(map[device.Family]int),
		ByState:  make(map[device.State]int),
	}
	for _, v := range m.registry.list(nil) {
		stats.Total++
		stats.ByClass[v.Class]++
		stats.ByFamily[v.ID.Family]++
		stats.ByState[v.State]++
	}
	return stats
}

// ResourceStats returns arbiter pool utilisation.
func (m *Manager) ResourceStats() resource.Stats {
	return m.arbiter.GetStats()
}

// Families returns the bus families with registered enumerators, in
// registration order.
func (m *Manager) Families() []device.Family {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]device.Family, 0, len(m.enumerators))
	for _, e := range m.enumerators {
		out = append(out, e.Family())
	}
	return out
}
