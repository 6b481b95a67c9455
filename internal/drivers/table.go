// Package drivers supplies the per-class driver factories the device
// manager dispatches to. The factory table is the closed extension
// point: one entry per device class, fixed at construction time.
//
// The drivers here program the uniform parts only (claiming the grant,
// lifecycle bookkeeping); wire-level protocol behaviour belongs to the
// subsystems consuming the devices.
package drivers

import (
	"fmt"

	"github.com/samajesteduroyaume/devman/internal/device"
	"github.com/samajesteduroyaume/devman/internal/resource"
)

// Logger defines the logging interface used by drivers.
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

// Factory produces a concrete Device for one class.
type Factory func(desc device.RawDescriptor, grant *resource.Grant, logger Logger) (device.Device, error)

// Table maps device classes to resource requirements and factories.
type Table struct {
	factories    map[device.Class]Factory
	requirements map[device.Class]resource.Request
	logger       Logger
}

// NewTable builds the default factory table covering every class in
// the closed set.
func NewTable() *Table {
	t := &Table{
		factories:    make(map[device.Class]Factory),
		requirements: make(map[device.Class]resource.Request),
		logger:       noopLogger{},
	}

	t.register(device.ClassNetworkEthernet, newEthernet,
		resource.Request{IRQCount: 1, DMACount: 1, MMIOSize: 0x10000, MMIOAlign: 0x1000})
	t.register(device.ClassNetworkWifi, newWifi,
		resource.Request{IRQCount: 1, MMIOSize: 0x20000, MMIOAlign: 0x1000})
	t.register(device.ClassStorageUsb, newUsbStorage,
		resource.Request{IRQCount: 1, DMACount: 1, MMIOSize: 0x1000, MMIOAlign: 0x1000})
	t.register(device.ClassStorageAta, newAtaStorage,
		resource.Request{IRQCount: 1, DMACount: 2, MMIOSize: 0x2000, MMIOAlign: 0x1000})
	t.register(device.ClassBluetoothAdapter, newBluetooth,
		resource.Request{IRQCount: 1, MMIOSize: 0x1000, MMIOAlign: 0x1000})
	t.register(device.ClassAudioAdapter, newAudio,
		resource.Request{IRQCount: 1, DMACount: 1, MMIOSize: 0x4000, MMIOAlign: 0x1000})
	t.register(device.ClassVideoAdapter, newVideo,
		resource.Request{IRQCount: 1, MMIOSize: 0x1000000, MMIOAlign: 0x10000})
	t.register(device.ClassBridge, newBridge,
		resource.Request{MMIOSize: 0x1000, MMIOAlign: 0x1000})
	t.register(device.ClassUnknown, newUnknown, resource.Request{})

	return t
}

// SetLogger sets the logger passed to constructed drivers.
func (t *Table) SetLogger(logger Logger) {
	t.logger = logger
}

func (t *Table) register(class device.Class, f Factory, req resource.Request) {
	t.factories[class] = f
	t.requirements[class] = req
}

// Requirements implements manager.DriverProvider.
func (t *Table) Requirements(class device.Class, _ device.RawDescriptor) resource.Request {
	return t.requirements[class]
}

// Build implements manager.DriverProvider.
func (t *Table) Build(class device.Class, desc device.RawDescriptor, grant *resource.Grant) (device.Device, error) {
	f, ok := t.factories[class]
	if !ok {
		return nil, fmt.Errorf("%w: %s", device.ErrInvalidClass, class)
	}
	return f(desc, grant, t.logger)
}
