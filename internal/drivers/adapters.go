package drivers

import (
	"context"

	"github.com/samajesteduroyaume/devman/internal/device"
	"github.com/samajesteduroyaume/devman/internal/resource"
)

// bluetooth owns a Bluetooth adapter or remote unit. HCI command
// framing belongs to the Bluetooth stack.
type bluetooth struct {
	base
}

func newBluetooth(desc device.RawDescriptor, grant *resource.Grant, logger Logger) (device.Device, error) {
	return &bluetooth{base: newBase(device.ClassBluetoothAdapter, desc, grant, logger)}, nil
}

func (d *bluetooth) Init(ctx context.Context) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := d.beginInit(); err != nil {
		return err
	}
	if err := d.requireIRQ(); err != nil {
		return err
	}
	d.logger.Info("bluetooth unit up", "id", d.id.String())
	return nil
}

func (d *bluetooth) Shutdown(ctx context.Context) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := d.beginShutdown(); err != nil {
		return err
	}
	d.logger.Info("bluetooth unit down", "id", d.id.String())
	return nil
}

// audio owns an audio adapter. Codec programming belongs to the audio
// subsystem.
type audio struct {
	base
}

func newAudio(desc device.RawDescriptor, grant *resource.Grant, logger Logger) (device.Device, error) {
	return &audio{base: newBase(device.ClassAudioAdapter, desc, grant, logger)}, nil
}

func (d *audio) Init(ctx context.Context) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := d.beginInit(); err != nil {
		return err
	}
	if err := d.requireIRQ(); err != nil {
		return err
	}
	d.logger.Info("audio adapter up", "id", d.id.String())
	return nil
}

func (d *audio) Shutdown(ctx context.Context) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := d.beginShutdown(); err != nil {
		return err
	}
	d.logger.Info("audio adapter down", "id", d.id.String())
	return nil
}

// video owns a display adapter's framebuffer window.
type video struct {
	base
}

func newVideo(desc device.RawDescriptor, grant *resource.Grant, logger Logger) (device.Device, error) {
	return &video{base: newBase(device.ClassVideoAdapter, desc, grant, logger)}, nil
}

func (d *video) Init(ctx context.Context) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := d.beginInit(); err != nil {
		return err
	}
	if err := d.requireMMIO(); err != nil {
		return err
	}
	d.logger.Info("video adapter up",
		"id", d.id.String(),
		"framebuffer_base", d.grant.MMIO.Base,
		"framebuffer_size", d.grant.MMIO.Size,
	)
	return nil
}

func (d *video) Shutdown(ctx context.Context) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := d.beginShutdown(); err != nil {
		return err
	}
	d.logger.Info("video adapter down", "id", d.id.String())
	return nil
}

// bridge covers host bridges and bus controllers: classified and
// tracked, never descended here.
type bridge struct {
	base
}

func newBridge(desc device.RawDescriptor, grant *resource.Grant, logger Logger) (device.Device, error) {
	return &bridge{base: newBase(device.ClassBridge, desc, grant, logger)}, nil
}

func (d *bridge) Init(ctx context.Context) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := d.beginInit(); err != nil {
		return err
	}
	d.logger.Debug("bridge tracked", "id", d.id.String())
	return nil
}

func (d *bridge) Shutdown(ctx context.Context) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	return d.beginShutdown()
}

// unknown tracks hardware the classification tables do not cover. It
// claims no resources and programs nothing, but stays visible in
// listings so operators can see what was found.
type unknown struct {
	base
}

func newUnknown(desc device.RawDescriptor, grant *resource.Grant, logger Logger) (device.Device, error) {
	return &unknown{base: newBase(device.ClassUnknown, desc, grant, logger)}, nil
}

func (d *unknown) Init(ctx context.Context) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := d.beginInit(); err != nil {
		return err
	}
	d.logger.Debug("unclassified device tracked", "id", d.id.String())
	return nil
}

func (d *unknown) Shutdown(ctx context.Context) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	return d.beginShutdown()
}
