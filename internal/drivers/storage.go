package drivers

import (
	"context"

	"github.com/samajesteduroyaume/devman/internal/device"
	"github.com/samajesteduroyaume/devman/internal/resource"
)

// usbStorage owns a USB mass-storage unit. Transfer-ring scheduling
// and partition parsing belong to the USB and filesystem layers.
type usbStorage struct {
	base
}

func newUsbStorage(desc device.RawDescriptor, grant *resource.Grant, logger Logger) (device.Device, error) {
	return &usbStorage{base: newBase(device.ClassStorageUsb, desc, grant, logger)}, nil
}

func (d *usbStorage) Init(ctx context.Context) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := d.beginInit(); err != nil {
		return err
	}
	if err := d.requireIRQ(); err != nil {
		return err
	}
	if err := d.requireDMA(); err != nil {
		return err
	}
	d.logger.Info("usb storage attached", "id", d.id.String(), "dma", d.grant.DMAs[0])
	return nil
}

func (d *usbStorage) Shutdown(ctx context.Context) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := d.beginShutdown(); err != nil {
		return err
	}
	d.logger.Info("usb storage detached", "id", d.id.String())
	return nil
}

// ataStorage owns an ATA/SATA controller function.
type ataStorage struct {
	base
}

func newAtaStorage(desc device.RawDescriptor, grant *resource.Grant, logger Logger) (device.Device, error) {
	return &ataStorage{base: newBase(device.ClassStorageAta, desc, grant, logger)}, nil
}

func (d *ataStorage) Init(ctx context.Context) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := d.beginInit(); err != nil {
		return err
	}
	if err := d.requireIRQ(); err != nil {
		return err
	}
	if err := d.requireMMIO(); err != nil {
		return err
	}
	d.logger.Info("ata controller up", "id", d.id.String(), "mmio_base", d.grant.MMIO.Base)
	return nil
}

func (d *ataStorage) Shutdown(ctx context.Context) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := d.beginShutdown(); err != nil {
		return err
	}
	d.logger.Info("ata controller down", "id", d.id.String())
	return nil
}
