package drivers

import (
	"context"

	"github.com/samajesteduroyaume/devman/internal/device"
	"github.com/samajesteduroyaume/devman/internal/resource"
)

// ethernet owns a wired NIC's register window and interrupt line.
// Frame TX/RX belongs to the network stack, not here.
type ethernet struct {
	base
}

func newEthernet(desc device.RawDescriptor, grant *resource.Grant, logger Logger) (device.Device, error) {
	return &ethernet{base: newBase(device.ClassNetworkEthernet, desc, grant, logger)}, nil
}

func (d *ethernet) Init(ctx context.Context) error {
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
	if err := d.requireDMA(); err != nil {
		return err
	}
	d.logger.Info("ethernet adapter up",
		"id", d.id.String(),
		"irq", d.grant.IRQs[0],
		"mmio_base", d.grant.MMIO.Base,
	)
	return nil
}

func (d *ethernet) Shutdown(ctx context.Context) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := d.beginShutdown(); err != nil {
		return err
	}
	d.logger.Info("ethernet adapter down", "id", d.id.String())
	return nil
}

// wifi owns a wireless NIC. Radio bring-up and scanning belong to the
// wireless stack.
type wifi struct {
	base
}

func newWifi(desc device.RawDescriptor, grant *resource.Grant, logger Logger) (device.Device, error) {
	return &wifi{base: newBase(device.ClassNetworkWifi, desc, grant, logger)}, nil
}

func (d *wifi) Init(ctx context.Context) error {
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
	d.logger.Info("wifi adapter up", "id", d.id.String(), "irq", d.grant.IRQs[0])
	return nil
}

func (d *wifi) Shutdown(ctx context.Context) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := d.beginShutdown(); err != nil {
		return err
	}
	d.logger.Info("wifi adapter down", "id", d.id.String())
	return nil
}
