package drivers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samajesteduroyaume/devman/internal/device"
	"github.com/samajesteduroyaume/devman/internal/resource"
)

// Driver lifecycle errors.
var (
	// ErrAlreadyInitialised is returned when Init runs twice on one instance.
	ErrAlreadyInitialised = errors.New("drivers: already initialised")

	// ErrNotInitialised is returned when Shutdown runs before Init.
	ErrNotInitialised = errors.New("drivers: not initialised")

	// ErrMissingResources is returned when the grant lacks a resource
	// the class requires.
	ErrMissingResources = errors.New("drivers: grant missing required resources")
)

// base carries the state every driver shares: identity, the grant, and
// the at-most-once Init bookkeeping. The registry already serialises
// Init against Shutdown; the mutex here keeps individual drivers
// correct even under misuse.
type base struct {
	id     device.ID
	class  device.Class
	grant  *resource.Grant
	logger Logger

	mu          sync.Mutex
	initialised bool
}

func newBase(class device.Class, desc device.RawDescriptor, grant *resource.Grant, logger Logger) base {
	if logger == nil {
		logger = noopLogger{}
	}
	return base{id: desc.ID, class: class, grant: grant, logger: logger}
}

// Identity implements device.Device.
func (b *base) Identity() device.ID { return b.id }

// Class implements device.Device.
func (b *base) Class() device.Class { return b.class }

// beginInit enforces at-most-once initialisation.
func (b *base) beginInit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialised {
		return ErrAlreadyInitialised
	}
	b.initialised = true
	return nil
}

// beginShutdown enforces init-before-shutdown ordering.
func (b *base) beginShutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialised {
		return ErrNotInitialised
	}
	b.initialised = false
	return nil
}

// requireIRQ fails unless the grant carries at least one IRQ line.
func (b *base) requireIRQ() error {
	if b.grant == nil || len(b.grant.IRQs) == 0 {
		return fmt.Errorf("%w: irq line for %s", ErrMissingResources, b.id)
	}
	return nil
}

// requireMMIO fails unless the grant carries a register window.
func (b *base) requireMMIO() error {
	if b.grant == nil || b.grant.MMIO.Size == 0 {
		return fmt.Errorf("%w: mmio window for %s", ErrMissingResources, b.id)
	}
	return nil
}

// requireDMA fails unless the grant carries at least one DMA channel.
func (b *base) requireDMA() error {
	if b.grant == nil || len(b.grant.DMAs) == 0 {
		return fmt.Errorf("%w: dma channel for %s", ErrMissingResources, b.id)
	}
	return nil
}

// checkCtx surfaces cancellation before touching hardware.
func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}
