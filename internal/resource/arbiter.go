package resource

import (
	"fmt"
	"sync"

	"github.com/samajesteduroyaume/devman/internal/device"
)

// Request names the resources a device needs before initialisation.
type Request struct {
	IRQCount  int    `json:"irq_count"`
	DMACount  int    `json:"dma_count"`
	MMIOSize  uint64 `json:"mmio_size"`
	MMIOAlign uint64 `json:"mmio_align"`
}

// Grant is a disjoint slice of the arbiter's pools, exclusively owned
// by one device ID until released. A grant must be released exactly
// once; releasing twice is a programming error, never silently ignored,
// because a silent double release would corrupt the free lists.
type Grant struct {
	Owner device.ID `json:"owner"`
	IRQs  []uint32  `json:"irqs,omitempty"`
	DMAs  []uint32  `json:"dmas,omitempty"`
	MMIO  Region    `json:"mmio"`

	released bool
}

// Empty reports whether the grant holds no resources at all.
func (g *Grant) Empty() bool {
	return g == nil || (len(g.IRQs) == 0 && len(g.DMAs) == 0 && g.MMIO.Size == 0)
}

// Config sizes the arbiter's pools. Pool sizes are fixed at boot.
type Config struct {
	IRQLines    int
	DMAChannels int
	MMIOBase    uint64
	MMIOSize    uint64
}

// Arbiter owns the finite pools of IRQ lines, DMA channels, and MMIO
// windows, and grants disjoint allocations to device records.
//
// A single mutex guards all three pools. Reservation and release are
// linear over small, boot-bounded pool sizes, so lock hold times stay
// short; the arbiter is safe to call from the hot-plug worker but must
// never be called from an interrupt handler.
type Arbiter struct {
	mu   sync.Mutex
	irq  *linePool
	dma  *linePool
	mmio *windowPool
}

// NewArbiter creates an arbiter with the given pool sizing.
func NewArbiter(cfg Config) *Arbiter {
	return &Arbiter{
		irq:  newLinePool(cfg.IRQLines),
		dma:  newLinePool(cfg.DMAChannels),
		mmio: newWindowPool(cfg.MMIOBase, cfg.MMIOSize),
	}
}

// Reserve carves a disjoint grant for owner, all-or-nothing: a request
// that cannot be fully satisfied leaves every pool untouched and fails
// with ErrExhausted.
func (a *Arbiter) Reserve(owner device.ID, req Request) (*Grant, error) {
	if req.IRQCount < 0 || req.DMACount < 0 {
		return nil, fmt.Errorf("%w: negative count", ErrInvalidRequest)
	}
	if req.MMIOAlign != 0 && req.MMIOAlign&(req.MMIOAlign-1) != 0 {
		return nil, fmt.Errorf("%w: alignment %#x", ErrMisaligned, req.MMIOAlign)
	}
	if req.MMIOSize == 0 && req.MMIOAlign > 1 {
		return nil, fmt.Errorf("%w: alignment without window size", ErrInvalidRequest)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	irqs := a.irq.allocate(req.IRQCount)
	if req.IRQCount > 0 && irqs == nil {
		return nil, fmt.Errorf("%w: %d irq lines for %s", ErrExhausted, req.IRQCount, owner)
	}

	dmas := a.dma.allocate(req.DMACount)
	if req.DMACount > 0 && dmas == nil {
		a.irq.free(irqs)
		return nil, fmt.Errorf("%w: %d dma channels for %s", ErrExhausted, req.DMACount, owner)
	}

	var window Region
	if req.MMIOSize > 0 {
		var ok bool
		window, ok = a.mmio.allocate(req.MMIOSize, req.MMIOAlign)
		if !ok {
			a.irq.free(irqs)
			a.dma.free(dmas)
			return nil, fmt.Errorf("%w: %#x byte mmio window for %s", ErrExhausted, req.MMIOSize, owner)
		}
	}

	return &Grant{Owner: owner, IRQs: irqs, DMAs: dmas, MMIO: window}, nil
}

// Release returns a grant's resources to the pools. Releasing an
// already-released grant fails with ErrDoubleRelease and leaves the
// pools untouched.
func (a *Arbiter) Release(g *Grant) error {
	if g == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if g.released {
		return fmt.Errorf("%w: grant for %s", ErrDoubleRelease, g.Owner)
	}
	g.released = true

	a.irq.free(g.IRQs)
	a.dma.free(g.DMAs)
	if g.MMIO.Size > 0 {
		a.mmio.release(g.MMIO)
	}
	return nil
}

// Stats reports pool utilisation for diagnostics.
type Stats struct {
	IRQCapacity int    `json:"irq_capacity"`
	IRQUsed     int    `json:"irq_used"`
	DMACapacity int    `json:"dma_capacity"`
	DMAUsed     int    `json:"dma_used"`
	MMIOTotal   uint64 `json:"mmio_total"`
	MMIOUsed    uint64 `json:"mmio_used"`
	MMIOFree    uint64 `json:"mmio_free"`
}

// GetStats returns current pool utilisation.
func (a *Arbiter) GetStats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Stats{
		IRQCapacity: a.irq.capacity(),
		IRQUsed:     a.irq.used,
		DMACapacity: a.dma.capacity(),
		DMAUsed:     a.dma.used,
		MMIOTotal:   a.mmio.span.Size,
		MMIOUsed:    a.mmio.used,
		MMIOFree:    a.mmio.freeBytes(),
	}
}
