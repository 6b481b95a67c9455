package hotplug

import (
	"sync/atomic"

	"github.com/samajesteduroyaume/devman/internal/device"
)

// familyBit maps each bus family to one bit of the pending mask.
// The drain order below follows this fixed ordering.
var familyBit = map[device.Family]uint32{
	device.FamilyPCI:       1 << 0,
	device.FamilyUSB:       1 << 1,
	device.FamilyBluetooth: 1 << 2,
	device.FamilyPlatform:  1 << 3,
}

// drainOrder is the fixed order families are re-enumerated in one pass.
var drainOrder = []device.Family{
	device.FamilyPCI,
	device.FamilyUSB,
	device.FamilyBluetooth,
	device.FamilyPlatform,
}

// Queue is the bounded interrupt-to-worker handoff: one pending bit per
// bus family plus a wake channel.
//
// Notify is the producer side and is safe to call from interrupt-like
// contexts: it never blocks, never allocates, and coalesces a burst of
// notifications for one family into a single pending bit. Coalescing is
// correct because re-enumeration always reflects current hardware
// state, not a log of deltas.
//
// Drain is the consumer side, called only by the single hot-plug worker.
type Queue struct {
	pending atomic.Uint32
	wake    chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Notify marks the family as needing re-enumeration and wakes the
// worker. Unknown families are ignored rather than panicking, since the
// caller may be an interrupt handler.
func (q *Queue) Notify(family device.Family) {
	bit, ok := familyBit[family]
	if !ok {
		return
	}

	for {
		old := q.pending.Load()
		if old&bit != 0 {
			// Already pending for this family; coalesce.
			return
		}
		if q.pending.CompareAndSwap(old, old|bit) {
			break
		}
	}

	select {
	case q.wake <- struct{}{}:
	default:
		// Worker already has a wake pending.
	}
}

// Wake returns the channel the worker blocks on.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

// Drain atomically takes the pending set and returns the families to
// re-enumerate, in fixed order. An empty slice means a spurious wake.
func (q *Queue) Drain() []device.Family {
	mask := q.pending.Swap(0)
	if mask == 0 {
		return nil
	}

	var families []device.Family
	for _, f := range drainOrder {
		if mask&familyBit[f] != 0 {
			families = append(families, f)
		}
	}
	return families
}
