package manager

import (
	"sync"
	"time"

	"github.com/samajesteduroyaume/devman/internal/device"
	"github.com/samajesteduroyaume/devman/internal/resource"
)

// record is the registry's internal, immutable-once-inserted entry for
// one device. State changes replace the whole record rather than
// mutating fields in place, so a reader holding a snapshot never
// observes a half-applied transition.
type record struct {
	id    device.ID
	class device.Class
	state device.State

	// failure carries the reason for StateFailed records.
	failure string

	desc  device.RawDescriptor
	grant *resource.Grant
	dev   device.Device

	firstSeen time.Time
	lastSeen  time.Time
}

// View is the read-only projection of a record handed to consumers.
// It deliberately omits the Device capability and the grant token:
// only the manager transitions state or releases resources.
type View struct {
	ID        device.ID    `json:"id"`
	Class     device.Class `json:"class"`
	State     device.State `json:"state"`
	Failure   string       `json:"failure,omitempty"`
	VendorID  uint32       `json:"vendor_id"`
	ProductID uint32       `json:"product_id"`

	IRQs      []uint32        `json:"irqs,omitempty"`
	DMAs      []uint32        `json:"dmas,omitempty"`
	MMIO      resource.Region `json:"mmio"`
	FirstSeen time.Time       `json:"first_seen"`
	LastSeen  time.Time       `json:"last_seen"`
}

// view projects a record into its external form, copying slices so the
// caller cannot reach back into the record.
func (r *record) view() View {
	v := View{
		ID:        r.id,
		Class:     r.class,
		State:     r.state,
		Failure:   r.failure,
		VendorID:  r.desc.VendorID,
		ProductID: r.desc.ProductID,
		FirstSeen: r.firstSeen,
		LastSeen:  r.lastSeen,
	}
	if r.grant != nil {
		v.IRQs = append([]uint32(nil), r.grant.IRQs...)
		v.DMAs = append([]uint32(nil), r.grant.DMAs...)
		v.MMIO = r.grant.MMIO
	}
	return v
}

// registry is the authoritative mapping of live devices: the only place
// records are created, looked up, or destroyed. An RWMutex serialises
// mutations; reads work against stable record snapshots.
type registry struct {
	mu      sync.RWMutex
	records map[device.ID]*record
}

func newRegistry() *registry {
	return &registry{records: make(map[device.ID]*record)}
}

// get returns the record for id, or nil.
func (r *registry) get(id device.ID) *record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[id]
}

// insert adds a record. At most one record may exist per ID; insert on
// an occupied ID reports false and changes nothing.
func (r *registry) insert(rec *record) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[rec.id]; exists {
		return false
	}
	r.records[rec.id] = rec
	return true
}

// replace swaps in a new record for an existing ID, preserving the
// one-record-per-ID invariant. Reports false when the ID is absent.
func (r *registry) replace(rec *record) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[rec.id]; !exists {
		return false
	}
	r.records[rec.id] = rec
	return true
}

// evict removes the record for id and returns it, or nil.
func (r *registry) evict(id device.ID) *record {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.records[id]
	delete(r.records, id)
	return rec
}

// list returns views of every record, optionally filtered.
func (r *registry) list(filter func(*record) bool) []View {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]View, 0, len(r.records))
	for _, rec := range r.records {
		if filter == nil || filter(rec) {
			views = append(views, rec.view())
		}
	}
	return views
}

// familyIDs returns the IDs of all records on the given bus family.
func (r *registry) familyIDs(family device.Family) map[device.ID]*record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[device.ID]*record)
	for id, rec := range r.records {
		if id.Family == family {
			out[id] = rec
		}
	}
	return out
}

// count returns the number of live records.
func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
