package resource

import "sort"

// Region is a half-open [Base, Base+Size) range of physical address
// space mapped to device registers.
type Region struct {
	Base uint64 `json:"base"`
	Size uint64 `json:"size"`
}

// End returns the exclusive upper bound of the region.
func (r Region) End() uint64 { return r.Base + r.Size }

// Overlaps reports whether two regions share any address.
func (r Region) Overlaps(other Region) bool {
	return r.Base < other.End() && other.Base < r.End()
}

// windowPool carves MMIO windows out of one contiguous address range
// using first-fit over a base-sorted free list. Adjacent free regions
// are coalesced on release to bound fragmentation.
//
// Not safe for concurrent use; the arbiter's lock covers it.
type windowPool struct {
	span Region
	free []Region // sorted by Base, never overlapping, never adjacent
	used uint64
}

func newWindowPool(base, size uint64) *windowPool {
	p := &windowPool{span: Region{Base: base, Size: size}}
	if size > 0 {
		p.free = []Region{{Base: base, Size: size}}
	}
	return p
}

// allocate claims a window of the given size at the given alignment.
// The zero Region is returned when no free region can satisfy the
// request; the free list is untouched in that case.
func (p *windowPool) allocate(size, align uint64) (Region, bool) {
	if align == 0 {
		align = 1
	}

	for i, f := range p.free {
		base := alignUp(f.Base, align)
		// base < f.Base catches alignUp wrap; comparing size against the
		// remaining span avoids overflow in base+size for huge requests.
		if base < f.Base || base >= f.End() || size > f.End()-base {
			continue
		}

		granted := Region{Base: base, Size: size}

		// Replace the free region with up to two fragments: the gap
		// the alignment skipped and the tail past the grant.
		var repl []Region
		if base > f.Base {
			repl = append(repl, Region{Base: f.Base, Size: base - f.Base})
		}
		if granted.End() < f.End() {
			repl = append(repl, Region{Base: granted.End(), Size: f.End() - granted.End()})
		}

		p.free = append(p.free[:i], append(repl, p.free[i+1:]...)...)
		p.used += size
		return granted, true
	}
	return Region{}, false
}

// release returns a window to the free list and coalesces neighbours.
func (p *windowPool) release(r Region) {
	if r.Size == 0 {
		return
	}
	p.free = append(p.free, r)
	sort.Slice(p.free, func(i, j int) bool { return p.free[i].Base < p.free[j].Base })

	coalesced := p.free[:1]
	for _, f := range p.free[1:] {
		last := &coalesced[len(coalesced)-1]
		if last.End() == f.Base {
			last.Size += f.Size
		} else {
			coalesced = append(coalesced, f)
		}
	}
	p.free = coalesced
	p.used -= r.Size
}

// freeBytes returns the total unallocated capacity.
func (p *windowPool) freeBytes() uint64 {
	var n uint64
	for _, f := range p.free {
		n += f.Size
	}
	return n
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
