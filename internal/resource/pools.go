package resource

// linePool hands out individual numbered lines (IRQ lines, DMA
// channels) from a small fixed pool. Lines are not required to be
// contiguous; allocation is lowest-free-first.
//
// Not safe for concurrent use; the arbiter's lock covers it.
type linePool struct {
	inUse []bool
	used  int
}

func newLinePool(size int) *linePool {
	return &linePool{inUse: make([]bool, size)}
}

// allocate claims count lines and returns their numbers, or nil when
// fewer than count lines are free. The pool is untouched on failure.
func (p *linePool) allocate(count int) []uint32 {
	if count == 0 {
		return nil
	}
	if count > len(p.inUse)-p.used {
		return nil
	}

	lines := make([]uint32, 0, count)
	for i := range p.inUse {
		if !p.inUse[i] {
			lines = append(lines, uint32(i))
			if len(lines) == count {
				break
			}
		}
	}
	for _, l := range lines {
		p.inUse[l] = true
	}
	p.used += count
	return lines
}

// free returns lines to the pool.
func (p *linePool) free(lines []uint32) {
	for _, l := range lines {
		if int(l) < len(p.inUse) && p.inUse[l] {
			p.inUse[l] = false
			p.used--
		}
	}
}

func (p *linePool) capacity() int { return len(p.inUse) }
