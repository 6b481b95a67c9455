package pci

import "sync"

// Function describes one function of a synthetic PCI topology.
type Function struct {
	Bus      uint8
	Slot     uint8
	Fn       uint8
	VendorID uint16
	DeviceID uint16
	Class    uint8
	Subclass uint8
	ProgIF   uint8
}

// StaticConfigSpace is a ConfigSpace backed by an in-memory topology.
//
// It serves two roles: the probing backend for the daemon when the
// platform supplies a fixed topology from configuration, and the test
// fixture for enumeration walks. Topology edits are safe at runtime,
// which is how hot-plug scenarios are simulated.
type StaticConfigSpace struct {
	mu    sync.RWMutex
	funcs map[[3]uint8]Function
}

// NewStaticConfigSpace builds a backend from an initial topology.
func NewStaticConfigSpace(funcs ...Function) *StaticConfigSpace {
	s := &StaticConfigSpace{funcs: make(map[[3]uint8]Function)}
	for _, f := range funcs {
		s.Attach(f)
	}
	return s
}

// Attach inserts or replaces a function in the topology.
func (s *StaticConfigSpace) Attach(f Function) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcs[[3]uint8{f.Bus, f.Slot, f.Fn}] = f
}

// Detach removes a function from the topology.
func (s *StaticConfigSpace) Detach(busNr, slot, fn uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.funcs, [3]uint8{busNr, slot, fn})
}

// Read32 implements ConfigSpace.
func (s *StaticConfigSpace) Read32(busNr, slot, fn uint8, offset uint8) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.funcs[[3]uint8{busNr, slot, fn}]
	if !ok {
		// Empty slots float high, matching real config reads.
		return 0xFFFFFFFF, nil
	}

	switch offset {
	case offVendorDevice:
		return uint32(f.DeviceID)<<16 | uint32(f.VendorID), nil
	case offClassCode:
		return uint32(f.Class)<<24 | uint32(f.Subclass)<<16 | uint32(f.ProgIF)<<8, nil
	case offHeaderType:
		hdr := uint32(0)
		if s.multiFunctionLocked(f.Bus, f.Slot) {
			hdr = headerTypeMultiFunction
		}
		return hdr << 16, nil
	default:
		return 0, nil
	}
}

// multiFunctionLocked reports whether the slot carries functions beyond 0.
// Caller holds at least the read lock.
func (s *StaticConfigSpace) multiFunctionLocked(busNr, slot uint8) bool {
	for fn := uint8(1); fn < MaxFunctions; fn++ {
		if _, ok := s.funcs[[3]uint8{busNr, slot, fn}]; ok {
			return true
		}
	}
	return false
}
