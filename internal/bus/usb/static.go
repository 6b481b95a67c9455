package usb

import (
	"context"
	"sync"
)

// StaticProber is a PortProber backed by an in-memory port table.
// Used as the daemon's backend for fixed topologies and as the test
// fixture for hot-plug simulation.
type StaticProber struct {
	mu    sync.RWMutex
	ports map[[2]uint8]PortSummary
	err   error
}

// NewStaticProber builds a prober from an initial set of attachments.
func NewStaticProber(ports ...PortSummary) *StaticProber {
	s := &StaticProber{ports: make(map[[2]uint8]PortSummary)}
	for _, p := range ports {
		s.Attach(p)
	}
	return s
}

// Attach inserts or replaces a device on its port.
func (s *StaticProber) Attach(p PortSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ports[[2]uint8{p.Bus, p.Port}] = p
}

// Detach removes the device on the given port.
func (s *StaticProber) Detach(busNr, port uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ports, [2]uint8{busNr, port})
}

// SetError makes the next Ports calls fail with err until cleared with nil.
func (s *StaticProber) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Ports implements PortProber.
func (s *StaticProber) Ports(_ context.Context) ([]PortSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return nil, s.err
	}
	out := make([]PortSummary, 0, len(s.ports))
	for _, p := range s.ports {
		out = append(out, p)
	}
	return out, nil
}
