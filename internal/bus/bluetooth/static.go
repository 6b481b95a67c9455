package bluetooth

import (
	"context"
	"sync"
)

// StaticHCI is an HCI backend answering inquiries from an in-memory
// neighbour table. Used for fixed topologies and hot-plug simulation.
type StaticHCI struct {
	mu        sync.RWMutex
	responses map[[6]byte]InquiryResponse
	err       error
}

// NewStaticHCI builds a backend from an initial neighbour set.
func NewStaticHCI(responses ...InquiryResponse) *StaticHCI {
	s := &StaticHCI{responses: make(map[[6]byte]InquiryResponse)}
	for _, r := range responses {
		s.Appear(r)
	}
	return s
}

// Appear adds or refreshes a unit in inquiry range.
func (s *StaticHCI) Appear(r InquiryResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[r.BDAddr] = r
}

// Disappear removes a unit from inquiry range.
func (s *StaticHCI) Disappear(addr [6]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.responses, addr)
}

// SetError makes subsequent inquiries fail with err until cleared with nil.
func (s *StaticHCI) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Inquiry implements HCI.
func (s *StaticHCI) Inquiry(_ context.Context) ([]InquiryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return nil, s.err
	}
	out := make([]InquiryResponse, 0, len(s.responses))
	for _, r := range s.responses {
		out = append(out, r)
	}
	return out, nil
}
