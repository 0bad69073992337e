package state

import "sync/atomic"

// Sequence is a per-operation stale-response guard: only the most recently
// issued ticket may write its result.
type Sequence struct {
	n atomic.Uint64
}

// Next issues a new ticket, invalidating every earlier one.
func (s *Sequence) Next() uint64 {
	return s.n.Add(1)
}

// IsLatest reports whether ticket is still the newest issued.
func (s *Sequence) IsLatest(ticket uint64) bool {
	return s.n.Load() == ticket
}
