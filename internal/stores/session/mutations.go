package session

import (
	"slices"
	"sync"
)

// mutationLog records which symbols had a watchlist mutation in flight or
// settled since a given generation. A watchlist fetch uses it to keep the
// local membership of those symbols, since its response may predate them.
type mutationLog struct {
	mu       sync.Mutex
	gen      uint64
	touched  map[mutationKey]uint64
	inflight map[mutationKey]int
}

type mutationKey struct {
	userID string
	symbol string
}

func (m *mutationLog) current() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

func (m *mutationLog) begin(userID, sym string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight == nil {
		m.inflight = map[mutationKey]int{}
		m.touched = map[mutationKey]uint64{}
	}
	k := mutationKey{userID, sym}
	m.gen++
	m.inflight[k]++
	m.touched[k] = m.gen
}

func (m *mutationLog) end(userID, sym string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := mutationKey{userID, sym}
	m.gen++
	m.touched[k] = m.gen
	if m.inflight[k]--; m.inflight[k] <= 0 {
		delete(m.inflight, k)
	}
}

// since returns the symbols of userID touched after gen or still in flight
func (m *mutationLog) since(userID string, gen uint64) map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for k, g := range m.touched {
		if k.userID != userID {
			continue
		}
		if g > gen || m.inflight[k] > 0 {
			out[k.symbol] = true
		}
	}
	return out
}

// reset forgets settled mutations. Called when the user changes.
func (m *mutationLog) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.touched {
		if m.inflight[k] == 0 {
			delete(m.touched, k)
		}
	}
}

// reconcile merges a remote list with the local one. Remote order is kept;
// for symbols in touched the local membership wins and local additions are
// appended in local order.
func reconcile(remote, local []string, touched map[string]bool) []string {
	out := make([]string, 0, len(remote)+len(touched))
	for _, sym := range remote {
		if slices.Contains(out, sym) {
			continue
		}
		if touched[sym] && !slices.Contains(local, sym) {
			continue
		}
		out = append(out, sym)
	}
	for _, sym := range local {
		if touched[sym] && !slices.Contains(out, sym) {
			out = append(out, sym)
		}
	}
	return out
}
