package asyncrt

import (
	"sync"
	"weak"
)

// monitorRegistry tracks a Monitor's children using weak pointers, so that
// a detached, unreferenced child monitor remains collectible even though
// its parent's diagnostic tree (sexp.go) still lists it until the next
// scavenge. This is the same weak-pointer-plus-ring-buffer scavenging
// shape the reference implementation uses for its live-promise registry,
// repurposed here to track live monitors instead.
type monitorRegistry struct {
	mu sync.Mutex

	// data maps child id -> weak pointer to the child Monitor.
	data map[uint64]weak.Pointer[Monitor]

	// ring is a circular buffer of ids, walked incrementally by scavenge
	// so that a long-lived parent does not pay for a full scan on every
	// call.
	ring []uint64
	head int

	nextID uint64
}

func newMonitorRegistry() *monitorRegistry {
	return &monitorRegistry{
		data:   make(map[uint64]weak.Pointer[Monitor]),
		nextID: 1,
	}
}

// add registers m as a child, returning an id usable to look it up again.
func (r *monitorRegistry) add(m *Monitor) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.data[id] = weak.Make(m)
	r.ring = append(r.ring, id)
	return id
}

// live returns every still-alive child, in registration order, scavenging
// dead entries it encounters along the way.
func (r *monitorRegistry) live() []*Monitor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Monitor, 0, len(r.ring))
	kept := r.ring[:0]
	for _, id := range r.ring {
		wp, ok := r.data[id]
		if !ok {
			continue
		}
		m := wp.Value()
		if m == nil {
			delete(r.data, id)
			continue
		}
		out = append(out, m)
		kept = append(kept, id)
	}
	r.ring = kept
	return out
}

// scavengeOne advances the scan cursor by one slot, dropping the entry if
// its monitor has been collected. Nothing in the package calls it.
func (r *monitorRegistry) scavengeOne() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ring) == 0 {
		return
	}
	if r.head >= len(r.ring) {
		r.head = 0
	}
	id := r.ring[r.head]
	if wp, ok := r.data[id]; ok && wp.Value() == nil {
		delete(r.data, id)
		r.ring = append(r.ring[:r.head], r.ring[r.head+1:]...)
		return
	}
	r.head++
}
