// Package registry holds the latest known orientation per source id.
//
// This is a latest-value (conflating) store, not a queue: each successfully
// decoded sample overwrites the previous one for its id, and the render
// scheduler drains only sources that changed since its last tick. Samples
// superseded before a drain are counted as drops and discarded; the system
// visualises current state, not history.
package registry

import (
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// slot is the single-value mailbox for one source id. The dirty flag is
// only ever set true by Update and only ever cleared by Flush; the mutex
// covers the multi-word quaternion copy, which is not atomically updatable
// on its own.
type slot struct {
	mu    sync.Mutex
	quat  mgl64.Quat
	dirty bool
	drops uint64
}

// Registry maps source ids to their latest orientation. Entries are created
// lazily the first time a valid sample for an id is observed; there is no
// preconfigured id count.
type Registry struct {
	mu    sync.RWMutex
	slots map[uint8]*slot
}

func New() *Registry {
	return &Registry{slots: make(map[uint8]*slot)}
}

// Update stores the latest quaternion for id and marks it pending for the
// next flush, creating the entry on first sighting. Overwriting a value the
// scheduler has not consumed yet counts as a conflation drop.
// Returns true when this call created the entry.
func (r *Registry) Update(id uint8, q mgl64.Quat) bool {
	r.mu.RLock()
	s, ok := r.slots[id]
	r.mu.RUnlock()

	created := false
	if !ok {
		r.mu.Lock()
		// Re-check: another writer may have raced us here.
		if s, ok = r.slots[id]; !ok {
			s = &slot{}
			r.slots[id] = s
			created = true
		}
		r.mu.Unlock()
	}

	s.mu.Lock()
	if s.dirty {
		s.drops++
	}
	s.quat = q
	s.dirty = true
	s.mu.Unlock()
	return created
}

// Flush visits every source with a pending update in ascending id order,
// hands fn a copy of the latest quaternion, and clears the pending flag.
// Sources with no new data since the previous flush are skipped. fn runs
// outside the slot lock, so a slow consumer never blocks the update path.
func (r *Registry) Flush(fn func(id uint8, q mgl64.Quat)) {
	for _, id := range r.IDs() {
		r.mu.RLock()
		s := r.slots[id]
		r.mu.RUnlock()
		if s == nil {
			continue
		}

		s.mu.Lock()
		if !s.dirty {
			s.mu.Unlock()
			continue
		}
		q := s.quat
		s.dirty = false
		s.mu.Unlock()

		fn(id, q)
	}
}

// Latest returns the most recent quaternion stored for id, whether or not
// it has been flushed yet.
func (r *Registry) Latest(id uint8) (mgl64.Quat, bool) {
	r.mu.RLock()
	s, ok := r.slots[id]
	r.mu.RUnlock()
	if !ok {
		return mgl64.QuatIdent(), false
	}
	s.mu.Lock()
	q := s.quat
	s.mu.Unlock()
	return q, true
}

// IDs returns all registered source ids in ascending order.
func (r *Registry) IDs() []uint8 {
	r.mu.RLock()
	ids := make([]uint8, 0, len(r.slots))
	for id := range r.slots {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Drops returns the lifetime count of samples superseded before a flush
// consumed them, summed over all sources.
func (r *Registry) Drops() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total uint64
	for _, s := range r.slots {
		s.mu.Lock()
		total += s.drops
		s.mu.Unlock()
	}
	return total
}

// Reset discards all entries. Called on full disconnect.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.slots = make(map[uint8]*slot)
	r.mu.Unlock()
}
