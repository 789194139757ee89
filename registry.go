package reactor

import (
	"syscall"
)

// registry owns every source of a reactor, in registration order.
//
// Released sources are tombstoned: they stay in slots, detached and never
// dispatched, until compact is called between batches. Slot order therefore
// stays stable for the whole of a batch, even when callbacks add or release
// sources.
type registry struct {
	// slots holds sources in registration (and so ID) order.
	slots []*Source

	byFD     map[int][]*Source
	bySignal map[syscall.Signal]*Source
	byPid    map[int]*Source

	// nextID is the counter for generating unique source IDs.
	nextID uint64

	// tombstones counts detached sources still held in slots.
	tombstones int
}

func newRegistry() registry {
	return registry{
		byFD:     make(map[int][]*Source),
		bySignal: make(map[syscall.Signal]*Source),
		byPid:    make(map[int]*Source),
		nextID:   1, // Start at 1 so 0 is never a valid ID
	}
}

// insert assigns the next ID to s and indexes it. The source must be fully
// configured.
func (r *registry) insert(s *Source) {
	s.id = r.nextID
	r.nextID++
	s.held = true
	r.slots = append(r.slots, s)
	switch s.kind {
	case KindIO:
		r.byFD[s.fd] = append(r.byFD[s.fd], s)
	case KindSignal:
		r.bySignal[s.signal] = s
	case KindChild:
		r.byPid[s.pid] = s
	}
}

// unindex drops s from the key indexes, freeing its signal or pid for a new
// registration, and tombstones it. The slot itself is kept.
func (r *registry) unindex(s *Source) {
	switch s.kind {
	case KindIO:
		list := r.byFD[s.fd]
		for i, v := range list {
			if v == s {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(r.byFD, s.fd)
		} else {
			r.byFD[s.fd] = list
		}
	case KindSignal:
		if r.bySignal[s.signal] == s {
			delete(r.bySignal, s.signal)
		}
	case KindChild:
		if r.byPid[s.pid] == s {
			delete(r.byPid, s.pid)
		}
	}
	r.tombstones++
}

// compact physically removes tombstoned sources, releasing the internal hold
// on each. Must only be called between batches.
func (r *registry) compact() {
	if r.tombstones == 0 {
		return
	}
	live := r.slots[:0]
	for _, s := range r.slots {
		if s.detached {
			s.held = false
			continue
		}
		live = append(live, s)
	}
	// clear the tail so released sources can be collected
	clear(r.slots[len(live):])
	r.slots = live
	r.tombstones = 0
}

// len returns the number of sources that are not tombstoned.
func (r *registry) len() int {
	return len(r.slots) - r.tombstones
}

// fdInterest returns the union of the events requested by the sources
// watching fd that are enabled and not muted.
func (r *registry) fdInterest(fd int) IOEvents {
	var events IOEvents
	for _, s := range r.byFD[fd] {
		if s.active() {
			events |= s.events
		}
	}
	return events
}
