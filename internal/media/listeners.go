package media

import (
	"maps"
	"slices"
	"sync"
)

// Listeners fans element events out to subscribers. Events are delivered
// outside the set's lock so listeners may subscribe or unsubscribe freely.
// The zero value is ready to use.
type Listeners struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
}

// Add registers l and returns a function removing it
func (s *Listeners) Add(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listeners == nil {
		s.listeners = make(map[int]Listener)
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Emit delivers events in order to every listener
func (s *Listeners) Emit(events ...Event) {
	if len(events) == 0 {
		return
	}

	// Subscription order is delivery order.
	s.mu.Lock()
	snapshot := make([]Listener, 0, len(s.listeners))
	for _, id := range slices.Sorted(maps.Keys(s.listeners)) {
		snapshot = append(snapshot, s.listeners[id])
	}
	s.mu.Unlock()

	for _, ev := range events {
		for _, l := range snapshot {
			l(ev)
		}
	}
}

// Clear drops every listener
func (s *Listeners) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = nil
}
