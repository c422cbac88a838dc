package media

import (
	"sync"
	"time"
)

// SimulatedLibrary resolves registered media ids to Simulated elements that
// share one time source. Each Resolve call creates a fresh element; the most
// recent element per id stays reachable through Element for inspection.
type SimulatedLibrary struct {
	mu        sync.RWMutex
	now       func() time.Time
	durations map[string]float64
	elements  map[string]*Simulated
	prepare   func(*Simulated)
}

// NewSimulatedLibrary creates an empty library using now as its time source
func NewSimulatedLibrary(now func() time.Time) *SimulatedLibrary {
	if now == nil {
		now = time.Now
	}
	return &SimulatedLibrary{
		now:       now,
		durations: make(map[string]float64),
		elements:  make(map[string]*Simulated),
	}
}

// Register records an asset and its duration in seconds. A zero duration
// leaves the asset's length unknown to the engine.
func (l *SimulatedLibrary) Register(mediaID string, duration float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.durations[mediaID] = duration
}

// Has reports whether the id is registered
func (l *SimulatedLibrary) Has(mediaID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.durations[mediaID]
	return ok
}

// OnCreate installs a function applied to every element the library creates
func (l *SimulatedLibrary) OnCreate(fn func(*Simulated)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prepare = fn
}

// Resolve implements Resolver
func (l *SimulatedLibrary) Resolve(mediaID string) (Element, error) {
	l.mu.Lock()
	duration, ok := l.durations[mediaID]
	if !ok {
		l.mu.Unlock()
		return nil, &ResolveError{MediaID: mediaID, Cause: ErrUnknownMedia}
	}
	el := NewSimulated(mediaID, duration, l.now)
	l.elements[mediaID] = el
	prepare := l.prepare
	l.mu.Unlock()

	if prepare != nil {
		prepare(el)
	}
	return el, nil
}

// Element returns the last element created for the id
func (l *SimulatedLibrary) Element(mediaID string) (*Simulated, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	el, ok := l.elements[mediaID]
	return el, ok
}

// Close closes every element the library created and forgets them
func (l *SimulatedLibrary) Close() error {
	l.mu.Lock()
	elements := l.elements
	l.elements = make(map[string]*Simulated)
	l.mu.Unlock()

	for _, el := range elements {
		_ = el.Close()
	}
	return nil
}
