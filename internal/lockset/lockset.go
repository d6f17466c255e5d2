// Package lockset provides one mutex per key, created on demand and released
// once nobody holds or waits for it.
package lockset

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

type Set struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Set {
	return &Set{entries: make(map[string]*entry)}
}

// Lock blocks until key is held and returns the function that releases it.
// The returned function must be called exactly once.
func (s *Set) Lock(key string) (unlock func()) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			s.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(s.entries, key)
			}
			s.mu.Unlock()
		})
	}
}

// Len returns the number of keys currently held or waited on.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
