// Package presence tracks which live connections belong to which user.
// A user may hold several connections at once (tabs, devices); an offline
// user simply has no entry.
package presence

import (
	"sync"

	"github.com/samber/lo"
)

// Handle identifies one live connection.
type Handle string

type Registry struct {
	mu    sync.RWMutex
	users map[string]map[Handle]struct{}
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[string]map[Handle]struct{})}
}

func (r *Registry) Add(userID string, handle Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles, ok := r.users[userID]
	if !ok {
		handles = make(map[Handle]struct{})
		r.users[userID] = handles
	}
	handles[handle] = struct{}{}
}

// Remove drops handle from userID's set and deletes the entry once the set
// is empty. Removing an unknown handle is a no-op.
func (r *Registry) Remove(userID string, handle Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles, ok := r.users[userID]
	if !ok {
		return
	}
	delete(handles, handle)
	if len(handles) == 0 {
		delete(r.users, userID)
	}
}

// ConnectionsOf returns a snapshot of userID's handles, in no particular
// order. The result is empty for an offline user.
func (r *Registry) ConnectionsOf(userID string) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.users[userID])
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.users[userID]
	return ok
}

// Len returns the number of users with at least one connection.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
