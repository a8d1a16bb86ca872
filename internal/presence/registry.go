// Package presence tracks which users hold live connections in this
// process and orchestrates the connect/disconnect side effects.
package presence

import "sync"

// Registry maps a user id to the set of its active connection ids. A user
// with several tabs or devices owns several connection ids at once. The
// registry is entirely volatile: presence only reflects connections held by
// the current process.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]map[string]struct{}),
	}
}

// Add inserts connID into userID's session set, creating the set if
// absent. Idempotent: adding the same pair twice leaves the set unchanged.
func (r *Registry) Add(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[userID]
	if !ok {
		set = make(map[string]struct{})
		r.sessions[userID] = set
	}
	set[connID] = struct{}{}
}

// Remove deletes connID from userID's session set and reports whether the
// user is now fully offline. An empty set is removed entirely.
func (r *Registry) Remove(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[userID]
	if !ok {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.sessions, userID)
		return true
	}
	return false
}

// IsOnline reports whether userID has at least one live session.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID]) > 0
}

// SessionCount returns the number of live sessions for userID.
func (r *Registry) SessionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID])
}

// OnlineUsers returns the ids of every user with at least one session.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.sessions))
	for userID := range r.sessions {
		users = append(users, userID)
	}
	return users
}

// Stats returns registry counters for the admin surface.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, set := range r.sessions {
		total += len(set)
	}
	return map[string]int{
		"online_users":   len(r.sessions),
		"total_sessions": total,
	}
}
