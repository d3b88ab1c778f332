package provider

import "sync"

// StateNotifier fans auth-state changes out to subscribers. The zero value
// is ready to use.
type StateNotifier struct {
	mu        sync.Mutex
	nextID    int
	callbacks map[int]func(*UserProfile)
}

// Subscribe registers cb and returns its unsubscribe function. Unsubscribing
// twice is harmless.
func (n *StateNotifier) Subscribe(cb func(*UserProfile)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.callbacks == nil {
		n.callbacks = make(map[int]func(*UserProfile))
	}
	id := n.nextID
	n.nextID++
	n.callbacks[id] = cb
	return func() {
		n.mu.Lock()
		delete(n.callbacks, id)
		n.mu.Unlock()
	}
}

// Notify invokes every subscriber with the new profile (nil on sign-out).
func (n *StateNotifier) Notify(profile *UserProfile) {
	n.mu.Lock()
	callbacks := make([]func(*UserProfile), 0, len(n.callbacks))
	for _, cb := range n.callbacks {
		callbacks = append(callbacks, cb)
	}
	n.mu.Unlock()
	for _, cb := range callbacks {
		cb(profile)
	}
}
