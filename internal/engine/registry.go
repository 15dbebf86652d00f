package engine

import "sync"

// registry is the only process-wide shared structure: a guarded mapping
// of auction id to its actor handle. Insertions happen on auction
// creation and startup recovery; removals only on delete or actor close.
type registry struct {
	mu     sync.RWMutex
	actors map[string]*actor
}

func newRegistry() *registry {
	return &registry{actors: make(map[string]*actor)}
}

// add registers an actor. Returns false if the id is already present.
func (r *registry) add(a *actor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actors[a.auctionID]; exists {
		return false
	}
	r.actors[a.auctionID] = a
	return true
}

func (r *registry) get(auctionID string) (*actor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.actors[auctionID]
	return a, ok
}

func (r *registry) remove(auctionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.actors, auctionID)
}

func (r *registry) all() []*actor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*actor, 0, len(r.actors))
	for _, a := range r.actors {
		out = append(out, a)
	}
	return out
}

func (r *registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actors)
}
