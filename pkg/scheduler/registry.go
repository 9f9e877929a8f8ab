package scheduler

import (
	"sort"
	"sync"
)

// Registry counts live handles by name.
type Registry struct {
	mu      sync.Mutex
	next    uint64
	handles map[uint64]string
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[uint64]string)}
}

// Count returns the number of handles not yet stopped.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Names returns the sorted names of live handles.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.handles))
	for _, n := range r.handles {
		names = append(names, n)
	}
	r.mu.Unlock()
	sort.Strings(names)
	return names
}

// Track registers an externally owned resource, e.g. a device subscription,
// and returns a Handle whose Stop calls stop once and releases the slot.
func (r *Registry) Track(name string, stop func()) Handle {
	return &funcHandle{stop: stop, release: r.track(name)}
}

func (r *Registry) track(name string) func() {
	r.mu.Lock()
	r.next++
	id := r.next
	r.handles[id] = name
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.handles, id)
			r.mu.Unlock()
		})
	}
}

type funcHandle struct {
	stop    func()
	release func()
	once    sync.Once
}

func (h *funcHandle) Stop() {
	h.once.Do(func() {
		if h.stop != nil {
			h.stop()
		}
		h.release()
	})
}
