package job

import (
	"sync"

	"github.com/google/uuid"
)

// Registry holds progress state and cancellation flags for all jobs,
// keyed by job id. It is shared between the HTTP layer (polling, cancel
// requests) and the job runners (updates), so every access is locked.
//
// Progress entries outlive their jobs so a client's final poll can observe
// the terminal state. Cancellation flags are removed once observed or once
// the job ends.
type Registry struct {
	mu       sync.RWMutex
	progress map[string]Progress
	cancels  map[string]bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		progress: make(map[string]Progress),
		cancels:  make(map[string]bool),
	}
}

// NewJob registers a new job in the starting state and returns its id.
func (r *Registry) NewJob() string {
	id := uuid.New().String()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress[id] = Progress{Status: StatusStarting}
	return id
}

// Snapshot returns a copy of a job's progress.
func (r *Registry) Snapshot(id string) (Progress, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.progress[id]
	return p, ok
}

// update applies fn to a job's progress under the lock.
func (r *Registry) update(id string, fn func(*Progress)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.progress[id]
	if !ok {
		return
	}
	fn(&p)
	r.progress[id] = p
}

// RequestCancel flags a job for cancellation. The job observes the flag at
// its next row boundary; termination is asynchronous.
func (r *Registry) RequestCancel(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[id] = true
}

// cancelRequested reports whether cancellation has been requested.
func (r *Registry) cancelRequested(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cancels[id]
}

// clearCancel removes a job's cancellation flag.
func (r *Registry) clearCancel(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, id)
}
