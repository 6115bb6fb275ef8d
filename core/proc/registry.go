package proc

import "sync"

// Registry tracks every live Controller in the process and owns the fork
// serialization lock.
//
// Concurrent forks while pipe descriptors are being duplicated can leak
// those descriptors into unrelated children, so every controller must hold
// the registry's fork lock across its spawn critical section. The lock is
// never held past the spawn itself.
type Registry struct {
	forkMu sync.Mutex

	mu          sync.Mutex
	controllers map[*Controller]struct{}
}

// DefaultRegistry is the process-wide registry used by NewController.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry. Production code shares
// DefaultRegistry; tests may create private ones.
func NewRegistry() *Registry {
	return &Registry{controllers: make(map[*Controller]struct{})}
}

func (r *Registry) register(c *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controllers[c] = struct{}{}
}

func (r *Registry) deregister(c *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controllers, c)
}

// ControllerCount reports how many controllers are currently registered.
func (r *Registry) ControllerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

// withForkLock runs fn with the process-wide fork lock held.
func (r *Registry) withForkLock(fn func() error) error {
	r.forkMu.Lock()
	defer r.forkMu.Unlock()
	return fn()
}
