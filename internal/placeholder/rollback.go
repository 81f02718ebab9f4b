package placeholder

import "sync"

// Rollback is a per-case list of deferred restore actions. Hooks run exactly
// once, in registration order.
type Rollback struct {
	mu    sync.Mutex
	hooks []func()
	done  bool
}

// Register appends a hook. Hooks registered after Run are ignored.
func (r *Rollback) Register(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.hooks = append(r.hooks, fn)
}

// Len returns the number of registered hooks.
func (r *Rollback) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hooks)
}

// Run executes every hook once.
func (r *Rollback) Run() {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	hooks := r.hooks
	r.hooks = nil
	r.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}
