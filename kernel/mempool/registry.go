package mempool

import "sync"

// Registry is an ordered list of pools, walked for usage reports.
type Registry struct {
	mu    sync.Mutex
	pools []*Pool
}

// Add appends p to the registry.
func (r *Registry) Add(p *Pool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools = append(r.pools, p)
}

// Lookup returns the first pool named name, or nil.
func (r *Registry) Lookup(name string) *Pool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pools {
		if p.name == name {
			return p
		}
	}
	return nil
}

// Walk calls fn with the info of each pool in registration order until fn
// returns false.
func (r *Registry) Walk(fn func(Info) bool) {
	r.mu.Lock()
	pools := append([]*Pool(nil), r.pools...)
	r.mu.Unlock()
	for _, p := range pools {
		if !fn(p.Info()) {
			return
		}
	}
}

// Len returns the number of registered pools.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pools)
}
