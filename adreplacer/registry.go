package adreplacer

import (
	"sync"

	"github.com/hazyhaar/adfriend/dom"
)

// Registry is the set of elements already claimed by the replacer. Keys are
// element identities, which never keep an element alive; entries for
// collectable elements are dropped once the element is garbage collected.
type Registry struct {
	mu  sync.Mutex
	set map[any]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{set: make(map[any]struct{})}
}

// Claim adds el and reports whether it was absent. The test and the set
// happen under one lock, so exactly one of several concurrent callers wins.
func (r *Registry) Claim(el dom.Element) bool {
	key := el.Identity()
	r.mu.Lock()
	if _, ok := r.set[key]; ok {
		r.mu.Unlock()
		return false
	}
	r.set[key] = struct{}{}
	r.mu.Unlock()

	if c, ok := el.(dom.Collectable); ok {
		c.OnCollect(func() { r.forget(key) })
	}
	return true
}

// Has reports whether el has been claimed.
func (r *Registry) Has(el dom.Element) bool {
	key := el.Identity()
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.set[key]
	return ok
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.set)
}

func (r *Registry) forget(key any) {
	r.mu.Lock()
	delete(r.set, key)
	r.mu.Unlock()
}
