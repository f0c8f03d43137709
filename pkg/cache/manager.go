package cache

import "sync"

// Manager is the named-cache registry: the equivalent of looking a cache
// up by name from shared configuration rather than threading a typed
// *Cache[K, V] through every caller. Go has no generic methods, so
// Manager stores caches behind `any` and callers recover the concrete
// type with the package-level Get helper, which is the idiomatic
// workaround for a registry over heterogeneous generic instantiations.
type Manager struct {
	mu     sync.Mutex
	caches map[string]any
}

// NewManager returns an empty cache registry.
func NewManager() *Manager {
	return &Manager{caches: make(map[string]any)}
}

// Register stores c under its own name, replacing any cache previously
// registered under that name.
func Register[K comparable, V any](m *Manager, c *Cache[K, V]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[c.Name()] = c
}

// Get recovers the *Cache[K, V] registered under name, or false if no
// cache is registered under that name or it was registered with
// different type parameters.
func Get[K comparable, V any](m *Manager, name string) (*Cache[K, V], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.caches[name]
	if !ok {
		return nil, false
	}
	c, ok := v.(*Cache[K, V])
	return c, ok
}

// Names returns the names of every cache currently registered.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.caches))
	for name := range m.caches {
		out = append(out, name)
	}
	return out
}
