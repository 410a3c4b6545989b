package dynproxy

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrFunctionNotFound = errors.New("function not found")
	ErrDuplicateName    = errors.New("function already registered")
)

// Callable is anything that can be invoked with dynamic arguments and
// describe itself. *ProxyFunction and *ComposedProxy implement it.
type Callable interface {
	CallArgs(args []any) (any, error)
	Info() FunctionInfo
}

// Registry is a concurrency-safe table of named callables
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Callable
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Callable)}
}

// Register adds c under name. Wrappers from this package are stored as a
// clone renamed to name, so descriptors agree with the registry however often
// the caller registers or renames the original.
func (r *Registry) Register(name string, c Callable) error {
	if name == "" {
		return fmt.Errorf("register: empty function name")
	}
	if c == nil {
		return fmt.Errorf("register %q: nil callable", name)
	}

	switch w := c.(type) {
	case *ProxyFunction:
		w = w.Clone()
		w.SetName(name)
		c = w
	case *ComposedProxy:
		w = w.Clone()
		w.SetName(name)
		c = w
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("register %q: %w", name, ErrDuplicateName)
	}
	r.entries[name] = c
	return nil
}

// Add wraps fn with NewProxy and registers it under name. The returned
// wrapper is independent of the registered one.
func (r *Registry) Add(name string, fn any, opts ...Option) (*ProxyFunction, error) {
	e, err := newEngine(fn, false, CallerLocation(1), append(opts, WithName(name)))
	if err != nil {
		return nil, fmt.Errorf("register %q: %w", name, err)
	}
	p := &ProxyFunction{engine: e}
	if err := r.Register(name, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Unregister removes name and reports whether it was present
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.entries[name]
	delete(r.entries, name)
	return exists
}

// Lookup returns the callable registered under name
func (r *Registry) Lookup(name string) (Callable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.entries[name]
	return c, ok
}

// Names returns the registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Infos returns the descriptors of all registered callables, sorted by
// registry name
func (r *Registry) Infos() []FunctionInfo {
	names := r.Names()
	infos := make([]FunctionInfo, 0, len(names))
	for _, name := range names {
		if c, ok := r.Lookup(name); ok {
			infos = append(infos, c.Info())
		}
	}
	return infos
}

// Call invokes the callable registered under name
func (r *Registry) Call(name string, args []any) (any, error) {
	c, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("function %q: %w", name, ErrFunctionNotFound)
	}
	return c.CallArgs(args)
}
