package streamworker

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Worker is the computation behind a Handle. Run executes on its own
// goroutine. Returning nil closes the handle; returning an error fails it.
// Run should return once Port.Closing fires or Port.Receive reports
// ErrInputClosed.
type Worker interface {
	Run(ctx context.Context, port *Port) error
}

type WorkerFunc func(ctx context.Context, port *Port) error

func (f WorkerFunc) Run(ctx context.Context, port *Port) error {
	return f(ctx, port)
}

// Factory builds a worker from its start configuration. An error rejects
// the configuration and is reported as WorkerInitError.
type Factory func(cfg Config) (Worker, error)

// Registry resolves worker ids to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("worker name is required")
	}
	if factory == nil {
		return fmt.Errorf("worker %s: factory is required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("worker %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
