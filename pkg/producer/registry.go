// Copyright 2025 Certen Protocol

package producer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/certen/sovereign-engine/pkg/journal"
)

// Registry is a thread-safe directory of producers, keyed by name. All
// producers report for duty here; the scheduler only ever iterates the
// registry, never a hardcoded list.
type Registry struct {
	mu        sync.RWMutex
	producers map[string]*Runner
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{producers: make(map[string]*Runner)}
}

// Register adds a producer. Registering the same name twice with a
// different underlying Producer is a configuration error and panics at
// startup rather than silently shadowing the first registration.
func (r *Registry) Register(p Producer, store *journal.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if existing, ok := r.producers[name]; ok && existing.producer != p {
		panic(fmt.Sprintf("producer already registered: %s", name))
	}
	r.producers[name] = NewRunner(p, store)
}

// RegisterWithBreaker is Register plus a circuit breaker guarding the
// producer's Collect calls — the usual choice for any producer that
// makes an outbound network request.
func (r *Registry) RegisterWithBreaker(p Producer, store *journal.Store, breaker *CircuitBreaker) {
	r.Register(p, store)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.producers[p.Name()].WithCircuitBreaker(breaker)
}

// Get returns the runner for name, or false if nothing is registered
// under that name.
func (r *Registry) Get(name string) (*Runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runner, ok := r.producers[name]
	return runner, ok
}

// List returns every registered producer name, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.producers))
	for name := range r.producers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListByDomain returns every registered producer name whose domain
// matches, sorted.
func (r *Registry) ListByDomain(domain string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, runner := range r.producers {
		if runner.Domain() == domain {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// All returns every registered runner, sorted by name, for the scheduler
// to drive.
func (r *Registry) All() []*Runner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.producers))
	for name := range r.producers {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Runner, 0, len(names))
	for _, name := range names {
		out = append(out, r.producers[name])
	}
	return out
}
