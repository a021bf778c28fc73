package usecase

import (
	"sort"
	"sync"
	"time"
)

// WorkflowFactory builds the workflow for a new identifier.
type WorkflowFactory func(identifier string) *Workflow

type registryEntry struct {
	w        *Workflow
	lastUsed time.Time
}

// Registry holds one Workflow per identifier, created on first use and
// evicted by Sweep once unused.
type Registry struct {
	mu        sync.Mutex
	workflows map[string]*registryEntry
	factory   WorkflowFactory
	now       func() time.Time
}

func NewRegistry(factory WorkflowFactory) *Registry {
	return &Registry{
		workflows: make(map[string]*registryEntry),
		factory:   factory,
		now:       time.Now,
	}
}

func (r *Registry) Get(identifier string) *Workflow {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.workflows[identifier]
	if !ok {
		e = &registryEntry{w: r.factory(identifier)}
		r.workflows[identifier] = e
	}
	e.lastUsed = r.now()
	return e.w
}

// Lookup returns the workflow for identifier without creating one.
func (r *Registry) Lookup(identifier string) (*Workflow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.workflows[identifier]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.w, true
}

// Identifiers lists known identifiers in sorted order.
func (r *Registry) Identifiers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.workflows))
	for id := range r.workflows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sweep deactivates and drops workflows not requested for longer than idle.
// Workflows with a running activation or submission, or with a live
// subscriber, are kept. It returns how many were removed.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	evicted := make([]*Workflow, 0)
	for id, e := range r.workflows {
		if e.lastUsed.Before(cutoff) && !e.w.busy() {
			delete(r.workflows, id)
			evicted = append(evicted, e.w)
		}
	}
	r.mu.Unlock()

	for _, w := range evicted {
		w.Deactivate()
	}
	return len(evicted)
}

// DeactivateAll deactivates every workflow, used on shutdown.
func (r *Registry) DeactivateAll() {
	r.mu.Lock()
	ws := make([]*Workflow, 0, len(r.workflows))
	for _, e := range r.workflows {
		ws = append(ws, e.w)
	}
	r.mu.Unlock()

	for _, w := range ws {
		w.Deactivate()
	}
}
