package simulation

import (
	"sort"
	"sync"
)

type run struct {
	stopped chan struct{}
}

func (r *run) cancelled() bool {
	select {
	case <-r.stopped:
		return true
	default:
		return false
	}
}

// Registry is the process-wide set of shifts with a simulation in flight.
type Registry struct {
	mu   sync.Mutex
	runs map[uint]*run
}

func NewRegistry() *Registry {
	return &Registry{runs: make(map[uint]*run)}
}

// Start registers id and reports false if it was already registered.
func (g *Registry) Start(id uint) bool {
	_, ok := g.begin(id)
	return ok
}

func (g *Registry) begin(id uint) (*run, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.runs[id]; exists {
		return nil, false
	}
	r := &run{stopped: make(chan struct{})}
	g.runs[id] = r
	return r, true
}

// Stop removes id, signalling its walk to abort at the next sub-step.
func (g *Registry) Stop(id uint) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.runs[id]
	if !ok {
		return false
	}
	delete(g.runs, id)
	close(r.stopped)
	return true
}

// finish removes id only while it still belongs to r, so a late-finishing
// walk never unregisters a newer run of the same shift.
func (g *Registry) finish(id uint, r *run) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.runs[id] == r {
		delete(g.runs, id)
		close(r.stopped)
	}
}

func (g *Registry) IsRunning(id uint) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.runs[id]
	return ok
}

func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.runs)
}

// IDs lists the registered shift ids in ascending order.
func (g *Registry) IDs() []uint {
	g.mu.Lock()
	ids := make([]uint, 0, len(g.runs))
	for id := range g.runs {
		ids = append(ids, id)
	}
	g.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
