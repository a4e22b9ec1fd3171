package milp

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Solution is the result of one successful solve.
type Solution struct {
	Objective float64
	values    []float64
}

// NewSolution wraps a variable assignment; backends construct these.
func NewSolution(objective float64, values []float64) *Solution {
	return &Solution{Objective: objective, values: values}
}

// Value returns the assigned value of v.
func (s *Solution) Value(v VarID) float64 {
	return s.values[v]
}

// Eval evaluates a term list against the assignment.
func (s *Solution) Eval(terms []Term) float64 {
	total := 0.0
	for _, t := range terms {
		total += t.Coef * s.values[t.Var]
	}
	return total
}

// Solver is the narrow capability the planner needs from a MILP
// backend: solve the model under one objective, report the status
// through the returned error, and expose the assignment. The model is
// also updated in place with the winning assignment.
type Solver interface {
	Solve(ctx context.Context, m *Model, obj Objective) (*Solution, error)
}

// Factory constructs a solver backend.
type Factory func() (Solver, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available under name. Backends register
// themselves from an init function; importing the backend package is
// enough to make it discoverable.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Backends lists registered backend names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New constructs the named backend, or the sole registered backend when
// name is empty. Returns ErrUnavailable when nothing is registered or
// the name is unknown.
func New(name string) (Solver, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if len(registry) == 0 {
		return nil, ErrUnavailable
	}
	if name == "" {
		names := make([]string, 0, len(registry))
		for n := range registry {
			names = append(names, n)
		}
		sort.Strings(names)
		name = names[0]
	}
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend %q", ErrUnavailable, name)
	}
	return f()
}
