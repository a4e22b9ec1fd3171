// Package milp holds a mixed-integer linear program as plain data:
// variables with domains and bounds, linear constraints, and a single
// active objective. Solving is delegated to a backend behind the Solver
// interface; this package never inspects solver internals.
package milp

import (
	"fmt"
	"math"
	"sort"
)

// VarID identifies a variable within one Model.
type VarID int

// VarKind is the domain of a variable.
type VarKind int

const (
	Continuous VarKind = iota
	Integer
	Binary
)

func (k VarKind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// Variable is a decision variable with inclusive bounds.
// Upper may be math.Inf(1) for an unbounded variable.
type Variable struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64
}

// Term is one coefficient/variable pair of a linear expression.
type Term struct {
	Var  VarID
	Coef float64
}

// Relation is the comparison of a constraint row.
type Relation int

const (
	LessEq Relation = iota
	GreaterEq
	Equal
)

func (r Relation) String() string {
	switch r {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	case Equal:
		return "="
	default:
		return "?"
	}
}

// Constraint is a linear row: sum(Terms) Rel RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Rel   Relation
	RHS   float64
}

// Sense is the optimization direction.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

// Objective is a single linear objective with a direction.
type Objective struct {
	Sense Sense
	Terms []Term
}

// Linear accumulates a linear expression term by term. Coefficients on
// the same variable merge; Terms() returns a deterministic ordering so
// that equal construction sequences yield identical constraint rows.
type Linear struct {
	coefs map[VarID]float64
}

// NewLinear returns an empty expression.
func NewLinear() *Linear {
	return &Linear{coefs: make(map[VarID]float64)}
}

// Add accumulates coef*v and returns the receiver for chaining.
func (l *Linear) Add(v VarID, coef float64) *Linear {
	l.coefs[v] += coef
	return l
}

// AddScaled accumulates scale*other into the receiver.
func (l *Linear) AddScaled(other *Linear, scale float64) *Linear {
	if other == nil {
		return l
	}
	for v, c := range other.coefs {
		l.coefs[v] += c * scale
	}
	return l
}

// Len reports the number of variables with a nonzero coefficient.
func (l *Linear) Len() int {
	n := 0
	for _, c := range l.coefs {
		if c != 0 {
			n++
		}
	}
	return n
}

// Terms returns the expression as a slice sorted by variable ID,
// omitting zero coefficients.
func (l *Linear) Terms() []Term {
	terms := make([]Term, 0, len(l.coefs))
	for v, c := range l.coefs {
		if c == 0 {
			continue
		}
		terms = append(terms, Term{Var: v, Coef: c})
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].Var < terms[j].Var })
	return terms
}

// Model is a MILP instance. It is built once, then mutated only by
// adding constraints; a successful solve stores the assignment on the
// model so later phases and projections can read variable values.
type Model struct {
	Name string

	vars        []Variable
	constraints []Constraint

	values []float64
	solved bool
}

// NewModel creates an empty model.
func NewModel(name string) *Model {
	return &Model{Name: name}
}

// AddVariable appends a variable and returns its ID.
func (m *Model) AddVariable(name string, kind VarKind, lower, upper float64) VarID {
	if kind == Binary {
		lower = math.Max(lower, 0)
		upper = math.Min(upper, 1)
	}
	m.vars = append(m.vars, Variable{Name: name, Kind: kind, Lower: lower, Upper: upper})
	return VarID(len(m.vars) - 1)
}

// AddContinuous adds a continuous variable in [lower, upper].
func (m *Model) AddContinuous(name string, lower, upper float64) VarID {
	return m.AddVariable(name, Continuous, lower, upper)
}

// AddInteger adds an integer variable in [lower, upper].
func (m *Model) AddInteger(name string, lower, upper float64) VarID {
	return m.AddVariable(name, Integer, lower, upper)
}

// AddBinary adds a 0/1 variable.
func (m *Model) AddBinary(name string) VarID {
	return m.AddVariable(name, Binary, 0, 1)
}

// AddConstraint appends a permanent linear constraint.
func (m *Model) AddConstraint(name string, expr *Linear, rel Relation, rhs float64) {
	m.constraints = append(m.constraints, Constraint{
		Name:  name,
		Terms: expr.Terms(),
		Rel:   rel,
		RHS:   rhs,
	})
}

// Variable returns the definition of v.
func (m *Model) Variable(v VarID) Variable {
	return m.vars[v]
}

// Variables returns the variable definitions in ID order.
func (m *Model) Variables() []Variable {
	return m.vars
}

// Constraints returns the accumulated constraint rows.
func (m *Model) Constraints() []Constraint {
	return m.constraints
}

// NumVariables reports the number of variables.
func (m *Model) NumVariables() int { return len(m.vars) }

// NumConstraints reports the number of constraint rows.
func (m *Model) NumConstraints() int { return len(m.constraints) }

// SetSolution installs a solved assignment. Backends call this after a
// successful solve; len(values) must equal NumVariables.
func (m *Model) SetSolution(values []float64) error {
	if len(values) != len(m.vars) {
		return fmt.Errorf("milp: solution has %d values, model has %d variables", len(values), len(m.vars))
	}
	m.values = append(m.values[:0:0], values...)
	m.solved = true
	return nil
}

// Solved reports whether the model holds a solved assignment.
func (m *Model) Solved() bool { return m.solved }

// Value returns the solved value of v, or 0 if the model is unsolved.
func (m *Model) Value(v VarID) float64 {
	if !m.solved {
		return 0
	}
	return m.values[v]
}

// Eval evaluates a linear expression against the solved assignment.
func (m *Model) Eval(expr *Linear) float64 {
	total := 0.0
	for _, t := range expr.Terms() {
		total += t.Coef * m.Value(t.Var)
	}
	return total
}
