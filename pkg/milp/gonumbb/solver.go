// Package gonumbb solves MILP models by branch and bound over LP
// relaxations, using gonum's dense simplex for each relaxation. It is
// a pure-Go backend intended for planning-scale models; it registers
// itself with the milp registry under the name "gonum-bb".
package gonumbb

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/supplyopt/planner/pkg/milp"
)

const (
	// integralityTol is the distance from the nearest integer at which
	// a relaxed value is accepted as integral.
	integralityTol = 1e-6

	// simplexTol is the reduced-cost tolerance handed to lp.Simplex.
	simplexTol = 1e-10

	// improveTol guards against cycling on equal-objective incumbents.
	improveTol = 1e-9

	defaultNodeBudget = 200000
)

// ErrNodeBudget is returned when branch and bound exhausts its node
// budget before proving optimality.
var ErrNodeBudget = errors.New("gonumbb: node budget exhausted")

func init() {
	milp.Register("gonum-bb", func() (milp.Solver, error) {
		return New(), nil
	})
}

// Solver is a branch-and-bound MILP solver. The zero value is not
// usable; construct with New.
type Solver struct {
	// NodeBudget bounds the number of explored branch-and-bound nodes.
	NodeBudget int
}

// New returns a solver with the default node budget.
func New() *Solver {
	return &Solver{NodeBudget: defaultNodeBudget}
}

// node is one branch-and-bound subproblem: the model with tightened
// variable bounds, plus the parent relaxation value used for pruning.
type node struct {
	lower []float64
	upper []float64
	bound float64
}

// Solve minimizes (or maximizes) obj over m. On success the winning
// assignment is stored on the model and returned. Infeasibility and
// unboundedness are reported through milp sentinel errors.
func (s *Solver) Solve(ctx context.Context, m *milp.Model, obj milp.Objective) (*milp.Solution, error) {
	n := m.NumVariables()

	c := make([]float64, n)
	for _, t := range obj.Terms {
		c[t.Var] += t.Coef
	}
	if obj.Sense == milp.Maximize {
		for i := range c {
			c[i] = -c[i]
		}
	}

	root := node{
		lower: make([]float64, n),
		upper: make([]float64, n),
		bound: math.Inf(-1),
	}
	for i := 0; i < n; i++ {
		v := m.Variable(milp.VarID(i))
		root.lower[i] = v.Lower
		root.upper[i] = v.Upper
	}

	budget := s.NodeBudget
	if budget <= 0 {
		budget = defaultNodeBudget
	}

	var (
		best       = math.Inf(1)
		incumbent  []float64
		explored   int
		stack      = []node{root}
		rootStatus error
	)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if explored >= budget {
			return nil, fmt.Errorf("%w after %d nodes", ErrNodeBudget, explored)
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nd.bound >= best-improveTol {
			continue
		}
		explored++

		objVal, x, err := s.solveRelaxation(c, m, nd)
		if err != nil {
			if errors.Is(err, lp.ErrInfeasible) {
				if explored == 1 {
					rootStatus = milp.ErrInfeasible
				}
				continue
			}
			if errors.Is(err, lp.ErrUnbounded) {
				// An unbounded relaxation means the MILP itself has no
				// finite optimum for this objective.
				return nil, milp.ErrUnbounded
			}
			return nil, fmt.Errorf("gonumbb: relaxation failed: %w", err)
		}

		if objVal >= best-improveTol {
			continue
		}

		branchVar, frac := s.mostFractional(m, x)
		if frac <= integralityTol {
			rounded := make([]float64, n)
			copy(rounded, x)
			for i := 0; i < n; i++ {
				if m.Variable(milp.VarID(i)).Kind != milp.Continuous {
					rounded[i] = math.Round(rounded[i])
				}
			}
			best = objVal
			incumbent = rounded
			continue
		}

		val := x[branchVar]
		up := node{
			lower: append([]float64(nil), nd.lower...),
			upper: append([]float64(nil), nd.upper...),
			bound: objVal,
		}
		up.lower[branchVar] = math.Ceil(val)

		down := node{
			lower: append([]float64(nil), nd.lower...),
			upper: append([]float64(nil), nd.upper...),
			bound: objVal,
		}
		down.upper[branchVar] = math.Floor(val)

		// Depth-first, exploring the floor branch first.
		stack = append(stack, up, down)
	}

	if incumbent == nil {
		if rootStatus != nil {
			return nil, rootStatus
		}
		return nil, milp.ErrInfeasible
	}

	objective := best
	if obj.Sense == milp.Maximize {
		objective = -objective
	}
	if err := m.SetSolution(incumbent); err != nil {
		return nil, err
	}
	return milp.NewSolution(objective, incumbent), nil
}

// mostFractional returns the integer-domain variable farthest from an
// integer value, and its fractional distance.
func (s *Solver) mostFractional(m *milp.Model, x []float64) (int, float64) {
	bestIdx, bestFrac := -1, 0.0
	for i := range x {
		if m.Variable(milp.VarID(i)).Kind == milp.Continuous {
			continue
		}
		frac := math.Abs(x[i] - math.Round(x[i]))
		if frac > bestFrac {
			bestIdx, bestFrac = i, frac
		}
	}
	return bestIdx, bestFrac
}

// solveRelaxation solves the LP relaxation of the model under the
// node's variable bounds. The general-form rows are assembled into the
// standard form lp.Simplex expects: every inequality gains a slack
// column, and finite variable bounds become explicit rows. All model
// variables already have nonnegative lower bounds, so no variable
// splitting is needed.
func (s *Solver) solveRelaxation(c []float64, m *milp.Model, nd node) (float64, []float64, error) {
	n := len(c)
	cons := m.Constraints()

	// A variable outside every row and without a finite bound would
	// produce an all-zero column, which the simplex rejects. Such a
	// variable is free to sit at its lower bound (our objectives never
	// reward it), so it is excluded from the LP and fixed afterwards.
	appears := make([]bool, n)
	for _, row := range cons {
		for _, t := range row.Terms {
			if t.Coef != 0 {
				appears[t.Var] = true
			}
		}
	}

	type rowSpec struct {
		terms []milp.Term
		rel   milp.Relation
		rhs   float64
	}
	rows := make([]rowSpec, 0, len(cons)+2*n)
	for _, row := range cons {
		rows = append(rows, rowSpec{terms: row.Terms, rel: row.Rel, rhs: row.RHS})
	}
	for i := 0; i < n; i++ {
		if !appears[i] {
			continue
		}
		if ub := nd.upper[i]; !math.IsInf(ub, 1) {
			rows = append(rows, rowSpec{
				terms: []milp.Term{{Var: milp.VarID(i), Coef: 1}},
				rel:   milp.LessEq,
				rhs:   ub,
			})
		}
		if lb := nd.lower[i]; lb > 0 {
			rows = append(rows, rowSpec{
				terms: []milp.Term{{Var: milp.VarID(i), Coef: 1}},
				rel:   milp.GreaterEq,
				rhs:   lb,
			})
		}
	}

	// Column mapping for active structural variables.
	col := make([]int, n)
	active := 0
	for i := 0; i < n; i++ {
		if appears[i] {
			col[i] = active
			active++
		} else {
			col[i] = -1
			if nd.upper[i] < nd.lower[i] {
				return 0, nil, lp.ErrInfeasible
			}
		}
	}

	slacks := 0
	for _, row := range rows {
		if row.rel != milp.Equal {
			slacks++
		}
	}

	mRows := len(rows)
	nCols := active + slacks
	if mRows == 0 {
		// Nothing constrains the model; the all-lower-bound point is
		// optimal for our nonnegative objectives.
		x := append([]float64(nil), nd.lower...)
		return dot(c, x), x, nil
	}

	a := mat.NewDense(mRows, nCols, nil)
	b := make([]float64, mRows)
	cExt := make([]float64, nCols)
	for i := 0; i < n; i++ {
		if col[i] >= 0 {
			cExt[col[i]] = c[i]
		}
	}

	slack := active
	for r, row := range rows {
		for _, t := range row.terms {
			if col[t.Var] >= 0 {
				a.Set(r, col[t.Var], t.Coef)
			}
		}
		b[r] = row.rhs
		switch row.rel {
		case milp.LessEq:
			a.Set(r, slack, 1)
			slack++
		case milp.GreaterEq:
			a.Set(r, slack, -1)
			slack++
		}
	}

	_, optX, err := lp.Simplex(cExt, a, b, simplexTol, nil)
	if err != nil {
		return 0, nil, err
	}

	x := make([]float64, n)
	for i := 0; i < n; i++ {
		if col[i] >= 0 {
			x[i] = optX[col[i]]
		} else {
			x[i] = nd.lower[i]
		}
	}
	return dot(c, x), x, nil
}

func dot(c, x []float64) float64 {
	total := 0.0
	for i := range c {
		total += c[i] * x[i]
	}
	return total
}
