package milp

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearMergesCoefficients(t *testing.T) {
	expr := NewLinear().Add(0, 2).Add(1, 3).Add(0, 0.5)

	terms := expr.Terms()
	require.Len(t, terms, 2)
	assert.Equal(t, Term{Var: 0, Coef: 2.5}, terms[0])
	assert.Equal(t, Term{Var: 1, Coef: 3}, terms[1])
}

func TestLinearDropsZeroCoefficients(t *testing.T) {
	expr := NewLinear().Add(0, 1).Add(0, -1).Add(2, 4)

	assert.Equal(t, 1, expr.Len())
	terms := expr.Terms()
	require.Len(t, terms, 1)
	assert.Equal(t, VarID(2), terms[0].Var)
}

func TestLinearTermsSortedByVariable(t *testing.T) {
	expr := NewLinear().Add(5, 1).Add(1, 1).Add(3, 1)

	terms := expr.Terms()
	require.Len(t, terms, 3)
	assert.Equal(t, VarID(1), terms[0].Var)
	assert.Equal(t, VarID(3), terms[1].Var)
	assert.Equal(t, VarID(5), terms[2].Var)
}

func TestLinearAddScaled(t *testing.T) {
	base := NewLinear().Add(0, 1).Add(1, 2)
	expr := NewLinear().Add(1, 1).AddScaled(base, 3)

	terms := expr.Terms()
	require.Len(t, terms, 2)
	assert.Equal(t, 3.0, terms[0].Coef)
	assert.Equal(t, 7.0, terms[1].Coef)

	// A nil operand is a no-op.
	assert.Equal(t, 2, expr.AddScaled(nil, 5).Len())
}

func TestModelBinaryBoundsClamped(t *testing.T) {
	m := NewModel("test")
	v := m.AddBinary("flag")

	def := m.Variable(v)
	assert.Equal(t, Binary, def.Kind)
	assert.Equal(t, 0.0, def.Lower)
	assert.Equal(t, 1.0, def.Upper)
}

func TestModelSetSolution(t *testing.T) {
	m := NewModel("test")
	x := m.AddContinuous("x", 0, math.Inf(1))
	y := m.AddInteger("y", 0, 10)

	assert.False(t, m.Solved())
	assert.Equal(t, 0.0, m.Value(x))

	require.Error(t, m.SetSolution([]float64{1}))

	require.NoError(t, m.SetSolution([]float64{1.5, 3}))
	assert.True(t, m.Solved())
	assert.Equal(t, 1.5, m.Value(x))
	assert.Equal(t, 3.0, m.Value(y))

	expr := NewLinear().Add(x, 2).Add(y, 1)
	assert.InDelta(t, 6.0, m.Eval(expr), 1e-12)
}

func TestModelConstraintSnapshotsExpression(t *testing.T) {
	m := NewModel("test")
	x := m.AddContinuous("x", 0, 1)

	expr := NewLinear().Add(x, 1)
	m.AddConstraint("row", expr, LessEq, 5)
	expr.Add(x, 1)

	rows := m.Constraints()
	require.Len(t, rows, 1)
	require.Len(t, rows[0].Terms, 1)
	assert.Equal(t, 1.0, rows[0].Terms[0].Coef)
	assert.Equal(t, LessEq, rows[0].Rel)
	assert.Equal(t, 5.0, rows[0].RHS)
}

type stubSolver struct{}

func (stubSolver) Solve(ctx context.Context, m *Model, obj Objective) (*Solution, error) {
	return NewSolution(0, make([]float64, m.NumVariables())), nil
}

func TestRegistry(t *testing.T) {
	Register("test-b", func() (Solver, error) { return stubSolver{}, nil })
	Register("test-a", func() (Solver, error) { return stubSolver{}, nil })

	names := Backends()
	assert.Contains(t, names, "test-a")
	assert.Contains(t, names, "test-b")

	s, err := New("test-b")
	require.NoError(t, err)
	assert.NotNil(t, s)

	// Empty name selects the first registered name in sorted order.
	s, err = New("")
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = New("no-such-backend")
	assert.ErrorIs(t, err, ErrUnavailable)
}
