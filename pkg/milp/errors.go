package milp

import "errors"

// Failure kinds reported by solver backends. Callers distinguish
// "no backend can run at all" from "this model has no valid solution",
// so the two are separate sentinels rather than one solve error.
var (
	// ErrUnavailable indicates that no MILP solver backend could be
	// located or initialized.
	ErrUnavailable = errors.New("milp: no solver backend available")

	// ErrInfeasible indicates that the model's feasible region is empty.
	ErrInfeasible = errors.New("milp: model is infeasible")

	// ErrUnbounded indicates that the objective can be improved without
	// limit over the feasible region.
	ErrUnbounded = errors.New("milp: model is unbounded")
)
