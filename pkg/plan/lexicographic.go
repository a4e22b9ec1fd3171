package plan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/supplyopt/planner/pkg/events"
	"github.com/supplyopt/planner/pkg/milp"
)

// DefaultEpsilon is the tolerance on each phase's freeze constraint.
// It absorbs solver numerical noise; tightening it to zero makes later
// phases infeasible on real arithmetic.
const DefaultEpsilon = 1e-6

// PhaseOrder selects the lexicographic ordering of the two middle
// phases. Backlog is always first and lane priority always last.
type PhaseOrder int

const (
	// PhaseOrderCanonical minimizes backlog, then inventory, then buy
	// volume, then priority-weighted shipments.
	PhaseOrderCanonical PhaseOrder = iota

	// PhaseOrderBuyFirst swaps the middle phases: backlog, buy volume,
	// inventory, priority. Under ties the two orders select different
	// plans; the variant exists so acceptance suites can pin either.
	PhaseOrderBuyFirst
)

// Phase names as they appear in events and errors.
const (
	PhaseBacklog   = "backlog"
	PhaseInventory = "inventory"
	PhaseBuy       = "buy"
	PhasePriority  = "priority"
)

// Metrics are the locked-in optima of the three measured phases.
type Metrics struct {
	Backlog   float64 `json:"backlog"`
	Inventory float64 `json:"inventory"`
	BuyVolume float64 `json:"buy_volume"`
}

// SolveOptions tune the lexicographic run. The zero value selects the
// canonical order, the default epsilon, and no logging or events.
type SolveOptions struct {
	Epsilon float64
	Order   PhaseOrder
	Logger  *slog.Logger
	Events  events.Store
	RunID   string
}

type phase struct {
	name      string
	objective func() *milp.Linear
}

// Solve runs the four lexicographic phases over a built model. Each
// phase minimizes one objective, then freezes its optimum (within
// epsilon) as a permanent constraint before the next phase installs a
// new objective; constraints accumulate and are never removed. On
// success the model holds the final phase's assignment and the three
// measured optima are returned.
//
// Infeasibility can only originate in the backlog phase: later phases
// keep the previous optimum feasible by construction, so an infeasible
// later phase indicates a solver failure and is reported as such.
func Solve(ctx context.Context, m *Model, solver milp.Solver, opts SolveOptions) (Metrics, error) {
	if solver == nil {
		return Metrics{}, milp.ErrUnavailable
	}
	eps := opts.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	phases := []phase{
		{PhaseBacklog, m.TotalBacklog},
		{PhaseInventory, m.TotalInventory},
		{PhaseBuy, m.TotalBuy},
		{PhasePriority, m.LanePriority},
	}
	if opts.Order == PhaseOrderBuyFirst {
		phases[1], phases[2] = phases[2], phases[1]
	}

	record := func(eventType string, data interface{}) {
		if opts.Events != nil {
			_ = opts.Events.AppendEvent(opts.RunID, events.NewEvent(eventType, opts.RunID, data))
		}
	}

	record(events.RunStartedEvent, events.RunStarted{
		Variables:   m.MILP.NumVariables(),
		Constraints: m.MILP.NumConstraints(),
	})

	var metrics Metrics
	for i, ph := range phases {
		obj := ph.objective()
		if obj.Len() == 0 {
			// Nothing to optimize (for example lane priority with no
			// lanes); the previous phase's assignment stands.
			record(events.PhaseSkippedEvent, events.PhaseSkipped{Phase: ph.name})
			logger.Debug("phase skipped", "phase", ph.name)
			continue
		}

		record(events.PhaseStartedEvent, events.PhaseStarted{Phase: ph.name})
		start := time.Now()

		sol, err := solver.Solve(ctx, m.MILP, milp.Objective{Sense: milp.Minimize, Terms: obj.Terms()})
		if err != nil {
			record(events.RunFailedEvent, events.RunFailed{Phase: ph.name, Error: err.Error()})
			if errors.Is(err, milp.ErrInfeasible) && i > 0 {
				return Metrics{}, fmt.Errorf("phase %s reported infeasibility, which a freeze constraint cannot cause: %w", ph.name, err)
			}
			return Metrics{}, fmt.Errorf("phase %s: %w", ph.name, err)
		}

		logger.Debug("phase solved",
			"phase", ph.name,
			"objective", sol.Objective,
			"elapsed", time.Since(start),
		)
		record(events.PhaseCompletedEvent, events.PhaseCompleted{Phase: ph.name, Objective: sol.Objective})

		switch ph.name {
		case PhaseBacklog:
			metrics.Backlog = sol.Objective
		case PhaseInventory:
			metrics.Inventory = sol.Objective
		case PhaseBuy:
			metrics.BuyVolume = sol.Objective
		}

		if i < len(phases)-1 {
			m.MILP.AddConstraint("keep_"+ph.name, obj, milp.LessEq, sol.Objective+eps)
		}
	}

	record(events.RunCompletedEvent, events.RunCompleted{
		Backlog:   metrics.Backlog,
		Inventory: metrics.Inventory,
		BuyVolume: metrics.BuyVolume,
	})
	return metrics, nil
}
