package plan

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supplyopt/planner/pkg/events"
	"github.com/supplyopt/planner/pkg/milp"
)

func TestSolveRequiresSolver(t *testing.T) {
	ds := newTestDataset([]ProductID{"A"}, 1)
	m, err := Build(ds)
	require.NoError(t, err)

	_, err = Solve(context.Background(), m, nil, SolveOptions{})
	assert.ErrorIs(t, err, milp.ErrUnavailable)
}

// Single product, single location, three periods: demand 10 in the
// first period against opening stock 5 and make lead time 1. The
// first-period shortfall of 5 cannot be produced in time, so the
// minimal backlog is 5, cleared in the second period by a release made
// in the first.
func TestSolveLeadTimeShortfall(t *testing.T) {
	ds := newTestDataset([]ProductID{"A"}, 3)
	ds.SetPolicy("A", "DC", PolicyMake)
	ds.SetDemand("A", "DC", "T1", 10)
	ds.SetInitialInventory("A", "DC", 5)
	ds.SetMakeLeadTime("A", "DC", 1)
	setMakeCapacityAll(ds, "A", "DC", 1000)

	m, metrics := solveTestModel(t, ds)

	assert.InDelta(t, 5.0, metrics.Backlog, 1e-6)
	assert.InDelta(t, 0.0, metrics.Inventory, 1e-6)
	assert.InDelta(t, 0.0, metrics.BuyVolume, 1e-6)

	assert.InDelta(t, 5.0, m.BacklogAt("A", "DC", "T1"), 1e-6)
	assert.InDelta(t, 0.0, m.BacklogAt("A", "DC", "T2"), 1e-6)
	assert.InDelta(t, 0.0, m.BacklogAt("A", "DC", "T3"), 1e-6)

	// The release that clears the backlog is made in T1 and lands in
	// T2; the inventory phase pins it at exactly the shortfall.
	assert.InDelta(t, 5.0, m.ReleaseMakeAt("A", "DC", "T1"), 1e-6)
	assert.InDelta(t, 5.0, m.ReceiptAt("A", "DC", "T2"), 1e-6)
	assert.InDelta(t, 0.0, m.InventoryAt("A", "DC", "T2"), 1e-6)
}

// Two locations: DC carries demand but allows neither make nor buy;
// SRC makes with ample capacity and serves DC over a lane. The final
// phase must select the shipped plan with zero buy volume.
func TestSolveTwoLocationShipmentPreference(t *testing.T) {
	ds := newNetworkDataset([]ProductID{"A"}, 3)
	ds.SetPolicy("A", "SRC", PolicyMake)
	ds.SetDemand("A", "DC", "T2", 20)
	setMakeCapacityAll(ds, "A", "SRC", 1000)
	ds.AddLane(Lane{Product: "A", From: "SRC", To: "DC", Allowed: true, Priority: 0})

	m, metrics := solveTestModel(t, ds)

	assert.InDelta(t, 0.0, metrics.Backlog, 1e-6)
	assert.InDelta(t, 0.0, metrics.Inventory, 1e-6)
	assert.InDelta(t, 0.0, metrics.BuyVolume, 1e-6)

	// Made at SRC and shipped in the demand period; earlier shipment
	// would strand inventory at DC, which the inventory phase forbids.
	assert.InDelta(t, 20.0, m.ReleaseMakeAt("A", "SRC", "T2"), 1e-6)
	assert.InDelta(t, 20.0, m.ShipmentAt(0, "T2"), 1e-6)
	assert.InDelta(t, 20.0, m.ShipInAt("A", "DC", "T2"), 1e-6)
	assert.InDelta(t, 0.0, m.ReleaseBuyAt("A", "SRC", "T2"), 1e-6)
}

func TestSolveDisallowedLaneBlocksShipment(t *testing.T) {
	ds := newNetworkDataset([]ProductID{"A"}, 2)
	ds.SetPolicy("A", "SRC", PolicyMake)
	ds.SetDemand("A", "DC", "T1", 10)
	setMakeCapacityAll(ds, "A", "SRC", 1000)
	ds.AddLane(Lane{Product: "A", From: "SRC", To: "DC", Allowed: false})

	m, metrics := solveTestModel(t, ds)

	// Nothing can reach DC, so the demand stays backlogged.
	assert.InDelta(t, 20.0, metrics.Backlog, 1e-6) // 10 per remaining period
	assert.InDelta(t, 0.0, m.ShipmentAt(0, "T1"), 1e-6)
	assert.InDelta(t, 0.0, m.ShipmentAt(0, "T2"), 1e-6)
}

func TestSolveLaneCapacityPinsShipments(t *testing.T) {
	ds := newNetworkDataset([]ProductID{"A"}, 2)
	ds.SetPolicy("A", "SRC", PolicyMake)
	ds.SetDemand("A", "DC", "T1", 10)
	setMakeCapacityAll(ds, "A", "SRC", 1000)
	ds.AddLane(Lane{
		Product: "A", From: "SRC", To: "DC", Allowed: true,
		Capacity: map[PeriodID]float64{"T1": 5, "T2": 5},
	})

	m, metrics := solveTestModel(t, ds)

	// Only 5 units fit the lane each period, so half the demand waits
	// one period and clears with the second shipment.
	assert.InDelta(t, 5.0, metrics.Backlog, 1e-6)
	assert.InDelta(t, 5.0, m.ShipmentAt(0, "T1"), 1e-6)
	assert.InDelta(t, 5.0, m.ShipmentAt(0, "T2"), 1e-6)
	assert.InDelta(t, 5.0, m.BacklogAt("A", "DC", "T1"), 1e-6)
	assert.InDelta(t, 0.0, m.BacklogAt("A", "DC", "T2"), 1e-6)
	assert.InDelta(t, 0.0, metrics.Inventory, 1e-6)
}

func TestSolveShipmentBeyondHorizonNeverArrives(t *testing.T) {
	ds := newNetworkDataset([]ProductID{"A"}, 2)
	ds.SetPolicy("A", "SRC", PolicyMake)
	ds.SetDemand("A", "DC", "T2", 10)
	setMakeCapacityAll(ds, "A", "SRC", 1000)
	ds.AddLane(Lane{Product: "A", From: "SRC", To: "DC", Allowed: true, LeadTime: 3})

	m, metrics := solveTestModel(t, ds)

	// Every shipment would arrive after the horizon, so nothing is
	// ever credited inbound and the priority phase zeroes the lane.
	assert.InDelta(t, 10.0, metrics.Backlog, 1e-6)
	for _, tp := range ds.Periods {
		assert.InDelta(t, 0.0, m.ShipmentAt(0, tp), 1e-6)
		assert.InDelta(t, 0.0, m.ShipInAt("A", "DC", tp), 1e-6)
	}
}

func TestSolveBacklogSuppressionInfeasible(t *testing.T) {
	ds := newTestDataset([]ProductID{"A"}, 2)
	ds.AllowBacklog = false
	ds.SetDemand("A", "DC", "T1", 10)
	// Policy defaults to none, so the demand is unreachable.

	m, err := Build(ds)
	require.NoError(t, err)
	solver, err := milp.New("")
	require.NoError(t, err)

	_, err = Solve(context.Background(), m, solver, SolveOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, milp.ErrInfeasible)
}

func TestSolveBacklogSuppressionHolds(t *testing.T) {
	ds := newTestDataset([]ProductID{"A"}, 3)
	ds.AllowBacklog = false
	ds.SetPolicy("A", "DC", PolicyMake)
	ds.SetDemand("A", "DC", "T2", 10)
	setMakeCapacityAll(ds, "A", "DC", 1000)

	m, _ := solveTestModel(t, ds)

	for _, tp := range ds.Periods {
		assert.InDelta(t, 0.0, m.BacklogAt("A", "DC", tp), 1e-9)
	}
}

func TestSolveLotSizingLaw(t *testing.T) {
	ds := newTestDataset([]ProductID{"A"}, 3)
	ds.SetPolicy("A", "DC", PolicyMake)
	ds.SetDemand("A", "DC", "T2", 12)
	ds.SetMakeLot("A", "DC", LotRule{MinLot: 10, Multiple: 5})
	setMakeCapacityAll(ds, "A", "DC", 1000)

	m, metrics := solveTestModel(t, ds)
	assert.InDelta(t, 0.0, metrics.Backlog, 1e-6)

	minLot, multiple := 10.0, 5.0
	for _, tp := range ds.Periods {
		r := m.ReleaseMakeAt("A", "DC", tp)
		if r < 1e-6 {
			continue
		}
		assert.GreaterOrEqual(t, r, minLot-1e-6, "release below minimum lot in %s", tp)
		assert.InDelta(t, 0.0, math.Mod(r+1e-9, multiple), 1e-6, "release off the multiple in %s", tp)
	}

	// 12 rounds up to 15: the smallest admissible release covering the
	// demand.
	assert.InDelta(t, 15.0, m.ReleaseMakeAt("A", "DC", "T2"), 1e-6)
}

func TestSolvePolicyLaw(t *testing.T) {
	ds := newTestDataset([]ProductID{"A"}, 2)
	ds.SetPolicy("A", "DC", PolicyBuy)
	ds.SetDemand("A", "DC", "T1", 8)

	m, metrics := solveTestModel(t, ds)

	assert.InDelta(t, 0.0, metrics.Backlog, 1e-6)
	assert.InDelta(t, 8.0, metrics.BuyVolume, 1e-6)
	for _, tp := range ds.Periods {
		assert.InDelta(t, 0.0, m.ReleaseMakeAt("A", "DC", tp), 1e-9)
	}
}

func TestSolveDependentDemandSamePeriod(t *testing.T) {
	ds := newTestDataset([]ProductID{"PARENT", "CHILD"}, 2)
	ds.SetPolicy("PARENT", "DC", PolicyMake)
	ds.SetPolicy("CHILD", "DC", PolicyBuy)
	ds.AddBOM(BOMLine{Parent: "PARENT", Location: "DC", Component: "CHILD", Qty: 3})
	ds.SetDemand("PARENT", "DC", "T1", 4)
	setMakeCapacityAll(ds, "PARENT", "DC", 1000)

	m, metrics := solveTestModel(t, ds)

	assert.InDelta(t, 0.0, metrics.Backlog, 1e-6)
	assert.InDelta(t, 4.0, m.ReleaseMakeAt("PARENT", "DC", "T1"), 1e-6)
	assert.InDelta(t, 12.0, m.DependentDemandAt("CHILD", "DC", "T1"), 1e-6)
	assert.InDelta(t, 12.0, m.ReleaseBuyAt("CHILD", "DC", "T1"), 1e-6)
	assert.InDelta(t, 12.0, metrics.BuyVolume, 1e-6)
}

func TestSolveBalanceInvariant(t *testing.T) {
	ds := newNetworkDataset([]ProductID{"A", "B"}, 4)
	ds.SetPolicy("A", "SRC", PolicyMake)
	ds.SetPolicy("B", "SRC", PolicyBuy)
	ds.AddBOM(BOMLine{Parent: "A", Location: "SRC", Component: "B", Qty: 2})
	ds.SetDemand("A", "DC", "T2", 15)
	ds.SetDemand("A", "DC", "T4", 10)
	ds.SetInitialInventory("A", "DC", 5)
	ds.SetMakeLeadTime("A", "SRC", 1)
	setMakeCapacityAll(ds, "A", "SRC", 1000)
	ds.AddLane(Lane{Product: "A", From: "SRC", To: "DC", Allowed: true, LeadTime: 1})

	m, _ := solveTestModel(t, ds)

	for _, p := range ds.Products {
		for _, l := range ds.Locations {
			prevNet := ds.OpeningStock(p, l)
			for _, tp := range ds.Periods {
				net := m.InventoryAt(p, l, tp) - m.BacklogAt(p, l, tp)
				expect := prevNet +
					m.ReceiptAt(p, l, tp) +
					m.ShipInAt(p, l, tp) -
					ds.DemandAt(p, l, tp) -
					m.DependentDemandAt(p, l, tp) -
					m.ShipOutAt(p, l, tp)
				assert.InDelta(t, expect, net, 1e-5, "balance violated for %s at %s in %s", p, l, tp)
				prevNet = net
			}
		}
	}
}

func TestSolveMonotonePhaseTightening(t *testing.T) {
	ds := newTestDataset([]ProductID{"A"}, 3)
	ds.SetPolicy("A", "DC", PolicyBoth)
	ds.SetDemand("A", "DC", "T1", 10)
	ds.SetInitialInventory("A", "DC", 5)
	ds.SetMakeLeadTime("A", "DC", 1)
	setMakeCapacityAll(ds, "A", "DC", 1000)

	m, metrics := solveTestModel(t, ds)

	// The final assignment still achieves every locked-in optimum.
	assert.InDelta(t, metrics.Backlog, m.MILP.Eval(m.TotalBacklog()), 1e-5)
	assert.InDelta(t, metrics.Inventory, m.MILP.Eval(m.TotalInventory()), 1e-5)
	assert.InDelta(t, metrics.BuyVolume, m.MILP.Eval(m.TotalBuy()), 1e-5)
}

func TestSolveOpeningStockVisible(t *testing.T) {
	ds := newTestDataset([]ProductID{"A"}, 2)
	ds.SetInitialInventory("A", "DC", 7)
	ds.SetDemand("A", "DC", "T2", 3)
	ds.SetPolicy("A", "DC", PolicyMake)

	m, _ := solveTestModel(t, ds)

	net := m.InventoryAt("A", "DC", "T1") - m.BacklogAt("A", "DC", "T1")
	assert.GreaterOrEqual(t, net, 7.0-1e-6)
}

func TestSolveBuyFirstOrderPrefersLeanStock(t *testing.T) {
	// Make requires a full lot of 10 while demand is 6: covering via
	// make strands 4 units of inventory, covering via buy strands
	// none. The canonical order (inventory before buy) buys 6; the
	// buy-first order makes 10 and carries the remainder.
	scenario := func() *Dataset {
		ds := newTestDataset([]ProductID{"A"}, 1)
		ds.SetPolicy("A", "DC", PolicyBoth)
		ds.SetDemand("A", "DC", "T1", 6)
		ds.SetMakeLot("A", "DC", LotRule{MinLot: 10, Multiple: 10})
		setMakeCapacityAll(ds, "A", "DC", 1000)
		return ds
	}

	solver, err := milp.New("")
	require.NoError(t, err)

	canonical, err := Build(scenario())
	require.NoError(t, err)
	got, err := Solve(context.Background(), canonical, solver, SolveOptions{Order: PhaseOrderCanonical})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, got.Inventory, 1e-6)
	assert.InDelta(t, 6.0, got.BuyVolume, 1e-6)

	buyFirst, err := Build(scenario())
	require.NoError(t, err)
	got, err = Solve(context.Background(), buyFirst, solver, SolveOptions{Order: PhaseOrderBuyFirst})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, got.BuyVolume, 1e-6)
	assert.InDelta(t, 4.0, got.Inventory, 1e-6)
}

func TestSolveRecordsEvents(t *testing.T) {
	ds := newTestDataset([]ProductID{"A"}, 2)
	ds.SetPolicy("A", "DC", PolicyBuy)
	ds.SetDemand("A", "DC", "T1", 5)

	m, err := Build(ds)
	require.NoError(t, err)
	solver, err := milp.New("")
	require.NoError(t, err)

	store := events.NewInMemoryStore()
	runID := events.NewRunID()
	_, err = Solve(context.Background(), m, solver, SolveOptions{Events: store, RunID: runID})
	require.NoError(t, err)

	recorded, err := store.ReadEvents(runID)
	require.NoError(t, err)
	require.NotEmpty(t, recorded)

	assert.Equal(t, events.RunStartedEvent, recorded[0].Type())
	assert.Equal(t, events.RunCompletedEvent, recorded[len(recorded)-1].Type())

	types := make(map[string]int)
	for _, ev := range recorded {
		types[ev.Type()]++
	}
	// No lanes, so the priority phase is skipped.
	assert.Equal(t, 3, types[events.PhaseCompletedEvent])
	assert.Equal(t, 1, types[events.PhaseSkippedEvent])
}
