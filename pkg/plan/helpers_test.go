package plan

import (
	"context"
	"fmt"
	"testing"

	"github.com/supplyopt/planner/pkg/milp"
	_ "github.com/supplyopt/planner/pkg/milp/gonumbb"
)

// newTestDataset creates a dataset with the given horizon and a single
// location "DC", ready for scenario setup.
func newTestDataset(products []ProductID, periods int) *Dataset {
	ds := NewDataset()
	ds.Products = products
	ds.Locations = []LocationID{"DC"}
	for i := 0; i < periods; i++ {
		ds.Periods = append(ds.Periods, PeriodID(fmt.Sprintf("T%d", i+1)))
	}
	return ds
}

// newNetworkDataset creates a two-location dataset ("SRC", "DC") for
// lane scenarios.
func newNetworkDataset(products []ProductID, periods int) *Dataset {
	ds := newTestDataset(products, periods)
	ds.Locations = []LocationID{"SRC", "DC"}
	return ds
}

// setMakeCapacityAll sets the same make capacity for every period of
// the horizon. Missing capacity means zero, so scenarios that expect
// production must call this.
func setMakeCapacityAll(ds *Dataset, p ProductID, l LocationID, qty float64) {
	for _, t := range ds.Periods {
		ds.SetMakeCapacity(p, l, t, qty)
	}
}

func setBuyCapacityAll(ds *Dataset, p ProductID, l LocationID, qty float64) {
	for _, t := range ds.Periods {
		ds.SetBuyCapacity(p, l, t, qty)
	}
}

// solveTestModel builds and solves a dataset with the default backend,
// failing the test on any error.
func solveTestModel(t *testing.T, ds *Dataset) (*Model, Metrics) {
	t.Helper()
	m, err := Build(ds)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	solver, err := milp.New("")
	if err != nil {
		t.Fatalf("no solver backend: %v", err)
	}
	metrics, err := Solve(context.Background(), m, solver, SolveOptions{})
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}
	return m, metrics
}
