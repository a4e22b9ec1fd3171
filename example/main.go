package main

import (
	"context"
	"fmt"
	"os"

	"github.com/supplyopt/planner/pkg/milp"
	_ "github.com/supplyopt/planner/pkg/milp/gonumbb"
	"github.com/supplyopt/planner/pkg/plan"
)

func main() {
	ctx := context.Background()

	// A two-echelon network: FAB makes the assembly from a purchased
	// component, DC serves customer demand via a shipment lane.
	ds := plan.NewDataset()
	ds.Products = []plan.ProductID{"ASSEMBLY", "COMPONENT"}
	ds.Locations = []plan.LocationID{"FAB", "DC"}
	ds.Periods = []plan.PeriodID{"W1", "W2", "W3", "W4"}

	ds.SetPolicy("ASSEMBLY", "FAB", plan.PolicyMake)
	ds.SetPolicy("COMPONENT", "FAB", plan.PolicyBuy)
	ds.SetMakeLeadTime("ASSEMBLY", "FAB", 1)
	ds.AddBOM(plan.BOMLine{Parent: "ASSEMBLY", Location: "FAB", Component: "COMPONENT", Qty: 2})

	for _, t := range ds.Periods {
		ds.SetMakeCapacity("ASSEMBLY", "FAB", t, 100)
	}

	ds.SetInitialInventory("ASSEMBLY", "DC", 10)
	ds.SetDemand("ASSEMBLY", "DC", "W2", 30)
	ds.SetDemand("ASSEMBLY", "DC", "W4", 25)

	ds.AddLane(plan.Lane{
		Product: "ASSEMBLY", From: "FAB", To: "DC",
		Allowed: true, Priority: 0, LeadTime: 1,
	})

	model, err := plan.Build(ds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}

	solver, err := milp.New("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "no solver backend: %v\n", err)
		os.Exit(1)
	}

	metrics, err := plan.Solve(ctx, model, solver, plan.SolveOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "solve failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("backlog:   %.2f\n", metrics.Backlog)
	fmt.Printf("inventory: %.2f\n", metrics.Inventory)
	fmt.Printf("buy:       %.2f\n", metrics.BuyVolume)
	fmt.Println()

	for _, t := range ds.Periods {
		fmt.Printf("%s  make[FAB]=%6.1f  buy[FAB]=%6.1f  ship=%6.1f  soh[DC]=%6.1f\n",
			t,
			model.ReleaseMakeAt("ASSEMBLY", "FAB", t),
			model.ReleaseBuyAt("COMPONENT", "FAB", t),
			model.ShipOutAt("ASSEMBLY", "FAB", t),
			model.InventoryAt("ASSEMBLY", "DC", t),
		)
	}
}
