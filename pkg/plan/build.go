package plan

import (
	"fmt"
	"math"

	"github.com/supplyopt/planner/pkg/milp"
)

const (
	// anchorTol is the numerical slack on the opening-stock anchor.
	anchorTol = 1e-9

	// bigMFloor and bigMCeiling bound the derived big-M constant. The
	// constant must dominate every achievable release and shipment
	// volume in the dataset; it is sized from the data (demand exploded
	// through the BOM, opening stock, minimum lots) rather than copied
	// as a literal, and falls back to the ceiling when the BOM is
	// cyclic and the explosion cannot terminate.
	bigMFloor   = 1e6
	bigMCeiling = 1e9
)

type varKey struct {
	Product  ProductID
	Location LocationID
	Period   int
}

type laneKey struct {
	Lane   int
	Period int
}

// Model is a built planning MILP: the dataset it came from, the
// underlying variable/constraint store, and the index maps tying
// planning coordinates to variables and derived expressions. It is
// produced by Build and mutated only by the lexicographic solve.
type Model struct {
	Data *Dataset
	MILP *milp.Model
	BigM float64

	lotMake   map[varKey]milp.VarID
	lotBuy    map[varKey]milp.VarID
	setupMake map[varKey]milp.VarID
	setupBuy  map[varKey]milp.VarID
	inventory map[varKey]milp.VarID
	backlog   map[varKey]milp.VarID
	ship      map[laneKey]milp.VarID

	releaseMake map[varKey]*milp.Linear
	releaseBuy  map[varKey]*milp.Linear
	receipt     map[varKey]*milp.Linear
	depDemand   map[varKey]*milp.Linear
	shipOut     map[varKey]*milp.Linear
	shipIn      map[varKey]*milp.Linear
}

// Build translates a dataset into a MILP. The translation is
// deterministic and side-effect-free: building the same dataset twice
// yields models with identical variables, constraints, and
// coefficients. Configuration problems are reported before any
// variable is created.
func Build(data *Dataset) (*Model, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	m := &Model{
		Data: data,
		MILP: milp.NewModel("supply-plan"),
		BigM: deriveBigM(data),

		lotMake:   map[varKey]milp.VarID{},
		lotBuy:    map[varKey]milp.VarID{},
		setupMake: map[varKey]milp.VarID{},
		setupBuy:  map[varKey]milp.VarID{},
		inventory: map[varKey]milp.VarID{},
		backlog:   map[varKey]milp.VarID{},
		ship:      map[laneKey]milp.VarID{},

		releaseMake: map[varKey]*milp.Linear{},
		releaseBuy:  map[varKey]*milp.Linear{},
		receipt:     map[varKey]*milp.Linear{},
		depDemand:   map[varKey]*milp.Linear{},
		shipOut:     map[varKey]*milp.Linear{},
		shipIn:      map[varKey]*milp.Linear{},
	}

	m.addVariables()
	m.deriveExpressions()
	m.addPolicyConstraints()
	m.addCapacityConstraints()
	m.addLotSizingConstraints()
	m.addResourceConstraints()
	m.addLaneConstraints()
	m.addBalanceConstraints()
	m.addOpeningStockAnchors()

	return m, nil
}

func (m *Model) addVariables() {
	d := m.Data
	inf := math.Inf(1)

	backlogUpper := inf
	if !d.AllowBacklog {
		// Unmet demand is infeasible rather than deferred.
		backlogUpper = 0
	}

	for _, p := range d.Products {
		for _, l := range d.Locations {
			for ti := range d.Periods {
				k := varKey{p, l, ti}
				tag := fmt.Sprintf("[%s,%s,%s]", p, l, d.Periods[ti])
				m.lotMake[k] = m.MILP.AddInteger("lot_make"+tag, 0, inf)
				m.lotBuy[k] = m.MILP.AddInteger("lot_buy"+tag, 0, inf)
				m.setupMake[k] = m.MILP.AddBinary("setup_make" + tag)
				m.setupBuy[k] = m.MILP.AddBinary("setup_buy" + tag)
				m.inventory[k] = m.MILP.AddContinuous("inventory"+tag, 0, inf)
				m.backlog[k] = m.MILP.AddContinuous("backlog"+tag, 0, backlogUpper)
			}
		}
	}

	for li, lane := range d.Lanes {
		for ti := range d.Periods {
			tag := fmt.Sprintf("[%s,%s->%s,%s]", lane.Product, lane.From, lane.To, d.Periods[ti])
			m.ship[laneKey{li, ti}] = m.MILP.AddContinuous("ship"+tag, 0, inf)
		}
	}
}

// deriveExpressions builds the non-decision expressions: releases from
// lot counts, lead-time-offset receipts, same-period dependent demand
// from make releases, and per-location shipment flows.
func (m *Model) deriveExpressions() {
	d := m.Data

	for _, p := range d.Products {
		for _, l := range d.Locations {
			multMake := float64(d.MakeLotRule(p, l).Multiple)
			multBuy := float64(d.BuyLotRule(p, l).Multiple)
			for ti := range d.Periods {
				k := varKey{p, l, ti}
				m.releaseMake[k] = milp.NewLinear().Add(m.lotMake[k], multMake)
				m.releaseBuy[k] = milp.NewLinear().Add(m.lotBuy[k], multBuy)
			}
		}
	}

	// Receipts: a release in period t arrives in period t+leadTime; an
	// offset before the horizon start contributes nothing.
	for _, p := range d.Products {
		for _, l := range d.Locations {
			ltMake := d.MakeLead(p, l)
			ltBuy := d.BuyLead(p, l)
			for ti := range d.Periods {
				expr := milp.NewLinear()
				if src := ti - ltMake; src >= 0 {
					expr.AddScaled(m.releaseMake[varKey{p, l, src}], 1)
				}
				if src := ti - ltBuy; src >= 0 {
					expr.AddScaled(m.releaseBuy[varKey{p, l, src}], 1)
				}
				m.receipt[varKey{p, l, ti}] = expr
			}
		}
	}

	// Dependent demand: components are consumed in the same period the
	// parent is released via make. Buy releases never consume
	// components; a bought parent arrives finished.
	for _, comp := range d.Products {
		for _, l := range d.Locations {
			for ti := range d.Periods {
				expr := milp.NewLinear()
				for _, parent := range d.Products {
					qty := d.BOMAt(parent, l, comp)
					if qty != 0 {
						expr.AddScaled(m.releaseMake[varKey{parent, l, ti}], qty)
					}
				}
				m.depDemand[varKey{comp, l, ti}] = expr
			}
		}
	}

	// Shipment flows per (product, location, period): outbound leaves
	// in the shipment period, inbound arrives lane lead time later.
	for _, p := range d.Products {
		for _, l := range d.Locations {
			for ti := range d.Periods {
				k := varKey{p, l, ti}
				m.shipOut[k] = milp.NewLinear()
				m.shipIn[k] = milp.NewLinear()
			}
		}
	}
	for li, lane := range d.Lanes {
		for ti := range d.Periods {
			sv := m.ship[laneKey{li, ti}]
			m.shipOut[varKey{lane.Product, lane.From, ti}].Add(sv, 1)
			if arrive := ti + lane.LeadTime; arrive < len(d.Periods) {
				m.shipIn[varKey{lane.Product, lane.To, arrive}].Add(sv, 1)
			}
		}
	}
}

// addPolicyConstraints gates lot counts on the procurement policy:
// lotCount <= bigM * allowed, which pins the count to zero when the
// mode is disallowed.
func (m *Model) addPolicyConstraints() {
	d := m.Data
	for _, p := range d.Products {
		for _, l := range d.Locations {
			policy := d.PolicyAt(p, l)
			makeBit, buyBit := 0.0, 0.0
			if policy.MakeAllowed() {
				makeBit = 1
			}
			if policy.BuyAllowed() {
				buyBit = 1
			}
			for ti, t := range d.Periods {
				k := varKey{p, l, ti}
				m.MILP.AddConstraint(
					fmt.Sprintf("make_allowed[%s,%s,%s]", p, l, t),
					milp.NewLinear().Add(m.lotMake[k], 1),
					milp.LessEq, m.BigM*makeBit,
				)
				m.MILP.AddConstraint(
					fmt.Sprintf("buy_allowed[%s,%s,%s]", p, l, t),
					milp.NewLinear().Add(m.lotBuy[k], 1),
					milp.LessEq, m.BigM*buyBit,
				)
			}
		}
	}
}

// addCapacityConstraints bounds releases by declared capacity. Make
// capacity defaults to zero when undeclared; buy capacity is
// unbounded when undeclared, so no row is emitted for it.
func (m *Model) addCapacityConstraints() {
	d := m.Data
	for _, p := range d.Products {
		for _, l := range d.Locations {
			for ti, t := range d.Periods {
				k := varKey{p, l, ti}
				m.MILP.AddConstraint(
					fmt.Sprintf("make_cap[%s,%s,%s]", p, l, t),
					milp.NewLinear().AddScaled(m.releaseMake[k], 1),
					milp.LessEq, d.MakeCapacityAt(p, l, t),
				)
				if cap, ok := d.BuyCapacityAt(p, l, t); ok {
					m.MILP.AddConstraint(
						fmt.Sprintf("buy_cap[%s,%s,%s]", p, l, t),
						milp.NewLinear().AddScaled(m.releaseBuy[k], 1),
						milp.LessEq, cap,
					)
				}
			}
		}
	}
}

// addLotSizingConstraints links releases to setup indicators:
// release >= minLot * setup and release <= bigM * setup, which jointly
// force release = 0 when setup = 0 and release >= minLot when setup = 1.
func (m *Model) addLotSizingConstraints() {
	d := m.Data
	for _, p := range d.Products {
		for _, l := range d.Locations {
			minMake := d.MakeLotRule(p, l).MinLot
			minBuy := d.BuyLotRule(p, l).MinLot
			for ti, t := range d.Periods {
				k := varKey{p, l, ti}

				m.MILP.AddConstraint(
					fmt.Sprintf("min_lot_make_lb[%s,%s,%s]", p, l, t),
					milp.NewLinear().AddScaled(m.releaseMake[k], 1).Add(m.setupMake[k], -minMake),
					milp.GreaterEq, 0,
				)
				m.MILP.AddConstraint(
					fmt.Sprintf("min_lot_make_ub[%s,%s,%s]", p, l, t),
					milp.NewLinear().AddScaled(m.releaseMake[k], 1).Add(m.setupMake[k], -m.BigM),
					milp.LessEq, 0,
				)

				m.MILP.AddConstraint(
					fmt.Sprintf("min_lot_buy_lb[%s,%s,%s]", p, l, t),
					milp.NewLinear().AddScaled(m.releaseBuy[k], 1).Add(m.setupBuy[k], -minBuy),
					milp.GreaterEq, 0,
				)
				m.MILP.AddConstraint(
					fmt.Sprintf("min_lot_buy_ub[%s,%s,%s]", p, l, t),
					milp.NewLinear().AddScaled(m.releaseBuy[k], 1).Add(m.setupBuy[k], -m.BigM),
					milp.LessEq, 0,
				)
			}
		}
	}
}

// addResourceConstraints bounds routed resource consumption where a
// capacity is declared: sum over products of factor * makeRelease.
// Undeclared capacity leaves consumption unconstrained; it still shows
// up in the projection.
func (m *Model) addResourceConstraints() {
	d := m.Data
	for _, r := range d.Resources {
		for _, l := range d.Locations {
			for ti, t := range d.Periods {
				cap, ok := d.ResourceCapacity[r][l][t]
				if !ok {
					continue
				}
				expr := milp.NewLinear()
				for _, p := range d.Products {
					if factor := d.RoutingAt(p, l, r); factor != 0 {
						expr.AddScaled(m.releaseMake[varKey{p, l, ti}], factor)
					}
				}
				if expr.Len() == 0 {
					continue
				}
				m.MILP.AddConstraint(
					fmt.Sprintf("resource_cap[%s,%s,%s]", r, l, t),
					expr, milp.LessEq, cap,
				)
			}
		}
	}
}

// addLaneConstraints gates shipments on lane permission and bounds
// them by per-period lane capacity where declared.
func (m *Model) addLaneConstraints() {
	d := m.Data
	for li, lane := range d.Lanes {
		allowedBit := 0.0
		if lane.Allowed {
			allowedBit = 1
		}
		for ti, t := range d.Periods {
			sv := m.ship[laneKey{li, ti}]
			m.MILP.AddConstraint(
				fmt.Sprintf("lane_allowed[%s,%s->%s,%s]", lane.Product, lane.From, lane.To, t),
				milp.NewLinear().Add(sv, 1),
				milp.LessEq, m.BigM*allowedBit,
			)
			if cap, ok := lane.Capacity[t]; ok {
				m.MILP.AddConstraint(
					fmt.Sprintf("lane_cap[%s,%s->%s,%s]", lane.Product, lane.From, lane.To, t),
					milp.NewLinear().Add(sv, 1),
					milp.LessEq, cap,
				)
			}
		}
	}
}

// addBalanceConstraints emits the central net-position equation for
// every (product, location, period):
//
//	inventory - backlog = prevNet + receipt + inbound
//	                      - demand - dependentDemand - outbound
//
// where prevNet is the opening stock in the first period and the
// previous period's (inventory - backlog) afterwards.
func (m *Model) addBalanceConstraints() {
	d := m.Data
	for _, p := range d.Products {
		for _, l := range d.Locations {
			for ti, t := range d.Periods {
				k := varKey{p, l, ti}

				expr := milp.NewLinear().
					Add(m.inventory[k], 1).
					Add(m.backlog[k], -1)
				rhs := -d.DemandAt(p, l, t)

				if ti == 0 {
					rhs += d.OpeningStock(p, l)
				} else {
					prev := varKey{p, l, ti - 1}
					expr.Add(m.inventory[prev], -1).Add(m.backlog[prev], 1)
				}

				expr.AddScaled(m.receipt[k], -1)
				expr.AddScaled(m.shipIn[k], -1)
				expr.AddScaled(m.depDemand[k], 1)
				expr.AddScaled(m.shipOut[k], 1)

				m.MILP.AddConstraint(
					fmt.Sprintf("balance[%s,%s,%s]", p, l, t),
					expr, milp.Equal, rhs,
				)
			}
		}
	}
}

// addOpeningStockAnchors keeps opening stock visible in the first
// period's net position. The row is the first-period balance relaxed
// to an inequality with a small tolerance: it is implied while the
// balance equation carries the opening stock itself, and pins the
// stock into (inventory - backlog) if the balance is ever restructured
// to carry it elsewhere. A bare "inventory - backlog >= initial" would
// falsely rule out first-period backlog whenever demand exceeds
// opening stock plus receipts.
func (m *Model) addOpeningStockAnchors() {
	d := m.Data
	for _, p := range d.Products {
		for _, l := range d.Locations {
			k := varKey{p, l, 0}
			t := d.Periods[0]

			expr := milp.NewLinear().
				Add(m.inventory[k], 1).
				Add(m.backlog[k], -1)
			expr.AddScaled(m.receipt[k], -1)
			expr.AddScaled(m.shipIn[k], -1)
			expr.AddScaled(m.depDemand[k], 1)
			expr.AddScaled(m.shipOut[k], 1)

			m.MILP.AddConstraint(
				fmt.Sprintf("opening_anchor[%s,%s]", p, l),
				expr, milp.GreaterEq,
				d.OpeningStock(p, l)-d.DemandAt(p, l, t)-anchorTol,
			)
		}
	}
}

// TotalBacklog is the sum of all backlog variables.
func (m *Model) TotalBacklog() *milp.Linear {
	expr := milp.NewLinear()
	for _, v := range m.orderedKeys() {
		expr.Add(m.backlog[v], 1)
	}
	return expr
}

// TotalInventory is the sum of all inventory variables.
func (m *Model) TotalInventory() *milp.Linear {
	expr := milp.NewLinear()
	for _, v := range m.orderedKeys() {
		expr.Add(m.inventory[v], 1)
	}
	return expr
}

// TotalBuy is the total buy-release volume.
func (m *Model) TotalBuy() *milp.Linear {
	expr := milp.NewLinear()
	for _, v := range m.orderedKeys() {
		expr.AddScaled(m.releaseBuy[v], 1)
	}
	return expr
}

// LanePriority is the priority-weighted shipment volume,
// sum((priority+1) * shipment) over all lanes and periods.
func (m *Model) LanePriority() *milp.Linear {
	expr := milp.NewLinear()
	for li, lane := range m.Data.Lanes {
		weight := float64(lane.Priority + 1)
		for ti := range m.Data.Periods {
			expr.Add(m.ship[laneKey{li, ti}], weight)
		}
	}
	return expr
}

func (m *Model) orderedKeys() []varKey {
	d := m.Data
	keys := make([]varKey, 0, len(d.Products)*len(d.Locations)*len(d.Periods))
	for _, p := range d.Products {
		for _, l := range d.Locations {
			for ti := range d.Periods {
				keys = append(keys, varKey{p, l, ti})
			}
		}
	}
	return keys
}

func (m *Model) key(p ProductID, l LocationID, t PeriodID) (varKey, bool) {
	ti := m.Data.PeriodIndex(t)
	if ti < 0 {
		return varKey{}, false
	}
	return varKey{p, l, ti}, true
}

// Solved-value accessors. All return 0 for coordinates outside the
// declared domains or before a successful solve.

// ReleaseMakeAt returns the solved make release quantity.
func (m *Model) ReleaseMakeAt(p ProductID, l LocationID, t PeriodID) float64 {
	if k, ok := m.key(p, l, t); ok {
		return m.MILP.Eval(m.releaseMake[k])
	}
	return 0
}

// ReleaseBuyAt returns the solved buy release quantity.
func (m *Model) ReleaseBuyAt(p ProductID, l LocationID, t PeriodID) float64 {
	if k, ok := m.key(p, l, t); ok {
		return m.MILP.Eval(m.releaseBuy[k])
	}
	return 0
}

// InventoryAt returns the solved end-of-period inventory.
func (m *Model) InventoryAt(p ProductID, l LocationID, t PeriodID) float64 {
	if k, ok := m.key(p, l, t); ok {
		return m.MILP.Value(m.inventory[k])
	}
	return 0
}

// BacklogAt returns the solved end-of-period backlog.
func (m *Model) BacklogAt(p ProductID, l LocationID, t PeriodID) float64 {
	if k, ok := m.key(p, l, t); ok {
		return m.MILP.Value(m.backlog[k])
	}
	return 0
}

// ReceiptAt returns solved direct receipts (make + buy after lead
// time), excluding inbound shipments.
func (m *Model) ReceiptAt(p ProductID, l LocationID, t PeriodID) float64 {
	if k, ok := m.key(p, l, t); ok {
		return m.MILP.Eval(m.receipt[k])
	}
	return 0
}

// DependentDemandAt returns the solved dependent demand.
func (m *Model) DependentDemandAt(p ProductID, l LocationID, t PeriodID) float64 {
	if k, ok := m.key(p, l, t); ok {
		return m.MILP.Eval(m.depDemand[k])
	}
	return 0
}

// ShipOutAt returns total solved outbound shipment volume.
func (m *Model) ShipOutAt(p ProductID, l LocationID, t PeriodID) float64 {
	if k, ok := m.key(p, l, t); ok {
		return m.MILP.Eval(m.shipOut[k])
	}
	return 0
}

// ShipInAt returns total solved inbound shipment arrivals.
func (m *Model) ShipInAt(p ProductID, l LocationID, t PeriodID) float64 {
	if k, ok := m.key(p, l, t); ok {
		return m.MILP.Eval(m.shipIn[k])
	}
	return 0
}

// ShipmentAt returns the solved volume shipped on one lane in t.
func (m *Model) ShipmentAt(lane int, t PeriodID) float64 {
	ti := m.Data.PeriodIndex(t)
	if ti < 0 || lane < 0 || lane >= len(m.Data.Lanes) {
		return 0
	}
	return m.MILP.Value(m.ship[laneKey{lane, ti}])
}

// deriveBigM sizes the big-M constant from the dataset: total
// independent demand exploded through the BOM, plus opening stock and
// the largest minimum lot, with an order of magnitude of headroom.
// The result dominates any release or shipment volume an optimal plan
// can use. A cyclic BOM defeats the explosion, in which case the fixed
// ceiling is used instead.
func deriveBigM(d *Dataset) float64 {
	demand := make(map[ProductID]float64, len(d.Products))
	for _, p := range d.Products {
		for _, l := range d.Locations {
			for _, t := range d.Periods {
				demand[p] += d.DemandAt(p, l, t)
			}
		}
	}

	// Aggregate BOM factors across locations for an upper bound.
	consumes := make(map[ProductID]map[ProductID]float64)
	for _, parent := range d.Products {
		for _, l := range d.Locations {
			for comp, qty := range d.BOM[parent][l] {
				if consumes[comp] == nil {
					consumes[comp] = map[ProductID]float64{}
				}
				consumes[comp][parent] += qty
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[ProductID]int, len(d.Products))
	gross := make(map[ProductID]float64, len(d.Products))
	cyclic := false

	var explode func(p ProductID) float64
	explode = func(p ProductID) float64 {
		switch state[p] {
		case done:
			return gross[p]
		case visiting:
			cyclic = true
			return 0
		}
		state[p] = visiting
		total := demand[p]
		for _, parent := range d.Products {
			if qty := consumes[p][parent]; qty != 0 {
				total += qty * explode(parent)
			}
		}
		state[p] = done
		gross[p] = total
		return total
	}

	sum := 0.0
	for _, p := range d.Products {
		sum += explode(p)
	}
	if cyclic {
		return bigMCeiling
	}

	for _, p := range d.Products {
		for _, l := range d.Locations {
			sum += d.InitialInventory[p][l]
		}
	}
	maxMinLot := 0.0
	for _, p := range d.Products {
		for _, l := range d.Locations {
			maxMinLot = math.Max(maxMinLot, d.MakeLot[p][l].MinLot)
			maxMinLot = math.Max(maxMinLot, d.BuyLot[p][l].MinLot)
		}
	}

	return math.Min(bigMCeiling, math.Max(bigMFloor, 10*(sum+maxMinLot)))
}
