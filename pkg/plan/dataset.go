package plan

import (
	"errors"
	"fmt"
	"math"
)

// ErrConfig marks configuration errors: a dataset that references
// undeclared domain members or carries out-of-range policy values.
// These surface before any solver is involved.
var ErrConfig = errors.New("plan: invalid configuration")

// Dataset is the fully resolved planning input for one run: products,
// locations, periods, demand, opening stock, BOM, procurement policy,
// lead times, lot rules, capacities, and shipment lanes. It is built
// once, validated, and treated as immutable by the model builder.
//
// Lookups on optional maps never fail; each has a documented default:
// missing demand is 0, missing make capacity is 0, missing buy capacity
// is unbounded, missing lot rule is {0, 1}, missing policy is
// PolicyNone, missing lead time is 0.
type Dataset struct {
	Products  []ProductID
	Locations []LocationID
	Periods   []PeriodID
	Resources []ResourceID

	Demand           map[ProductID]map[LocationID]map[PeriodID]float64
	InitialInventory map[ProductID]map[LocationID]float64

	BOM     map[ProductID]map[LocationID]map[ProductID]float64
	Routing map[ProductID]map[LocationID]map[ResourceID]float64

	Policy map[ProductID]map[LocationID]Policy

	MakeLeadTime map[ProductID]map[LocationID]int
	BuyLeadTime  map[ProductID]map[LocationID]int

	MakeLot map[ProductID]map[LocationID]LotRule
	BuyLot  map[ProductID]map[LocationID]LotRule

	MakeCapacity     map[ProductID]map[LocationID]map[PeriodID]float64
	BuyCapacity      map[ProductID]map[LocationID]map[PeriodID]float64
	ResourceCapacity map[ResourceID]map[LocationID]map[PeriodID]float64

	Lanes []Lane

	AllowBacklog bool

	periodIndex map[PeriodID]int
}

// NewDataset creates an empty dataset with backlog allowed.
func NewDataset() *Dataset {
	return &Dataset{
		Demand:           map[ProductID]map[LocationID]map[PeriodID]float64{},
		InitialInventory: map[ProductID]map[LocationID]float64{},
		BOM:              map[ProductID]map[LocationID]map[ProductID]float64{},
		Routing:          map[ProductID]map[LocationID]map[ResourceID]float64{},
		Policy:           map[ProductID]map[LocationID]Policy{},
		MakeLeadTime:     map[ProductID]map[LocationID]int{},
		BuyLeadTime:      map[ProductID]map[LocationID]int{},
		MakeLot:          map[ProductID]map[LocationID]LotRule{},
		BuyLot:           map[ProductID]map[LocationID]LotRule{},
		MakeCapacity:     map[ProductID]map[LocationID]map[PeriodID]float64{},
		BuyCapacity:      map[ProductID]map[LocationID]map[PeriodID]float64{},
		ResourceCapacity: map[ResourceID]map[LocationID]map[PeriodID]float64{},
		AllowBacklog:     true,
	}
}

// PeriodIndex returns the ordinal position of t, or -1 when t is not a
// declared period.
func (d *Dataset) PeriodIndex(t PeriodID) int {
	if d.periodIndex == nil {
		d.periodIndex = make(map[PeriodID]int, len(d.Periods))
		for i, p := range d.Periods {
			d.periodIndex[p] = i
		}
	}
	if i, ok := d.periodIndex[t]; ok {
		return i
	}
	return -1
}

// DemandAt returns independent demand, defaulting to 0.
func (d *Dataset) DemandAt(p ProductID, l LocationID, t PeriodID) float64 {
	return d.Demand[p][l][t]
}

// OpeningStock returns on-hand inventory at the start of the horizon,
// defaulting to 0.
func (d *Dataset) OpeningStock(p ProductID, l LocationID) float64 {
	return d.InitialInventory[p][l]
}

// PolicyAt returns the procurement policy, defaulting to PolicyNone.
func (d *Dataset) PolicyAt(p ProductID, l LocationID) Policy {
	return d.Policy[p][l]
}

// MakeLead returns the make lead time in periods, defaulting to 0.
func (d *Dataset) MakeLead(p ProductID, l LocationID) int {
	return d.MakeLeadTime[p][l]
}

// BuyLead returns the buy lead time in periods, defaulting to 0.
func (d *Dataset) BuyLead(p ProductID, l LocationID) int {
	return d.BuyLeadTime[p][l]
}

// MakeLotRule returns the make lot rule, defaulting to {0, 1}.
func (d *Dataset) MakeLotRule(p ProductID, l LocationID) LotRule {
	if r, ok := d.MakeLot[p][l]; ok {
		return r
	}
	return DefaultLotRule
}

// BuyLotRule returns the buy lot rule, defaulting to {0, 1}.
func (d *Dataset) BuyLotRule(p ProductID, l LocationID) LotRule {
	if r, ok := d.BuyLot[p][l]; ok {
		return r
	}
	return DefaultLotRule
}

// MakeCapacityAt returns the make release bound. A missing entry means
// no declared capacity, which bounds make releases at zero.
func (d *Dataset) MakeCapacityAt(p ProductID, l LocationID, t PeriodID) float64 {
	return d.MakeCapacity[p][l][t]
}

// BuyCapacityAt returns the buy release bound. A missing entry is
// effectively unbounded.
func (d *Dataset) BuyCapacityAt(p ProductID, l LocationID, t PeriodID) (float64, bool) {
	if cap, ok := d.BuyCapacity[p][l][t]; ok {
		return cap, true
	}
	return math.Inf(1), false
}

// BOMAt returns the component quantity per unit of parent released via
// make at the location, defaulting to 0.
func (d *Dataset) BOMAt(parent ProductID, l LocationID, component ProductID) float64 {
	return d.BOM[parent][l][component]
}

// RoutingAt returns the per-unit resource consumption factor,
// defaulting to 0.
func (d *Dataset) RoutingAt(p ProductID, l LocationID, r ResourceID) float64 {
	return d.Routing[p][l][r]
}

// SetDemand records independent demand.
func (d *Dataset) SetDemand(p ProductID, l LocationID, t PeriodID, qty float64) {
	inner := d.Demand[p]
	if inner == nil {
		inner = map[LocationID]map[PeriodID]float64{}
		d.Demand[p] = inner
	}
	if inner[l] == nil {
		inner[l] = map[PeriodID]float64{}
	}
	inner[l][t] = qty
}

// SetInitialInventory records opening stock.
func (d *Dataset) SetInitialInventory(p ProductID, l LocationID, qty float64) {
	if d.InitialInventory[p] == nil {
		d.InitialInventory[p] = map[LocationID]float64{}
	}
	d.InitialInventory[p][l] = qty
}

// AddBOM records a bill-of-materials line.
func (d *Dataset) AddBOM(line BOMLine) {
	if d.BOM[line.Parent] == nil {
		d.BOM[line.Parent] = map[LocationID]map[ProductID]float64{}
	}
	if d.BOM[line.Parent][line.Location] == nil {
		d.BOM[line.Parent][line.Location] = map[ProductID]float64{}
	}
	d.BOM[line.Parent][line.Location][line.Component] = line.Qty
}

// SetRouting records a resource consumption factor.
func (d *Dataset) SetRouting(p ProductID, l LocationID, r ResourceID, factor float64) {
	if d.Routing[p] == nil {
		d.Routing[p] = map[LocationID]map[ResourceID]float64{}
	}
	if d.Routing[p][l] == nil {
		d.Routing[p][l] = map[ResourceID]float64{}
	}
	d.Routing[p][l][r] = factor
}

// SetPolicy records the procurement policy.
func (d *Dataset) SetPolicy(p ProductID, l LocationID, policy Policy) {
	if d.Policy[p] == nil {
		d.Policy[p] = map[LocationID]Policy{}
	}
	d.Policy[p][l] = policy
}

// SetMakeLeadTime records the make lead time in periods.
func (d *Dataset) SetMakeLeadTime(p ProductID, l LocationID, periods int) {
	if d.MakeLeadTime[p] == nil {
		d.MakeLeadTime[p] = map[LocationID]int{}
	}
	d.MakeLeadTime[p][l] = periods
}

// SetBuyLeadTime records the buy lead time in periods.
func (d *Dataset) SetBuyLeadTime(p ProductID, l LocationID, periods int) {
	if d.BuyLeadTime[p] == nil {
		d.BuyLeadTime[p] = map[LocationID]int{}
	}
	d.BuyLeadTime[p][l] = periods
}

// SetMakeLot records the make lot rule.
func (d *Dataset) SetMakeLot(p ProductID, l LocationID, rule LotRule) {
	if d.MakeLot[p] == nil {
		d.MakeLot[p] = map[LocationID]LotRule{}
	}
	d.MakeLot[p][l] = rule
}

// SetBuyLot records the buy lot rule.
func (d *Dataset) SetBuyLot(p ProductID, l LocationID, rule LotRule) {
	if d.BuyLot[p] == nil {
		d.BuyLot[p] = map[LocationID]LotRule{}
	}
	d.BuyLot[p][l] = rule
}

// SetMakeCapacity records a make release bound for one period.
func (d *Dataset) SetMakeCapacity(p ProductID, l LocationID, t PeriodID, qty float64) {
	if d.MakeCapacity[p] == nil {
		d.MakeCapacity[p] = map[LocationID]map[PeriodID]float64{}
	}
	if d.MakeCapacity[p][l] == nil {
		d.MakeCapacity[p][l] = map[PeriodID]float64{}
	}
	d.MakeCapacity[p][l][t] = qty
}

// SetBuyCapacity records a buy release bound for one period.
func (d *Dataset) SetBuyCapacity(p ProductID, l LocationID, t PeriodID, qty float64) {
	if d.BuyCapacity[p] == nil {
		d.BuyCapacity[p] = map[LocationID]map[PeriodID]float64{}
	}
	if d.BuyCapacity[p][l] == nil {
		d.BuyCapacity[p][l] = map[PeriodID]float64{}
	}
	d.BuyCapacity[p][l][t] = qty
}

// SetResourceCapacity records a resource capacity figure (reporting
// only; it does not constrain the plan).
func (d *Dataset) SetResourceCapacity(r ResourceID, l LocationID, t PeriodID, qty float64) {
	if d.ResourceCapacity[r] == nil {
		d.ResourceCapacity[r] = map[LocationID]map[PeriodID]float64{}
	}
	if d.ResourceCapacity[r][l] == nil {
		d.ResourceCapacity[r][l] = map[PeriodID]float64{}
	}
	d.ResourceCapacity[r][l][t] = qty
}

// AddLane records a shipment lane.
func (d *Dataset) AddLane(lane Lane) {
	d.Lanes = append(d.Lanes, lane)
}

// Validate checks that every key in every map resolves to a declared
// product, location, period, or resource, and that policy values are in
// range: lot multiples at least 1, lead times and quantities
// nonnegative. All failures are configuration errors.
func (d *Dataset) Validate() error {
	if len(d.Periods) == 0 {
		return fmt.Errorf("%w: no periods declared", ErrConfig)
	}

	products := make(map[ProductID]bool, len(d.Products))
	for _, p := range d.Products {
		if products[p] {
			return fmt.Errorf("%w: duplicate product %q", ErrConfig, p)
		}
		products[p] = true
	}
	locations := make(map[LocationID]bool, len(d.Locations))
	for _, l := range d.Locations {
		if locations[l] {
			return fmt.Errorf("%w: duplicate location %q", ErrConfig, l)
		}
		locations[l] = true
	}
	periods := make(map[PeriodID]bool, len(d.Periods))
	for _, t := range d.Periods {
		if periods[t] {
			return fmt.Errorf("%w: duplicate period %q", ErrConfig, t)
		}
		periods[t] = true
	}
	resources := make(map[ResourceID]bool, len(d.Resources))
	for _, r := range d.Resources {
		resources[r] = true
	}

	checkKey := func(field string, p ProductID, l LocationID) error {
		if !products[p] {
			return fmt.Errorf("%w: %s references unknown product %q", ErrConfig, field, p)
		}
		if !locations[l] {
			return fmt.Errorf("%w: %s references unknown location %q", ErrConfig, field, l)
		}
		return nil
	}

	for p, byLoc := range d.Demand {
		for l, byPeriod := range byLoc {
			if err := checkKey("demand", p, l); err != nil {
				return err
			}
			for t, qty := range byPeriod {
				if !periods[t] {
					return fmt.Errorf("%w: demand references unknown period %q", ErrConfig, t)
				}
				if qty < 0 {
					return fmt.Errorf("%w: negative demand for %s at %s in %s", ErrConfig, p, l, t)
				}
			}
		}
	}

	for p, byLoc := range d.InitialInventory {
		for l, qty := range byLoc {
			if err := checkKey("initial inventory", p, l); err != nil {
				return err
			}
			if qty < 0 {
				return fmt.Errorf("%w: negative initial inventory for %s at %s", ErrConfig, p, l)
			}
		}
	}

	for parent, byLoc := range d.BOM {
		for l, byComp := range byLoc {
			if err := checkKey("bom", parent, l); err != nil {
				return err
			}
			for comp, qty := range byComp {
				if !products[comp] {
					return fmt.Errorf("%w: bom references unknown component %q", ErrConfig, comp)
				}
				if qty < 0 {
					return fmt.Errorf("%w: negative bom quantity %s -> %s at %s", ErrConfig, parent, comp, l)
				}
			}
		}
	}

	for p, byLoc := range d.Routing {
		for l, byRes := range byLoc {
			if err := checkKey("routing", p, l); err != nil {
				return err
			}
			for r, factor := range byRes {
				if !resources[r] {
					return fmt.Errorf("%w: routing references unknown resource %q", ErrConfig, r)
				}
				if factor < 0 {
					return fmt.Errorf("%w: negative routing factor for %s at %s on %s", ErrConfig, p, l, r)
				}
			}
		}
	}

	for p, byLoc := range d.Policy {
		for l, policy := range byLoc {
			if err := checkKey("policy", p, l); err != nil {
				return err
			}
			if policy < PolicyNone || policy > PolicyBoth {
				return fmt.Errorf("%w: policy out of range for %s at %s", ErrConfig, p, l)
			}
		}
	}

	for field, m := range map[string]map[ProductID]map[LocationID]int{
		"make lead time": d.MakeLeadTime,
		"buy lead time":  d.BuyLeadTime,
	} {
		for p, byLoc := range m {
			for l, lt := range byLoc {
				if err := checkKey(field, p, l); err != nil {
					return err
				}
				if lt < 0 {
					return fmt.Errorf("%w: negative %s for %s at %s", ErrConfig, field, p, l)
				}
			}
		}
	}

	for field, m := range map[string]map[ProductID]map[LocationID]LotRule{
		"make lot rule": d.MakeLot,
		"buy lot rule":  d.BuyLot,
	} {
		for p, byLoc := range m {
			for l, rule := range byLoc {
				if err := checkKey(field, p, l); err != nil {
					return err
				}
				if rule.Multiple < 1 {
					return fmt.Errorf("%w: %s multiple below 1 for %s at %s", ErrConfig, field, p, l)
				}
				if rule.MinLot < 0 {
					return fmt.Errorf("%w: negative %s minimum for %s at %s", ErrConfig, field, p, l)
				}
			}
		}
	}

	for field, m := range map[string]map[ProductID]map[LocationID]map[PeriodID]float64{
		"make capacity": d.MakeCapacity,
		"buy capacity":  d.BuyCapacity,
	} {
		for p, byLoc := range m {
			for l, byPeriod := range byLoc {
				if err := checkKey(field, p, l); err != nil {
					return err
				}
				for t, qty := range byPeriod {
					if !periods[t] {
						return fmt.Errorf("%w: %s references unknown period %q", ErrConfig, field, t)
					}
					if qty < 0 {
						return fmt.Errorf("%w: negative %s for %s at %s in %s", ErrConfig, field, p, l, t)
					}
				}
			}
		}
	}

	for r, byLoc := range d.ResourceCapacity {
		if !resources[r] {
			return fmt.Errorf("%w: resource capacity references unknown resource %q", ErrConfig, r)
		}
		for l, byPeriod := range byLoc {
			if !locations[l] {
				return fmt.Errorf("%w: resource capacity references unknown location %q", ErrConfig, l)
			}
			for t := range byPeriod {
				if !periods[t] {
					return fmt.Errorf("%w: resource capacity references unknown period %q", ErrConfig, t)
				}
			}
		}
	}

	for _, lane := range d.Lanes {
		if !products[lane.Product] {
			return fmt.Errorf("%w: lane references unknown product %q", ErrConfig, lane.Product)
		}
		if !locations[lane.From] {
			return fmt.Errorf("%w: lane references unknown location %q", ErrConfig, lane.From)
		}
		if !locations[lane.To] {
			return fmt.Errorf("%w: lane references unknown location %q", ErrConfig, lane.To)
		}
		if lane.From == lane.To {
			return fmt.Errorf("%w: lane %s -> %s is a self-loop", ErrConfig, lane.From, lane.To)
		}
		if lane.LeadTime < 0 {
			return fmt.Errorf("%w: negative lane lead time %s -> %s", ErrConfig, lane.From, lane.To)
		}
		if lane.Priority < 0 {
			return fmt.Errorf("%w: negative lane priority %s -> %s", ErrConfig, lane.From, lane.To)
		}
		for t, qty := range lane.Capacity {
			if !periods[t] {
				return fmt.Errorf("%w: lane capacity references unknown period %q", ErrConfig, t)
			}
			if qty < 0 {
				return fmt.Errorf("%w: negative lane capacity %s -> %s in %s", ErrConfig, lane.From, lane.To, t)
			}
		}
	}

	return nil
}
