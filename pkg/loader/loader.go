// Package loader reads planning datasets from JSON or YAML files and
// normalizes them into the canonical plan.Dataset. Two input schemas
// exist: the current multi-location "network" schema and the older
// single-location "legacy" schema. Discrimination is an explicit
// decode step driven by the file's schema tag (with a documented
// fallback), never by probing the shape of individual values.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/supplyopt/planner/pkg/plan"
)

// Format identifies the file encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// Schema tags accepted in input files.
const (
	SchemaNetwork = "network"
	SchemaLegacy  = "legacy"
)

// legacyLocation is the implicit location of legacy datasets.
const legacyLocation plan.LocationID = "LOC1"

// Load reads a dataset file, choosing the format from the extension
// (.json, .yaml, .yml).
func Load(path string) (*plan.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return Decode(data, FormatJSON)
	case ".yaml", ".yml":
		return Decode(data, FormatYAML)
	default:
		return nil, fmt.Errorf("%w: unsupported dataset extension %q", plan.ErrConfig, filepath.Ext(path))
	}
}

// schemaProbe is the first, minimal decode used only to pick a schema.
type schemaProbe struct {
	Schema    string   `json:"schema" yaml:"schema"`
	Locations []string `json:"locations" yaml:"locations"`
}

// Decode parses and normalizes a dataset. When the schema tag is
// absent, a file declaring locations is treated as the network schema
// and a file without locations as legacy.
func Decode(data []byte, format Format) (*plan.Dataset, error) {
	unmarshal := json.Unmarshal
	if format == FormatYAML {
		unmarshal = yaml.Unmarshal
	}

	var probe schemaProbe
	if err := unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}

	schema := probe.Schema
	if schema == "" {
		if len(probe.Locations) > 0 {
			schema = SchemaNetwork
		} else {
			schema = SchemaLegacy
		}
	}

	var (
		ds  *plan.Dataset
		err error
	)
	switch schema {
	case SchemaNetwork:
		var raw networkFile
		if uerr := unmarshal(data, &raw); uerr != nil {
			return nil, fmt.Errorf("failed to parse network dataset: %w", uerr)
		}
		ds, err = raw.dataset()
	case SchemaLegacy:
		var raw legacyFile
		if uerr := unmarshal(data, &raw); uerr != nil {
			return nil, fmt.Errorf("failed to parse legacy dataset: %w", uerr)
		}
		ds, err = raw.dataset()
	default:
		return nil, fmt.Errorf("%w: unknown dataset schema %q", plan.ErrConfig, schema)
	}
	if err != nil {
		return nil, err
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// networkFile is the current multi-location schema. Scalar tables may
// arrive either as nested maps or as row lists (bom_rows, ship_rows,
// purchasing_rows); rows are folded into the maps before conversion.
type networkFile struct {
	Schema    string   `json:"schema" yaml:"schema"`
	Products  []string `json:"products" yaml:"products"`
	Periods   []string `json:"periods" yaml:"periods"`
	Locations []string `json:"locations" yaml:"locations"`
	Resources []string `json:"resources" yaml:"resources"`

	Demand           map[string]map[string]map[string]float64 `json:"demand" yaml:"demand"`
	InitialInventory map[string]map[string]float64            `json:"initial_inventory" yaml:"initial_inventory"`

	// Resource capacity figures, used for consumption reporting only.
	Capacity map[string]map[string]map[string]float64 `json:"capacity" yaml:"capacity"`

	CapMake map[string]map[string]map[string]float64 `json:"cap_make" yaml:"cap_make"`
	CapBuy  map[string]map[string]map[string]float64 `json:"cap_buy" yaml:"cap_buy"`

	BOM     map[string]map[string]map[string]float64 `json:"bom" yaml:"bom"`
	BOMRows []bomRow                                 `json:"bom_rows" yaml:"bom_rows"`

	Routing map[string]map[string]map[string]float64 `json:"routing" yaml:"routing"`

	ProcType   map[string]map[string]string `json:"proc_type" yaml:"proc_type"`
	BuyDefined map[string]map[string]bool   `json:"buy_defined" yaml:"buy_defined"`

	LTMake map[string]map[string]int `json:"lt_make" yaml:"lt_make"`
	LTBuy  map[string]map[string]int `json:"lt_buy" yaml:"lt_buy"`

	MinLotMake  map[string]map[string]float64 `json:"min_lot_make" yaml:"min_lot_make"`
	MultLotMake map[string]map[string]int     `json:"multiple_lot_make" yaml:"multiple_lot_make"`
	MinLotBuy   map[string]map[string]float64 `json:"min_lot_buy" yaml:"min_lot_buy"`
	MultLotBuy  map[string]map[string]int     `json:"multiple_lot_buy" yaml:"multiple_lot_buy"`

	PurchasingRows []purchasingRow `json:"purchasing_rows" yaml:"purchasing_rows"`

	ShipAllowed  map[string]map[string]map[string]bool               `json:"ship_allowed" yaml:"ship_allowed"`
	ShipPriority map[string]map[string]map[string]int                `json:"ship_priority" yaml:"ship_priority"`
	ShipCap      map[string]map[string]map[string]map[string]float64 `json:"ship_cap" yaml:"ship_cap"`
	LTShip       map[string]map[string]map[string]int                `json:"lt_ship" yaml:"lt_ship"`
	ShipRows     []shipRow                                           `json:"ship_rows" yaml:"ship_rows"`

	AllowBacklog *bool `json:"allow_backlog" yaml:"allow_backlog"`
}

func (f *networkFile) dataset() (*plan.Dataset, error) {
	f.applyBOMRows()
	f.applyShipRows()
	f.applyPurchasingRows()

	ds := plan.NewDataset()
	for _, p := range f.Products {
		ds.Products = append(ds.Products, plan.ProductID(p))
	}
	for _, t := range f.Periods {
		ds.Periods = append(ds.Periods, plan.PeriodID(t))
	}
	for _, l := range f.Locations {
		ds.Locations = append(ds.Locations, plan.LocationID(l))
	}
	for _, r := range f.Resources {
		ds.Resources = append(ds.Resources, plan.ResourceID(r))
	}
	if f.AllowBacklog != nil {
		ds.AllowBacklog = *f.AllowBacklog
	}

	for p, byLoc := range f.Demand {
		for l, byPeriod := range byLoc {
			for t, qty := range byPeriod {
				ds.SetDemand(plan.ProductID(p), plan.LocationID(l), plan.PeriodID(t), qty)
			}
		}
	}
	for p, byLoc := range f.InitialInventory {
		for l, qty := range byLoc {
			ds.SetInitialInventory(plan.ProductID(p), plan.LocationID(l), qty)
		}
	}
	for r, byLoc := range f.Capacity {
		for l, byPeriod := range byLoc {
			for t, qty := range byPeriod {
				ds.SetResourceCapacity(plan.ResourceID(r), plan.LocationID(l), plan.PeriodID(t), qty)
			}
		}
	}
	for p, byLoc := range f.CapMake {
		for l, byPeriod := range byLoc {
			for t, qty := range byPeriod {
				ds.SetMakeCapacity(plan.ProductID(p), plan.LocationID(l), plan.PeriodID(t), qty)
			}
		}
	}
	for p, byLoc := range f.CapBuy {
		for l, byPeriod := range byLoc {
			for t, qty := range byPeriod {
				ds.SetBuyCapacity(plan.ProductID(p), plan.LocationID(l), plan.PeriodID(t), qty)
			}
		}
	}
	for parent, byLoc := range f.BOM {
		for l, byComp := range byLoc {
			for comp, qty := range byComp {
				ds.AddBOM(plan.BOMLine{
					Parent:    plan.ProductID(parent),
					Location:  plan.LocationID(l),
					Component: plan.ProductID(comp),
					Qty:       qty,
				})
			}
		}
	}
	for p, byLoc := range f.Routing {
		for l, byRes := range byLoc {
			for r, factor := range byRes {
				ds.SetRouting(plan.ProductID(p), plan.LocationID(l), plan.ResourceID(r), factor)
			}
		}
	}

	for p, byLoc := range f.ProcType {
		for l, raw := range byLoc {
			policy, err := parsePolicy(raw)
			if err != nil {
				return nil, fmt.Errorf("%w (product %s, location %s)", err, p, l)
			}
			ds.SetPolicy(plan.ProductID(p), plan.LocationID(l), policy)
		}
	}
	// A purchasing entry implies buy permission even without a
	// procurement type row.
	for p, byLoc := range f.BuyDefined {
		for l, defined := range byLoc {
			if !defined {
				continue
			}
			pid, lid := plan.ProductID(p), plan.LocationID(l)
			switch ds.PolicyAt(pid, lid) {
			case plan.PolicyNone:
				ds.SetPolicy(pid, lid, plan.PolicyBuy)
			case plan.PolicyMake:
				ds.SetPolicy(pid, lid, plan.PolicyBoth)
			}
		}
	}

	for p, byLoc := range f.LTMake {
		for l, lt := range byLoc {
			ds.SetMakeLeadTime(plan.ProductID(p), plan.LocationID(l), lt)
		}
	}
	for p, byLoc := range f.LTBuy {
		for l, lt := range byLoc {
			ds.SetBuyLeadTime(plan.ProductID(p), plan.LocationID(l), lt)
		}
	}

	for p, byLoc := range mergeLotRules(f.MinLotMake, f.MultLotMake) {
		for l, rule := range byLoc {
			ds.SetMakeLot(plan.ProductID(p), plan.LocationID(l), rule)
		}
	}
	for p, byLoc := range mergeLotRules(f.MinLotBuy, f.MultLotBuy) {
		for l, rule := range byLoc {
			ds.SetBuyLot(plan.ProductID(p), plan.LocationID(l), rule)
		}
	}

	ds.Lanes = f.lanes()
	return ds, nil
}

// lanes folds the ship_* maps into a deterministic lane list sorted by
// (product, from, to).
func (f *networkFile) lanes() []plan.Lane {
	var lanes []plan.Lane
	for p, byFrom := range f.ShipAllowed {
		for from, byTo := range byFrom {
			for to, allowed := range byTo {
				lane := plan.Lane{
					Product:  plan.ProductID(p),
					From:     plan.LocationID(from),
					To:       plan.LocationID(to),
					Allowed:  allowed,
					Priority: f.ShipPriority[p][from][to],
					LeadTime: f.LTShip[p][from][to],
				}
				if caps := f.ShipCap[p][from][to]; len(caps) > 0 {
					lane.Capacity = map[plan.PeriodID]float64{}
					for t, qty := range caps {
						lane.Capacity[plan.PeriodID(t)] = qty
					}
				}
				lanes = append(lanes, lane)
			}
		}
	}
	sort.Slice(lanes, func(i, j int) bool {
		a, b := lanes[i], lanes[j]
		if a.Product != b.Product {
			return a.Product < b.Product
		}
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})
	return lanes
}

// legacyFile is the older single-location schema: every table is keyed
// by product only, capacity means make capacity, and permissions are
// boolean maps. Everything lands on the implicit location.
type legacyFile struct {
	Schema   string   `json:"schema" yaml:"schema"`
	Products []string `json:"products" yaml:"products"`
	Periods  []string `json:"periods" yaml:"periods"`

	Demand           map[string]map[string]float64 `json:"demand" yaml:"demand"`
	InitialInventory map[string]float64            `json:"initial_inventory" yaml:"initial_inventory"`

	Capacity map[string]map[string]float64 `json:"capacity" yaml:"capacity"`
	CapBuy   map[string]map[string]float64 `json:"cap_buy" yaml:"cap_buy"`

	BOM map[string]map[string]float64 `json:"bom" yaml:"bom"`

	MakeAllowed map[string]bool `json:"make_allowed" yaml:"make_allowed"`
	BuyAllowed  map[string]bool `json:"buy_allowed" yaml:"buy_allowed"`

	LTMake map[string]int `json:"lt_make" yaml:"lt_make"`
	LTBuy  map[string]int `json:"lt_buy" yaml:"lt_buy"`

	MinLotMake  map[string]float64 `json:"min_lot_make" yaml:"min_lot_make"`
	MultLotMake map[string]int     `json:"multiple_lot_make" yaml:"multiple_lot_make"`
	MinLotBuy   map[string]float64 `json:"min_lot_buy" yaml:"min_lot_buy"`
	MultLotBuy  map[string]int     `json:"multiple_lot_buy" yaml:"multiple_lot_buy"`

	AllowBacklog *bool `json:"allow_backlog" yaml:"allow_backlog"`
}

func (f *legacyFile) dataset() (*plan.Dataset, error) {
	ds := plan.NewDataset()
	for _, p := range f.Products {
		ds.Products = append(ds.Products, plan.ProductID(p))
	}
	for _, t := range f.Periods {
		ds.Periods = append(ds.Periods, plan.PeriodID(t))
	}
	ds.Locations = []plan.LocationID{legacyLocation}
	if f.AllowBacklog != nil {
		ds.AllowBacklog = *f.AllowBacklog
	}

	for p, byPeriod := range f.Demand {
		for t, qty := range byPeriod {
			ds.SetDemand(plan.ProductID(p), legacyLocation, plan.PeriodID(t), qty)
		}
	}
	for p, qty := range f.InitialInventory {
		ds.SetInitialInventory(plan.ProductID(p), legacyLocation, qty)
	}
	for p, byPeriod := range f.Capacity {
		for t, qty := range byPeriod {
			ds.SetMakeCapacity(plan.ProductID(p), legacyLocation, plan.PeriodID(t), qty)
		}
	}
	for p, byPeriod := range f.CapBuy {
		for t, qty := range byPeriod {
			ds.SetBuyCapacity(plan.ProductID(p), legacyLocation, plan.PeriodID(t), qty)
		}
	}
	for parent, byComp := range f.BOM {
		for comp, qty := range byComp {
			ds.AddBOM(plan.BOMLine{
				Parent:    plan.ProductID(parent),
				Location:  legacyLocation,
				Component: plan.ProductID(comp),
				Qty:       qty,
			})
		}
	}

	for _, p := range f.Products {
		makeOK := f.MakeAllowed[p]
		buyOK := f.BuyAllowed[p]
		policy := plan.PolicyNone
		switch {
		case makeOK && buyOK:
			policy = plan.PolicyBoth
		case makeOK:
			policy = plan.PolicyMake
		case buyOK:
			policy = plan.PolicyBuy
		}
		if policy != plan.PolicyNone {
			ds.SetPolicy(plan.ProductID(p), legacyLocation, policy)
		}
	}

	for p, lt := range f.LTMake {
		ds.SetMakeLeadTime(plan.ProductID(p), legacyLocation, lt)
	}
	for p, lt := range f.LTBuy {
		ds.SetBuyLeadTime(plan.ProductID(p), legacyLocation, lt)
	}

	for _, p := range f.Products {
		if rule, ok := legacyLotRule(f.MinLotMake, f.MultLotMake, p); ok {
			ds.SetMakeLot(plan.ProductID(p), legacyLocation, rule)
		}
		if rule, ok := legacyLotRule(f.MinLotBuy, f.MultLotBuy, p); ok {
			ds.SetBuyLot(plan.ProductID(p), legacyLocation, rule)
		}
	}

	return ds, nil
}

func legacyLotRule(minLot map[string]float64, mult map[string]int, p string) (plan.LotRule, bool) {
	min, hasMin := minLot[p]
	m, hasMult := mult[p]
	if !hasMin && !hasMult {
		return plan.LotRule{}, false
	}
	if !hasMult {
		m = 1
	}
	return plan.LotRule{MinLot: min, Multiple: m}, true
}

func mergeLotRules(minLot map[string]map[string]float64, mult map[string]map[string]int) map[string]map[string]plan.LotRule {
	out := map[string]map[string]plan.LotRule{}
	add := func(p, l string) {
		if out[p] == nil {
			out[p] = map[string]plan.LotRule{}
		}
		if _, ok := out[p][l]; ok {
			return
		}
		m, hasMult := mult[p][l]
		if !hasMult {
			m = 1
		}
		out[p][l] = plan.LotRule{MinLot: minLot[p][l], Multiple: m}
	}
	for p, byLoc := range minLot {
		for l := range byLoc {
			add(p, l)
		}
	}
	for p, byLoc := range mult {
		for l := range byLoc {
			add(p, l)
		}
	}
	return out
}

func parsePolicy(raw string) (plan.Policy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "make", "m":
		return plan.PolicyMake, nil
	case "buy", "b":
		return plan.PolicyBuy, nil
	case "both", "make_buy", "mb":
		return plan.PolicyBoth, nil
	case "", "none", "neither":
		return plan.PolicyNone, nil
	default:
		return plan.PolicyNone, fmt.Errorf("%w: unknown proc_type %q", plan.ErrConfig, raw)
	}
}
