package plan

import (
	"math"

	"github.com/shopspring/decimal"
)

// clampEpsilon is the presentation tolerance: solved values within it
// of zero are reported as exactly zero. It never influences constraint
// checks, only the projected series.
const clampEpsilon = 1e-6

// reportPlaces is the decimal rounding applied to projected figures.
const reportPlaces = 6

// KeyFigure names one projected row of the plan, in report order.
type KeyFigure string

const (
	FigureIndependentDemand KeyFigure = "independent demand"
	FigureDependentDemand   KeyFigure = "dep demand"
	FigureDistributionReq   KeyFigure = "distribution req"
	FigureTotalDemand       KeyFigure = "total demand"
	FigureMakeRelease       KeyFigure = "production receipts"
	FigureBuyRelease        KeyFigure = "procurement receipts"
	FigureDistributionRec   KeyFigure = "distribution rec"
	FigureTotalReceipts     KeyFigure = "total receipts"
	FigureStockOnHand       KeyFigure = "SOH"
	FigureBacklog           KeyFigure = "backlog"
)

// KeyFigures lists the projected rows in report order.
var KeyFigures = []KeyFigure{
	FigureIndependentDemand,
	FigureDependentDemand,
	FigureDistributionReq,
	FigureTotalDemand,
	FigureMakeRelease,
	FigureBuyRelease,
	FigureDistributionRec,
	FigureTotalReceipts,
	FigureStockOnHand,
	FigureBacklog,
}

// Series is one key figure over the horizon, index-aligned with
// Dataset.Periods.
type Series []decimal.Decimal

// ProductPlan is the projected plan for one product at one location.
type ProductPlan struct {
	Product  ProductID
	Location LocationID
	Figures  map[KeyFigure]Series
}

// ResourceUsage is projected consumption of one resource at one
// location: the aggregate over products and the per-product detail.
type ResourceUsage struct {
	Resource  ResourceID
	Location  LocationID
	Total     Series
	ByProduct map[ProductID]Series
}

// Projection is a read-only view over a solved model: derived series
// for reporting, no variables and no constraints. Consumed by output
// writers only.
type Projection struct {
	Periods   []PeriodID
	Plans     []ProductPlan
	Resources []ResourceUsage
	Metrics   Metrics
}

// Project derives the reporting series from a solved model. Tiny
// residues around zero are clamped and every figure is rounded; this
// is presentation smoothing, not plan arithmetic.
func Project(m *Model, metrics Metrics) *Projection {
	d := m.Data
	out := &Projection{
		Periods: d.Periods,
		Metrics: metrics,
	}

	for _, p := range d.Products {
		for _, l := range d.Locations {
			plan := ProductPlan{
				Product:  p,
				Location: l,
				Figures:  make(map[KeyFigure]Series, len(KeyFigures)),
			}
			for _, f := range KeyFigures {
				plan.Figures[f] = make(Series, len(d.Periods))
			}
			for ti, t := range d.Periods {
				ind := d.DemandAt(p, l, t)
				dep := m.DependentDemandAt(p, l, t)
				shipOut := m.ShipOutAt(p, l, t)
				shipIn := m.ShipInAt(p, l, t)
				receipt := m.ReceiptAt(p, l, t)

				plan.Figures[FigureIndependentDemand][ti] = reportValue(ind)
				plan.Figures[FigureDependentDemand][ti] = reportValue(dep)
				plan.Figures[FigureDistributionReq][ti] = reportValue(shipOut)
				plan.Figures[FigureTotalDemand][ti] = reportValue(ind + dep + shipOut)
				plan.Figures[FigureMakeRelease][ti] = reportValue(m.ReleaseMakeAt(p, l, t))
				plan.Figures[FigureBuyRelease][ti] = reportValue(m.ReleaseBuyAt(p, l, t))
				plan.Figures[FigureDistributionRec][ti] = reportValue(shipIn)
				plan.Figures[FigureTotalReceipts][ti] = reportValue(receipt + shipIn)
				plan.Figures[FigureStockOnHand][ti] = reportValue(m.InventoryAt(p, l, t))
				plan.Figures[FigureBacklog][ti] = reportValue(m.BacklogAt(p, l, t))
			}
			out.Plans = append(out.Plans, plan)
		}
	}

	for _, r := range d.Resources {
		for _, l := range d.Locations {
			usage := ResourceUsage{
				Resource:  r,
				Location:  l,
				Total:     make(Series, len(d.Periods)),
				ByProduct: map[ProductID]Series{},
			}
			for ti, t := range d.Periods {
				total := 0.0
				for _, p := range d.Products {
					factor := d.RoutingAt(p, l, r)
					if factor == 0 {
						continue
					}
					cons := m.ReleaseMakeAt(p, l, t) * factor
					total += cons
					detail := usage.ByProduct[p]
					if detail == nil {
						detail = make(Series, len(d.Periods))
						usage.ByProduct[p] = detail
					}
					detail[ti] = reportValue(cons)
				}
				usage.Total[ti] = reportValue(total)
			}
			out.Resources = append(out.Resources, usage)
		}
	}

	return out
}

// HasBacklog reports whether any period of the plan carries backlog.
func (p ProductPlan) HasBacklog() bool {
	for _, v := range p.Figures[FigureBacklog] {
		if !v.IsZero() {
			return true
		}
	}
	return false
}

func reportValue(v float64) decimal.Decimal {
	if math.Abs(v) < clampEpsilon {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(reportPlaces)
}
