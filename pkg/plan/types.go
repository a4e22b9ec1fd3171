// Package plan implements multi-echelon supply planning as a
// mixed-integer linear program: a normalized planning dataset is
// translated into decision variables and constraints, then solved in
// four lexicographic phases (backlog, inventory, purchased volume,
// lane priority).
package plan

// ProductID identifies a product.
type ProductID string

// LocationID identifies a location in the supply network.
type LocationID string

// PeriodID identifies one bucket of the planning horizon. Periods are
// totally ordered by their position in Dataset.Periods; lead times are
// measured in index distance.
type PeriodID string

// ResourceID identifies a capacity resource. Routed consumption is
// reported per resource and bounded where a capacity is declared.
type ResourceID string

// Policy governs which release modes may be nonzero for a
// product/location.
type Policy int

const (
	PolicyNone Policy = iota
	PolicyMake
	PolicyBuy
	PolicyBoth
)

func (p Policy) String() string {
	switch p {
	case PolicyNone:
		return "None"
	case PolicyMake:
		return "Make"
	case PolicyBuy:
		return "Buy"
	case PolicyBoth:
		return "Both"
	default:
		return "Unknown"
	}
}

// MakeAllowed reports whether the policy permits make releases.
func (p Policy) MakeAllowed() bool { return p == PolicyMake || p == PolicyBoth }

// BuyAllowed reports whether the policy permits buy releases.
func (p Policy) BuyAllowed() bool { return p == PolicyBuy || p == PolicyBoth }

// LotRule constrains a release quantity: it must be zero or an integer
// multiple of Multiple that is at least MinLot.
type LotRule struct {
	MinLot   float64
	Multiple int
}

// DefaultLotRule is the rule applied when none is configured.
var DefaultLotRule = LotRule{MinLot: 0, Multiple: 1}

// Lane is a directed transfer edge for one product between two
// locations. Shipments released on a lane in period t arrive at the
// destination LeadTime periods later. Lower Priority numbers are
// preferred by the final solve phase. Capacity entries bound the
// shipped quantity per period; a missing entry leaves the period
// unbounded.
type Lane struct {
	Product  ProductID
	From     LocationID
	To       LocationID
	Allowed  bool
	Priority int
	LeadTime int
	Capacity map[PeriodID]float64
}

// BOMLine is one bill-of-materials relationship: releasing qty units of
// Parent via make at Location consumes Qty*release units of Component
// in the same period.
type BOMLine struct {
	Parent    ProductID
	Location  LocationID
	Component ProductID
	Qty       float64
}
