package loader

// Row-list forms of the network schema. Spreadsheet-shaped sources emit
// one row per relationship; rows are folded into the nested maps before
// dataset conversion, with per-row overrides (lead times, lot rules)
// landing in their own tables, mirroring how the sheets carry them.

type bomRow struct {
	Parent    string  `json:"parent" yaml:"parent"`
	Location  string  `json:"location" yaml:"location"`
	Component string  `json:"component" yaml:"component"`
	Value     float64 `json:"value" yaml:"value"`

	LTMake      *int     `json:"lt_make" yaml:"lt_make"`
	MinLotMake  *float64 `json:"min_lot_make" yaml:"min_lot_make"`
	MultLotMake *int     `json:"multiple_lot_make" yaml:"multiple_lot_make"`
}

type shipRow struct {
	Product string `json:"product" yaml:"product"`
	From    string `json:"from" yaml:"from"`
	To      string `json:"to" yaml:"to"`
	Allowed *bool  `json:"allowed" yaml:"allowed"`

	Priority *int `json:"priority" yaml:"priority"`
	LTShip   *int `json:"lt_ship" yaml:"lt_ship"`
}

type purchasingRow struct {
	Product  string `json:"product" yaml:"product"`
	Location string `json:"location" yaml:"location"`

	LeadTime    *int     `json:"leadtime" yaml:"leadtime"`
	MinLotSize  *float64 `json:"min_lotsize" yaml:"min_lotsize"`
	MultLotSize *int     `json:"mult_lotsize" yaml:"mult_lotsize"`
}

func (f *networkFile) applyBOMRows() {
	if len(f.BOMRows) == 0 {
		return
	}
	if f.BOM == nil {
		f.BOM = map[string]map[string]map[string]float64{}
	}
	for _, row := range f.BOMRows {
		if row.Parent == "" || row.Location == "" || row.Component == "" {
			continue
		}
		if f.BOM[row.Parent] == nil {
			f.BOM[row.Parent] = map[string]map[string]float64{}
		}
		if f.BOM[row.Parent][row.Location] == nil {
			f.BOM[row.Parent][row.Location] = map[string]float64{}
		}
		f.BOM[row.Parent][row.Location][row.Component] = row.Value

		if row.LTMake != nil {
			setInt(&f.LTMake, row.Parent, row.Location, *row.LTMake)
		}
		if row.MinLotMake != nil {
			setFloat(&f.MinLotMake, row.Parent, row.Location, *row.MinLotMake)
		}
		if row.MultLotMake != nil {
			setInt(&f.MultLotMake, row.Parent, row.Location, *row.MultLotMake)
		}
	}
}

func (f *networkFile) applyShipRows() {
	if len(f.ShipRows) == 0 {
		return
	}
	if f.ShipAllowed == nil {
		f.ShipAllowed = map[string]map[string]map[string]bool{}
	}
	for _, row := range f.ShipRows {
		if row.Product == "" || row.From == "" || row.To == "" {
			continue
		}
		allowed := true
		if row.Allowed != nil {
			allowed = *row.Allowed
		}
		if f.ShipAllowed[row.Product] == nil {
			f.ShipAllowed[row.Product] = map[string]map[string]bool{}
		}
		if f.ShipAllowed[row.Product][row.From] == nil {
			f.ShipAllowed[row.Product][row.From] = map[string]bool{}
		}
		f.ShipAllowed[row.Product][row.From][row.To] = allowed

		if row.Priority != nil {
			setNested3Int(&f.ShipPriority, row.Product, row.From, row.To, *row.Priority)
		}
		if row.LTShip != nil {
			setNested3Int(&f.LTShip, row.Product, row.From, row.To, *row.LTShip)
		}
	}
}

func (f *networkFile) applyPurchasingRows() {
	if len(f.PurchasingRows) == 0 {
		return
	}
	if f.BuyDefined == nil {
		f.BuyDefined = map[string]map[string]bool{}
	}
	for _, row := range f.PurchasingRows {
		if row.Product == "" || row.Location == "" {
			continue
		}
		if f.BuyDefined[row.Product] == nil {
			f.BuyDefined[row.Product] = map[string]bool{}
		}
		f.BuyDefined[row.Product][row.Location] = true

		if row.LeadTime != nil {
			setInt(&f.LTBuy, row.Product, row.Location, *row.LeadTime)
		}
		if row.MinLotSize != nil {
			setFloat(&f.MinLotBuy, row.Product, row.Location, *row.MinLotSize)
		}
		if row.MultLotSize != nil {
			setInt(&f.MultLotBuy, row.Product, row.Location, *row.MultLotSize)
		}
	}
}

func setInt(m *map[string]map[string]int, k1, k2 string, v int) {
	if *m == nil {
		*m = map[string]map[string]int{}
	}
	if (*m)[k1] == nil {
		(*m)[k1] = map[string]int{}
	}
	(*m)[k1][k2] = v
}

func setFloat(m *map[string]map[string]float64, k1, k2 string, v float64) {
	if *m == nil {
		*m = map[string]map[string]float64{}
	}
	if (*m)[k1] == nil {
		(*m)[k1] = map[string]float64{}
	}
	(*m)[k1][k2] = v
}

func setNested3Int(m *map[string]map[string]map[string]int, k1, k2, k3 string, v int) {
	if *m == nil {
		*m = map[string]map[string]map[string]int{}
	}
	if (*m)[k1] == nil {
		(*m)[k1] = map[string]map[string]int{}
	}
	if (*m)[k1][k2] == nil {
		(*m)[k1][k2] = map[string]int{}
	}
	(*m)[k1][k2][k3] = v
}
