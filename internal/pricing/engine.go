// Package pricing turns normalised basket lines into priced, VAT-correct quote totals.
//
// All computations are pure: no I/O, no shared state. Amounts are rounded to whole
// currency units with RoundUnits.
package pricing

// Money represents a monetary value in whole currency units.
type Money = int64

// BrandingCharge is one customisation applied to a basket line, e.g. a logo position.
type BrandingCharge struct {
	Type           *string
	Position       *string
	Size           *string
	ColourCount    float64
	UnitPriceExVat float64
	SetupFeeExVat  float64
	LogoFile       *string
}

// Line describes a basket line used for pricing calculation.
type Line struct {
	ProductPriceExVat float64
	QuantityAvailable float64
	QuantityRequested float64
	BrandingCharges   []BrandingCharge
}

// EffectiveQuantity is the lesser of requested and available quantity.
func (l Line) EffectiveQuantity() float64 {
	if l.QuantityRequested < l.QuantityAvailable {
		return l.QuantityRequested
	}
	return l.QuantityAvailable
}

// BrandingSums returns the per-unit and one-off branding costs across all charges.
func (l Line) BrandingSums() (unitSum, setupSum float64) {
	for _, c := range l.BrandingCharges {
		unitSum += c.UnitPriceExVat
		setupSum += c.SetupFeeExVat
	}
	return unitSum, setupSum
}

// PricedLine is the result of pricing a single Line.
type PricedLine struct {
	BasePriceRounded Money
	CappedQuantity   float64
	IsOutOfStock     bool
	LineTotalExVat   Money
	UnitPriceExVat   Money
	// BundleCostExVat is the pre-margin cost of the line; zero when out of stock.
	BundleCostExVat float64
}

// Totals aggregates computed basket components.
type Totals struct {
	ItemsSubtotalExVat   Money
	DeliveryFeeExVat     Money
	SubtotalExVat        Money
	VatTotal             Money
	GrandTotal           Money
	PreMarginBasketTotal Money
}

// Compute prices every line and totals the basket in one pass.
func Compute(lines []Line, s Settings) ([]PricedLine, Totals) {
	priced := make([]PricedLine, 0, len(lines))
	for _, l := range lines {
		priced = append(priced, PriceLine(l, s.MarginRate))
	}
	return priced, Totalize(priced, s)
}
