package pricing

// PriceLine caps the line to available stock, applies the margin to the bundle cost and
// rounds the line total. The unit price is derived from the rounded line total, so
// UnitPriceExVat*CappedQuantity may drift from LineTotalExVat by a rounding residue.
func PriceLine(l Line, marginRate float64) PricedLine {
	capped := l.EffectiveQuantity()
	out := PricedLine{
		BasePriceRounded: RoundUnits(l.ProductPriceExVat),
		CappedQuantity:   capped,
	}
	if l.QuantityAvailable == 0 || capped <= 0 {
		out.IsOutOfStock = true
		return out
	}

	out.BundleCostExVat = BundleCost(l, capped)
	out.LineTotalExVat = RoundUnits(out.BundleCostExVat * MarginFactor(marginRate))
	out.UnitPriceExVat = RoundMoney(float64(out.LineTotalExVat) / capped)
	return out
}

// BundleCost is the pre-margin cost of qty units of the line including branding.
// Setup fees are charged once per line; unit branding costs scale with qty.
func BundleCost(l Line, qty float64) float64 {
	unitSum, setupSum := l.BrandingSums()
	return l.ProductPriceExVat*qty + unitSum*qty + setupSum
}
