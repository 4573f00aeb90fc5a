package pricing

// Totalize sums priced lines into basket totals.
//
// Delivery is free once the items total including a provisional VAT reaches
// DeliveryFreeThreshold. That provisional VAT is only used for the threshold check;
// the charged VAT is computed once over items plus delivery.
//
// A basket whose sums would exceed MaxMoney cannot be priced and yields zero Totals.
func Totalize(lines []PricedLine, s Settings) Totals {
	var (
		items      Money
		preMargin  Money
		chargeable bool
		ok         bool
	)
	for _, l := range lines {
		if items, ok = addMoney(items, l.LineTotalExVat); !ok {
			return Totals{}
		}
		if l.LineTotalExVat > 0 {
			chargeable = true
		}
		if !l.IsOutOfStock {
			if preMargin, ok = addMoney(preMargin, RoundUnits(l.BundleCostExVat)); !ok {
				return Totals{}
			}
		}
	}

	var delivery Money
	if chargeable {
		itemsInclVat := items + RoundMoney(float64(items)*s.VatRate)
		if float64(itemsInclVat) < s.DeliveryFreeThreshold {
			delivery = RoundUnits(s.DeliveryFeeFlat)
		}
	}

	subtotal, ok := addMoney(items, delivery)
	if !ok {
		return Totals{}
	}
	vat := RoundMoney(float64(subtotal) * s.VatRate)
	if _, ok := addMoney(subtotal, vat); !ok {
		return Totals{}
	}
	return Totals{
		ItemsSubtotalExVat:   items,
		DeliveryFeeExVat:     delivery,
		SubtotalExVat:        subtotal,
		VatTotal:             vat,
		GrandTotal:           subtotal + vat,
		PreMarginBasketTotal: preMargin,
	}
}

// addMoney sums a and b, reporting false when the result leaves [-MaxMoney, MaxMoney].
func addMoney(a, b Money) (Money, bool) {
	sum := a + b
	if sum > MaxMoney || sum < -MaxMoney {
		return 0, false
	}
	return sum, true
}
