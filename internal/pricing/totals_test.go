package pricing

import "testing"

func TestTotalizeSingleLineWithDelivery(t *testing.T) {
	s := DefaultSettings()
	priced, totals := Compute([]Line{{ProductPriceExVat: 100, QuantityAvailable: 10, QuantityRequested: 3}}, s)
	if len(priced) != 1 {
		t.Fatalf("expected 1 priced line, got %d", len(priced))
	}
	want := Totals{
		ItemsSubtotalExVat:   400,
		DeliveryFeeExVat:     99,
		SubtotalExVat:        499,
		VatTotal:             75,
		GrandTotal:           574,
		PreMarginBasketTotal: 300,
	}
	if totals != want {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestTotalizeOutOfStockExcludedFromChargeable(t *testing.T) {
	_, totals := Compute([]Line{{ProductPriceExVat: 200, QuantityAvailable: 0, QuantityRequested: 5}}, DefaultSettings())
	if totals != (Totals{}) {
		t.Fatalf("expected all-zero totals, got %+v", totals)
	}
}

func TestTotalizeEmptyBasket(t *testing.T) {
	if totals := Totalize(nil, DefaultSettings()); totals != (Totals{}) {
		t.Fatalf("expected zero totals for empty basket, got %+v", totals)
	}
}

func TestTotalizeFreeDeliveryAtThreshold(t *testing.T) {
	s := Settings{MarginRate: 0.25, VatRate: 0.25, DeliveryFeeFlat: 99, DeliveryFreeThreshold: 1000}

	// 800 + 200 VAT == 1000 reaches the threshold exactly
	at := Totalize([]PricedLine{{LineTotalExVat: 800}}, s)
	if at.DeliveryFeeExVat != 0 {
		t.Fatalf("expected free delivery at threshold, got %d", at.DeliveryFeeExVat)
	}
	if at.VatTotal != 200 || at.GrandTotal != 1000 {
		t.Fatalf("unexpected totals at threshold: %+v", at)
	}

	below := Totalize([]PricedLine{{LineTotalExVat: 799}}, s)
	if below.DeliveryFeeExVat != 99 {
		t.Fatalf("expected delivery fee below threshold, got %d", below.DeliveryFeeExVat)
	}
	// VAT is charged on items and delivery together
	if below.SubtotalExVat != 898 || below.VatTotal != 225 || below.GrandTotal != 1123 {
		t.Fatalf("unexpected totals below threshold: %+v", below)
	}
}

func TestTotalizeThresholdUsesInclVatItems(t *testing.T) {
	s := DefaultSettings()
	// ex-VAT 900 is under 1000 but 900 + 135 VAT is not
	totals := Totalize([]PricedLine{{LineTotalExVat: 900}}, s)
	if totals.DeliveryFeeExVat != 0 {
		t.Fatalf("expected free delivery on incl-VAT items, got %d", totals.DeliveryFeeExVat)
	}
}

func TestTotalizeDeliveryMonotonic(t *testing.T) {
	s := DefaultSettings()
	freed := false
	for items := Money(1); items <= 2000; items++ {
		totals := Totalize([]PricedLine{{LineTotalExVat: items}}, s)
		switch totals.DeliveryFeeExVat {
		case 0:
			freed = true
		case 99:
			if freed {
				t.Fatalf("delivery fee returned at items=%d after becoming free", items)
			}
		default:
			t.Fatalf("unexpected delivery fee %d", totals.DeliveryFeeExVat)
		}
	}
	if !freed {
		t.Fatal("expected delivery to become free within range")
	}
}

func TestTotalizeVatComputedOnce(t *testing.T) {
	s := DefaultSettings()
	for items := Money(0); items <= 1500; items += 37 {
		totals := Totalize([]PricedLine{{LineTotalExVat: items}}, s)
		if totals.GrandTotal-totals.SubtotalExVat != totals.VatTotal {
			t.Fatalf("grand total does not decompose at items=%d: %+v", items, totals)
		}
		if want := RoundMoney(float64(totals.SubtotalExVat) * s.VatRate); totals.VatTotal != want {
			t.Fatalf("vat %d, want %d at items=%d", totals.VatTotal, want, items)
		}
	}
}

func TestTotalizePreMarginRoundsPerLine(t *testing.T) {
	lines := []PricedLine{
		{LineTotalExVat: 10, BundleCostExVat: 1.4},
		{LineTotalExVat: 10, BundleCostExVat: 1.4},
		{IsOutOfStock: true, BundleCostExVat: 0},
	}
	totals := Totalize(lines, DefaultSettings())
	// 1 + 1, not round(2.8)
	if totals.PreMarginBasketTotal != 2 {
		t.Fatalf("expected per-line rounded pre-margin total 2, got %d", totals.PreMarginBasketTotal)
	}
}

func TestComputeBrandedBasket(t *testing.T) {
	lines := []Line{
		{ProductPriceExVat: 50, QuantityAvailable: 10, QuantityRequested: 4, BrandingCharges: []BrandingCharge{{UnitPriceExVat: 10, SetupFeeExVat: 80}}},
		{ProductPriceExVat: 200, QuantityAvailable: 0, QuantityRequested: 5},
	}
	priced, totals := Compute(lines, DefaultSettings())
	if priced[0].LineTotalExVat != 427 || !priced[1].IsOutOfStock {
		t.Fatalf("unexpected priced lines: %+v", priced)
	}
	// 427 + 64 VAT < 1000, so delivery applies: 526 ex VAT, 79 VAT
	want := Totals{
		ItemsSubtotalExVat:   427,
		DeliveryFeeExVat:     99,
		SubtotalExVat:        526,
		VatTotal:             79,
		GrandTotal:           605,
		PreMarginBasketTotal: 320,
	}
	if totals != want {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestComputeHugeLineDegradesToZero(t *testing.T) {
	priced, totals := Compute([]Line{{ProductPriceExVat: 1e17, QuantityAvailable: 1000, QuantityRequested: 1000}}, DefaultSettings())
	if priced[0].LineTotalExVat != 0 || priced[0].UnitPriceExVat != 0 {
		t.Fatalf("expected zero-priced line, got %+v", priced[0])
	}
	if totals != (Totals{}) {
		t.Fatalf("expected all-zero totals, got %+v", totals)
	}
}

func TestTotalizeSumBeyondMaxMoneyDegradesToZero(t *testing.T) {
	lines := []PricedLine{
		{CappedQuantity: 1, LineTotalExVat: MaxMoney - 10, UnitPriceExVat: MaxMoney - 10},
		{CappedQuantity: 1, LineTotalExVat: 100, UnitPriceExVat: 100},
	}
	if totals := Totalize(lines, DefaultSettings()); totals != (Totals{}) {
		t.Fatalf("expected all-zero totals on overflow, got %+v", totals)
	}
}
