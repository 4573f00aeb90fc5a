package quote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-quote/internal/pricing"
)

func defaultEngine() Engine {
	return Engine{Settings: pricing.DefaultSettings()}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeBranded, "Branded": ModeBranded, " unbranded ": ModeUnbranded} {
		got, ok := ParseMode(in)
		require.True(t, ok, in)
		require.Equal(t, want, got, in)
	}
	_, ok := ParseMode("embroidered")
	require.False(t, ok)
}

func TestBuildSingleUnbrandedLine(t *testing.T) {
	q := defaultEngine().Build(Request{Items: []any{
		map[string]any{"name": "Mug", "price": 100.0, "qty_available": 10.0, "qty": 3.0},
	}}, ModeBranded)

	require.Len(t, q.Items, 1)
	item := q.Items[0]
	require.Equal(t, pricing.Money(100), item.BasePrice)
	require.Equal(t, 3.0, item.Qty)
	require.Equal(t, pricing.Money(400), item.LineTotal)
	require.Equal(t, pricing.Money(133), item.UnitPrice)
	require.False(t, item.OutOfStock)

	require.Equal(t, Totals{ItemsSubtotal: 400, Subtotal: 499, Vat: 75, GrandTotal: 574, BaseSubtotal: 300}, q.Totals)
	require.Equal(t, pricing.Money(99), q.DeliveryFee)
	require.InDelta(t, 1.0/3.0, q.MarkupRate, 1e-12)
}

func TestBuildBrandedVersusUnbranded(t *testing.T) {
	req := Request{Items: []any{map[string]any{
		"price":         50.0,
		"qty_available": 10.0,
		"qty":           4.0,
		"branding":      []any{map[string]any{"unit_price": 10.0, "setup_fee": 80.0, "logo": "brand.png"}},
	}}}

	b := defaultEngine().Build(req, ModeBranded)
	require.Equal(t, pricing.Money(427), b.Items[0].LineTotal)
	require.Equal(t, pricing.Money(107), b.Items[0].UnitPrice)
	require.Equal(t, Totals{ItemsSubtotal: 427, Subtotal: 526, Vat: 79, GrandTotal: 605, BaseSubtotal: 320}, b.Totals)
	require.Len(t, b.Items[0].Branding, 1)
	require.Equal(t, "brand.png", *b.Items[0].Branding[0].LogoFile)

	u := defaultEngine().Build(req, ModeUnbranded)
	require.Equal(t, ModeUnbranded, u.Mode)
	require.Equal(t, pricing.Money(267), u.Items[0].LineTotal)
	require.Empty(t, u.Items[0].Branding)
}

func TestBuildOutOfStockAndNonObjectLines(t *testing.T) {
	q := defaultEngine().Build(Request{Items: []any{
		map[string]any{"name": "gone", "price": 100.0, "qty_available": 0.0, "qty": 5.0},
		"not an object",
		map[string]any{"name": "ok", "price": 10.0, "qty_available": 2.0, "qty": 5.0},
	}}, ModeBranded)

	require.Len(t, q.Items, 3)
	require.True(t, q.Items[0].OutOfStock)
	require.Equal(t, pricing.Money(0), q.Items[0].LineTotal)
	require.Equal(t, pricing.Money(100), q.Items[0].BasePrice)
	require.True(t, q.Items[1].OutOfStock)
	require.Equal(t, "ok", q.Items[2].Fields["name"])
	require.Equal(t, 2.0, q.Items[2].Qty)
	require.Equal(t, 5.0, q.Items[2].QtyRequested)
	require.Equal(t, 2, q.OutOfStockCount())
}

func TestBuildEmptyBasket(t *testing.T) {
	q := defaultEngine().Build(Request{}, ModeBranded)
	require.Empty(t, q.Items)
	require.Equal(t, Totals{}, q.Totals)
	require.Equal(t, pricing.Money(0), q.DeliveryFee)
	require.NotNil(t, q.Customer)
	require.NotNil(t, q.ShippingAddress)
}

func TestQuoteJSONShape(t *testing.T) {
	q := defaultEngine().Build(Request{
		Items: []any{map[string]any{
			"name":       "Cap",
			"sku":        "CAP-1",
			"line_total": 9999.0,
			"price":      50.0,
			"stock":      10.0,
			"qty":        4.0,
			"branding":   map[string]any{"type": "Embroidery", "unit_price": 10.0, "setup_fee": 80.0, "note": "left chest"},
		}},
		ReferenceItems: []any{map[string]any{"logo_url": "https://cdn.example/logo.png"}},
		Customer:       map[string]any{"full_name": "Sipho"},
	}, ModeBranded)

	raw, err := json.Marshal(q)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, "branded", out["mode"])
	require.Equal(t, 0.25, out["margin_rate"])
	require.Equal(t, 99.0, out["delivery_fee"])
	require.Equal(t, "Sipho", out["customer"].(map[string]any)["name"])

	item := out["items"].([]any)[0].(map[string]any)
	require.Equal(t, "CAP-1", item["sku"])
	require.Equal(t, 427.0, item["line_total"], "computed fields override passthrough")
	require.Equal(t, 4.0, item["qty"])
	require.Equal(t, false, item["out_of_stock"])
	require.NotContains(t, item, "price")
	require.NotContains(t, item, "stock")

	charge := item["branding"].([]any)[0].(map[string]any)
	require.Equal(t, "Embroidery", charge["branding_type"])
	require.Equal(t, "left chest", charge["note"])
	require.Nil(t, charge["branding_position"])
	require.Equal(t, "https://cdn.example/logo.png", charge["logo_file"])

	totals := out["totals"].(map[string]any)
	require.Equal(t, 605.0, totals["grand_total"])
	require.Equal(t, 320.0, totals["base_subtotal"])
}

func TestBuildPreservesOrderAndIsDeterministic(t *testing.T) {
	req := Request{Items: []any{
		map[string]any{"name": "a", "price": 10.0, "qty_available": 5.0, "qty": 1.0},
		map[string]any{"name": "b", "price": 20.0, "qty_available": 5.0, "qty": 2.0},
		map[string]any{"name": "c", "price": 30.0, "qty_available": 5.0, "qty": 3.0},
	}}
	first := defaultEngine().Build(req, ModeBranded)
	second := defaultEngine().Build(req, ModeBranded)
	require.Equal(t, first, second)
	for i, name := range []string{"a", "b", "c"} {
		require.Equal(t, name, first.Items[i].Fields["name"])
	}
}
