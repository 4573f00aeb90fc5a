// Package quote builds customer quotations from loosely-typed basket payloads.
package quote

import (
	"encoding/json"
	"strings"

	"github.com/noah-isme/backend-quote/internal/pricing"
)

// Mode selects whether branding charges take part in pricing.
type Mode string

const (
	ModeBranded   Mode = "branded"
	ModeUnbranded Mode = "unbranded"
)

// ParseMode accepts "branded" or "unbranded" in any case. An empty value means branded.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeBranded):
		return ModeBranded, true
	case string(ModeUnbranded):
		return ModeUnbranded, true
	default:
		return "", false
	}
}

// Request is the raw quote input as received from upstream producers.
type Request struct {
	Mode            string `json:"mode,omitempty"`
	Items           []any  `json:"items"`
	ReferenceItems  []any  `json:"reference_items,omitempty"`
	Customer        any    `json:"customer,omitempty"`
	ShippingAddress any    `json:"shipping_address,omitempty"`
}

// Quote is the priced quotation handed to renderers and persistence.
type Quote struct {
	ID              string         `json:"quote_id,omitempty"`
	CreatedAt       string         `json:"created_at,omitempty"`
	Mode            Mode           `json:"mode"`
	Currency        string         `json:"currency,omitempty"`
	Customer        map[string]any `json:"customer"`
	ShippingAddress map[string]any `json:"shipping_address"`
	Items           []Item         `json:"items"`
	MarginRate      float64        `json:"margin_rate"`
	MarkupRate      float64        `json:"markup_rate"`
	VatRate         float64        `json:"vat_rate"`
	DeliveryFee     pricing.Money  `json:"delivery_fee"`
	Totals          Totals         `json:"totals"`
}

// Totals is the wire form of pricing.Totals.
type Totals struct {
	ItemsSubtotal pricing.Money `json:"items_subtotal"`
	Subtotal      pricing.Money `json:"subtotal"`
	Vat           pricing.Money `json:"vat"`
	GrandTotal    pricing.Money `json:"grand_total"`
	BaseSubtotal  pricing.Money `json:"base_subtotal"`
}

// Item is one priced basket line. Fields holds the descriptive passthrough fields of
// the original line; computed fields take precedence when serialised.
type Item struct {
	Fields       map[string]any
	BasePrice    pricing.Money
	Qty          float64
	QtyRequested float64
	QtyAvailable float64
	OutOfStock   bool
	LineTotal    pricing.Money
	UnitPrice    pricing.Money
	Branding     []Branding
}

// MarshalJSON merges passthrough and computed fields into one object.
func (it Item) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(it.Fields)+9)
	for k, v := range it.Fields {
		out[k] = v
	}
	branding := it.Branding
	if branding == nil {
		branding = []Branding{}
	}
	out["base_price"] = it.BasePrice
	out["qty"] = it.Qty
	out["qty_requested"] = it.QtyRequested
	out["qty_available"] = it.QtyAvailable
	out["out_of_stock"] = it.OutOfStock
	out["line_total"] = it.LineTotal
	out["unit_price"] = it.UnitPrice
	out["branding"] = branding
	return json.Marshal(out)
}

// Branding is one branding charge as it appears on a quote.
type Branding struct {
	Fields      map[string]any
	Type        *string
	Position    *string
	Size        *string
	ColourCount float64
	UnitPrice   float64
	SetupFee    float64
	LogoFile    *string
}

// MarshalJSON merges the raw charge record with its normalised fields.
func (b Branding) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(b.Fields)+7)
	for k, v := range b.Fields {
		out[k] = v
	}
	out["branding_type"] = b.Type
	out["branding_position"] = b.Position
	out["branding_size"] = b.Size
	out["colour_count"] = b.ColourCount
	out["unit_price"] = b.UnitPrice
	out["setup_fee"] = b.SetupFee
	out["logo_file"] = b.LogoFile
	return json.Marshal(out)
}

// Engine prices quote requests with fixed settings. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	Settings pricing.Settings
}

// Build normalises, resolves logos, prices and totals req. Basket order is preserved.
func (e Engine) Build(req Request, mode Mode) Quote {
	refs := make([]map[string]any, len(req.ReferenceItems))
	for i, ref := range req.ReferenceItems {
		refs[i] = asRecord(ref)
	}
	resolver := NewLogoResolver(refs)

	normalized := make([]NormalizedLine, len(req.Items))
	lines := make([]pricing.Line, len(req.Items))
	for i, raw := range req.Items {
		normalized[i] = Normalize(i, asRecord(raw), mode)
		lines[i] = normalized[i].Line
	}

	priced, totals := pricing.Compute(lines, e.Settings)

	items := make([]Item, len(normalized))
	for i, nl := range normalized {
		p := priced[i]
		item := Item{
			Fields:       nl.Extra,
			BasePrice:    p.BasePriceRounded,
			Qty:          p.CappedQuantity,
			QtyRequested: nl.Line.QuantityRequested,
			QtyAvailable: nl.Line.QuantityAvailable,
			OutOfStock:   p.IsOutOfStock,
			LineTotal:    p.LineTotalExVat,
			UnitPrice:    p.UnitPriceExVat,
			Branding:     make([]Branding, len(nl.Charges)),
		}
		for j, c := range nl.Charges {
			item.Branding[j] = Branding{
				Fields:      c.Raw,
				Type:        c.Type,
				Position:    c.Position,
				Size:        c.Size,
				ColourCount: c.ColourCount,
				UnitPrice:   c.UnitPriceExVat,
				SetupFee:    c.SetupFeeExVat,
				LogoFile:    resolver.Resolve(nl, j),
			}
		}
		items[i] = item
	}

	return Quote{
		Mode:            mode,
		Customer:        NormalizeCustomer(asRecord(req.Customer)),
		ShippingAddress: NormalizeAddress(asRecord(req.ShippingAddress)),
		Items:           items,
		MarginRate:      e.Settings.MarginRate,
		MarkupRate:      pricing.MarkupRate(e.Settings.MarginRate),
		VatRate:         e.Settings.VatRate,
		DeliveryFee:     totals.DeliveryFeeExVat,
		Totals: Totals{
			ItemsSubtotal: totals.ItemsSubtotalExVat,
			Subtotal:      totals.SubtotalExVat,
			Vat:           totals.VatTotal,
			GrandTotal:    totals.GrandTotal,
			BaseSubtotal:  totals.PreMarginBasketTotal,
		},
	}
}

// OutOfStockCount reports how many items could not be charged.
func (q Quote) OutOfStockCount() int {
	n := 0
	for _, it := range q.Items {
		if it.OutOfStock {
			n++
		}
	}
	return n
}

func asRecord(v any) map[string]any {
	if rec, ok := v.(map[string]any); ok && rec != nil {
		return rec
	}
	return map[string]any{}
}
