package quote

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/backend-quote/internal/pricing"
)

// Field alias tables. The first key present in a record wins.
var (
	priceKeys     = []string{"price", "unit_price"}
	availableKeys = []string{"qty_available", "quantity_available", "available_qty", "stock"}
	requestedKeys = []string{"requested_qty", "quantity", "qty"}
	brandingKeys  = []string{"branding", "brandings"}

	chargeTypeKeys     = []string{"branding_type", "type"}
	chargePositionKeys = []string{"branding_position", "position"}
	chargeSizeKeys     = []string{"branding_size", "size"}
	colourCountKeys    = []string{"colour_count", "color_count", "colours", "colors"}
	chargeUnitKeys     = []string{"unit_price", "price", "branding_price"}
	chargeSetupKeys    = []string{"setup_fee", "setup_price", "setup"}

	customerFields = []fieldAlias{
		{"name", []string{"name", "customer_name", "full_name"}},
		{"email", []string{"email", "customer_email"}},
		{"phone", []string{"phone", "phone_number", "whatsapp"}},
		{"company", []string{"company", "company_name"}},
		{"vat_number", []string{"vat_number", "vat_no"}},
	}
	addressFields = []fieldAlias{
		{"line1", []string{"line1", "address_line1", "street"}},
		{"line2", []string{"line2", "address_line2"}},
		{"suburb", []string{"suburb"}},
		{"city", []string{"city", "town"}},
		{"province", []string{"province", "state", "region"}},
		{"postal_code", []string{"postal_code", "postcode", "zip"}},
		{"country", []string{"country"}},
	}
)

// consumedLineKeys are not copied into the output item because they are replaced by
// computed fields.
var consumedLineKeys = keySet(priceKeys, availableKeys, requestedKeys, brandingKeys)

type fieldAlias struct {
	name string
	keys []string
}

// NormalizedLine is a basket line in canonical numeric shape plus its passthrough fields.
type NormalizedLine struct {
	// Index is the line's position in the basket.
	Index int
	Line  pricing.Line

	// Charges mirrors Line.BrandingCharges together with each raw charge record.
	Charges []NormalizedCharge
	Raw     map[string]any
	Extra   map[string]any
}

// NormalizedCharge keeps the raw branding record next to its numeric form so descriptive
// fields survive and the logo can be resolved from upstream shapes.
type NormalizedCharge struct {
	pricing.BrandingCharge
	Raw map[string]any
}

// Normalize coerces a raw basket line. It never fails: missing or unparsable values
// degrade to zero or nil. Branding is ignored in unbranded mode.
func Normalize(index int, raw map[string]any, mode Mode) NormalizedLine {
	out := NormalizedLine{
		Index: index,
		Line: pricing.Line{
			ProductPriceExVat: ToNum(firstPresent(raw, priceKeys)),
			QuantityAvailable: ToNum(firstPresent(raw, availableKeys)),
			QuantityRequested: ToNum(firstPresent(raw, requestedKeys)),
		},
		Raw:   raw,
		Extra: make(map[string]any, len(raw)),
	}
	for k, v := range raw {
		if _, consumed := consumedLineKeys[k]; !consumed {
			out.Extra[k] = v
		}
	}
	if mode == ModeUnbranded {
		out.Line.BrandingCharges = []pricing.BrandingCharge{}
		return out
	}

	records := toRecords(firstPresent(raw, brandingKeys))
	out.Charges = make([]NormalizedCharge, 0, len(records))
	out.Line.BrandingCharges = make([]pricing.BrandingCharge, 0, len(records))
	for _, rec := range records {
		c := NormalizedCharge{
			BrandingCharge: pricing.BrandingCharge{
				Type:           CleanString(firstPresent(rec, chargeTypeKeys)),
				Position:       CleanString(firstPresent(rec, chargePositionKeys)),
				Size:           CleanString(firstPresent(rec, chargeSizeKeys)),
				ColourCount:    ToNum(firstPresent(rec, colourCountKeys)),
				UnitPriceExVat: ToNum(firstPresent(rec, chargeUnitKeys)),
				SetupFeeExVat:  ToNum(firstPresent(rec, chargeSetupKeys)),
			},
			Raw: rec,
		}
		out.Charges = append(out.Charges, c)
		out.Line.BrandingCharges = append(out.Line.BrandingCharges, c.BrandingCharge)
	}
	return out
}

// NormalizeCustomer maps aliased customer fields to canonical names and cleans them.
// Unknown fields are kept.
func NormalizeCustomer(raw map[string]any) map[string]any {
	return normalizeRecord(raw, customerFields)
}

// NormalizeAddress maps aliased shipping address fields to canonical names and cleans them.
// Unknown fields are kept.
func NormalizeAddress(raw map[string]any) map[string]any {
	return normalizeRecord(raw, addressFields)
}

// normalizeRecord always emits every canonical field. Keys outside the alias table pass
// through cleaned; alias keys are folded into their canonical field.
func normalizeRecord(raw map[string]any, fields []fieldAlias) map[string]any {
	out := make(map[string]any, len(fields)+len(raw))
	aliases := make(map[string]struct{}, len(fields)*3)
	for _, f := range fields {
		for _, k := range f.keys {
			aliases[k] = struct{}{}
		}
	}
	for k, v := range raw {
		if _, ok := aliases[k]; !ok {
			out[k] = Clean(v)
		}
	}
	for _, f := range fields {
		out[f.name] = Clean(firstPresent(raw, f.keys))
	}
	return out
}

// ToNum coerces any JSON-ish value to a finite float64. nil, empty strings and anything
// unparsable become 0.
func ToNum(v any) float64 {
	var n float64
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int32:
		n = float64(t)
	case int64:
		n = float64(t)
	case json.Number:
		n = parseNumber(string(t))
	case string:
		n = parseNumber(t)
	case bool:
		if t {
			n = 1
		}
	case []any:
		if len(t) == 1 {
			return ToNum(t[0])
		}
		return 0
	default:
		return 0
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "0o") || strings.HasPrefix(lower, "0b") {
		n, err := strconv.ParseInt(lower, 0, 64)
		if err != nil {
			return 0
		}
		return float64(n)
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return n
}

// Clean returns nil for nil, blank, "null" and "undefined" values; anything else is
// returned unchanged.
func Clean(v any) any {
	if v == nil {
		return nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case map[string]any, []any:
		return v
	default:
		s = fmt.Sprint(t)
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || strings.EqualFold(trimmed, "null") || strings.EqualFold(trimmed, "undefined") {
		return nil
	}
	return v
}

// CleanString is Clean for values that must be strings.
func CleanString(v any) *string {
	s, ok := Clean(v).(string)
	if !ok {
		return nil
	}
	return &s
}

// firstPresent returns the value of the first key that exists with a non-null value.
func firstPresent(rec map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func toRecords(v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if rec, ok := item.(map[string]any); ok {
				out = append(out, rec)
			}
		}
		return out
	case []map[string]any:
		return t
	case map[string]any:
		return []map[string]any{t}
	default:
		return nil
	}
}

func keySet(groups ...[]string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, g := range groups {
		for _, k := range g {
			out[k] = struct{}{}
		}
	}
	return out
}
