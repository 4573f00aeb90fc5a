package quote

import (
	"fmt"
	"strings"
)

// logoKeys are tried in order; scalar fields come before array fields.
var logoKeys = []string{
	"logo_file", "logoFile", "logo_url", "logo", "artwork",
	"logo_files", "logos", "logo_urls", "artwork_files",
}

// logoObjectKeys are read from an array element that is an object rather than a string.
var logoObjectKeys = []string{"url", "file", "name"}

// identityKeys build the loose identity used to match a basket line to a reference item.
var identityKeys = [][]string{
	{"stock_id"},
	{"stock_header_id"},
	{"item_code"},
	{"colour", "color"},
	{"size"},
}

// LogoResolver resolves artwork for branding charges against a list of reference items
// that may not line up with the basket in order or count.
type LogoResolver struct {
	refs   []map[string]any
	keys   []string
	global *string
}

// NewLogoResolver indexes the reference items once per request.
func NewLogoResolver(refs []map[string]any) *LogoResolver {
	r := &LogoResolver{refs: refs, keys: make([]string, len(refs))}
	for i, ref := range refs {
		r.keys[i] = identityKey(ref)
		if r.global == nil {
			r.global = ExtractLogo(ref)
		}
	}
	return r
}

// Resolve returns the logo for charge chargeIndex of line, trying in order: the charge's
// own fields, the line's default logo, then the first logo among all reference items.
func (r *LogoResolver) Resolve(line NormalizedLine, chargeIndex int) *string {
	if chargeIndex >= 0 && chargeIndex < len(line.Charges) {
		if logo := ExtractLogo(line.Charges[chargeIndex].Raw); logo != nil {
			return logo
		}
	}
	if logo := r.DefaultLogo(line); logo != nil {
		return logo
	}
	return r.global
}

// DefaultLogo resolves the line-level logo: the line's own fields, the reference item at
// the same position, then the first reference item with a matching identity key.
func (r *LogoResolver) DefaultLogo(line NormalizedLine) *string {
	if logo := ExtractLogo(line.Raw); logo != nil {
		return logo
	}
	if line.Index >= 0 && line.Index < len(r.refs) {
		if logo := ExtractLogo(r.refs[line.Index]); logo != nil {
			return logo
		}
	}
	key := identityKey(line.Raw)
	if key == "" {
		return nil
	}
	for i, ref := range r.refs {
		if r.keys[i] != key {
			continue
		}
		if logo := ExtractLogo(ref); logo != nil {
			return logo
		}
	}
	return nil
}

// ResolveLogo is a one-shot form of LogoResolver.Resolve.
func ResolveLogo(line NormalizedLine, chargeIndex int, refs []map[string]any) *string {
	return NewLogoResolver(refs).Resolve(line, chargeIndex)
}

// ExtractLogo reads a usable logo reference from one record in any known upstream shape.
func ExtractLogo(rec map[string]any) *string {
	if rec == nil {
		return nil
	}
	for _, k := range logoKeys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		if logo := logoFromValue(v); logo != nil {
			return logo
		}
	}
	return nil
}

func logoFromValue(v any) *string {
	switch t := v.(type) {
	case string:
		return CleanString(t)
	case []any:
		if len(t) == 0 {
			return nil
		}
		return logoFromElement(t[0])
	case []string:
		if len(t) == 0 {
			return nil
		}
		return CleanString(t[0])
	default:
		return nil
	}
}

func logoFromElement(v any) *string {
	switch t := v.(type) {
	case string:
		return CleanString(t)
	case map[string]any:
		for _, k := range logoObjectKeys {
			if logo := CleanString(t[k]); logo != nil {
				return logo
			}
		}
	}
	return nil
}

// identityKey joins the identity fields of rec, lowercased. It is empty when no field
// carries a value, so records without identity never match each other.
func identityKey(rec map[string]any) string {
	parts := make([]string, len(identityKeys))
	found := false
	for i, keys := range identityKeys {
		v := Clean(firstPresent(rec, keys))
		if v == nil {
			continue
		}
		parts[i] = strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
		if parts[i] != "" {
			found = true
		}
	}
	if !found {
		return ""
	}
	return strings.Join(parts, "|")
}
