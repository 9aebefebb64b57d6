// ABOUTME: Alias table mapping CRM custom-field keys to canonical fields
// ABOUTME: lookupField is the only place custom fields are mined
package sync

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Canonical field names.
const (
	FieldAddress       = "address"
	FieldCity          = "city"
	FieldState         = "state"
	FieldPostalCode    = "postal_code"
	FieldCountry       = "country"
	FieldSource        = "source"
	FieldStatus        = "status"
	FieldAssignedTo    = "assigned_to"
	FieldBudget        = "budget"
	FieldHomeSize      = "home_size"
	FieldElectricBill  = "electric_bill"
	FieldSolarInterest = "solar_interest"
)

// fieldAliases lists, per canonical field, the custom-field keys to try in
// order. Keys are compared after normalizeFieldKey.
var fieldAliases = map[string][]string{
	FieldAddress:       {"address", "address1", "street_address", "street", "full_address", "property_address"},
	FieldCity:          {"city", "town"},
	FieldState:         {"state", "province", "region"},
	FieldPostalCode:    {"postal_code", "postalcode", "zip", "zip_code", "zipcode", "postcode"},
	FieldCountry:       {"country", "country_code"},
	FieldSource:        {"source", "lead_source", "leadsource", "utm_source"},
	FieldStatus:        {"status", "lead_status", "leadstatus"},
	FieldAssignedTo:    {"assigned_to", "assignedto", "assigned_user", "owner", "sales_rep"},
	FieldBudget:        {"budget", "project_budget", "budget_amount"},
	FieldHomeSize:      {"home_size", "homesize", "square_footage", "square_feet", "sqft"},
	FieldElectricBill:  {"electric_bill", "electricbill", "monthly_electric_bill", "average_electric_bill", "avg_electric_bill"},
	FieldSolarInterest: {"solar_interest", "solarinterest", "interest_level"},
}

// Field defaults when neither the record nor its custom fields set a value.
const (
	DefaultSource     = "GHL"
	DefaultStatus     = "new"
	DefaultAssignedTo = ""
)

// normalizeFieldKey lower-cases k and folds spaces and hyphens into
// underscores, so "Home Size" and "home-size" both become "home_size".
func normalizeFieldKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(k)
}

// lookupField returns the first non-empty value among the aliases of
// canonical.
func lookupField(custom map[string]any, canonical string) (any, bool) {
	if len(custom) == 0 {
		return nil, false
	}

	// On a collision a key already in normalized form wins, then the
	// lowest key in byte order.
	normalized := make(map[string]any, len(custom))
	for _, k := range slices.Sorted(maps.Keys(custom)) {
		v := custom[k]
		if isEmptyValue(v) {
			continue
		}
		nk := normalizeFieldKey(k)
		if _, seen := normalized[nk]; !seen || k == nk {
			normalized[nk] = v
		}
	}

	for _, alias := range fieldAliases[canonical] {
		if v, ok := normalized[alias]; ok {
			return v, true
		}
	}
	return nil, false
}

func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	}
	return false
}

// lookupString returns the aliased value as trimmed text.
func lookupString(custom map[string]any, canonical string) string {
	v, ok := lookupField(custom, canonical)
	if !ok {
		return ""
	}
	return valueString(v)
}

func valueString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(x))
		for _, p := range x {
			if s := valueString(p); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// lookupNumber returns the aliased value as a decimal. Currency symbols,
// thousands separators and surrounding text such as "sq ft" are tolerated.
func lookupNumber(custom map[string]any, canonical string) (decimal.Decimal, bool) {
	v, ok := lookupField(custom, canonical)
	if !ok {
		return decimal.Zero, false
	}
	return parseNumber(v)
}

func parseNumber(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case string:
		return parseAmount(x)
	}
	return decimal.Zero, false
}

// parseAmount extracts the leading number from text like "$25,000" or
// "1,800 sq ft".
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if d, err := decimal.NewFromString(s); err == nil {
		return d, true
	}

	var b strings.Builder
	started := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
			started = true
		case r == '-' && !started:
			b.WriteRune(r)
		case r == ',' || r == '$' || r == ' ' && !started:
		default:
			if started {
				return finishAmount(b.String())
			}
		}
	}
	return finishAmount(b.String())
}

func finishAmount(s string) (decimal.Decimal, bool) {
	if s == "" || s == "-" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
