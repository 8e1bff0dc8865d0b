package extract

import (
	"strconv"
	"strings"
	"time"

	"dex/internal/catalog"
)

// defaultDateLayouts are tried in order when a date field's catalog entry
// does not pin a layout.
var defaultDateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"01/02/2006",
	"02.01.2006",
}

// coerce converts an extracted value toward the field's semantic type.
// Coercion is best-effort: a value that cannot be converted is passed
// through unchanged so it still reaches validation/loading, where the
// backend reports a precise error instead of the data silently vanishing.
func coerce(v any, def catalog.FieldDef) any {
	if v == nil {
		return nil
	}
	switch def.Type {
	case catalog.TypeNumber:
		return coerceNumber(v)
	case catalog.TypeBoolean:
		return coerceBool(v)
	case catalog.TypeDate:
		return coerceDate(v, def.Layout)
	}
	return v
}

func coerceNumber(v any) any {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
		if s == "" {
			return nil
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return v
	case float64:
		// Promote whole floats from JSON to int64 so integer columns load
		// without backend-side casts.
		if t == float64(int64(t)) {
			return int64(t)
		}
		return t
	}
	return v
}

func coerceBool(v any) any {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1":
			return true
		case "false", "no", "n", "0":
			return false
		case "":
			return nil
		}
	}
	return v
}

func coerceDate(v any, layout string) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	layouts := defaultDateLayouts
	if layout != "" {
		layouts = []string{layout}
	}
	for _, l := range layouts {
		if ts, err := time.Parse(l, s); err == nil {
			return ts
		}
	}
	return v
}
