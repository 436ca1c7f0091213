package tplengine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Filter is a pure function of (value, args...) -> (value, error), matching
// the contract every built-in and user-registered filter must satisfy.
type Filter func(value any, args ...string) (any, error)

var builtinFilters = map[string]Filter{
	"abs":      filterAbs,
	"str":      filterStr,
	"int":      filterInt,
	"upper":    filterUpper,
	"lower":    filterLower,
	"title":    filterTitle,
	"fmt":      filterFmt,
	"coalesce": filterCoalesce,
	"getitem":  filterGetItem,
	"getindex": filterGetIndex,
}

func filterAbs(value any, _ ...string) (any, error) {
	d, err := toDecimal(value)
	if err != nil {
		return nil, err
	}
	return decimalToNative(d.Abs()), nil
}

func filterStr(value any, _ ...string) (any, error) {
	return ToDisplayString(value), nil
}

func filterInt(value any, _ ...string) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case decimal.Decimal:
		return int(v.IntPart()), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to int", v)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to int", value)
	}
}

func filterUpper(value any, _ ...string) (any, error) {
	return strings.ToUpper(ToDisplayString(value)), nil
}

func filterLower(value any, _ ...string) (any, error) {
	return strings.ToLower(ToDisplayString(value)), nil
}

func filterTitle(value any, _ ...string) (any, error) {
	return strings.Title(strings.ToLower(ToDisplayString(value))), nil //nolint:staticcheck
}

// filterFmt applies a fmt.Sprintf-style pattern (arg 0) to value.
func filterFmt(value any, args ...string) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("fmt filter requires exactly one pattern argument")
	}
	return fmt.Sprintf(args[0], value), nil
}

// filterCoalesce returns value unless it is nil, in which case the first
// argument (as a string) is returned instead.
func filterCoalesce(value any, args ...string) (any, error) {
	if value != nil {
		return value, nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("coalesce filter requires a default argument")
	}
	return args[0], nil
}

// filterGetItem indexes into a map by key (arg 0), with an optional default
// (arg 1) when the key is absent.
func filterGetItem(value any, args ...string) (any, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("getitem filter requires a key argument")
	}
	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("getitem filter requires a map value, got %T", value)
	}
	v, ok := m[args[0]]
	if !ok {
		if len(args) > 1 {
			return args[1], nil
		}
		return nil, fmt.Errorf("key %q not found", args[0])
	}
	return v, nil
}

// filterGetIndex indexes into a slice by integer position (arg 0).
func filterGetIndex(value any, args ...string) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("getindex filter requires exactly one index argument")
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("getindex argument %q is not an integer", args[0])
	}
	s, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("getindex filter requires a list value, got %T", value)
	}
	if idx < 0 || idx >= len(s) {
		return nil, fmt.Errorf("index %d out of range (len %d)", idx, len(s))
	}
	return s[idx], nil
}

func toDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("cannot convert %q to a number", v)
		}
		return d, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("cannot convert %T to a number", value)
	}
}

func decimalToNative(d decimal.Decimal) any {
	if d.IsInteger() {
		return d.IntPart()
	}
	f, _ := d.Float64()
	return f
}

// preserveNumeric converts a numeric-looking string into a decimal.Decimal
// so that downstream filters and rendering preserve exact precision instead
// of round-tripping through float64.
func preserveNumeric(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return value
	}
	return d
}

// ToDisplayString renders any resolved value for embedded-placeholder
// string concatenation.
func ToDisplayString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case decimal.Decimal:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
