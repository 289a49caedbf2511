package migration

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Normalize narrows a driver value to nil, string, int64, float64, bool or
// time.Time. Anything else is rendered as text.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil, string, int64, float64, bool, time.Time:
		return x
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
		return strconv.FormatUint(x, 10)
	case float32:
		return float64(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func AsString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}

// AsInt converts integers, integral floats and numeric text.
func AsInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int16:
		return int64(x), true
	case int8:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), x <= math.MaxInt64
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int64(x), true
	case float32:
		return AsInt(float64(x))
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case decimal.Decimal:
		if !x.IsInteger() {
			return 0, false
		}
		return x.IntPart(), true
	case string, []byte:
		s := strings.TrimSpace(AsString(x))
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if d, err := decimal.NewFromString(s); err == nil && d.IsInteger() {
			return d.IntPart(), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// AsDecimal converts numbers and numeric text. Floats go through their
// shortest decimal representation.
func AsDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case decimal.NullDecimal:
		return x.Decimal, x.Valid
	case float64:
		return decimal.NewFromFloat(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case string, []byte:
		d, err := decimal.NewFromString(strings.TrimSpace(AsString(x)))
		return d, err == nil
	default:
		if n, ok := AsInt(v); ok {
			return decimal.NewFromInt(n), true
		}
		return decimal.Zero, false
	}
}

// DecimalOrZero is AsDecimal with NULL and garbage read as zero.
func DecimalOrZero(v any) decimal.Decimal {
	d, _ := AsDecimal(v)
	return d
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func AsTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, !x.IsZero()
	case string, []byte:
		s := strings.TrimSpace(AsString(x))
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// Truthy reads a value the way the legacy rules test presence: nil, zero,
// false and blank text are all false.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return strings.TrimSpace(x) != ""
	case []byte:
		return strings.TrimSpace(string(x)) != ""
	case time.Time:
		return !x.IsZero()
	case decimal.Decimal:
		return !x.IsZero()
	default:
		if n, ok := AsInt(v); ok {
			return n != 0
		}
		if f, ok := v.(float64); ok {
			return f != 0
		}
		return true
	}
}

// JoinParts joins the non-blank parts with ", ". It returns nil when every
// part is blank.
func JoinParts(parts ...any) any {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(AsString(p))
		if s != "" {
			out = append(out, AsString(p))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return strings.Join(out, ", ")
}
