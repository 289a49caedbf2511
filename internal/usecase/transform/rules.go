package transform

import (
	"strconv"
	"strings"

	"mohassil-migrator/internal/domain/migration"

	"github.com/shopspring/decimal"
)

// outside-country code on national ids
const abroadCode = "88"

// Governorate reads the two-digit governorate code at positions 8 and 9 of a
// 14-digit national id. Code 88 (born abroad) maps to governorate 1. It
// returns nil for anything that is not a 14-character id with a numeric code.
func Governorate(nationalID any) any {
	s := nationalIDText(nationalID)
	if len(s) != 14 {
		return nil
	}
	code := s[7:9]
	if code == abroadCode {
		return int64(1)
	}
	n, err := strconv.ParseInt(code, 10, 64)
	if err != nil {
		return nil
	}
	return n
}

func nationalIDText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return strings.TrimSpace(migration.AsString(x))
	}
}

var two = decimal.NewFromInt(2)

// FlatToDeclining converts a flat rate (percent) over n periods to the
// equivalent declining-balance rate: 2·R·n / (n+1), rounded to 4 places.
// A zero flat rate converts to zero.
func FlatToDeclining(flat decimal.Decimal, n int64) decimal.Decimal {
	if flat.IsZero() || n <= 0 {
		return decimal.Zero
	}
	periods := decimal.NewFromInt(n)
	return two.Mul(flat).Mul(periods).Div(periods.Add(decimal.NewFromInt(1))).Round(4)
}

// orDefault returns v unless it is nil, zero or blank.
func orDefault(v any, d int64) any {
	if !migration.Truthy(v) {
		return d
	}
	return v
}

// intOr reads an integer column, falling back to d when missing or malformed.
func intOr(v any, d int64) int64 {
	if n, ok := migration.AsInt(v); ok {
		return n
	}
	return d
}

// codeIs compares a legacy numeric code regardless of the driver type.
func codeIs(v any, code int64) bool {
	n, ok := migration.AsInt(v)
	return ok && n == code
}
