package migration

import (
	"errors"
	"testing"
	"time"

	"mohassil-migrator/internal/domain/mapping"

	"github.com/shopspring/decimal"
)

func TestNormalize(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		in   any
		want any
	}{
		{nil, nil},
		{"x", "x"},
		{[]byte("abc"), "abc"},
		{int32(7), int64(7)},
		{uint8(3), int64(3)},
		{float32(1.5), float64(1.5)},
		{true, true},
		{at, at},
		{decimal.RequireFromString("12.50"), "12.5"},
		{struct{ A int }{1}, "{1}"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%#v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestAsInt(t *testing.T) {
	for in, want := range map[any]int64{"42": 42, " 7 ": 7, "3.0": 3, float64(9): 9, int64(-1): -1, true: 1} {
		got, ok := AsInt(in)
		if !ok || got != want {
			t.Fatalf("AsInt(%#v) = %d, %v", in, got, ok)
		}
	}
	for _, in := range []any{nil, "abc", 1.5, "2.5"} {
		if _, ok := AsInt(in); ok {
			t.Fatalf("AsInt(%#v) should fail", in)
		}
	}
}

func TestAsDecimal(t *testing.T) {
	d, ok := AsDecimal([]byte("100.25"))
	if !ok || !d.Equal(decimal.RequireFromString("100.25")) {
		t.Fatalf("AsDecimal bytes: %s %v", d, ok)
	}
	d, ok = AsDecimal(0.1)
	if !ok || d.String() != "0.1" {
		t.Fatalf("AsDecimal float: %s", d)
	}
	if _, ok := AsDecimal(nil); ok {
		t.Fatalf("nil should not convert")
	}
	if !DecimalOrZero(nil).IsZero() {
		t.Fatalf("DecimalOrZero(nil) should be zero")
	}
}

func TestAsTime(t *testing.T) {
	got, ok := AsTime("2024-03-15 10:20:30")
	if !ok || got != time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC) {
		t.Fatalf("AsTime datetime: %v %v", got, ok)
	}
	got, ok = AsTime([]byte("2024-03-15"))
	if !ok || got.Day() != 15 {
		t.Fatalf("AsTime date: %v %v", got, ok)
	}
	if _, ok := AsTime("yesterday"); ok {
		t.Fatalf("garbage should not parse")
	}
	if _, ok := AsTime(time.Time{}); ok {
		t.Fatalf("zero time is not a time")
	}
}

func TestTruthy(t *testing.T) {
	for _, v := range []any{1, "x", true, 0.5, decimal.NewFromInt(1), time.Now()} {
		if !Truthy(v) {
			t.Fatalf("Truthy(%#v) should be true", v)
		}
	}
	for _, v := range []any{nil, 0, "", "  ", false, int64(0), 0.0, decimal.Zero} {
		if Truthy(v) {
			t.Fatalf("Truthy(%#v) should be false", v)
		}
	}
}

func TestJoinParts(t *testing.T) {
	if got := JoinParts("123 Main", "", "  "); got != "123 Main" {
		t.Fatalf("got %#v", got)
	}
	if got := JoinParts("a", nil, []byte("b")); got != "a, b" {
		t.Fatalf("got %#v", got)
	}
	if got := JoinParts("", nil, " "); got != nil {
		t.Fatalf("all blank should be nil, got %#v", got)
	}
}

func TestBuildRows(t *testing.T) {
	cols := []mapping.Column{{Source: "client_key", Target: "external_id"}, {Source: "name", Target: "name"}, {Source: "gender", Target: "gender"}}
	row, src := BuildRows(cols, []any{[]byte("C-1"), "Ali"})
	if row["external_id"] != "C-1" || row["name"] != "Ali" || row["gender"] != nil {
		t.Fatalf("row: %#v", row)
	}
	if _, isBytes := src["client_key"].([]byte); !isBytes {
		t.Fatalf("source row should keep raw driver value: %#v", src)
	}
	if _, ok := src["gender"]; !ok {
		t.Fatalf("short input should still key every source column")
	}
}

func TestBuildRows_SourceOnlyColumn(t *testing.T) {
	cols := []mapping.Column{{Source: "trans_key", Target: "external_id"}, {Source: "trans_act", Target: ""}}
	row, src := BuildRows(cols, []any{"T-1", int64(99)})
	if _, ok := row[""]; ok || len(row) != 1 {
		t.Fatalf("source-only column leaked into the row: %#v", row)
	}
	if src["trans_act"] != int64(99) {
		t.Fatalf("source row: %#v", src)
	}
}

func TestResult(t *testing.T) {
	r := NewResult("run", "transactions", time.Now())
	r.AddSkip("unmapped type 99")
	r.AddSkip("unmapped type 99")
	r.AddError(4, errors.New("boom"))
	if r.Skipped != 2 || r.SkippedByReason["unmapped type 99"] != 2 || r.Failed != 1 {
		t.Fatalf("counts: %+v", r)
	}
	var re *RowError
	if !errors.As(r.Err(), &re) || re.Index != 4 {
		t.Fatalf("want RowError, got %v", r.Err())
	}
	if NewResult("r", "x", time.Now()).Err() != nil {
		t.Fatalf("empty result should have nil Err")
	}
}
