package transform

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestGovernorate(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"born abroad", "29001018800011", int64(1)},
		{"cairo", "29001010100011", int64(1)},
		{"code 05", "29001010500011", int64(5)},
		{"float id", float64(29001010500011), int64(5)},
		{"bytes", []byte("29001012100011"), int64(21)},
		{"padded", " 29001010500011 ", int64(5)},
		{"short", "2900101050001", nil},
		{"long", "290010105000111", nil},
		{"non numeric code", "2900101AB00011", nil},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Governorate(tt.in); got != tt.want {
				t.Fatalf("Governorate(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFlatToDeclining(t *testing.T) {
	tests := []struct {
		flat string
		n    int64
		want string
	}{
		{"12", 12, "22.1538"},
		{"10", 6, "17.1429"},
		{"1.5", 1, "1.5"},
		{"0", 12, "0"},
		{"12", 0, "0"},
	}
	for _, tt := range tests {
		got := FlatToDeclining(decimal.RequireFromString(tt.flat), tt.n)
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Fatalf("FlatToDeclining(%s, %d) = %s, want %s", tt.flat, tt.n, got, tt.want)
		}
	}
}

func TestProcessingStrategy(t *testing.T) {
	cases := map[any]int64{int64(2): 24, "2": 24, float64(2): 24, int64(1): 23, nil: 23, "x": 23}
	for in, want := range cases {
		if got := processingStrategy(in); got != want {
			t.Fatalf("processingStrategy(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestOrDefault(t *testing.T) {
	if got := orDefault(nil, 6); got != int64(6) {
		t.Fatalf("nil: got %v", got)
	}
	if got := orDefault(int64(0), 6); got != int64(6) {
		t.Fatalf("zero: got %v", got)
	}
	if got := orDefault(int64(2), 6); got != int64(2) {
		t.Fatalf("set: got %v", got)
	}
}
