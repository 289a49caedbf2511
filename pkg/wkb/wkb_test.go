package wkb

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"strings"
	"testing"
)

func blob(lat, lon float64, extra int) []byte {
	b := append([]byte{}, header...)
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(lat))
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(lon))
	for i := 0; i < extra; i++ {
		b = binary.LittleEndian.AppendUint64(b, 0)
	}
	return b
}

func TestDecode_Binary(t *testing.T) {
	p, err := Decode(blob(30.0444, 31.2357, 0))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Lat != 30.0444 || p.Lon != 31.2357 {
		t.Fatalf("got %+v", p)
	}
	if !p.InRange() {
		t.Fatalf("expected in range: %+v", p)
	}
}

func TestDecode_HexWithPrefix(t *testing.T) {
	s := "0x" + strings.ToUpper(hex.EncodeToString(blob(26.5, 29.75, 2)))
	p, err := Decode(s)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Lat != 26.5 || p.Lon != 29.75 {
		t.Fatalf("got %+v", p)
	}
}

func TestDecode_HexAsBytes(t *testing.T) {
	s := hex.EncodeToString(blob(1, 2, 2))
	p, err := Decode([]byte(s))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Lat != 1 || p.Lon != 2 {
		t.Fatalf("got %+v", p)
	}
}

func TestDecode_Failures(t *testing.T) {
	standard := append([]byte{0xE6, 0x10, 0x00, 0x00, 0x01, 0x0C}, make([]byte, 16)...)
	tests := []struct {
		name string
		in   any
		want error
	}{
		{"standard point header rejected", standard, ErrUnsupportedHeader},
		{"hex header rejected", "E6100000010C" + strings.Repeat("0", 64), ErrUnsupportedHeader},
		{"hex too short", hex.EncodeToString(blob(1, 2, 0)), ErrTooShort},
		{"binary too short", header, ErrTooShort},
		{"bad hex digits", headerHex + strings.Repeat("Z", 64), ErrInvalidHex},
		{"wrong type", 42, ErrUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPoint_InRange(t *testing.T) {
	if (Point{Lat: 91, Lon: 0}).InRange() {
		t.Fatalf("latitude 91 should be out of range")
	}
	if (Point{Lat: 0, Lon: -181}).InRange() {
		t.Fatalf("longitude -181 should be out of range")
	}
}
