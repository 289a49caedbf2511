// Package wkb decodes the point blobs stored by the legacy geography columns.
//
// Only one layout is understood: a 6-byte header E6 10 00 00 01 0F followed by
// little-endian float64 latitude at offset 6 and longitude at offset 14. Hex
// input must carry the full four-double payload (76 hex characters).
package wkb

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrUnsupportedHeader = errors.New("wkb: unsupported header")
	ErrTooShort          = errors.New("wkb: payload too short")
	ErrInvalidHex        = errors.New("wkb: invalid hex")
	ErrUnsupportedType   = errors.New("wkb: input must be string or bytes")
)

const (
	headerHex   = "E6100000010F"
	minHexChars = 76
	minBytes    = 22
	latOffset   = 6
	lonOffset   = 14
)

var header = []byte{0xE6, 0x10, 0x00, 0x00, 0x01, 0x0F}

type Point struct {
	Lat float64
	Lon float64
}

// InRange reports whether both coordinates fall inside the WGS84 bounds.
func (p Point) InRange() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Decode accepts raw bytes or a hex string (optionally 0x-prefixed).
func Decode(v any) (Point, error) {
	switch x := v.(type) {
	case string:
		return decodeHex(x)
	case []byte:
		if looksHex(x) {
			return decodeHex(string(x))
		}
		return decodeBinary(x)
	default:
		return Point{}, fmt.Errorf("%w: got %T", ErrUnsupportedType, v)
	}
}

func decodeHex(s string) (Point, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if !strings.HasPrefix(strings.ToUpper(s), headerHex) {
		return Point{}, ErrUnsupportedHeader
	}
	if len(s) < minHexChars {
		return Point{}, fmt.Errorf("%w: %d hex chars, need %d", ErrTooShort, len(s), minHexChars)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Point{}, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return decodeBinary(b)
}

func decodeBinary(b []byte) (Point, error) {
	if len(b) < minBytes {
		return Point{}, fmt.Errorf("%w: %d bytes, need %d", ErrTooShort, len(b), minBytes)
	}
	if !bytes.HasPrefix(b, header) {
		return Point{}, ErrUnsupportedHeader
	}
	return Point{
		Lat: math.Float64frombits(binary.LittleEndian.Uint64(b[latOffset : latOffset+8])),
		Lon: math.Float64frombits(binary.LittleEndian.Uint64(b[lonOffset : lonOffset+8])),
	}, nil
}

// looksHex reports whether a byte slice is textual hex rather than a binary blob.
func looksHex(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F', c == 'x', c == 'X':
		default:
			return false
		}
	}
	return true
}
