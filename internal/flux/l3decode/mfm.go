package l3decode

import (
	"fmt"

	"github.com/banshee-data/flux.recovery/internal/flux"
)

// IBM address marks.
const (
	MarkIDAM       byte = 0xFE
	MarkDAM        byte = 0xFB
	MarkDeletedDAM byte = 0xF8

	// MFMSyncA1 is 0xA1 with the clock between bits 4 and 5 suppressed.
	MFMSyncA1 uint16 = 0x4489
	// MFMSyncC2 is the index-mark sync, 0xC2 with a missing clock.
	MFMSyncC2 uint16 = 0x5224

	// FM marks are data bytes written with clock 0xC7.
	FMClockMark uint8  = 0xC7
	FMIDAM      uint16 = 0xF57E
	FMDAM       uint16 = 0xF56F
	FMDeleted   uint16 = 0xF56A
)

// MFMEncode encodes data as 16 cells per byte. A clock cell is set only
// between two zero data bits; prev is the data bit preceding data[0].
func MFMEncode(data []byte, prev uint8) []uint8 {
	out := make([]uint8, 0, len(data)*16)
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			d := (b >> uint(i)) & 1
			var c uint8
			if d == 0 && prev == 0 {
				c = 1
			}
			out = append(out, c, d)
			prev = d
		}
	}
	return out
}

// MFMDecode strips clock cells from a whole number of encoded bytes.
func MFMDecode(bits []uint8) ([]byte, error) {
	if len(bits)%16 != 0 {
		return nil, flux.InvalidArgf("MFM cell count %d is not a multiple of 16", len(bits))
	}
	return DecodeCells(bits, 0, len(bits)/16)
}

// FMEncode encodes data with every clock cell set.
func FMEncode(data []byte) []uint8 {
	out := make([]uint8, 0, len(data)*16)
	for _, b := range data {
		out = append(out, FMEncodeMark(b, 0xFF)...)
	}
	return out
}

// FMEncodeMark interleaves an explicit clock byte with data, as address
// marks do.
func FMEncodeMark(data, clock byte) []uint8 {
	out := make([]uint8, 0, 16)
	for i := 7; i >= 0; i-- {
		out = append(out, (clock>>uint(i))&1, (data>>uint(i))&1)
	}
	return out
}

// DecodeCells reads n bytes from clock/data cell pairs starting at start.
// MFM and FM share the layout; only the clock rule differs.
func DecodeCells(bits []uint8, start, n int) ([]byte, error) {
	if start < 0 || start+n*16 > len(bits) {
		return nil, fmt.Errorf("need %d cells at %d, stream has %d: %w", n*16, start, len(bits), flux.ErrBoundsExceeded)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		var b byte
		base := start + i*16
		for j := 0; j < 8; j++ {
			b = b<<1 | bits[base+2*j+1]
		}
		out[i] = b
	}
	return out, nil
}

// MFMClockViolations counts clock cells in [start, start+n*16) that break
// the MFM rule. Each one marks a likely bitslip inside the field.
func MFMClockViolations(bits []uint8, start, n int) int {
	if start < 1 || start+n*16 > len(bits) {
		return 0
	}
	prev := bits[start-1]
	bad := 0
	for i := start; i < start+n*16; i += 2 {
		c, d := bits[i], bits[i+1]
		want := uint8(0)
		if d == 0 && prev == 0 {
			want = 1
		}
		if c != want {
			bad++
		}
		prev = d
	}
	return bad
}

// FMClockViolations counts missing FM clock cells in [start, start+n*16).
func FMClockViolations(bits []uint8, start, n int) int {
	if start < 0 || start+n*16 > len(bits) {
		return 0
	}
	bad := 0
	for i := start; i < start+n*16; i += 2 {
		if bits[i] != 1 {
			bad++
		}
	}
	return bad
}
